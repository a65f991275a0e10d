// Package registry maps request paths to page files on disk.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/athena-engine/athena/internal/errors"
)

// Status is the outcome of a page lookup.
type Status int

const (
	// StatusFound means the page exists, is accessible and was read.
	StatusFound Status = iota
	// StatusFail means the page exists but is inaccessible or unreadable.
	StatusFail
	// StatusNotFound means no page is registered for the path.
	StatusNotFound
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusFail:
		return "fail"
	case StatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Result is returned by Lookup.
type Result struct {
	Status  Status
	Content string
	Err     error
}

// Entry describes a registered page.
type Entry struct {
	Path       string `json:"path" yaml:"path"`
	File       string `json:"file" yaml:"file"`
	Accessible bool   `json:"accessible" yaml:"accessible"`
}

// PageEvent is emitted when a page's backing file changes.
type PageEvent struct {
	Type      EventType
	Entry     Entry
	Timestamp time.Time
}

// EventType represents the type of page event
type EventType int

const (
	EventTypeChanged EventType = iota
	EventTypeRemoved
)

// String returns the event name.
func (t EventType) String() string {
	if t == EventTypeRemoved {
		return "removed"
	}
	return "changed"
}

// ErrAccessDenied is the cause reported for pages registered as inaccessible.
var ErrAccessDenied = errors.NewPolicyError("ERR_ACCESS_DENIED", "page is not accessible")

// Builder collects pages during startup. Build freezes the set.
type Builder struct {
	fs      afero.Fs
	entries map[string]Entry
	cache   bool
}

// NewBuilder creates a builder reading page files from fs. A nil fs
// means the operating system file system.
func NewBuilder(fs afero.Fs) *Builder {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Builder{fs: fs, entries: make(map[string]Entry)}
}

// Add registers a page. The path is stored lower-cased; a later Add for
// the same path replaces the earlier one.
func (b *Builder) Add(path, file string, accessible bool) *Builder {
	key := strings.ToLower(path)
	b.entries[key] = Entry{Path: key, File: file, Accessible: accessible}
	return b
}

// WithCache enables caching of page contents until Invalidate is called.
func (b *Builder) WithCache(enabled bool) *Builder {
	b.cache = enabled
	return b
}

// Build returns an immutable registry. The builder may be discarded.
func (b *Builder) Build() *Registry {
	entries := make(map[string]Entry, len(b.entries))
	for k, v := range b.entries {
		entries[k] = v
	}
	return &Registry{
		fs:          b.fs,
		entries:     entries,
		cache:       b.cache,
		contents:    make(map[string]string),
		generations: make(map[string]uint64),
	}
}

// Registry serves page lookups. The page set never changes after Build;
// only the content cache and watcher list are mutable.
type Registry struct {
	fs      afero.Fs
	entries map[string]Entry
	cache   bool

	mutex    sync.RWMutex
	contents map[string]string

	// generations counts invalidations per file. A read started before
	// an invalidation must not repopulate the cache.
	generations map[string]uint64
	watchers    []chan PageEvent
}

// Lookup resolves a path, matching it lower-cased.
func (r *Registry) Lookup(path string) Result {
	entry, ok := r.entries[strings.ToLower(path)]
	if !ok {
		return Result{Status: StatusNotFound}
	}
	if !entry.Accessible {
		return Result{Status: StatusFail, Err: ErrAccessDenied}
	}

	var gen uint64
	if r.cache {
		r.mutex.RLock()
		content, hit := r.contents[entry.File]
		gen = r.generations[entry.File]
		r.mutex.RUnlock()
		if hit {
			return Result{Status: StatusFound, Content: content}
		}
	}

	data, err := afero.ReadFile(r.fs, entry.File)
	if err != nil {
		return Result{
			Status: StatusFail,
			Err: errors.NewIOError(errors.ErrCodePageUnreadable,
				fmt.Sprintf("read page %s", entry.Path), err),
		}
	}

	content := string(data)
	if r.cache {
		r.store(entry.File, content, gen)
	}
	return Result{Status: StatusFound, Content: content}
}

// store caches content read while file was at generation gen.
func (r *Registry) store(file, content string, gen uint64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.generations[file] != gen {
		return
	}
	r.contents[file] = content
}

// Get returns the entry for a path.
func (r *Registry) Get(path string) (Entry, bool) {
	e, ok := r.entries[strings.ToLower(path)]
	return e, ok
}

// Entries returns all entries sorted by path.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Files returns the distinct backing files, sorted.
func (r *Registry) Files() []string {
	seen := make(map[string]struct{}, len(r.entries))
	for _, e := range r.entries {
		seen[e.File] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of registered pages
func (r *Registry) Count() int {
	return len(r.entries)
}

// FS returns the file system pages are read from.
func (r *Registry) FS() afero.Fs {
	return r.fs
}

// Invalidate drops cached content for file and notifies watchers about
// every page backed by it.
func (r *Registry) Invalidate(file string, eventType EventType) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.contents, file)
	r.generations[file]++

	now := time.Now()
	for _, e := range r.entries {
		if e.File != file {
			continue
		}
		event := PageEvent{Type: eventType, Entry: e, Timestamp: now}
		for _, watcher := range r.watchers {
			select {
			case watcher <- event:
			default:
				// Skip if channel is full
			}
		}
	}
}

// Watch returns a channel that receives page events
func (r *Registry) Watch() <-chan PageEvent {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan PageEvent, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (r *Registry) UnWatch(ch <-chan PageEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}
