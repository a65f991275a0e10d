// Package watcher reports changes to page files so cached page contents
// can be dropped while the engine runs.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/athena-engine/athena/internal/logging"
	"github.com/athena-engine/athena/internal/registry"
)

// Change is the last event seen for one file during a debounce window.
type Change struct {
	File string // absolute path
	Op   fsnotify.Op
}

// Type classifies the change for the page registry. A renamed file is
// gone from its old name.
func (c Change) Type() registry.EventType {
	if c.Op.Has(fsnotify.Remove) || c.Op.Has(fsnotify.Rename) {
		return registry.EventTypeRemoved
	}
	return registry.EventTypeChanged
}

// Filter reports whether events for path are of interest.
type Filter func(path string) bool

// Handler receives each debounced batch, sorted by file.
type Handler func(changes []Change) error

// Watcher coalesces fsnotify events per file and hands the batches to
// its handlers.
type Watcher struct {
	fsw    *fsnotify.Watcher
	batch  *batcher
	logger logging.Logger

	mu       sync.RWMutex
	filters  []Filter
	handlers []Handler

	// dispatchMu serializes handler runs; timers may fire concurrently.
	dispatchMu sync.Mutex
	stopOnce   sync.Once
}

// New creates a watcher that emits a batch once no event has arrived for
// delay.
func New(delay time.Duration, logger logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	w := &Watcher{
		fsw:    fsw,
		logger: logger.WithComponent("watcher"),
	}
	w.batch = newBatcher(delay, w.dispatch)
	return w, nil
}

// AddFilter adds a filter. An event must pass every filter.
func (w *Watcher) AddFilter(f Filter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.filters = append(w.filters, f)
}

// AddHandler adds a batch handler.
func (w *Watcher) AddHandler(h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// WatchDirsOf watches the directory holding each file. Editors often
// replace a file instead of writing it, which only the directory sees.
func (w *Watcher) WatchDirsOf(files []string) error {
	dirs := make(map[string]struct{})
	for _, f := range files {
		abs, err := absPath(f)
		if err != nil {
			return err
		}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return nil
}

// WatchList returns the watched directories, sorted.
func (w *Watcher) WatchList() []string {
	list := w.fsw.WatchList()
	sort.Strings(list)
	return list
}

// Start consumes events until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Stop releases the fsnotify watcher and drops pending changes.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.batch.stop()
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.batch.stop()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			// Permission changes do not alter page content.
			if ev.Op == fsnotify.Chmod || !w.accept(ev.Name) {
				continue
			}
			abs, err := absPath(ev.Name)
			if err != nil {
				continue
			}
			w.batch.add(Change{File: abs, Op: ev.Op})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (w *Watcher) accept(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, f := range w.filters {
		if !f(path) {
			return false
		}
	}
	return true
}

func (w *Watcher) dispatch(changes []Change) {
	w.mu.RLock()
	handlers := append([]Handler(nil), w.handlers...)
	w.mu.RUnlock()

	w.dispatchMu.Lock()
	defer w.dispatchMu.Unlock()
	for _, h := range handlers {
		if err := h(changes); err != nil {
			w.logger.Warn(context.Background(), err, "Change handler failed", "changes", len(changes))
		}
	}
}

// batcher keeps the latest change per file and emits them together once
// the files have been quiet for delay.
type batcher struct {
	delay time.Duration
	emit  func([]Change)

	mu      sync.Mutex
	pending map[string]Change
	timer   *time.Timer
	stopped bool
}

func newBatcher(delay time.Duration, emit func([]Change)) *batcher {
	return &batcher{
		delay:   delay,
		emit:    emit,
		pending: make(map[string]Change),
	}
}

func (b *batcher) add(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.pending[c.File] = c
	if b.timer == nil {
		b.timer = time.AfterFunc(b.delay, b.flush)
		return
	}
	b.timer.Reset(b.delay)
}

func (b *batcher) flush() {
	b.mu.Lock()
	if b.stopped || len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	changes := make([]Change, 0, len(b.pending))
	for _, c := range b.pending {
		changes = append(changes, c)
	}
	b.pending = make(map[string]Change)
	b.mu.Unlock()

	sort.Slice(changes, func(i, j int) bool { return changes[i].File < changes[j].File })
	b.emit(changes)
}

func (b *batcher) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
	}
}

// SkipHidden rejects dot files such as editor swap files.
func SkipHidden(path string) bool {
	return !strings.HasPrefix(filepath.Base(path), ".")
}

func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	return abs, nil
}
