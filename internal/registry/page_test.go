package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engineerrors "github.com/athena-engine/athena/internal/errors"
)

func newTestFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	return fs
}

func TestLookupMixedCase(t *testing.T) {
	fs := newTestFs(t, map[string]string{"/www/hello.html": "hi"})
	reg := NewBuilder(fs).Add("/hello.html", "/www/hello.html", true).Build()

	res := reg.Lookup("/HELLO.HTML")

	assert.Equal(t, StatusFound, res.Status)
	assert.Equal(t, "hi", res.Content)
	assert.NoError(t, res.Err)
}

func TestAddLowercasesPath(t *testing.T) {
	reg := NewBuilder(afero.NewMemMapFs()).Add("/Index.HTML", "/www/index.html", true).Build()

	e, ok := reg.Get("/index.html")
	require.True(t, ok)
	assert.Equal(t, "/index.html", e.Path)
}

func TestLookupOutcomes(t *testing.T) {
	fs := newTestFs(t, map[string]string{
		"/www/open.html":   "open",
		"/www/secret.html": "secret",
	})
	reg := NewBuilder(fs).
		Add("/open", "/www/open.html", true).
		Add("/secret", "/www/secret.html", false).
		Add("/missing-file", "/www/gone.html", true).
		Build()

	t.Run("found", func(t *testing.T) {
		res := reg.Lookup("/open")
		assert.Equal(t, StatusFound, res.Status)
		assert.Equal(t, "open", res.Content)
	})

	t.Run("inaccessible", func(t *testing.T) {
		res := reg.Lookup("/secret")
		assert.Equal(t, StatusFail, res.Status)
		assert.Empty(t, res.Content)
		assert.True(t, errors.Is(res.Err, ErrAccessDenied))
	})

	t.Run("unreadable", func(t *testing.T) {
		res := reg.Lookup("/missing-file")
		assert.Equal(t, StatusFail, res.Status)
		assert.True(t, engineerrors.IsType(res.Err, engineerrors.ErrorTypeIO))
	})

	t.Run("not registered", func(t *testing.T) {
		res := reg.Lookup("/nope")
		assert.Equal(t, StatusNotFound, res.Status)
	})
}

func TestBuildFreezesEntries(t *testing.T) {
	b := NewBuilder(afero.NewMemMapFs()).Add("/a", "/a.html", true)
	reg := b.Build()

	b.Add("/b", "/b.html", true)

	assert.Equal(t, 1, reg.Count())
	_, ok := reg.Get("/b")
	assert.False(t, ok)
}

func TestCacheAndInvalidate(t *testing.T) {
	fs := newTestFs(t, map[string]string{"/www/page.html": "v1"})
	reg := NewBuilder(fs).WithCache(true).Add("/page", "/www/page.html", true).Build()

	assert.Equal(t, "v1", reg.Lookup("/page").Content)

	require.NoError(t, afero.WriteFile(fs, "/www/page.html", []byte("v2"), 0o644))
	assert.Equal(t, "v1", reg.Lookup("/page").Content, "cached content served until invalidated")

	events := reg.Watch()
	reg.Invalidate("/www/page.html", EventTypeChanged)

	select {
	case ev := <-events:
		assert.Equal(t, EventTypeChanged, ev.Type)
		assert.Equal(t, "/page", ev.Entry.Path)
	case <-time.After(time.Second):
		t.Fatal("expected page event")
	}

	assert.Equal(t, "v2", reg.Lookup("/page").Content)
	reg.UnWatch(events)
}

// openHookFs runs onOpen once, after the file is opened and before it is
// read.
type openHookFs struct {
	afero.Fs
	onOpen func()
}

func (f *openHookFs) Open(name string) (afero.File, error) {
	file, err := f.Fs.Open(name)
	if hook := f.onOpen; hook != nil {
		f.onOpen = nil
		hook()
	}
	return file, err
}

func TestInvalidateDuringReadIsNotCached(t *testing.T) {
	base := newTestFs(t, map[string]string{"/www/page.html": "v1"})
	fs := &openHookFs{Fs: base}
	reg := NewBuilder(fs).WithCache(true).Add("/page", "/www/page.html", true).Build()
	fs.onOpen = func() { reg.Invalidate("/www/page.html", EventTypeChanged) }

	assert.Equal(t, "v1", reg.Lookup("/page").Content)

	require.NoError(t, afero.WriteFile(base, "/www/page.html", []byte("v2"), 0o644))
	assert.Equal(t, "v2", reg.Lookup("/page").Content, "a read overtaken by Invalidate must not be cached")
}

func TestRepeatedInvalidateStillCaches(t *testing.T) {
	fs := newTestFs(t, map[string]string{"/www/page.html": "v1"})
	reg := NewBuilder(fs).WithCache(true).Add("/page", "/www/page.html", true).Build()

	reg.Invalidate("/www/page.html", EventTypeChanged)
	reg.Invalidate("/www/page.html", EventTypeChanged)
	assert.Equal(t, "v1", reg.Lookup("/page").Content)

	require.NoError(t, afero.WriteFile(fs, "/www/page.html", []byte("v2"), 0o644))
	assert.Equal(t, "v1", reg.Lookup("/page").Content)
}

func TestWithoutCacheReadsEveryTime(t *testing.T) {
	fs := newTestFs(t, map[string]string{"/www/page.html": "v1"})
	reg := NewBuilder(fs).Add("/page", "/www/page.html", true).Build()

	assert.Equal(t, "v1", reg.Lookup("/page").Content)
	require.NoError(t, afero.WriteFile(fs, "/www/page.html", []byte("v2"), 0o644))
	assert.Equal(t, "v2", reg.Lookup("/page").Content)
}

func TestEntriesAndFiles(t *testing.T) {
	reg := NewBuilder(afero.NewMemMapFs()).
		Add("/b", "/shared.html", true).
		Add("/a", "/shared.html", false).
		Add("/c", "/c.html", true).
		Build()

	entries := reg.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "/a", entries[0].Path)
	assert.Equal(t, "/c", entries[2].Path)
	assert.Equal(t, []string{"/c.html", "/shared.html"}, reg.Files())
}

func TestTitle(t *testing.T) {
	fs := newTestFs(t, map[string]string{
		"/www/index.html":  "<html><head><title> Welcome </title></head><body>x</body></html>",
		"/www/plain.html":  "<p>no title</p>",
		"/www/locked.html": "<title>locked</title>",
	})
	reg := NewBuilder(fs).
		Add("/", "/www/index.html", true).
		Add("/plain", "/www/plain.html", true).
		Add("/locked", "/www/locked.html", false).
		Build()

	title, err := reg.Title("/")
	require.NoError(t, err)
	assert.Equal(t, "Welcome", title)

	title, err = reg.Title("/plain")
	require.NoError(t, err)
	assert.Empty(t, title)

	_, err = reg.Title("/locked")
	assert.Error(t, err)

	_, err = reg.Title("/unknown")
	assert.Error(t, err)
}
