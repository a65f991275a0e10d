package watcher

import (
	"context"
	"time"

	"github.com/athena-engine/athena/internal/logging"
	"github.com/athena-engine/athena/internal/registry"
)

// Invalidator drops cached page content for a backing file.
type Invalidator interface {
	Files() []string
	Invalidate(file string, eventType registry.EventType)
}

// OnlyFiles accepts only the given files, compared in absolute form.
func OnlyFiles(files []string) Filter {
	set := make(map[string]struct{}, len(files))
	for _, f := range files {
		if abs, err := absPath(f); err == nil {
			set[abs] = struct{}{}
		}
	}
	return func(path string) bool {
		abs, err := absPath(path)
		if err != nil {
			return false
		}
		_, ok := set[abs]
		return ok
	}
}

// InvalidateHandler maps changes back to the file names the registry was
// built with and invalidates them.
func InvalidateHandler(reg Invalidator, logger logging.Logger) Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	registered := make(map[string]string)
	for _, f := range reg.Files() {
		if abs, err := absPath(f); err == nil {
			registered[abs] = f
		}
	}

	return func(changes []Change) error {
		for _, c := range changes {
			file, ok := registered[c.File]
			if !ok {
				continue
			}
			reg.Invalidate(file, c.Type())
			logger.Info(context.Background(), "Page file changed", "file", file, "event", c.Type().String())
		}
		return nil
	}
}

// WatchRegistry starts a watcher that invalidates reg whenever one of its
// page files changes. The watcher stops when ctx is done or Stop is called.
func WatchRegistry(ctx context.Context, reg Invalidator, delay time.Duration, logger logging.Logger) (*Watcher, error) {
	w, err := New(delay, logger)
	if err != nil {
		return nil, err
	}

	files := reg.Files()
	w.AddFilter(SkipHidden)
	w.AddFilter(OnlyFiles(files))
	w.AddHandler(InvalidateHandler(reg, w.logger))

	if err := w.WatchDirsOf(files); err != nil {
		_ = w.Stop()
		return nil, err
	}
	w.Start(ctx)
	return w, nil
}
