// Package app wires configuration into a running engine: the page
// registry, the default hooks, the connection server and the optional
// admin endpoint and file watcher.
package app

import (
	"context"
	stderrors "errors"
	"net"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/athena-engine/athena/internal/admin"
	"github.com/athena-engine/athena/internal/config"
	"github.com/athena-engine/athena/internal/logging"
	"github.com/athena-engine/athena/internal/metrics"
	"github.com/athena-engine/athena/internal/registry"
	"github.com/athena-engine/athena/internal/response"
	"github.com/athena-engine/athena/internal/server"
	"github.com/athena-engine/athena/internal/version"
	"github.com/athena-engine/athena/internal/watcher"
	"github.com/athena-engine/athena/internal/websocket"
)

// ShutdownTimeout bounds how long Run waits for in-flight connections.
const ShutdownTimeout = 10 * time.Second

// watchDebounce groups editor save bursts into one invalidation.
const watchDebounce = 100 * time.Millisecond

// App is a configured engine ready to run.
type App struct {
	cfg     *config.Config
	logger  logging.Logger
	fs      afero.Fs
	metrics *metrics.Recorder

	Registry *registry.Registry
	Hooks    *Hooks
	Server   *server.Server
	Hub      *websocket.Hub
	Admin    *admin.Router
}

// Option configures New.
type Option func(*App)

// WithFS reads pages from fs instead of the operating system.
func WithFS(fs afero.Fs) Option {
	return func(a *App) { a.fs = fs }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(a *App) { a.metrics = m }
}

// BuildRegistry creates the page registry described by cfg.
func BuildRegistry(cfg *config.Config, fs afero.Fs) *registry.Registry {
	b := registry.NewBuilder(fs).WithCache(cfg.Pages.Cache)
	for _, p := range cfg.Pages.Entries {
		b.Add(p.Path, p.File, p.IsAccessible())
	}
	return b.Build()
}

// New builds every component. Nothing listens until Run.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.Nop()
	}
	if a.metrics == nil {
		a.metrics = metrics.Nop()
	}
	if a.fs == nil {
		a.fs = afero.NewOsFs()
	}

	a.Registry = BuildRegistry(cfg, a.fs)

	builder, err := response.NewBuilder(a.Registry,
		response.WithServerName(cfg.Response.ServerName),
		response.WithContentLanguage(cfg.Response.ContentLanguage),
		response.WithRejectStatus(cfg.Response.RejectWithStatus))
	if err != nil {
		return nil, err
	}

	a.Hooks = NewHooks(HooksConfig{
		Builder:         builder,
		TemplateEnabled: cfg.Template.Enabled,
		Variables:       cfg.Template.Variables,
		ServerName:      cfg.Response.ServerName,
		Logger:          a.logger,
		Metrics:         a.metrics,
	})

	a.Server, err = server.New(server.Options{
		Mode:           server.Mode(cfg.Server.Mode),
		Workers:        cfg.Server.Workers,
		QueueSize:      cfg.Server.QueueSize,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		ReadBufferSize: cfg.Server.ReadBufferSize,
		ReadMode:       server.ReadMode(cfg.Server.ReadMode),
		RequestHook:    a.Hooks,
		ResponseHook:   a.Hooks,
		Logger:         a.logger,
		Metrics:        a.metrics,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Admin.Enabled {
		a.Hub = websocket.NewHub(a.logger)
		a.Admin = admin.NewRouter(&admin.Handlers{
			Pages:   a.Registry,
			Engine:  a.Server,
			Hub:     a.Hub,
			Build:   version.Get(),
			Started: time.Now(),
		}, a.logger)
	}

	return a, nil
}

// Run serves until ctx is done, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Addr())
	if err != nil {
		return err
	}
	var adminLn net.Listener
	if a.Admin != nil {
		adminLn, err = net.Listen("tcp", a.cfg.Admin.Addr())
		if err != nil {
			_ = ln.Close()
			return err
		}
	}
	return a.Serve(ctx, ln, adminLn)
}

// Serve is Run on listeners the caller opened. adminLn may be nil.
func (a *App) Serve(ctx context.Context, ln, adminLn net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.Pages.Watch && a.Registry.Count() > 0 {
		fw, err := watcher.WatchRegistry(ctx, a.Registry, watchDebounce, a.logger)
		if err != nil {
			a.logger.Warn(ctx, err, "Page watching disabled")
		} else {
			defer fw.Stop()
		}
	}

	var wg sync.WaitGroup
	if a.Admin != nil && adminLn != nil {
		events := a.Registry.Watch()
		wg.Add(2)
		go func() {
			defer wg.Done()
			a.Hub.Forward(ctx, events)
		}()
		go func() {
			defer wg.Done()
			if err := a.Admin.Serve(ctx, adminLn); err != nil {
				a.logger.Error(ctx, err, "Admin endpoint stopped")
			}
		}()
		defer a.Registry.UnWatch(events)
	}

	a.logger.Info(ctx, "Engine starting",
		"pages", a.Registry.Count(),
		"mode", a.cfg.Server.Mode,
		"template", a.cfg.Template.Enabled)

	serveErr := a.Server.Serve(ctx, ln)
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer stop()
	shutdownErr := a.Server.Shutdown(shutdownCtx)
	wg.Wait()

	if serveErr != nil && !stderrors.Is(serveErr, server.ErrServerClosed) {
		return serveErr
	}
	return shutdownErr
}
