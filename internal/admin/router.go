// Package admin serves the engine's side-channel HTTP endpoint: health,
// the page listing, a small index page and live page-change
// notifications. It runs on its own port and never touches the engine's
// connection path.
package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/athena-engine/athena/internal/logging"
	"github.com/athena-engine/athena/internal/websocket"
)

// Router owns the admin HTTP server lifecycle.
type Router struct {
	mux        *http.ServeMux
	handler    http.Handler
	httpServer *http.Server
	hub        *websocket.Hub
	logger     logging.Logger

	serverMutex sync.Mutex
	isShutdown  bool
}

// NewRouter registers the admin routes on a fresh mux. The mux is wrapped
// with otelhttp so every admin request gets a server span and metrics.
func NewRouter(h *Handlers, logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.Nop()
	}
	r := &Router{
		mux:    http.NewServeMux(),
		hub:    h.Hub,
		logger: logger.WithComponent("admin"),
	}
	r.registerRoutes(h)
	r.handler = otelhttp.NewHandler(
		Chain(r.mux, Recoverer(r.logger), RequestLogging(r.logger)),
		"athena.admin",
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return "admin " + req.Method + " " + req.URL.Path
		}))
	r.httpServer = &http.Server{
		Handler:           r.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return r
}

func (r *Router) registerRoutes(h *Handlers) {
	r.mux.HandleFunc("GET /healthz", h.HandleHealth)
	r.mux.HandleFunc("GET /pages", h.HandlePages)
	if h.Hub != nil {
		r.mux.Handle("GET /ws", h.Hub)
	}
	r.mux.HandleFunc("GET /{$}", h.HandleIndex)
}

// Handler returns the instrumented root handler.
func (r *Router) Handler() http.Handler {
	return r.handler
}

// ListenAndServe listens on addr and serves until ctx is done.
func (r *Router) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return r.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (r *Router) Serve(ctx context.Context, ln net.Listener) error {
	r.serverMutex.Lock()
	if r.isShutdown {
		r.serverMutex.Unlock()
		_ = ln.Close()
		return http.ErrServerClosed
	}
	r.serverMutex.Unlock()

	r.logger.Info(ctx, "Admin endpoint listening", "addr", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := r.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return r.Shutdown(shutdownCtx)
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// Shutdown stops the admin server. It is safe to call more than once.
func (r *Router) Shutdown(ctx context.Context) error {
	r.serverMutex.Lock()
	if r.isShutdown {
		r.serverMutex.Unlock()
		return nil
	}
	r.isShutdown = true
	r.serverMutex.Unlock()

	// Hijacked websocket connections are not closed by http.Server.
	if r.hub != nil {
		if err := r.hub.Shutdown(ctx); err != nil {
			r.logger.Warn(ctx, err, "WebSocket clients did not disconnect in time")
		}
	}
	return r.httpServer.Shutdown(ctx)
}
