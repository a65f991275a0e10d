// Package server accepts TCP connections and runs the per-connection
// request/response cycle, either on a worker pool or on one goroutine
// per connection.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/athena-engine/athena/internal/errors"
	"github.com/athena-engine/athena/internal/logging"
	"github.com/athena-engine/athena/internal/metrics"
	"github.com/athena-engine/athena/internal/request"
	"github.com/athena-engine/athena/internal/workerpool"
)

// Mode selects the connection scheduling strategy.
type Mode string

const (
	// ModePool hands connections to a fixed-size worker pool.
	ModePool Mode = "pool"
	// ModeSpawn runs every connection on its own goroutine.
	ModeSpawn Mode = "spawn"
)

// ReadMode selects how request bytes are read from the socket.
type ReadMode string

const (
	// ReadBuffer reads into a fixed-size buffer and splits it on CRLF.
	ReadBuffer ReadMode = "buffer"
	// ReadLines reads line by line up to the first blank line.
	ReadLines ReadMode = "lines"
)

// Defaults used when Options leaves a field zero. A zero QueueSize is not
// defaulted: it leaves the pool queue unbounded. DefaultQueueSize is the
// configured bound.
const (
	DefaultTimeout        = 15 * time.Second
	DefaultReadBufferSize = 1024
	DefaultWorkers        = 4
	DefaultQueueSize      = 64
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = stderrors.New("athena: server closed")

// Options configures a Server. Hooks are copied by New and cannot be
// replaced afterwards.
type Options struct {
	Mode           Mode
	Workers        int
	QueueSize      int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	ReadBufferSize int
	ReadMode       ReadMode

	RequestHook  RequestHook
	ResponseHook ResponseHook

	Logger  logging.Logger
	Metrics *metrics.Recorder
	Tracer  trace.Tracer
}

// Stats is a snapshot of server counters.
type Stats struct {
	Mode     Mode              `json:"mode"`
	Accepted int64             `json:"accepted"`
	Handled  int64             `json:"handled"`
	Active   int64             `json:"active"`
	Pool     *workerpool.Stats `json:"pool,omitempty"`
}

// Server is the connection engine.
type Server struct {
	mode           Mode
	readTimeout    time.Duration
	writeTimeout   time.Duration
	readBufferSize int
	readMode       ReadMode

	requestHook  RequestHook
	responseHook ResponseHook

	parser  *request.Parser
	logger  logging.Logger
	metrics *metrics.Recorder
	tracer  trace.Tracer
	pool    *workerpool.Pool

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	conns     sync.WaitGroup
	closed    atomic.Bool

	accepted atomic.Int64
	handled  atomic.Int64
	active   atomic.Int64
}

// New creates a server. In pool mode the worker pool is started here, so
// an invalid worker count fails before anything listens.
func New(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(metrics.InstrumentationName)
	}

	s := &Server{
		mode:           opts.Mode,
		readTimeout:    opts.ReadTimeout,
		writeTimeout:   opts.WriteTimeout,
		readBufferSize: opts.ReadBufferSize,
		readMode:       opts.ReadMode,
		requestHook:    opts.RequestHook,
		responseHook:   opts.ResponseHook,
		parser:         request.NewParser(logger),
		logger:         logger.WithComponent("server"),
		metrics:        opts.Metrics,
		tracer:         tracer,
		listeners:      make(map[net.Listener]struct{}),
	}

	if s.mode == "" {
		s.mode = ModePool
	}
	if s.readTimeout <= 0 {
		s.readTimeout = DefaultTimeout
	}
	if s.writeTimeout <= 0 {
		s.writeTimeout = DefaultTimeout
	}
	if s.readBufferSize <= 0 {
		s.readBufferSize = DefaultReadBufferSize
	}
	if s.readMode == "" {
		s.readMode = ReadBuffer
	}

	switch s.mode {
	case ModePool:
		pool, err := workerpool.New(opts.Workers, opts.QueueSize,
			workerpool.WithLogger(logger),
			workerpool.WithPanicHandler(func(interface{}) {
				s.metrics.HookPanic(context.Background(), "job")
			}))
		if err != nil {
			return nil, err
		}
		s.pool = pool
	case ModeSpawn:
	default:
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown server mode %q", s.mode))
	}

	switch s.readMode {
	case ReadBuffer, ReadLines:
	default:
		if s.pool != nil {
			s.pool.Shutdown()
		}
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown read mode %q", s.readMode))
	}

	return s, nil
}

// ListenAndServe listens on addr and serves until ctx is done or
// Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeReadFailed, "listen on "+addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is done or Shutdown is
// called. A failed accept is logged and retried after a growing delay;
// only a closed listener ends the loop.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.closed.Load() {
		_ = ln.Close()
		return ErrServerClosed
	}
	s.trackListener(ln, true)
	defer s.trackListener(ln, false)

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.logger.Info(ctx, "Listening", "addr", ln.Addr().String(), "mode", string(s.mode))

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closed.Load() || ctx.Err() != nil {
				return ErrServerClosed
			}
			if stderrors.Is(err, net.ErrClosed) {
				return errors.NewIOError(errors.ErrCodeReadFailed, "accept", err)
			}
			backoff = nextBackoff(backoff)
			s.logger.Warn(ctx, err, "Accept failed; retrying", "delay", backoff.String())
			if !sleepCtx(ctx, backoff) {
				return ErrServerClosed
			}
			continue
		}
		backoff = 0
		s.accepted.Add(1)
		s.dispatch(ctx, conn)
	}
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}

func (s *Server) dispatch(ctx context.Context, conn net.Conn) {
	if s.mode == ModeSpawn {
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.HandleConn(ctx, conn)
		}()
		return
	}

	if err := s.pool.Execute(func() { s.HandleConn(ctx, conn) }); err != nil {
		reason := "queue_full"
		if stderrors.Is(err, workerpool.ErrPoolClosed) {
			reason = "closed"
		}
		s.metrics.PoolRejected(ctx, reason)
		s.logger.Warn(ctx, err, "Dropping connection", "remote", remoteAddr(conn))
		_ = conn.Close()
	}
}

// Shutdown stops accepting, then waits for in-flight connections until
// ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	for ln := range s.listeners {
		_ = ln.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		if s.pool != nil {
			s.pool.Shutdown()
		}
		s.conns.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info(ctx, "Server stopped", "handled", s.handled.Load())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters.
func (s *Server) Stats() Stats {
	st := Stats{
		Mode:     s.mode,
		Accepted: s.accepted.Load(),
		Handled:  s.handled.Load(),
		Active:   s.active.Load(),
	}
	if s.pool != nil {
		ps := s.pool.Stats()
		st.Pool = &ps
	}
	return st
}

func (s *Server) trackListener(ln net.Listener, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.listeners[ln] = struct{}{}
	} else {
		delete(s.listeners, ln)
	}
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
