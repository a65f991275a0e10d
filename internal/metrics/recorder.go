// Package metrics records engine counters through OpenTelemetry.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// InstrumentationName is the meter and tracer name used by the engine.
const InstrumentationName = "github.com/athena-engine/athena"

// Recorder holds the engine's instruments. A nil *Recorder records nothing.
type Recorder struct {
	connections    metric.Int64Counter
	active         metric.Int64UpDownCounter
	requests       metric.Int64Counter
	readErrors     metric.Int64Counter
	writeErrors    metric.Int64Counter
	hookPanics     metric.Int64Counter
	templateErrors metric.Int64Counter
	poolRejections metric.Int64Counter
	duration       metric.Float64Histogram
}

// New creates the instruments on meter.
func New(meter metric.Meter) (*Recorder, error) {
	r := &Recorder{}
	var err error

	if r.connections, err = meter.Int64Counter("athena.connections",
		metric.WithDescription("Accepted connections"),
		metric.WithUnit("{connection}")); err != nil {
		return nil, err
	}
	if r.active, err = meter.Int64UpDownCounter("athena.connections.active",
		metric.WithDescription("Connections currently being handled"),
		metric.WithUnit("{connection}")); err != nil {
		return nil, err
	}
	if r.requests, err = meter.Int64Counter("athena.requests",
		metric.WithDescription("Responses written by method and status"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if r.readErrors, err = meter.Int64Counter("athena.read_errors",
		metric.WithDescription("Connections abandoned because the read failed")); err != nil {
		return nil, err
	}
	if r.writeErrors, err = meter.Int64Counter("athena.write_errors",
		metric.WithDescription("Responses that could not be written")); err != nil {
		return nil, err
	}
	if r.hookPanics, err = meter.Int64Counter("athena.hook_panics",
		metric.WithDescription("Panics recovered from request or response hooks")); err != nil {
		return nil, err
	}
	if r.templateErrors, err = meter.Int64Counter("athena.template_errors",
		metric.WithDescription("Renders that failed closed")); err != nil {
		return nil, err
	}
	if r.poolRejections, err = meter.Int64Counter("athena.pool_rejections",
		metric.WithDescription("Connections dropped because the worker pool refused them")); err != nil {
		return nil, err
	}
	if r.duration, err = meter.Float64Histogram("athena.connection.duration",
		metric.WithDescription("Time from accept to close"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}

	return r, nil
}

// NewGlobal creates a Recorder on the global meter provider.
func NewGlobal() (*Recorder, error) {
	return New(otel.Meter(InstrumentationName))
}

// Nop returns a Recorder backed by a no-op meter.
func Nop() *Recorder {
	r, _ := New(noop.NewMeterProvider().Meter(InstrumentationName))
	return r
}

// ConnectionOpened counts an accepted connection.
func (r *Recorder) ConnectionOpened(ctx context.Context, mode string) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	r.connections.Add(ctx, 1, attrs)
	r.active.Add(ctx, 1, attrs)
}

// ConnectionClosed records how long a connection lived.
func (r *Recorder) ConnectionClosed(ctx context.Context, mode string, elapsed time.Duration) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	r.active.Add(ctx, -1, attrs)
	r.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}

// Request counts a written response.
func (r *Recorder) Request(ctx context.Context, method string, status int) {
	if r == nil {
		return
	}
	r.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.Int("status", status),
	))
}

// ReadError counts a failed read.
func (r *Recorder) ReadError(ctx context.Context) {
	if r == nil {
		return
	}
	r.readErrors.Add(ctx, 1)
}

// WriteError counts a failed write.
func (r *Recorder) WriteError(ctx context.Context) {
	if r == nil {
		return
	}
	r.writeErrors.Add(ctx, 1)
}

// HookPanic counts a recovered hook panic.
func (r *Recorder) HookPanic(ctx context.Context, hook string) {
	if r == nil {
		return
	}
	r.hookPanics.Add(ctx, 1, metric.WithAttributes(attribute.String("hook", hook)))
}

// TemplateError counts a render that returned the original page.
func (r *Recorder) TemplateError(ctx context.Context) {
	if r == nil {
		return
	}
	r.templateErrors.Add(ctx, 1)
}

// PoolRejected counts a connection the pool would not take.
func (r *Recorder) PoolRejected(ctx context.Context, reason string) {
	if r == nil {
		return
	}
	r.poolRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
