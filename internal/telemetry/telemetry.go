// Package telemetry installs the OpenTelemetry providers used by the
// engine's metrics, traces and otel log format.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config selects what Setup installs.
type Config struct {
	Enabled     bool
	Endpoint    string // OTLP gRPC host:port; empty keeps data in-process
	ServiceName string
	Insecure    bool
}

// Providers are the SDK providers installed by Setup.
type Providers struct {
	Meter  *sdkmetric.MeterProvider
	Tracer *sdktrace.TracerProvider
	Logger *sdklog.LoggerProvider
}

// ShutdownFunc flushes and stops the installed providers.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Setup installs global meter, tracer and logger providers. When disabled
// it leaves the otel no-op globals in place. Without an endpoint the SDK
// providers are installed with no exporters.
func Setup(ctx context.Context, cfg Config) (*Providers, ShutdownFunc, error) {
	if !cfg.Enabled {
		return nil, noopShutdown, nil
	}

	name := cfg.ServiceName
	if name == "" {
		name = "athena"
	}
	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", name)))
	if err != nil {
		return nil, noopShutdown, fmt.Errorf("telemetry resource: %w", err)
	}

	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	logOpts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}

	if cfg.Endpoint != "" {
		metricExp, err := otlpmetricgrpc.New(ctx, metricExporterOptions(cfg)...)
		if err != nil {
			return nil, noopShutdown, fmt.Errorf("metric exporter: %w", err)
		}
		traceExp, err := otlptracegrpc.New(ctx, traceExporterOptions(cfg)...)
		if err != nil {
			return nil, noopShutdown, fmt.Errorf("trace exporter: %w", err)
		}
		logExp, err := otlploggrpc.New(ctx, logExporterOptions(cfg)...)
		if err != nil {
			return nil, noopShutdown, fmt.Errorf("log exporter: %w", err)
		}

		metricOpts = append(metricOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)))
		traceOpts = append(traceOpts, sdktrace.WithBatcher(traceExp))
		logOpts = append(logOpts, sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)))
	}

	p := &Providers{
		Meter:  sdkmetric.NewMeterProvider(metricOpts...),
		Tracer: sdktrace.NewTracerProvider(traceOpts...),
		Logger: sdklog.NewLoggerProvider(logOpts...),
	}

	otel.SetMeterProvider(p.Meter)
	otel.SetTracerProvider(p.Tracer)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))
	global.SetLoggerProvider(p.Logger)

	return p, p.Shutdown, nil
}

// Shutdown stops every provider and joins their errors.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return errors.Join(
		p.Meter.Shutdown(ctx),
		p.Tracer.Shutdown(ctx),
		p.Logger.Shutdown(ctx),
	)
}

func metricExporterOptions(cfg Config) []otlpmetricgrpc.Option {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return opts
}

func traceExporterOptions(cfg Config) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return opts
}

func logExporterOptions(cfg Config) []otlploggrpc.Option {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	return opts
}
