package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetupDisabled(t *testing.T) {
	providers, shutdown, err := Setup(context.Background(), Config{Enabled: false})

	require.NoError(t, err)
	assert.Nil(t, providers)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupWithoutEndpoint(t *testing.T) {
	prevMeter := otel.GetMeterProvider()
	prevTracer := otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(prevMeter)
		otel.SetTracerProvider(prevTracer)
	})

	providers, shutdown, err := Setup(context.Background(), Config{Enabled: true, ServiceName: "athena-test"})
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.Same(t, providers.Meter, otel.GetMeterProvider())
	assert.Same(t, providers.Tracer, otel.GetTracerProvider())

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}

func TestNilProvidersShutdown(t *testing.T) {
	var p *Providers
	assert.NoError(t, p.Shutdown(context.Background()))
}
