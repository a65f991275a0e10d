package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader sdkmetric.Reader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumInt64(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestRecorder(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	rec, err := New(provider.Meter("test"))
	require.NoError(t, err)
	ctx := context.Background()

	rec.ConnectionOpened(ctx, "pool")
	rec.ConnectionOpened(ctx, "pool")
	rec.ConnectionClosed(ctx, "pool", 5*time.Millisecond)
	rec.Request(ctx, "GET", 200)
	rec.Request(ctx, "GET", 404)
	rec.ReadError(ctx)
	rec.WriteError(ctx)
	rec.HookPanic(ctx, "response")
	rec.TemplateError(ctx)
	rec.PoolRejected(ctx, "queue_full")

	data := collect(t, reader)

	assert.EqualValues(t, 2, sumInt64(t, data["athena.connections"]))
	assert.EqualValues(t, 1, sumInt64(t, data["athena.connections.active"]))
	assert.EqualValues(t, 2, sumInt64(t, data["athena.requests"]))
	assert.EqualValues(t, 1, sumInt64(t, data["athena.read_errors"]))
	assert.EqualValues(t, 1, sumInt64(t, data["athena.write_errors"]))
	assert.EqualValues(t, 1, sumInt64(t, data["athena.hook_panics"]))
	assert.EqualValues(t, 1, sumInt64(t, data["athena.template_errors"]))
	assert.EqualValues(t, 1, sumInt64(t, data["athena.pool_rejections"]))

	hist, ok := data["athena.connection.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.EqualValues(t, 1, hist.DataPoints[0].Count)
}

func TestNilAndNopRecorder(t *testing.T) {
	ctx := context.Background()
	var nilRec *Recorder

	assert.NotPanics(t, func() {
		nilRec.ConnectionOpened(ctx, "spawn")
		nilRec.Request(ctx, "GET", 200)
		nilRec.HookPanic(ctx, "request")
	})

	nop := Nop()
	require.NotNil(t, nop)
	assert.NotPanics(t, func() {
		nop.ConnectionOpened(ctx, "spawn")
		nop.ConnectionClosed(ctx, "spawn", time.Second)
	})
}
