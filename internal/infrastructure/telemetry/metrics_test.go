package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/gestock/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func disabledMeterProvider(t *testing.T) *telemetry.MeterProvider {
	t.Helper()

	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "gestock-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return mp
}

// manualMeter gives the instrument helpers a collectable backend without an
// OTLP collector.
func manualMeter(t *testing.T) (metric.Meter, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})
	return mp.Meter("movement"), reader
}

func TestMeterProviderDisabled(t *testing.T) {
	mp := disabledMeterProvider(t)

	assert.False(t, mp.IsEnabled())
	assert.Equal(t, "gestock-test", mp.GetConfig().ServiceName)

	// meter still usable (no-op), flush and shutdown are no-ops
	assert.NotNil(t, mp.Meter("movement"))
	assert.NoError(t, mp.ForceFlush(context.Background()))
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestMeterProviderShutdownWithCancelledContext(t *testing.T) {
	mp := disabledMeterProvider(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, mp.Shutdown(ctx))
}

func TestCounterRecords(t *testing.T) {
	meter, reader := manualMeter(t)

	counter, err := telemetry.NewCounter(meter, "movement_created_total", "Movements created", "{movement}")
	require.NoError(t, err)

	ctx := context.Background()
	counter.Add(ctx, 5, telemetry.AttrMovementStatus.String("draft"))
	counter.Inc(ctx, telemetry.AttrMovementStatus.String("draft"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(6), sum.DataPoints[0].Value)
}

func TestHistogramRecordsDurations(t *testing.T) {
	meter, reader := manualMeter(t)

	hist, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "approval_turnaround_seconds",
		Description: "Time from send to approval decision",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	})
	require.NoError(t, err)

	ctx := context.Background()
	hist.Record(ctx, 0.25)
	hist.RecordDuration(ctx, 500*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	data, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, uint64(2), data.DataPoints[0].Count)
	assert.InDelta(t, 0.75, data.DataPoints[0].Sum, 1e-9)
}

func TestHistogramWithoutBoundaries(t *testing.T) {
	meter, _ := manualMeter(t)

	hist, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "quantity_shortfall",
		Description: "Shortfall per confirmed item",
		Unit:        "1",
	})
	require.NoError(t, err)
	require.NotNil(t, hist)

	hist.Record(context.Background(), 1.5)
}

func TestGaugeRecordsLatestValue(t *testing.T) {
	meter, reader := manualMeter(t)

	gauge, err := telemetry.NewGauge(meter, "movements_pending_approval", "Movements waiting for a decision", "{movement}")
	require.NoError(t, err)

	ctx := context.Background()
	gauge.Record(ctx, 10)
	gauge.Record(ctx, 7)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	data, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, int64(7), data.DataPoints[0].Value)
}

func TestAttributeKeys(t *testing.T) {
	assert.Equal(t, "tenant_id", string(telemetry.AttrTenantID))
	assert.Equal(t, "user_id", string(telemetry.AttrUserID))
	assert.Equal(t, "http.method", string(telemetry.AttrHTTPMethod))
	assert.Equal(t, "http.status_code", string(telemetry.AttrHTTPStatusCode))
	assert.Equal(t, "http.route", string(telemetry.AttrHTTPRoute))
	assert.Equal(t, "db.operation", string(telemetry.AttrDBOperation))
	assert.Equal(t, "db.table", string(telemetry.AttrDBTable))
	assert.Equal(t, "db.pool.state", string(telemetry.AttrDBState))
	assert.Equal(t, "service_id", string(telemetry.AttrServiceID))
	assert.Equal(t, "movement_status", string(telemetry.AttrMovementStatus))
	assert.Equal(t, "confirmation_status", string(telemetry.AttrConfirmationStatus))
	assert.Equal(t, "product_id", string(telemetry.AttrProductID))
}

func TestBucketBoundariesAscending(t *testing.T) {
	for _, buckets := range [][]float64{telemetry.HTTPDurationBuckets, telemetry.DBDurationBuckets} {
		for i := 1; i < len(buckets); i++ {
			assert.Less(t, buckets[i-1], buckets[i])
		}
	}
}
