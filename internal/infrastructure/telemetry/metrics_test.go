package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

// newManualMeter returns a meter whose data can be read on demand.
func newManualMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

// intSum returns the int64 sum point carrying attr, or all points summed when
// attr is empty.
func intSum(t *testing.T, rm metricdata.ResourceMetrics, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	m, ok := findMetric(rm, name)
	require.Truef(t, ok, "metric %s not recorded", name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.Truef(t, ok, "metric %s is %T", name, m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		if matches(dp.Attributes, attrs) {
			total += dp.Value
		}
	}
	return total
}

func matches(set attribute.Set, attrs []attribute.KeyValue) bool {
	for _, kv := range attrs {
		v, ok := set.Value(kv.Key)
		if !ok || v != kv.Value {
			return false
		}
	}
	return true
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := NewMeterProvider(ctx, MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "drims-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("relief"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewMeterProvider_Enabled(t *testing.T) {
	// The gRPC exporter connects lazily, so no collector is needed.
	ctx := context.Background()
	mp, err := NewMeterProvider(ctx, MetricsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    time.Hour,
		ServiceName:       "drims-test",
		Insecure:          true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, mp.IsEnabled())

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_ = mp.Shutdown(shutdownCtx)
}

func TestInstruments_Record(t *testing.T) {
	reader, provider := newManualMeter(t)
	meter := provider.Meter("test")
	ctx := context.Background()

	counter, err := NewCounter(meter, "test_counter", "counter", "1")
	require.NoError(t, err)
	counter.Add(ctx, 5, AttrTransition.String("submitted"))
	counter.Inc(ctx, AttrTransition.String("submitted"))
	counter.Inc(ctx, AttrTransition.String("cancelled"))

	qty, err := NewQuantityCounter(meter, "test_quantity", "quantity", "{unit}")
	require.NoError(t, err)
	qty.Add(ctx, 2.5)
	qty.Add(ctx, -1)

	hist, err := NewHistogram(meter, HistogramOpts{Name: "test_latency", Unit: "s", Boundaries: DBDurationBuckets})
	require.NoError(t, err)
	hist.RecordDuration(ctx, 20*time.Millisecond)

	gauge, err := NewGauge(meter, "test_gauge", "gauge", "1")
	require.NoError(t, err)
	gauge.Record(ctx, 7)

	rm := collect(t, reader)
	assert.Equal(t, int64(6), intSum(t, rm, "test_counter", AttrTransition.String("submitted")))
	assert.Equal(t, int64(1), intSum(t, rm, "test_counter", AttrTransition.String("cancelled")))

	m, ok := findMetric(rm, "test_quantity")
	require.True(t, ok)
	floatSum := m.Data.(metricdata.Sum[float64])
	require.Len(t, floatSum.DataPoints, 1)
	assert.InDelta(t, 2.5, floatSum.DataPoints[0].Value, 1e-9)

	m, ok = findMetric(rm, "test_latency")
	require.True(t, ok)
	h := m.Data.(metricdata.Histogram[float64])
	require.Len(t, h.DataPoints, 1)
	assert.Equal(t, uint64(1), h.DataPoints[0].Count)
	assert.Equal(t, DBDurationBuckets, h.DataPoints[0].Bounds)

	m, ok = findMetric(rm, "test_gauge")
	require.True(t, ok)
	g := m.Data.(metricdata.Gauge[int64])
	require.Len(t, g.DataPoints, 1)
	assert.Equal(t, int64(7), g.DataPoints[0].Value)
}
