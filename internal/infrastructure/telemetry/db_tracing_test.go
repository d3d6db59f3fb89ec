package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type tracedBatch struct {
	ID      uint   `gorm:"primaryKey"`
	BatchNo string `gorm:"size:30"`
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedBatch{}))
	return db
}

func setupRecorder(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, sr
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[string]any {
	out := make(map[string]any)
	for _, attr := range span.Attributes() {
		out[string(attr.Key)] = attr.Value.AsInterface()
	}
	return out
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()

	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.LogFullSQL)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)
}

func TestDBTracingPlugin_RegisterOtelGorm_Disabled(t *testing.T) {
	db := setupTestDB(t)

	plugin := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())
	require.NoError(t, plugin.RegisterOtelGorm(db))

	assert.Nil(t, db.Callback().Query().Get("otel_slow_query:query"))
}

func TestDBTracingPlugin_RegisterOtelGorm_Enabled(t *testing.T) {
	for _, fullSQL := range []bool{false, true} {
		db := setupTestDB(t)
		cfg := DefaultDBTracingConfig()
		cfg.Enabled = true
		cfg.LogFullSQL = fullSQL
		cfg.DBSystem = "sqlite"

		plugin := NewDBTracingPlugin(cfg, zap.NewNop())
		require.NoError(t, plugin.RegisterOtelGorm(db))

		assert.NotNil(t, db.Callback().Query().Get("otel_slow_query:query"))
		assert.NotNil(t, db.Callback().Update().Get("otel_timing:before_update"))

		var rows []tracedBatch
		require.NoError(t, db.Find(&rows).Error)
	}
}

func TestDBTracingPlugin_RegisterOtelGorm_Twice(t *testing.T) {
	db := setupTestDB(t)
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true

	plugin := NewDBTracingPlugin(cfg, zap.NewNop())
	require.NoError(t, plugin.RegisterOtelGorm(db))
	assert.Error(t, plugin.RegisterOtelGorm(db))
}

func TestSlowQueryCallback_AnnotatesSpan(t *testing.T) {
	db := setupTestDB(t)
	tp, sr := setupRecorder(t)

	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Millisecond}, zap.NewNop())

	ctx, span := tp.Tracer("test").Start(context.Background(), "receive_stock")
	ctx = context.WithValue(ctx, queryStartTimeKey, time.Now().Add(-time.Second))

	result := db.WithContext(ctx).Create(&[]tracedBatch{{BatchNo: "B-1"}, {BatchNo: "B-2"}})
	require.NoError(t, result.Error)
	plugin.slowQueryCallback(result)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	attrs := spanAttrs(spans[0])
	assert.Equal(t, int64(2), attrs["db.rows_affected"])
	assert.Equal(t, "traced_batches", attrs["db.sql.table"])
	assert.Equal(t, true, attrs["db.slow_query"])

	var names []string
	for _, e := range spans[0].Events() {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "slow_query_warning")
}

func TestSlowQueryCallback_FastQueryNotFlagged(t *testing.T) {
	db := setupTestDB(t)
	tp, sr := setupRecorder(t)

	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Hour}, zap.NewNop())

	ctx, span := tp.Tracer("test").Start(context.Background(), "lookup")
	ctx = WithQueryStartTime(ctx)
	var rows []tracedBatch
	result := db.WithContext(ctx).Find(&rows)
	plugin.slowQueryCallback(result)
	span.End()

	_, flagged := spanAttrs(sr.Ended()[0])["db.slow_query"]
	assert.False(t, flagged)
}

func TestSlowQueryCallback_Errors(t *testing.T) {
	db := setupTestDB(t)
	tp, sr := setupRecorder(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Hour}, zap.NewNop())
	tracer := tp.Tracer("test")

	t.Run("query error marks span", func(t *testing.T) {
		ctx, span := tracer.Start(context.Background(), "broken")
		var rows []tracedBatch
		result := db.WithContext(ctx).Table("no_such_table").Find(&rows)
		require.Error(t, result.Error)
		plugin.slowQueryCallback(result)
		span.End()

		ended := sr.Ended()
		assert.Equal(t, codes.Error, ended[len(ended)-1].Status().Code)
	})

	t.Run("record not found is not an error", func(t *testing.T) {
		ctx, span := tracer.Start(context.Background(), "missing")
		var row tracedBatch
		result := db.WithContext(ctx).First(&row, 999)
		require.ErrorIs(t, result.Error, gorm.ErrRecordNotFound)
		plugin.slowQueryCallback(result)
		span.End()

		ended := sr.Ended()
		assert.NotEqual(t, codes.Error, ended[len(ended)-1].Status().Code)
	})
}

func TestSlowQueryCallback_NonRecordingSpan(t *testing.T) {
	db := setupTestDB(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, zap.NewNop())

	assert.NotPanics(t, func() {
		plugin.slowQueryCallback(db.WithContext(context.Background()))
	})
}
