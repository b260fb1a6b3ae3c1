package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls span creation for database operations.
type DBTracingConfig struct {
	Enabled          bool
	LogFullSQL       bool          // include full SQL text in spans; keep off outside dev
	SlowQueryThresh  time.Duration // queries above this get a slow_query_warning event
	DBSystem         string        // db.system attribute value, default "postgresql"
	WithoutVariables bool          // strip bind variables from recorded SQL
}

// DefaultDBTracingConfig returns the secure defaults: tracing off, bind
// variables stripped, 200ms slow query threshold.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:          false,
		LogFullSQL:       false,
		SlowQueryThresh:  200 * time.Millisecond,
		DBSystem:         "postgresql",
		WithoutVariables: true,
	}
}

// DBTracingPlugin wraps the otelgorm plugin and layers slow query
// detection and error marking on top of the spans it opens.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	return &DBTracingPlugin{
		config: cfg,
		logger: logger,
	}
}

// RegisterOtelGorm installs otelgorm plus the timing callbacks on the GORM
// instance. A no-op when tracing is disabled.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName(p.config.DBSystem),
	}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}

	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := p.registerTimingCallbacks(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)

	return nil
}

// registerTimingCallbacks stamps a start time before each operation and
// inspects the span after it, so slow queries are measured independently
// of otelgorm's own span lifecycle.
func (p *DBTracingPlugin) registerTimingCallbacks(db *gorm.DB) error {
	before := func(db *gorm.DB) {
		if db.Statement.Context != nil {
			db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
		}
	}

	return firstErr(
		db.Callback().Create().Before("gorm:create").Register("otel_timing:before_create", before),
		db.Callback().Query().Before("gorm:query").Register("otel_timing:before_query", before),
		db.Callback().Update().Before("gorm:update").Register("otel_timing:before_update", before),
		db.Callback().Delete().Before("gorm:delete").Register("otel_timing:before_delete", before),
		db.Callback().Row().Before("gorm:row").Register("otel_timing:before_row", before),
		db.Callback().Raw().Before("gorm:raw").Register("otel_timing:before_raw", before),

		db.Callback().Create().After("gorm:create").Register("otel_slow_query:create", p.afterQuery),
		db.Callback().Query().After("gorm:query").Register("otel_slow_query:query", p.afterQuery),
		db.Callback().Update().After("gorm:update").Register("otel_slow_query:update", p.afterQuery),
		db.Callback().Delete().After("gorm:delete").Register("otel_slow_query:delete", p.afterQuery),
		db.Callback().Row().After("gorm:row").Register("otel_slow_query:row", p.afterQuery),
		db.Callback().Raw().After("gorm:raw").Register("otel_slow_query:raw", p.afterQuery),
	)
}

// afterQuery annotates the active span with rows affected, table name,
// errors, and a slow query event when the threshold is exceeded.
// ErrRecordNotFound is expected behavior and never marks the span failed.
func (p *DBTracingPlugin) afterQuery(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}

	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if startTime, ok := ctx.Value(queryStartTimeKey).(time.Time); ok {
		elapsed := time.Since(startTime)
		if elapsed > p.config.SlowQueryThresh {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
			span.AddEvent("slow_query_warning", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
			))
		}
	}
}

type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"
