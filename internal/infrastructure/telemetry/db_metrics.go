package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetricsConfig holds configuration for database metrics collection.
type DBMetricsConfig struct {
	Enabled bool
	// SlowQueryThreshold marks queries slower than this (default 200ms).
	SlowQueryThreshold time.Duration
	// PoolStatsInterval is how often pool stats are sampled (default 15s).
	PoolStatsInterval time.Duration
}

// DefaultDBMetricsConfig returns the default database metrics configuration.
func DefaultDBMetricsConfig() DBMetricsConfig {
	return DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: 200 * time.Millisecond,
		PoolStatsInterval:  15 * time.Second,
	}
}

// DBMetrics holds the database metric instruments: query counts and
// latency plus connection pool gauges.
type DBMetrics struct {
	poolConnections    *Gauge
	poolConnectionsMax *Gauge

	queryTotal     *Counter
	queryDuration  *Histogram
	slowQueryTotal *Counter

	config   DBMetricsConfig
	logger   *zap.Logger
	sqlDB    *sql.DB
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopOnce sync.Once
}

// NewDBMetrics creates the database metric instruments on the given meter.
func NewDBMetrics(meter metric.Meter, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold == 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.PoolStatsInterval == 0 {
		cfg.PoolStatsInterval = 15 * time.Second
	}

	poolConnections, err := NewGauge(meter,
		"db_pool_connections",
		"Number of connections in the pool by state",
		"{connection}",
	)
	if err != nil {
		return nil, err
	}

	poolConnectionsMax, err := NewGauge(meter,
		"db_pool_connections_max",
		"Maximum number of connections in the pool",
		"{connection}",
	)
	if err != nil {
		return nil, err
	}

	queryTotal, err := NewCounter(meter,
		"db_query_total",
		"Total number of database queries by operation type",
		"{query}",
	)
	if err != nil {
		return nil, err
	}

	queryDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency distribution in seconds",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	slowQueryTotal, err := NewCounter(meter,
		"db_slow_query_total",
		"Total number of queries exceeding the slow query threshold",
		"{query}",
	)
	if err != nil {
		return nil, err
	}

	return &DBMetrics{
		poolConnections:    poolConnections,
		poolConnectionsMax: poolConnectionsMax,
		queryTotal:         queryTotal,
		queryDuration:      queryDuration,
		slowQueryTotal:     slowQueryTotal,
		config:             cfg,
		logger:             logger,
		stopCh:             make(chan struct{}),
	}, nil
}

// SetSQLDB sets the sql.DB used for pool stats. Must be called before
// StartPoolStatsCollection.
func (m *DBMetrics) SetSQLDB(sqlDB *sql.DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sqlDB = sqlDB
}

// StartPoolStatsCollection starts a goroutine sampling connection pool
// stats on the configured interval. Call Stop to terminate it.
func (m *DBMetrics) StartPoolStatsCollection(ctx context.Context) {
	m.mu.RLock()
	sqlDB := m.sqlDB
	m.mu.RUnlock()

	if sqlDB == nil {
		m.logger.Warn("Cannot start pool stats collection: sqlDB not set")
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.config.PoolStatsInterval)
		defer ticker.Stop()

		m.collectPoolStats(ctx)

		for {
			select {
			case <-ticker.C:
				m.collectPoolStats(ctx)
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	m.logger.Info("Started database connection pool stats collection",
		zap.Duration("interval", m.config.PoolStatsInterval),
	)
}

func (m *DBMetrics) collectPoolStats(ctx context.Context) {
	m.mu.RLock()
	sqlDB := m.sqlDB
	m.mu.RUnlock()

	if sqlDB == nil {
		return
	}

	stats := sqlDB.Stats()

	m.poolConnectionsMax.Record(ctx, int64(stats.MaxOpenConnections))

	// OpenConnections = Idle + InUse; WaitCount is cumulative, not a state
	m.poolConnections.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	m.poolConnections.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	m.poolConnections.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
}

// Stop terminates pool stats collection. Safe to call multiple times.
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}

// RecordQuery records count, latency and slow-query metrics for one
// database operation.
func (m *DBMetrics) RecordQuery(ctx context.Context, operation string, table string, duration time.Duration, err error) {
	operation = strings.ToUpper(operation)
	if operation == "" {
		operation = "UNKNOWN"
	}

	m.queryTotal.Inc(ctx, AttrDBOperation.String(operation))
	m.queryDuration.RecordDuration(ctx, duration, AttrDBOperation.String(operation))

	if duration > m.config.SlowQueryThreshold {
		tableName := table
		if tableName == "" {
			tableName = "unknown"
		}
		m.slowQueryTotal.Inc(ctx, AttrDBTable.String(tableName))
	}
}

// DBMetricsPlugin is a GORM plugin that times every query through
// before/after callbacks and feeds DBMetrics.
type DBMetricsPlugin struct {
	metrics *DBMetrics
	logger  *zap.Logger
}

// NewDBMetricsPlugin creates the GORM metrics plugin.
func NewDBMetricsPlugin(metrics *DBMetrics, logger *zap.Logger) *DBMetricsPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBMetricsPlugin{
		metrics: metrics,
		logger:  logger,
	}
}

// Name returns the plugin name.
func (p *DBMetricsPlugin) Name() string {
	return "db_metrics"
}

// Initialize registers timing callbacks around every GORM operation type.
func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	before := func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		db.Statement.Context = context.WithValue(ctx, dbMetricsStartTimeKey, time.Now())
	}

	// Row and Raw carry arbitrary SQL, so the operation is sniffed from
	// the statement instead of assumed from the callback kind.
	sniffed := func(db *gorm.DB) {
		p.recordMetrics(db, detectOperationType(db.Statement.SQL.String()))
	}
	fixed := func(operation string) func(*gorm.DB) {
		return func(db *gorm.DB) {
			p.recordMetrics(db, operation)
		}
	}

	if err := firstErr(
		db.Callback().Create().Before("gorm:create").Register("db_metrics:before_create", before),
		db.Callback().Create().After("gorm:create").Register("db_metrics:after_create", fixed("INSERT")),
		db.Callback().Query().Before("gorm:query").Register("db_metrics:before_query", before),
		db.Callback().Query().After("gorm:query").Register("db_metrics:after_query", fixed("SELECT")),
		db.Callback().Update().Before("gorm:update").Register("db_metrics:before_update", before),
		db.Callback().Update().After("gorm:update").Register("db_metrics:after_update", fixed("UPDATE")),
		db.Callback().Delete().Before("gorm:delete").Register("db_metrics:before_delete", before),
		db.Callback().Delete().After("gorm:delete").Register("db_metrics:after_delete", fixed("DELETE")),
		db.Callback().Row().Before("gorm:row").Register("db_metrics:before_row", before),
		db.Callback().Row().After("gorm:row").Register("db_metrics:after_row", sniffed),
		db.Callback().Raw().Before("gorm:raw").Register("db_metrics:before_raw", before),
		db.Callback().Raw().After("gorm:raw").Register("db_metrics:after_raw", sniffed),
	); err != nil {
		return err
	}

	p.logger.Info("Database metrics plugin initialized")
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *DBMetricsPlugin) recordMetrics(db *gorm.DB, operation string) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}

	var duration time.Duration
	if startTime, ok := ctx.Value(dbMetricsStartTimeKey).(time.Time); ok {
		duration = time.Since(startTime)
	}

	p.metrics.RecordQuery(ctx, operation, db.Statement.Table, duration, db.Error)
}

// detectOperationType sniffs the SQL operation from the statement text.
func detectOperationType(sql string) string {
	sql = strings.TrimSpace(strings.ToUpper(sql))

	switch {
	case strings.HasPrefix(sql, "SELECT"):
		return "SELECT"
	case strings.HasPrefix(sql, "INSERT"):
		return "INSERT"
	case strings.HasPrefix(sql, "UPDATE"):
		return "UPDATE"
	case strings.HasPrefix(sql, "DELETE"):
		return "DELETE"
	default:
		return "OTHER"
	}
}

type dbMetricsContextKey string

const dbMetricsStartTimeKey dbMetricsContextKey = "db_metrics_start_time"

// RegisterDBMetrics creates database metrics, wires pool stats, and
// installs the GORM plugin in one call. Returns nil metrics when the
// config or the meter provider is disabled. The caller owns the
// returned instance and must call Stop on shutdown.
func RegisterDBMetrics(db *gorm.DB, meterProvider *MeterProvider, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if meterProvider == nil || !meterProvider.IsEnabled() {
		return nil, nil
	}

	metrics, err := NewDBMetrics(meterProvider.Meter("db.client"), cfg, logger)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	metrics.SetSQLDB(sqlDB)

	if err := db.Use(NewDBMetricsPlugin(metrics, logger)); err != nil {
		return nil, err
	}

	logger.Info("Database metrics registered",
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
		zap.Duration("pool_stats_interval", cfg.PoolStatsInterval),
	)

	return metrics, nil
}
