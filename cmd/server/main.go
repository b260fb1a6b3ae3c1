package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	movementapp "github.com/gestock/backend/internal/application/movement"
	"github.com/gestock/backend/internal/infrastructure/auth"
	"github.com/gestock/backend/internal/infrastructure/config"
	"github.com/gestock/backend/internal/infrastructure/event"
	"github.com/gestock/backend/internal/infrastructure/logger"
	"github.com/gestock/backend/internal/infrastructure/persistence"
	"github.com/gestock/backend/internal/infrastructure/telemetry"
	"github.com/gestock/backend/internal/interfaces/http/handler"
	"github.com/gestock/backend/internal/interfaces/http/middleware"
	"github.com/gestock/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting stock movement backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Telemetry providers (no-op when disabled)
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// Ship application logs to the collector alongside stdout
	logsProvider, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := logsProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()
	if logsProvider.IsEnabled() {
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: logsProvider,
			Level:          logger.ParseLevel(cfg.Log.Level),
		})
		log = telemetry.NewBridgedLogger(log.Core(), otelCore,
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
	}

	// Continuous profiling via Pyroscope
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:             cfg.Telemetry.ProfilingEnabled,
		ServerAddress:       cfg.Telemetry.ProfilingEndpoint,
		ApplicationName:     cfg.App.Name,
		ProfileCPU:          true,
		ProfileAllocSpace:   true,
		ProfileInuseSpace:   true,
		ProfileGoroutines:   true,
		ProfileMutexCount:   true,
		ProfileBlockCount:   true,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()

	// Link traces to profiles when both subsystems are on
	if cfg.Telemetry.Enabled && cfg.Telemetry.ProfilingEnabled {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to enable span profiles", zap.Error(err))
		}
	}

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Database query tracing (otelgorm)
	if cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:          true,
			LogFullSQL:       cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh:  cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:         "postgresql",
			WithoutVariables: !cfg.Telemetry.DBLogFullSQL,
		}, log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	// Database metrics (query latency, connection pool stats)
	dbMetricsCtx, stopDBMetrics := context.WithCancel(context.Background())
	defer stopDBMetrics()
	if meterProvider.IsEnabled() {
		dbMetricsCfg := telemetry.DefaultDBMetricsConfig()
		dbMetricsCfg.SlowQueryThreshold = cfg.Telemetry.DBSlowQueryThresh
		dbMetrics, err := telemetry.NewDBMetrics(meterProvider.Meter("db.client"), dbMetricsCfg, log)
		if err != nil {
			log.Warn("Failed to initialize database metrics", zap.Error(err))
		} else {
			if sqlDB, err := db.DB.DB(); err == nil {
				dbMetrics.SetSQLDB(sqlDB)
				dbMetrics.StartPoolStatsCollection(dbMetricsCtx)
			}
			if err := db.DB.Use(telemetry.NewDBMetricsPlugin(dbMetrics, log)); err != nil {
				log.Warn("Failed to register database metrics plugin", zap.Error(err))
			}
			defer dbMetrics.Stop()
		}
	}

	// Initialize repositories
	movementRepo := persistence.NewGormMovementRepository(db.DB)
	stockLotRepo := persistence.NewGormStockLotRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Initialize application services
	movementService := movementapp.NewMovementService(movementRepo, stockLotRepo, txScope)
	transferService := movementapp.NewTransferService(movementRepo, txScope)
	deliveryService := movementapp.NewDeliveryService(movementRepo, txScope)

	// JWT service and Redis-backed token revocation
	jwtService := auth.NewJWTService(cfg.JWT)
	var tokenBlacklist auth.TokenBlacklist
	if blacklist, err := auth.NewRedisTokenBlacklist(cfg.Redis); err != nil {
		log.Warn("Token blacklist unavailable, revoked tokens will not be rejected", zap.Error(err))
	} else {
		tokenBlacklist = blacklist
		defer func() {
			if err := blacklist.Close(); err != nil {
				log.Error("Error closing token blacklist", zap.Error(err))
			}
		}()
	}

	// Initialize event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)

	auditHandler := movementapp.NewMovementAuditHandler(log)
	eventBus.Subscribe(auditHandler)
	log.Info("Event handlers registered",
		zap.Strings("movement_audit_events", auditHandler.EventTypes()),
	)

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Inject event bus into services that publish events
	movementService.SetEventPublisher(eventBus)
	transferService.SetEventPublisher(eventBus)
	deliveryService.SetEventPublisher(eventBus)

	// Business metrics with periodic gauge collection
	if meterProvider.IsEnabled() {
		businessMetrics, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
			Meter:            meterProvider.Meter("gestock.movement"),
			Logger:           log,
			MovementProvider: telemetry.NewGormMovementMetricsProvider(db.DB),
		})
		if err != nil {
			log.Warn("Failed to initialize business metrics", zap.Error(err))
		} else {
			businessMetrics.StartPeriodicCollection(
				context.Background(),
				telemetry.NewGormTenantProvider(db.DB),
				5*time.Minute,
			)
			defer businessMetrics.Stop()
		}
	}

	// Initialize HTTP handlers
	movementHandler := handler.NewMovementHandler(movementService, transferService, deliveryService)
	systemHandler := handler.NewSystemHandler(db.DB)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Tracing - OpenTelemetry spans
	// 5. Metrics - HTTP server metrics
	// 6. Profiling - Pyroscope request labels
	// 7. Security - Add security headers
	// 8. CORS - Handle cross-origin requests
	// 9. BodyLimit - Limit request body size
	// 10. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		ServiceName:   cfg.Telemetry.ServiceName,
		Enabled:       cfg.Telemetry.Enabled,
	}))
	if cfg.Telemetry.ProfilingEnabled {
		engine.Use(middleware.Profiling())
	}
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning, registered before JWT middleware)
	engine.GET("/health", healthHandler(db))

	// JWT authentication for everything registered after this point
	engine.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: tokenBlacklist,
		SkipPaths: []string{
			"/api/v1/health",
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		Logger: log,
	}))

	// Re-enrich spans now that JWT claims are available
	engine.Use(middleware.TracingAttributeInjector())

	// Setup API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(systemHandler).
		Register(movementHandler)
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for the root health check endpoint
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
