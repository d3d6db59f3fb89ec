package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appRelief "github.com/drims/backend/internal/application/relief"
	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/infrastructure/cache"
	"github.com/drims/backend/internal/infrastructure/config"
	"github.com/drims/backend/internal/infrastructure/event"
	"github.com/drims/backend/internal/infrastructure/logger"
	"github.com/drims/backend/internal/infrastructure/persistence"
	"github.com/drims/backend/internal/infrastructure/telemetry"
	"github.com/drims/backend/internal/interfaces/http/handler"
	"github.com/drims/backend/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var version = "dev"

//go:generate swag init --dir ../../ --generalInfo cmd/server/main.go --output ../../docs --outputTypes go --parseInternal --overridesFile ../../.swaggo

//	@title			DRIMS Backend API
//	@version		1.0
//	@description	Relief allocation, reservation and dispatch for the Disaster Relief Inventory Management System.

//	@BasePath	/api/v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logger.DefaultTimeFormat,
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync(log) }()

	log.Info("Starting DRIMS relief backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	rootCtx := context.Background()

	tp, err := telemetry.NewTracerProvider(rootCtx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}()

	lp, err := telemetry.NewLoggerProvider(rootCtx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		if err := lp.Shutdown(context.Background()); err != nil {
			log.Error("Failed to shutdown logger provider", zap.Error(err))
		}
	}()
	log = telemetry.BridgeLogger(log, lp, cfg.Telemetry.ServiceName)

	mp, err := telemetry.NewMeterProvider(rootCtx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			log.Error("Failed to shutdown meter provider", zap.Error(err))
		}
	}()

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.ProfilingEnabled,
		ServerAddress:     cfg.Telemetry.ProfilingServer,
		ApplicationName:   cfg.Telemetry.ServiceName,
		ProfileContention: cfg.Telemetry.ProfilingContention,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Failed to stop profiler", zap.Error(err))
		}
	}()

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()
	log.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
	)

	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	if err := telemetry.NewDBTracingPlugin(dbTracing, log).RegisterOtelGorm(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, mp, telemetry.DefaultDBMetricsConfig(), log)
	if err != nil {
		log.Fatal("Failed to register database metrics", zap.Error(err))
	}
	if dbMetrics != nil {
		dbMetrics.StartPoolStatsCollection(rootCtx)
		defer dbMetrics.Stop()
	}

	// Repositories
	items := persistence.NewGormItemRepository(db.DB)
	warehouses := persistence.NewGormWarehouseRepository(db.DB)
	batches := persistence.NewGormBatchRepository(db.DB)
	packages := persistence.NewGormPackageRepository(db.DB)
	locks := persistence.NewGormFulfillmentLockRepository(db.DB)
	statusRepo := persistence.NewGormItemStatusRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Item statuses are read through redis when enabled
	var statusSource relief.StatusSource = statusRepo
	var redisClient *redis.Client
	if cfg.StatusCache.RedisEnabled {
		redisClient, err = cache.NewRedisClient(rootCtx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Failed to close Redis client", zap.Error(err))
			}
		}()
		statusSource = cache.NewRedisStatusSource(redisClient, statusRepo,
			cache.WithStatusTTL(cfg.StatusCache.TTL),
			cache.WithStatusKeyPrefix(cfg.StatusCache.KeyPrefix),
			cache.WithStatusLogger(log),
		)
		log.Info("Item status cache backed by Redis", zap.String("addr", cfg.Redis.Addr()))
	}

	// Domain events
	eventBus := event.NewInMemoryEventBus(log)
	auditHandler := event.NewPackageAuditHandler(log)
	eventBus.Subscribe(auditHandler, auditHandler.EventTypes()...)
	reliefMetrics, err := telemetry.NewReliefMetrics(telemetry.ReliefMetricsConfig{
		Meter:           mp.Meter("drims.relief"),
		Logger:          log,
		Source:          telemetry.NewGormReliefMetricsSource(db.DB),
		CollectInterval: cfg.Telemetry.StockSampleInterval,
	})
	if err != nil {
		log.Fatal("Failed to create relief metrics", zap.Error(err))
	}
	eventBus.Subscribe(reliefMetrics, reliefMetrics.EventTypes()...)
	if mp.IsEnabled() {
		reliefMetrics.Start(rootCtx)
		defer reliefMetrics.Stop()
	}
	if err := eventBus.Start(rootCtx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Failed to stop event bus", zap.Error(err))
		}
	}()

	// Application services
	allocator := relief.NewAllocator()
	ledger := appRelief.NewReservationLedger(txScope, packages, allocator, log)
	lockService := appRelief.NewFulfillmentLockService(txScope, locks, ledger, log,
		appRelief.WithLockExpiration(cfg.FulfillmentLock.DefaultExpiration),
	)
	packagingService := appRelief.NewPackagingService(txScope, packages, ledger, lockService, log,
		appRelief.WithEventPublisher(eventBus),
	)
	allocationService := appRelief.NewAllocationService(items, warehouses, batches, packages, allocator, log)
	intakeService := appRelief.NewIntakeService(txScope, ledger, log)
	statusCache := appRelief.NewStatusCache(statusSource, log)
	if err := statusCache.Reload(rootCtx); err != nil {
		log.Warn("Item statuses not loaded at startup, retrying on first use", zap.Error(err))
	}
	itemStatusService := appRelief.NewItemStatusService(statusCache, log)

	// HTTP
	var httpMeter metric.Meter
	if mp.IsEnabled() {
		httpMeter = mp.Meter("drims.http")
	}
	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Meter:          httpMeter,
	}, log)
	if err != nil {
		log.Fatal("Failed to configure HTTP engine", zap.Error(err))
	}

	checks := map[string]handler.HealthCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	router.NewRouter(engine).
		Register(handler.NewAllocationHandler(allocationService, ledger)).
		Register(handler.NewPackageHandler(packagingService)).
		Register(handler.NewLockHandler(lockService)).
		Register(handler.NewItemStatusHandler(itemStatusService)).
		Register(handler.NewStockHandler(intakeService)).
		Register(handler.NewSystemHandler(cfg.App.Name, version, checks)).
		Setup()
	if cfg.HTTP.SwaggerEnabled {
		router.MountSwagger(engine)
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}
