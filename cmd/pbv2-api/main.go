package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/Tombstone73/QuoteVaultPro-sub011/config"
	"github.com/Tombstone73/QuoteVaultPro-sub011/internal/repositories/evaluationaudit"
	"github.com/Tombstone73/QuoteVaultPro-sub011/internal/repositories/treeversion"
	"github.com/Tombstone73/QuoteVaultPro-sub011/internal/services/evaluation"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/database"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/health"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/kafka"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/middleware"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/processor"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/redis"
	routes "github.com/Tombstone73/QuoteVaultPro-sub011/pkg/routes/evaluation"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/startup"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/tracing"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/tracing/exporters"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err.Error())
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (ectologger.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapConfig = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL '%s': %w", cfg.LogLevel, err)
	}
	zapConfig.Level = level

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil), nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: cfg.AppName,
		Exporter:    cfg.OtelExporter,
		Endpoint:    cfg.OtelEndpoint,
		Insecure:    cfg.OtelInsecure,
	}, func(r exporters.SpanRecord) {
		logger.WithFields(map[string]any{
			"span":     r.Name,
			"trace_id": r.TraceID,
			"span_id":  r.SpanID,
			"duration": r.Duration,
			"failed":   r.Failed,
		}).Debug("span finished")
	})
	if err != nil {
		return err
	}

	var (
		db       database.DB
		cache    *redis.Client
		producer *kafka.Producer
	)

	manager := startup.NewManager(logger, cfg.StartupMaxAttempts)
	manager.Add(startup.Func{
		Name: "postgres",
		OnStart: func(ctx context.Context) error {
			conn, err := database.Open(database.ConnectionConfig{
				Driver:          cfg.DatabaseDriver,
				Host:            cfg.DatabaseHost,
				Port:            cfg.DatabasePort,
				User:            cfg.DatabaseUserName,
				Password:        cfg.DatabasePassword,
				Name:            cfg.DatabaseName,
				SSLMode:         cfg.DatabaseSSLMode,
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, logger)
			if err != nil {
				return err
			}
			if err := conn.PingContext(ctx); err != nil {
				_ = conn.Close()
				return err
			}
			db = conn
			return nil
		},
		OnStop: func(context.Context) error { return db.Close() },
	})
	manager.Add(startup.Func{
		Name:      "migrations",
		Upstreams: []string{"postgres"},
		OnStart: func(context.Context) error {
			return database.NewMigrationService(logger, database.MigrationConfig{
				FolderPath: cfg.DatabaseMigrationFolderPath,
				Version:    cfg.DatabaseMigrationVersion,
				Force:      cfg.DatabaseMigrationForce,
			}).Migrate(db, cfg.DatabaseName)
		},
	})
	if cfg.RedisAddr != "" {
		manager.Add(startup.Func{
			Name: "redis",
			OnStart: func(ctx context.Context) error {
				client, err := redis.NewClient(ctx, redis.Config{
					Addr:      cfg.RedisAddr,
					Password:  cfg.RedisPassword,
					DB:        cfg.RedisDB,
					KeyPrefix: cfg.RedisKeyPrefix,
				}, logger)
				if err != nil {
					return err
				}
				cache = client
				return nil
			},
			OnStop: func(context.Context) error { return cache.Close() },
		})
	}
	if len(cfg.KafkaBrokers) > 0 {
		manager.Add(startup.Func{
			Name: "kafka",
			OnStart: func(ctx context.Context) error {
				p, err := kafka.NewProducer(kafka.ProducerConfig{
					Brokers:            cfg.KafkaBrokers,
					MaterialUsageTopic: cfg.KafkaMaterialUsageTopic,
					EvaluationTopic:    cfg.KafkaEvaluationTopic,
					BatchSize:          cfg.KafkaBatchSize,
					BatchTimeout:       time.Duration(cfg.KafkaBatchTimeoutMs) * time.Millisecond,
					RequiredAcks:       cfg.KafkaRequiredAcks,
					MaxAttempts:        3,
					WriteTimeout:       10 * time.Second,
					Compression:        cfg.KafkaCompression,
				}, logger)
				if err != nil {
					return err
				}
				if err := p.Ping(ctx); err != nil {
					_ = p.Close()
					return err
				}
				producer = p
				return nil
			},
			OnStop: func(context.Context) error { return producer.Close() },
		})
	}

	if err := manager.Start(ctx); err != nil {
		return err
	}

	trees := processor.NewTreeCache(treeversion.NewRepository(db, logger), processor.TreeCacheConfig{
		MaxSize: cfg.TreeCacheMaxSize,
		TTL:     cfg.TreeCacheTTL,
	})
	deps := evaluation.Dependencies{
		Logger: logger,
		Trees:  trees,
		Audits: evaluationaudit.NewRepository(db, logger),
		Batch:  processor.NewBatchEvaluator(processor.BatchConfig{WorkerCount: cfg.BatchWorkers}, logger),
		Policy: cfg.Policy(),
	}
	checker := health.NewChecker(version).
		Require("postgres", health.PingFunc(db.PingContext)).
		Detail("tree_cache", func() any { return trees.Stats() })
	if cache != nil {
		deps.Cache = redis.NewResultCache(cache, cfg.ResultCacheTTL, logger)
		checker.Optional("redis", cache)
	}
	if producer != nil {
		deps.Events = producer
		checker.Optional("kafka", producer)
	}
	service := evaluation.NewService(deps)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	routes.NewHandler(service, cfg.BatchMaxSize, logger).Register(e.Group("/v1"))

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Port),
		Handler:        e,
		ReadTimeout:    time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:   time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:    time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("%s listening on %s", cfg.AppName, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	checker.SetReady(true)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("http server failed")
		}
	}

	checker.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("failed to shut down http server")
	}
	if err := manager.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("failed to stop dependencies")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.WithError(err).Warn("failed to flush traces")
	}
	logger.Info("shutdown complete")
	return nil
}
