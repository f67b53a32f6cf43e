// Package main is the entry point for the stockledger API server.
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

	"stockledger/internal/app"
	"stockledger/internal/config"
	v1 "stockledger/internal/infrastructure/http/v1"
	"stockledger/internal/infrastructure/metrics"
	"stockledger/internal/infrastructure/notify"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
	"stockledger/pkg/tracing"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDevelopment(),
		Service:     "stockledger-server",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting stockledger server", "storage", cfg.Database.Driver, "env", cfg.App.Env)

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    "stockledger",
		ServiceVersion: version,
		Environment:    cfg.App.Env,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	m := metrics.New(nil)

	services, cleanup, err := buildServices(ctx, cfg, m, log)
	if err != nil {
		log.Fatalw("failed to initialize storage", "error", err)
	}
	defer cleanup()

	router := v1.NewRouter(v1.RouterConfig{
		Services:       services,
		Logger:         log,
		Metrics:        m,
		MetricsHandler: m.Handler(),
		Development:    cfg.App.IsDevelopment(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warnw("tracer shutdown failed", "error", err)
	}

	log.Info("server stopped")
}

// buildServices opens the configured storage backend. The returned cleanup
// releases connections and publishers.
func buildServices(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log *logger.Logger) (*app.Services, func(), error) {
	if cfg.Database.Driver == config.StorageMemory {
		redisClient, err := app.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		publisher, err := app.NewPublisher(cfg.Notify, redisClient)
		if err != nil {
			return nil, nil, err
		}
		services, err := app.NewMemory(cfg, publisher, m)
		if err != nil {
			return nil, nil, err
		}
		log.Warn("using in-memory storage; data is lost on restart")
		return services, func() {
			closePublisher(publisher, log)
			if redisClient != nil {
				_ = redisClient.Close()
			}
		}, nil
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, nil, err
	}
	log.Info("database connection established")

	if cfg.Database.MigrateOnStart {
		db := postgres.OpenDB(pool)
		err := postgres.Migrate(ctx, db)
		_ = db.Close()
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
	}

	if err := m.Register(metrics.NewPoolStatsCollector(pool)); err != nil {
		log.Warnw("failed to register pool metrics", "error", err)
	}

	services, err := app.NewPostgres(cfg, pool, m)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return services, pool.Close, nil
}

func closePublisher(p notify.Publisher, log *logger.Logger) {
	if err := p.Close(); err != nil {
		log.Warnw("failed to close publisher", "error", err)
	}
}
