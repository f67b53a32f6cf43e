// Package main is the entry point for the stockledger background worker.
// It relays the transactional outbox and reconciles stock with the ledger.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"stockledger/internal/app"
	"stockledger/internal/config"
	"stockledger/internal/domain/reports"
	"stockledger/internal/infrastructure/metrics"
	"stockledger/internal/infrastructure/notify"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/report_repo"
	"stockledger/pkg/logger"
)

const relayLeaseKey = "stockledger:outbox-relay"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDevelopment(),
		Service:     "stockledger-worker",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Database.Driver != config.StoragePostgres {
		log.Fatalw("worker requires the postgres storage driver", "driver", cfg.Database.Driver)
	}

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Info("starting stockledger worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = min(cfg.Database.MaxConns, 5)
	poolCfg.MinConns = min(cfg.Database.MinConns, poolCfg.MaxConns)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	redisClient, err := app.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatalw("failed to connect to redis", "error", err)
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	publisher, err := app.NewPublisher(cfg.Notify, redisClient)
	if err != nil {
		log.Fatalw("failed to create publisher", "error", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warnw("failed to close publisher", "error", err)
		}
	}()

	m := metrics.New(nil)
	if err := m.Register(metrics.NewPoolStatsCollector(pool)); err != nil {
		log.Warnw("failed to register pool metrics", "error", err)
	}

	txm := postgres.NewTxManager(pool)
	relay := postgres.NewOutboxRelay(txm, postgres.RelayConfig{
		BatchSize: cfg.Worker.OutboxBatchSize,
	}, notify.RelayHandler(publisher))

	var keys KeyCleaner
	if cfg.Idempotency.Enabled {
		keys = postgres.NewIdempotencyStore(pool, cfg.Idempotency.TTL)
	}

	worker := NewWorker(
		relay,
		relayLease(redisClient, cfg.Worker.OutboxPollInterval),
		reports.NewService(report_repo.NewReportRepo(txm)),
		keys,
		m,
		Options{
			PollInterval:      cfg.Worker.OutboxPollInterval,
			ReconcileInterval: cfg.Worker.ReconcileInterval,
			Retention:         cfg.Worker.OutboxRetention,
		},
		log,
	)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.Worker.MetricsPort,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infow("metrics endpoint starting", "port", cfg.Worker.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics endpoint failed", "error", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()
	wg.Wait()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = metricsServer.Shutdown(shutdownCtx)

	log.Info("worker stopped")
}

// relayLease keeps a single active relay across instances when Redis is
// available. The lease outlives a few poll intervals so a stalled holder is
// replaced quickly.
func relayLease(client *redis.Client, poll time.Duration) notify.Lease {
	if client == nil {
		return notify.LocalLease{}
	}
	return notify.NewRedisLease(client, relayLeaseKey, max(5*poll, 10*time.Second))
}
