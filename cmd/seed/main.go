// Package main seeds the database with a demo catalog and a few documents.
package main

import (
	"context"
	"fmt"
	"os"

	"stockledger/internal/app"
	"stockledger/internal/config"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
		Service:     "stockledger-seed",
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}
	if cfg.Database.Driver != config.StoragePostgres {
		log.Fatalw("seeding requires the postgres storage driver", "driver", cfg.Database.Driver)
	}

	ctx := appctx.WithTrace(context.Background(), appctx.NewTraceContext(appctx.OriginSeed))
	ctx = logger.WithLogger(ctx, log)

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.Database.URL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	db := postgres.OpenDB(pool)
	err = postgres.Migrate(ctx, db)
	_ = db.Close()
	if err != nil {
		log.Fatalw("failed to run migrations", "error", err)
	}

	services, err := app.NewPostgres(cfg, pool, nil)
	if err != nil {
		log.Fatalw("failed to build services", "error", err)
	}

	products, err := seedCatalog(ctx, services, log)
	if err != nil {
		log.Fatalw("failed to seed catalog", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDocuments(ctx, services, products, log); err != nil {
			log.Fatalw("failed to seed demo documents", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

type demoProduct struct {
	sku       string
	name      string
	category  string
	unit      string
	price     string
	threshold int64
	opening   int64
}

var catalog = []demoProduct{
	{"BOLT-M8", "Hex bolt M8x40", "Fasteners", "pcs", "0.35", 200, 1500},
	{"NUT-M8", "Hex nut M8", "Fasteners", "pcs", "0.12", 200, 1800},
	{"WASH-M8", "Flat washer M8", "Fasteners", "pcs", "0.05", 300, 250},
	{"PIPE-CU-15", "Copper pipe 15mm, 3m", "Plumbing", "m", "12.80", 20, 64},
	{"VALVE-BALL-15", "Ball valve 15mm", "Plumbing", "pcs", "9.90", 10, 4},
	{"CABLE-3X2.5", "Power cable 3x2.5mm²", "Electrical", "m", "1.45", 100, 500},
	{"BRKR-16A", "Circuit breaker 16A", "Electrical", "pcs", "6.70", 15, 0},
	{"GLOVE-NIT-L", "Nitrile gloves, size L", "Safety", "box", "8.20", 5, 30},
}
