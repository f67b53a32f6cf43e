// Package main applies or inspects database migrations.
//
// Usage: migrate [up|down|status|version]
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.App.LogLevel, Development: cfg.App.IsDevelopment(), Service: "stockledger-migrate"})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Database.Driver != config.StoragePostgres {
		log.Fatalw("migrations require the postgres storage driver", "driver", cfg.Database.Driver)
	}

	ctx, cancel := context.WithTimeout(logger.WithLogger(context.Background(), log), 5*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.Database.URL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	db := postgres.OpenDB(pool)
	defer db.Close()

	switch command {
	case "up":
		err = postgres.Migrate(ctx, db)
	case "down":
		err = postgres.MigrateDown(ctx, db)
	case "status":
		err = postgres.MigrationStatus(ctx, db)
	case "version":
		var v int64
		if v, err = postgres.MigrationVersion(ctx, db); err == nil {
			fmt.Println(v)
		}
	default:
		log.Fatalw("unknown command, expected up, down, status or version", "command", command)
	}
	if err != nil {
		log.Fatalw("migration command failed", "command", command, "error", err)
	}
}
