package main

// Run database migrations:
//   go run ./cmd/migrate            apply pending migrations
//   go run ./cmd/migrate -status    print the current schema version
//   go run ./cmd/migrate -down      roll back the latest migration

import (
	"context"
	"flag"
	"fmt"
	"os"

	"clinix-backend/internal/shared/config"
	"clinix-backend/internal/shared/storage/db"
	"clinix-backend/internal/shared/telemetry"
)

func main() {
	status := flag.Bool("status", false, "Print the current schema version and exit")
	down := flag.Bool("down", false, "Roll back the most recent migration")
	flag.Parse()

	cfg := config.Load()
	telemetry.Init("clinix-migrate", cfg.Env, cfg.LogLevel)
	ctx := context.Background()

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.Preset(db.PoolMigrate)))
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer sqlDB.Close()

	switch {
	case *status:
		version, err := db.MigrationVersion(ctx, sqlDB)
		if err != nil {
			telemetry.Error("migrate.status_failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		fmt.Println(version)
	case *down:
		if err := db.RollbackMigration(ctx, sqlDB); err != nil {
			telemetry.Error("migrate.down_failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		telemetry.Info("migrate.rolled_back", nil)
	default:
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			telemetry.Error("migrate.failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
	}
}
