package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/samirrijal/geomeasure/internal/adapters/postgres"
	"github.com/samirrijal/geomeasure/internal/adapters/sqlite"
	"github.com/samirrijal/geomeasure/internal/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|status>")
	}

	cfg, err := config.Load("geomeasure-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "up":
		runMigrations(ctx, cfg)
	case "status":
		names, err := postgres.Migrations()
		if err != nil {
			log.Fatalf("list migrations: %v", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func runMigrations(ctx context.Context, cfg *config.Config) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		db, err := sqlite.New(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer db.Close()

		if err := sqlite.Migrate(db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		fmt.Printf("OK  %s\n", cfg.Storage.SQLitePath)

	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer db.Close()

		applied, err := db.Migrate(ctx)
		if err != nil {
			log.Fatalf("migrate: %v", err)
		}
		for _, f := range applied {
			fmt.Printf("OK  %s\n", f)
		}

	default:
		log.Fatalf("storage.driver %q has no schema to migrate", cfg.Storage.Driver)
	}

	log.Println("all migrations applied")
}
