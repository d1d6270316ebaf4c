// Command migrate applies, inspects and rolls back the database schema.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"yatube/internal/config"
	"yatube/internal/database"
	"yatube/internal/middleware"

	"gorm.io/gorm"
)

const usage = "usage: migrate <up|auto|status|list|down <version>>"

func main() {
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()
	if err := run(context.Background(), flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New(usage)
	}
	cmd := strings.ToLower(strings.TrimSpace(args[0]))

	// Listing needs no database.
	if cmd == "list" {
		for _, m := range database.GetMigrations() {
			fmt.Println(m.String())
		}
		return nil
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	closer := middleware.ConfigureLogger(middleware.LogOptions{Env: cfg.Env, Level: cfg.LogLevel})
	defer func() { _ = closer.Close() }()

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	switch cmd {
	case "up":
		if err := database.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		middleware.Logger.Info("sql migrations applied")
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		middleware.Logger.Info("automigrations applied")
	case "status":
		return status(ctx, db, cfg)
	case "down":
		if len(args) < 2 {
			return errors.New(usage)
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		middleware.Logger.Info("migration rolled back", "version", version)
	default:
		return errors.New(usage)
	}
	return nil
}

func status(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	st, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return fmt.Errorf("schema status failed: %w", err)
	}
	middleware.Logger.Info("schema status",
		"mode", st.Mode,
		"env", st.Env,
		"run_sql", st.SQL,
		"run_auto", st.Auto,
		"applied", len(st.AppliedVersions),
		"pending", len(st.PendingMigrations))
	for _, m := range st.PendingMigrations {
		middleware.Logger.Info("pending migration", "migration", m.String())
	}
	return nil
}
