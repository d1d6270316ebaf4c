package database

import (
	"context"
	"fmt"
	"strings"

	"yatube/internal/config"
	"yatube/internal/middleware"

	"gorm.io/gorm"
)

// DB_SCHEMA_MODE values. Hybrid runs the SQL migrations everywhere and
// AutoMigrate on top of them outside production.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaPlan is the resolved DB_SCHEMA_MODE for one environment.
type SchemaPlan struct {
	Mode string
	Env  string
	SQL  bool
	Auto bool
}

// SchemaStatus is a SchemaPlan plus the migration state of the database.
type SchemaStatus struct {
	SchemaPlan
	AppliedVersions   []int
	PendingMigrations []Migration
}

// productionLike environments hold real posts; the schema there only changes through SQL files.
func productionLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// PlanSchema resolves cfg into the steps ApplySchema will take.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	plan := SchemaPlan{Mode: strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)), Env: cfg.Env}
	if plan.Mode == "" {
		plan.Mode = SchemaModeHybrid
	}
	locked := productionLike(cfg.Env)

	switch plan.Mode {
	case SchemaModeSQL:
		plan.SQL = true
	case SchemaModeAuto:
		if locked {
			return SchemaPlan{}, fmt.Errorf("DB_SCHEMA_MODE=auto is not allowed in %q", cfg.Env)
		}
		plan.Auto = true
	case SchemaModeHybrid:
		plan.SQL = true
		plan.Auto = !locked
	default:
		return SchemaPlan{}, fmt.Errorf("unknown DB_SCHEMA_MODE %q", plan.Mode)
	}
	return plan, nil
}

// AutoMigrate creates or updates the users, groups, posts, comments and follows tables
// from their models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// ApplySchema brings the database up to date according to DB_SCHEMA_MODE.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}
	if plan.SQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
	}
	if !plan.Auto {
		return nil
	}

	middleware.Logger.Info("auto-migrating models", "mode", plan.Mode, "env", plan.Env)
	if err := AutoMigrate(db.WithContext(ctx)); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// GetSchemaStatus reports the plan for cfg and, when SQL migrations are part of it,
// which of them the database has not seen yet.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{SchemaPlan: plan}
	if !plan.SQL {
		return status, nil
	}

	if status.AppliedVersions, err = AppliedVersions(ctx, db); err != nil {
		return nil, err
	}
	status.PendingMigrations = pendingMigrations(status.AppliedVersions, GetMigrations())
	return status, nil
}
