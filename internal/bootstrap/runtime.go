// Package bootstrap prepares the runtime dependencies shared by the server and tools.
package bootstrap

import (
	"context"
	"fmt"

	"yatube/internal/cache"
	"yatube/internal/config"
	"yatube/internal/database"
	"yatube/internal/middleware"
	"yatube/internal/repository"
	"yatube/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedGroups upserts the built-in groups after connecting.
	SeedGroups bool
}

// InitRuntime connects to the database and Redis. The Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	r := cache.Connect(ctx, cfg.RedisURL)

	if err := Prepare(ctx, db, opts); err != nil {
		return nil, nil, err
	}
	return db, r, nil
}

// Prepare runs the startup steps that need a connected database.
func Prepare(ctx context.Context, db *gorm.DB, opts Options) error {
	if !opts.SeedGroups {
		return nil
	}
	groups, err := seed.Groups(ctx, repository.NewGroupRepository(db))
	if err != nil {
		return fmt.Errorf("failed to seed built-in groups: %w", err)
	}
	middleware.Logger.Info("built-in groups ensured", "count", len(groups))
	return nil
}
