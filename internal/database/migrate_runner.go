package database

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"yatube/internal/middleware"

	"gorm.io/gorm"
)

// MigrationLog is a row of migration_logs, written in the same transaction as the script it records.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

func (MigrationLog) TableName() string {
	return "migration_logs"
}

type direction int

const (
	up direction = iota
	down
)

func (d direction) String() string {
	if d == down {
		return "roll back"
	}
	return "apply"
}

// AppliedVersions lists the recorded migration versions in ascending order. A database that
// never ran a migration has none.
func AppliedVersions(ctx context.Context, db *gorm.DB) ([]int, error) {
	versions := []int{}
	if !db.Migrator().HasTable(&MigrationLog{}) {
		return versions, nil
	}
	err := db.WithContext(ctx).Model(&MigrationLog{}).Order("version").Pluck("version", &versions).Error
	if err != nil {
		return nil, fmt.Errorf("read migration_logs: %w", err)
	}
	return versions, nil
}

// RunMigrations applies the pending embedded migrations in version order.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	return runMigrations(ctx, db, migrations)
}

// runMigrations refuses to touch a database that has seen versions this binary does not ship,
// which usually means an older binary pointed at a newer schema.
func runMigrations(ctx context.Context, db *gorm.DB, registered []Migration) error {
	if err := db.WithContext(ctx).AutoMigrate(&MigrationLog{}); err != nil {
		return fmt.Errorf("create migration_logs: %w", err)
	}
	applied, err := AppliedVersions(ctx, db)
	if err != nil {
		return err
	}
	if unknown := unknownVersions(applied, registered); len(unknown) > 0 {
		return fmt.Errorf("database has migrations this build does not know: %s", strings.Join(unknown, ", "))
	}

	for _, m := range pendingMigrations(applied, registered) {
		if err := step(ctx, db, m, up); err != nil {
			return err
		}
	}
	return nil
}

// RollbackMigration runs the down script of an applied migration and forgets it.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("no migration with version %d", version)
	}
	applied, err := AppliedVersions(ctx, db)
	if err != nil {
		return err
	}
	if !slices.Contains(applied, version) {
		return fmt.Errorf("migration %s is not applied", m)
	}
	return step(ctx, db, *m, down)
}

// step runs one script of m and updates migration_logs in the same transaction.
func step(ctx context.Context, db *gorm.DB, m Migration, dir direction) error {
	middleware.Logger.Info(dir.String()+" migration", "version", m.Version, "name", m.Name)

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		script := m.UpScript
		if dir == down {
			script = m.DownScript
		}
		if err := tx.Exec(script).Error; err != nil {
			return err
		}
		if dir == down {
			return tx.Where("version = ?", m.Version).Delete(&MigrationLog{}).Error
		}
		return tx.Create(&MigrationLog{Version: m.Version, Name: m.Name}).Error
	})
	if err != nil {
		return fmt.Errorf("%s migration %s: %w", dir, m.String(), err)
	}
	return nil
}

func pendingMigrations(applied []int, registered []Migration) []Migration {
	var pending []Migration
	for _, m := range registered {
		if !slices.Contains(applied, m.Version) {
			pending = append(pending, m)
		}
	}
	return pending
}

// unknownVersions returns the applied versions missing from registered, formatted like migration file prefixes.
func unknownVersions(applied []int, registered []Migration) []string {
	var unknown []string
	for _, v := range applied {
		known := slices.ContainsFunc(registered, func(m Migration) bool { return m.Version == v })
		if !known {
			unknown = append(unknown, fmt.Sprintf("%06d", v))
		}
	}
	return unknown
}
