// Package testutil builds throwaway dependencies for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/farellandr/ticketgate/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated SQLite database in a temp dir. A single connection keeps
// concurrent writers serialized the way a row lock would.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "ticketgate.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// SeedEvent inserts an event row directly.
func SeedEvent(t *testing.T, db *gorm.DB, slug string, priceMinor int64, active bool) models.Event {
	t.Helper()

	ev := models.Event{Slug: slug, Name: slug, PriceMinor: priceMinor, Active: active}
	if err := db.Create(&ev).Error; err != nil {
		t.Fatalf("seed event %s: %v", slug, err)
	}
	return ev
}
