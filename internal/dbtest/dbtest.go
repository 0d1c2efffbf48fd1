// Package dbtest opens isolated in-memory sqlite databases for tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"custody-schedule-backend/internal/db"
	"custody-schedule-backend/internal/model"
)

// Open returns a migrated in-memory database private to the test.
// A single connection is used so every statement sees the same memory database
// and transactions serialize the way they would against one writer.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=off", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.Migrate(gormDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gormDB
}

// Facility inserts a facility with the given capacity.
func Facility(t testing.TB, gormDB *gorm.DB, id int64, capacity int) model.Facility {
	t.Helper()
	f := model.Facility{ID: id, Name: fmt.Sprintf("facility-%d", id), Capacity: capacity}
	if err := gormDB.Create(&f).Error; err != nil {
		t.Fatalf("create facility %d: %v", id, err)
	}
	return f
}
