// Package storagetest builds in-memory storage for tests.
package storagetest

import (
	"testing"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/db"
	"github.com/zulandar/signalbox/internal/storage"
	"gorm.io/gorm"
)

// OpenDB returns a migrated in-memory SQLite database closed at test cleanup.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	gdb, err := db.Connect(config.ProviderConfig{Name: "test", Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

// NewPool returns a pool over one in-memory database per name, in order.
// With no names it creates a single provider called "primary".
func NewPool(t testing.TB, names ...string) (*storage.Pool, map[string]*gorm.DB) {
	t.Helper()
	if len(names) == 0 {
		names = []string{"primary"}
	}
	dbs := make(map[string]*gorm.DB, len(names))
	specs := make([]storage.ProviderSpec, 0, len(names))
	for _, name := range names {
		gdb := OpenDB(t)
		dbs[name] = gdb
		specs = append(specs, storage.ProviderSpec{Name: name, DB: gdb})
	}
	pool, err := storage.New(storage.Options{Providers: specs})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	return pool, dbs
}

// Break closes the database's connection so every further operation fails.
func Break(t testing.TB, gdb *gorm.DB) {
	t.Helper()
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
