package db

import (
	"fmt"

	"github.com/zulandar/signalbox/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model that a storage provider must carry.
// Providers share one schema so the failover layer can switch between them.
func AllModels() []interface{} {
	return []interface{}{
		&models.KnowledgeAtom{},
		&models.MaintenanceCase{},
		&models.AgentTrace{},
		&models.EnrichmentRequest{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
