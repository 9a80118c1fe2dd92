package storage

import (
	"fmt"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/db"
	"github.com/zulandar/signalbox/internal/logging"
	"github.com/zulandar/signalbox/internal/metrics"
	"gorm.io/gorm"
)

// Open builds a Pool from configuration. Every provider is connected and
// migrated on dial so all of them carry the same schema.
func Open(cfg config.StorageConfig, log logging.Logger, m *metrics.Metrics) (*Pool, error) {
	specs := make([]ProviderSpec, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		pc := pc
		specs = append(specs, ProviderSpec{
			Name: pc.Name,
			Dial: func() (*gorm.DB, error) {
				gdb, err := db.Connect(pc)
				if err != nil {
					return nil, err
				}
				if err := db.AutoMigrate(gdb); err != nil {
					return nil, fmt.Errorf("storage: migrate %s: %w", pc.Name, err)
				}
				return gdb, nil
			},
		})
	}
	return New(Options{
		Providers:    specs,
		ProbeTimeout: cfg.ProbeTimeout(),
		Logger:       log,
		Metrics:      m,
	})
}
