package models

import (
	"time"

	"github.com/zulandar/signalbox/internal/vector"
)

// MaintenanceCase is a previously resolved field case, written by the
// feedback-capture collaborator and read by the few-shot enhancer.
type MaintenanceCase struct {
	ID             string        `gorm:"primaryKey;size:64"`
	Problem        string        `gorm:"type:text;not null"`
	Resolution     string        `gorm:"type:text"`
	Embedding      vector.Vector `gorm:"type:mediumtext"`
	Vendor         string        `gorm:"size:64;index"`
	EquipmentClass string        `gorm:"size:64"`
	Success        bool
	CreatedAt      time.Time
}
