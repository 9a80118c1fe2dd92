package models

import (
	"time"

	"github.com/zulandar/signalbox/internal/vector"
)

// KnowledgeAtom is a single short, independently citable fact with its
// source reference. ContentHash is unique so re-ingesting the same body
// never creates a second row.
type KnowledgeAtom struct {
	ID             string        `gorm:"primaryKey;size:64"`
	Title          string        `gorm:"size:256;not null"`
	Manufacturer   string        `gorm:"size:64;index"`
	EquipmentClass string        `gorm:"size:64;index"`
	Difficulty     string        `gorm:"size:16;default:basic"`
	Body           string        `gorm:"type:text;not null"`
	Embedding      vector.Vector `gorm:"type:mediumtext"`
	SourceDoc      string        `gorm:"size:128"`
	SourcePage     int
	SourceOffset   int
	ContentHash    string `gorm:"size:64;uniqueIndex"`
	CreatedAt      time.Time
}
