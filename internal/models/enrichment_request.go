package models

import "time"

// EnrichmentRequest is a knowledge-gap handoff picked up by the external
// ingestion pipeline after a thin-coverage answer.
type EnrichmentRequest struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	RequestID      string `gorm:"size:64;index"`
	Vendor         string `gorm:"size:64;index"`
	EquipmentClass string `gorm:"size:64"`
	Gap            string `gorm:"type:text"`
	Status         string `gorm:"size:16;default:pending;index"`
	IssueURL       string `gorm:"size:256"`
	CreatedAt      time.Time
}
