package models

import "time"

// AgentTrace is the persisted form of one request's execution trace.
// Stages and Flags hold JSON arrays. Rows are append-only.
type AgentTrace struct {
	ID                 uint   `gorm:"primaryKey;autoIncrement"`
	RequestID          string `gorm:"size:64;index"`
	Channel            string `gorm:"size:32"`
	Route              string `gorm:"size:1;index"`
	Vendor             string `gorm:"size:64"`
	Confidence         float64
	Coverage           string `gorm:"size:8"`
	Specialists        string `gorm:"size:256"`
	EnrichmentUsed     bool
	EnrichmentDegraded bool
	EnrichmentQueued   bool
	Substitutions      int
	Flags              string `gorm:"type:text"`
	Stages             string `gorm:"type:text"`
	Cancelled          bool
	Success            bool
	Error              string `gorm:"type:text"`
	TotalMs            int64
	CreatedAt          time.Time `gorm:"index"`
}
