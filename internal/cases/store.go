// Package cases reads and records resolved maintenance cases.
package cases

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/storage"
	"github.com/zulandar/signalbox/internal/vector"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Neighbor is a case with its similarity to the query embedding.
type Neighbor struct {
	Case  models.MaintenanceCase
	Score float64
}

// Store serves nearest-case lookups through the storage failover pool.
type Store struct {
	pool *storage.Pool
}

// NewStore returns a Store backed by pool.
func NewStore(pool *storage.Pool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("cases: pool is required")
	}
	return &Store{pool: pool}, nil
}

// QueryNearestCases returns up to k successful cases closest to embedding,
// most similar first. Cases without an embedding are never returned.
func (s *Store) QueryNearestCases(ctx context.Context, embedding []float32, k int) ([]Neighbor, error) {
	if len(embedding) == 0 || k <= 0 {
		return nil, nil
	}
	var rows []models.MaintenanceCase
	err := s.pool.Do(ctx, func(tx *gorm.DB) error {
		return tx.Where("success = ? AND embedding <> ''", true).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("cases: query nearest: %w", err)
	}

	out := make([]Neighbor, 0, len(rows))
	for _, c := range rows {
		if len(c.Embedding) != len(embedding) {
			continue
		}
		out = append(out, Neighbor{Case: c, Score: vector.Cosine(embedding, c.Embedding)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Case.ID < out[j].Case.ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Record stores a case, replacing any existing case with the same id.
func (s *Store) Record(ctx context.Context, c models.MaintenanceCase) (string, error) {
	if strings.TrimSpace(c.Problem) == "" {
		return "", fmt.Errorf("cases: record: problem is required")
	}
	if c.ID == "" {
		c.ID = "case-" + uuid.NewString()
	}
	c.Vendor = strings.ToUpper(c.Vendor)
	err := s.pool.Do(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"problem", "resolution", "embedding", "vendor", "equipment_class", "success"}),
		}).Create(&c).Error
	})
	if err != nil {
		return "", fmt.Errorf("cases: record %s: %w", c.ID, err)
	}
	return c.ID, nil
}

// Count returns the number of stored cases.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.Do(ctx, func(tx *gorm.DB) error {
		return tx.Model(&models.MaintenanceCase{}).Count(&n).Error
	})
	if err != nil {
		return 0, fmt.Errorf("cases: count: %w", err)
	}
	return n, nil
}
