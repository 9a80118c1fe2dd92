// Package knowledge reads and seeds the knowledge atom store.
package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store serves atom queries through the storage failover pool.
type Store struct {
	pool *storage.Pool
}

// NewStore returns a Store backed by pool.
func NewStore(pool *storage.Pool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("knowledge: pool is required")
	}
	return &Store{pool: pool}, nil
}

// Query selects atoms for a manufacturer and equipment class. Atoms with no
// equipment class match every class.
type Query struct {
	Manufacturer   string
	EquipmentClass string
	Embedding      []float32
	MinSimilarity  float64
	Terms          []string
	Limit          int
}

// Match is an atom with its relevance score. Ranked is false for atoms that
// carry no embedding when the query did; those sort after every ranked atom.
type Match struct {
	Atom   models.KnowledgeAtom
	Score  float64
	Ranked bool
}

// QueryAtoms returns matching atoms, most relevant first. With a query
// embedding, embedded atoms scoring below MinSimilarity are excluded.
// Without one, atoms are ranked by how many query terms they contain.
func (s *Store) QueryAtoms(ctx context.Context, q Query) ([]Match, error) {
	var atoms []models.KnowledgeAtom
	err := s.pool.Do(ctx, func(tx *gorm.DB) error {
		query := tx.Model(&models.KnowledgeAtom{})
		if q.Manufacturer != "" {
			query = query.Where("manufacturer = ?", strings.ToUpper(q.Manufacturer))
		}
		if q.EquipmentClass != "" {
			query = query.Where("(equipment_class = ? OR equipment_class = '')", q.EquipmentClass)
		}
		return query.Order("id").Find(&atoms).Error
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge: query atoms: %w", err)
	}

	matches := rank(atoms, q)
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, nil
}

// Get returns one atom by id.
func (s *Store) Get(ctx context.Context, id string) (*models.KnowledgeAtom, error) {
	var atom models.KnowledgeAtom
	err := s.pool.Do(ctx, func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).First(&atom).Error
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge: get %s: %w", id, err)
	}
	return &atom, nil
}

// Count returns the number of stored atoms.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.Do(ctx, func(tx *gorm.DB) error {
		return tx.Model(&models.KnowledgeAtom{}).Count(&n).Error
	})
	if err != nil {
		return 0, fmt.Errorf("knowledge: count: %w", err)
	}
	return n, nil
}

// Ingest stores atom unless an atom with the same normalised body already
// exists, in which case the existing id is returned with created=false.
func (s *Store) Ingest(ctx context.Context, atom models.KnowledgeAtom) (string, bool, error) {
	if strings.TrimSpace(atom.Body) == "" {
		return "", false, fmt.Errorf("knowledge: ingest: body is required")
	}
	if atom.Title == "" {
		return "", false, fmt.Errorf("knowledge: ingest: title is required")
	}
	atom.ContentHash = ContentHash(atom.Body)
	atom.Manufacturer = strings.ToUpper(atom.Manufacturer)
	if atom.ID == "" {
		atom.ID = "atom-" + atom.ContentHash[:12]
	}

	var id string
	var created bool
	err := s.pool.Do(ctx, func(tx *gorm.DB) error {
		var existing models.KnowledgeAtom
		err := tx.Select("id").Where("content_hash = ?", atom.ContentHash).First(&existing).Error
		if err == nil {
			id = existing.ID
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&atom)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost a race with a concurrent ingest of the same body.
			if err := tx.Select("id").Where("content_hash = ?", atom.ContentHash).First(&existing).Error; err != nil {
				return err
			}
			id = existing.ID
			return nil
		}
		id, created = atom.ID, true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("knowledge: ingest %q: %w", atom.Title, err)
	}
	return id, created, nil
}

// ContentHash returns the sha256 of body with case and whitespace normalised.
func ContentHash(body string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(body), " "))
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}
