package knowledge

import (
	"fmt"
	"os"

	"github.com/zulandar/signalbox/internal/models"
	"gopkg.in/yaml.v3"
)

// SeedAtom is the YAML form of an atom in a seed file.
type SeedAtom struct {
	ID             string `yaml:"id"`
	Title          string `yaml:"title"`
	Manufacturer   string `yaml:"manufacturer"`
	EquipmentClass string `yaml:"equipment_class"`
	Difficulty     string `yaml:"difficulty"`
	Body           string `yaml:"body"`
	SourceDoc      string `yaml:"source_doc"`
	SourcePage     int    `yaml:"source_page"`
	SourceOffset   int    `yaml:"source_offset"`
}

type seedFile struct {
	Atoms []SeedAtom `yaml:"atoms"`
}

// LoadSeed reads atoms from a YAML seed file.
func LoadSeed(path string) ([]models.KnowledgeAtom, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("knowledge: read %s: %w", path, err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes a YAML seed document.
func ParseSeed(data []byte) ([]models.KnowledgeAtom, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("knowledge: parse seed: %w", err)
	}
	atoms := make([]models.KnowledgeAtom, 0, len(f.Atoms))
	for i, s := range f.Atoms {
		if s.Title == "" || s.Body == "" {
			return nil, fmt.Errorf("knowledge: seed atom %d: title and body are required", i)
		}
		atoms = append(atoms, models.KnowledgeAtom{
			ID:             s.ID,
			Title:          s.Title,
			Manufacturer:   s.Manufacturer,
			EquipmentClass: s.EquipmentClass,
			Difficulty:     s.Difficulty,
			Body:           s.Body,
			SourceDoc:      s.SourceDoc,
			SourcePage:     s.SourcePage,
			SourceOffset:   s.SourceOffset,
		})
	}
	return atoms, nil
}
