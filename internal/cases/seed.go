package cases

import (
	"fmt"
	"os"

	"github.com/zulandar/signalbox/internal/models"
	"gopkg.in/yaml.v3"
)

type seedCase struct {
	ID             string `yaml:"id"`
	Problem        string `yaml:"problem"`
	Resolution     string `yaml:"resolution"`
	Vendor         string `yaml:"vendor"`
	EquipmentClass string `yaml:"equipment_class"`
	Success        *bool  `yaml:"success"`
}

type seedFile struct {
	Cases []seedCase `yaml:"cases"`
}

// LoadSeed reads cases from a YAML seed file. Success defaults to true.
func LoadSeed(path string) ([]models.MaintenanceCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cases: read %s: %w", path, err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("cases: parse %s: %w", path, err)
	}
	out := make([]models.MaintenanceCase, 0, len(f.Cases))
	for i, s := range f.Cases {
		if s.Problem == "" {
			return nil, fmt.Errorf("cases: seed case %d: problem is required", i)
		}
		out = append(out, models.MaintenanceCase{
			ID:             s.ID,
			Problem:        s.Problem,
			Resolution:     s.Resolution,
			Vendor:         s.Vendor,
			EquipmentClass: s.EquipmentClass,
			Success:        s.Success == nil || *s.Success,
		})
	}
	return out, nil
}
