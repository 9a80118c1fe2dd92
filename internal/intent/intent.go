package intent

// Vendor is a manufacturer tag. The set is open; specialists register for
// the tags they handle.
type Vendor string

const (
	Generic    Vendor = "GENERIC"
	Siemens    Vendor = "SIEMENS"
	Rockwell   Vendor = "ROCKWELL"
	ABB        Vendor = "ABB"
	Schneider  Vendor = "SCHNEIDER"
	Mitsubishi Vendor = "MITSUBISHI"
	Fanuc      Vendor = "FANUC"
	Fuji       Vendor = "FUJI"
	Omron      Vendor = "OMRON"
)

// Coverage is how well the atom store answers an intent.
type Coverage string

const (
	CoverageUnknown Coverage = ""
	CoverageStrong  Coverage = "strong"
	CoverageThin    Coverage = "thin"
	CoverageNone    Coverage = "none"
)

// Intent is the classifier's reading of a request.
type Intent struct {
	RequestID      string   `json:"request_id"`
	Vendor         Vendor   `json:"vendor"`
	EquipmentClass string   `json:"equipment_class,omitempty"`
	Confidence     float64  `json:"confidence"`
	Coverage       Coverage `json:"coverage,omitempty"`
	SafetyCritical bool     `json:"safety_critical"`
	Ambiguous      bool     `json:"ambiguous,omitempty"`
	Terms          []string `json:"terms,omitempty"`
	FaultCodes     []string `json:"fault_codes,omitempty"`
}

// WithCoverage returns a copy of i carrying coverage c.
func (i Intent) WithCoverage(c Coverage) Intent {
	out := i
	out.Terms = append([]string(nil), i.Terms...)
	out.FaultCodes = append([]string(nil), i.FaultCodes...)
	out.Coverage = c
	return out
}
