package intent

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// VendorLexicon lists the tokens that identify one manufacturer.
type VendorLexicon struct {
	Tag        Vendor   `yaml:"tag"`
	Names      []string `yaml:"names"`
	Families   []string `yaml:"families"`
	FaultCodes []string `yaml:"fault_codes"` // regular expressions
}

// ClassLexicon maps an equipment class to its keywords.
type ClassLexicon struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Lexicon is the vocabulary the classifier matches against.
type Lexicon struct {
	Vendors       []VendorLexicon `yaml:"vendors"`
	Classes       []ClassLexicon  `yaml:"classes"`
	SafetyTerms   []string        `yaml:"safety_terms"`
	SafetyClasses []string        `yaml:"safety_classes"`
}

// DefaultLexicon returns the built-in vocabulary.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Vendors: []VendorLexicon{
			{
				Tag:        Siemens,
				Names:      []string{"siemens"},
				Families:   []string{"s7", "simatic", "sinamics", "micromaster", "tia portal", "logo", "simotion", "sinumerik"},
				FaultCodes: []string{`\b[FA]\d{4,5}\b`},
			},
			{
				Tag:        Rockwell,
				Names:      []string{"rockwell", "allen bradley", "allen-bradley", "ab"},
				Families:   []string{"powerflex", "controllogix", "compactlogix", "micrologix", "studio 5000", "kinetix", "panelview"},
				FaultCodes: []string{`\bF\d{1,3}\b`, `\bfault code \d{1,3}\b`},
			},
			{
				Tag:        ABB,
				Names:      []string{"abb"},
				Families:   []string{"acs580", "acs880", "acs355", "acs550", "ac500", "irb", "irc5"},
				FaultCodes: []string{`\b[0-9A-F]{4}\b`},
			},
			{
				Tag:        Schneider,
				Names:      []string{"schneider", "telemecanique", "square d"},
				Families:   []string{"altivar", "modicon", "m340", "m580", "tesys", "lexium"},
				FaultCodes: []string{`\b(?:OCF|SLF\d?|OHF|OBF|OLF|INF\d?)\b`},
			},
			{
				Tag:        Mitsubishi,
				Names:      []string{"mitsubishi", "melsec"},
				Families:   []string{"fr-a800", "fr-e700", "iq-r", "iq-f", "melservo", "got2000"},
				FaultCodes: []string{`\bE\.[A-Z]{2,3}\d?\b`},
			},
			{
				Tag:        Fanuc,
				Names:      []string{"fanuc"},
				Families:   []string{"r-30ib", "r-30ia", "0i-mf", "alpha i", "beta i"},
				FaultCodes: []string{`\b(?:SRVO|SYST|MOTN|INTP)-\d{3}\b`, `\b(?:SV|OH|SP|PS)\d{3,4}\b`},
			},
			{
				Tag:        Fuji,
				Names:      []string{"fuji", "fuji electric"},
				Families:   []string{"frenic", "frenic-mega", "frenic-ace", "micrex"},
				FaultCodes: []string{`\b(?:OC[123]|OU[123]|LU|OH[1-4]|OL[12U])\b`},
			},
			{
				Tag:        Omron,
				Names:      []string{"omron"},
				Families:   []string{"sysmac", "cj2", "cp1", "nx1p", "mx2", "rx2"},
				FaultCodes: []string{`\bE\d{2,3}\b`},
			},
		},
		Classes: []ClassLexicon{
			{Name: "vfd", Keywords: []string{"vfd", "drive", "inverter", "frequency converter", "variable frequency"}},
			{Name: "plc", Keywords: []string{"plc", "controller", "cpu", "ladder", "io module", "i/o"}},
			{Name: "servo", Keywords: []string{"servo", "servo drive", "encoder"}},
			{Name: "motor", Keywords: []string{"motor", "bearing", "winding"}},
			{Name: "hmi", Keywords: []string{"hmi", "touchscreen", "operator panel"}},
			{Name: "robot", Keywords: []string{"robot", "cobot", "manipulator", "teach pendant"}},
			{Name: "hydraulic", Keywords: []string{"hydraulic", "hydraulics", "pump", "valve"}},
			{Name: "conveyor", Keywords: []string{"conveyor", "belt"}},
			{Name: "safety_relay", Keywords: []string{"safety relay", "light curtain", "safety plc", "safety controller"}},
		},
		SafetyTerms: []string{
			"arc flash", "lockout", "tagout", "loto", "high voltage", "electrocution",
			"e-stop", "emergency stop", "interlock", "dc bus", "capacitor", "shock",
			"injury", "burn", "guard removed", "bypass safety",
		},
		SafetyClasses: []string{"safety_relay", "robot"},
	}
}

// LoadLexicon reads a YAML lexicon and merges it over the defaults. Vendors
// and classes with a matching tag or name are replaced; others are added.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("intent: read lexicon %s: %w", path, err)
	}
	var override Lexicon
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("intent: parse lexicon %s: %w", path, err)
	}
	lex := DefaultLexicon()
	lex.merge(&override)
	return lex, nil
}

func (l *Lexicon) merge(o *Lexicon) {
	for _, v := range o.Vendors {
		v.Tag = Vendor(strings.ToUpper(string(v.Tag)))
		replaced := false
		for i := range l.Vendors {
			if l.Vendors[i].Tag == v.Tag {
				l.Vendors[i] = v
				replaced = true
				break
			}
		}
		if !replaced {
			l.Vendors = append(l.Vendors, v)
		}
	}
	for _, c := range o.Classes {
		replaced := false
		for i := range l.Classes {
			if l.Classes[i].Name == c.Name {
				l.Classes[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			l.Classes = append(l.Classes, c)
		}
	}
	l.SafetyTerms = append(l.SafetyTerms, o.SafetyTerms...)
	l.SafetyClasses = append(l.SafetyClasses, o.SafetyClasses...)
}
