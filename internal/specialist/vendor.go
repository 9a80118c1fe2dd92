package specialist

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/zulandar/signalbox/internal/intent"
	"github.com/zulandar/signalbox/internal/models"
)

const (
	maxClaims   = 3
	maxSentence = 280 // bytes quoted from one atom body
)

// VendorSpecialist drafts answers from atoms using vendor-specific framing
// and follow-up steps.
type VendorSpecialist struct {
	name      string
	intro     string
	followUps []string
}

// NewVendorSpecialist returns a specialist with the given framing.
func NewVendorSpecialist(name, intro string, followUps ...string) *VendorSpecialist {
	return &VendorSpecialist{name: name, intro: intro, followUps: followUps}
}

func (s *VendorSpecialist) Name() string { return s.name }

// Answer cites up to three atoms, preferring those that mention one of the
// request's fault codes.
func (s *VendorSpecialist) Answer(in Input) Draft {
	d := Draft{Specialist: s.name}
	if s.intro != "" {
		d.Claims = append(d.Claims, Claim{Text: fmt.Sprintf(s.intro, subject(in.Intent))})
	}
	for _, a := range pickAtoms(in.Atoms, in.Intent.FaultCodes, maxClaims) {
		d.Claims = append(d.Claims, Claim{
			Text:    atomSentence(a),
			AtomIDs: []string{a.ID},
			Factual: true,
		})
	}
	d.FollowUps = append(d.FollowUps, s.followUps...)
	if len(in.Cases) > 0 {
		d.FollowUps = append(d.FollowUps,
			fmt.Sprintf("Compare against %d similar resolved case(s) in the maintenance log.", len(in.Cases)))
	}
	return d
}

var displayNames = map[intent.Vendor]string{
	intent.Siemens:    "Siemens",
	intent.Rockwell:   "Rockwell",
	intent.ABB:        "ABB",
	intent.Schneider:  "Schneider",
	intent.Mitsubishi: "Mitsubishi",
	intent.Fanuc:      "FANUC",
	intent.Fuji:       "Fuji",
	intent.Omron:      "Omron",
}

func subject(in intent.Intent) string {
	vendor, ok := displayNames[in.Vendor]
	switch {
	case in.Vendor == intent.Generic || in.Vendor == "":
		vendor = "this"
	case !ok:
		vendor = string(in.Vendor)
	}
	if in.EquipmentClass != "" {
		return vendor + " " + strings.ReplaceAll(in.EquipmentClass, "_", " ")
	}
	return vendor + " equipment"
}

func pickAtoms(atoms []models.KnowledgeAtom, codes []string, n int) []models.KnowledgeAtom {
	if len(codes) == 0 || len(atoms) <= n {
		if len(atoms) > n {
			return atoms[:n]
		}
		return atoms
	}
	var hit, rest []models.KnowledgeAtom
	for _, a := range atoms {
		if mentionsAny(a, codes) {
			hit = append(hit, a)
		} else {
			rest = append(rest, a)
		}
	}
	out := append(hit, rest...)
	return out[:n]
}

func mentionsAny(a models.KnowledgeAtom, codes []string) bool {
	text := strings.ToUpper(a.Title + " " + a.Body)
	for _, c := range codes {
		if strings.Contains(text, strings.ToUpper(c)) {
			return true
		}
	}
	return false
}

func atomSentence(a models.KnowledgeAtom) string {
	body := strings.Join(strings.Fields(a.Body), " ")
	if len(body) > maxSentence {
		cut := maxSentence - len("...")
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "..."
	}
	if a.Title == "" || strings.HasPrefix(body, a.Title) {
		return body
	}
	return a.Title + ": " + body
}
