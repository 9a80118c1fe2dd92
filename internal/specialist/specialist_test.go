package specialist

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/zulandar/signalbox/internal/cases"
	"github.com/zulandar/signalbox/internal/intent"
	"github.com/zulandar/signalbox/internal/models"
)

func atoms(ids ...string) []models.KnowledgeAtom {
	out := make([]models.KnowledgeAtom, len(ids))
	for i, id := range ids {
		out[i] = models.KnowledgeAtom{ID: id, Title: "Title " + id, Body: "Body of " + id + "."}
	}
	return out
}

func TestRegistry_LookupFallsBackToGeneric(t *testing.T) {
	r := DefaultRegistry()
	tests := []struct {
		vendor intent.Vendor
		want   string
	}{
		{intent.Siemens, "SIEMENS"},
		{intent.Rockwell, "ROCKWELL"},
		{intent.ABB, "ABB"},
		{intent.Schneider, "SCHNEIDER"},
		{intent.Fuji, "GENERIC"},
		{intent.Generic, "GENERIC"},
		{"", "GENERIC"},
	}
	for _, tt := range tests {
		if got := r.Lookup(tt.vendor).Name(); got != tt.want {
			t.Errorf("Lookup(%q) = %s, want %s", tt.vendor, got, tt.want)
		}
	}
}

func TestRegistry_RegisterNewVendor(t *testing.T) {
	r := NewRegistry()
	if r.Lookup(intent.Omron).Name() != "GENERIC" {
		t.Fatal("unregistered vendor should use GENERIC")
	}
	r.Register(intent.Omron, NewVendorSpecialist("OMRON", ""))
	if r.Lookup(intent.Omron).Name() != "OMRON" {
		t.Error("registered specialist not returned")
	}
	r.Register(intent.Fanuc, nil)
	if r.Lookup(intent.Fanuc).Name() != "GENERIC" {
		t.Error("nil registration should be ignored")
	}
	vendors := r.Vendors()
	if len(vendors) != 2 || vendors[0] != intent.Generic || vendors[1] != intent.Omron {
		t.Errorf("Vendors() = %v", vendors)
	}
}

func TestDispatch_SafetyLayeredFirst(t *testing.T) {
	r := DefaultRegistry()
	in := Input{
		Intent: intent.Intent{Vendor: intent.Siemens, EquipmentClass: "vfd", SafetyCritical: true},
		Atoms:  atoms("a1"),
	}
	drafts := r.Dispatch(in)
	if len(drafts) != 2 {
		t.Fatalf("len(drafts) = %d, want 2", len(drafts))
	}
	if drafts[0].Specialist != SafetyName || drafts[1].Specialist != "SIEMENS" {
		t.Errorf("order = %s,%s; want SAFETY,SIEMENS", drafts[0].Specialist, drafts[1].Specialist)
	}
	if len(drafts[0].Caveats) != 2 {
		t.Errorf("safety caveats = %v, want general + vfd", drafts[0].Caveats)
	}
	for _, c := range drafts[0].Claims {
		if c.Factual {
			t.Error("SAFETY must not make factual claims")
		}
	}
}

func TestDispatch_NoSafety(t *testing.T) {
	drafts := DefaultRegistry().Dispatch(Input{Intent: intent.Intent{Vendor: intent.ABB}, Atoms: atoms("a1")})
	if len(drafts) != 1 || drafts[0].Specialist != "ABB" {
		t.Errorf("drafts = %+v", drafts)
	}
}

func TestVendorSpecialist_CitesEveryFactualClaim(t *testing.T) {
	s := DefaultRegistry().Lookup(intent.Siemens)
	d := s.Answer(Input{
		Intent: intent.Intent{Vendor: intent.Siemens, EquipmentClass: "vfd"},
		Atoms:  atoms("a1", "a2", "a3", "a4", "a5"),
	})
	factual := 0
	for _, c := range d.Claims {
		if !c.Factual {
			continue
		}
		factual++
		if len(c.AtomIDs) == 0 {
			t.Errorf("factual claim without citation: %q", c.Text)
		}
	}
	if factual != 3 {
		t.Errorf("factual claims = %d, want 3", factual)
	}
	if !strings.Contains(d.Claims[0].Text, "Siemens vfd") {
		t.Errorf("intro = %q, want to mention Siemens vfd", d.Claims[0].Text)
	}
}

func TestVendorSpecialist_PrefersFaultCodeAtoms(t *testing.T) {
	as := atoms("a1", "a2", "a3", "a4")
	as[3].Body = "F0001 means overcurrent."
	d := DefaultRegistry().Lookup(intent.Siemens).Answer(Input{
		Intent: intent.Intent{Vendor: intent.Siemens, FaultCodes: []string{"F0001"}},
		Atoms:  as,
	})
	if d.Claims[1].AtomIDs[0] != "a4" {
		t.Errorf("first cited atom = %s, want a4", d.Claims[1].AtomIDs[0])
	}
}

func TestVendorSpecialist_CasesAddFollowUpNotCitations(t *testing.T) {
	d := DefaultRegistry().Lookup(intent.ABB).Answer(Input{
		Intent: intent.Intent{Vendor: intent.ABB},
		Atoms:  atoms("a1"),
		Cases:  []cases.Neighbor{{Case: models.MaintenanceCase{ID: "c1"}}},
	})
	for _, c := range d.Claims {
		for _, id := range c.AtomIDs {
			if id == "c1" {
				t.Error("case id must never be cited")
			}
		}
	}
	last := d.FollowUps[len(d.FollowUps)-1]
	if !strings.Contains(last, "1 similar resolved case") {
		t.Errorf("follow-up = %q", last)
	}
}

func TestResearchFallback(t *testing.T) {
	d := ResearchFallback(Input{Intent: intent.Intent{Vendor: intent.Fuji, EquipmentClass: "vfd", FaultCodes: []string{"OC1"}}})
	if !d.Unverified {
		t.Error("research fallback must be unverified")
	}
	for _, c := range d.Claims {
		if c.Factual || len(c.AtomIDs) > 0 {
			t.Errorf("research fallback claim should be non-factual: %+v", c)
		}
	}
	if !strings.Contains(d.Claims[0].Text, "Fuji vfd") {
		t.Errorf("claim = %q", d.Claims[0].Text)
	}
	if !strings.Contains(d.FollowUps[0], "OC1") {
		t.Errorf("follow-up = %q, want fault code", d.FollowUps[0])
	}
	if len(d.FollowUps) != 1 {
		t.Errorf("FollowUps = %q, want only the lookup hint", d.FollowUps)
	}
}

func TestClarification(t *testing.T) {
	tests := []struct {
		name string
		in   intent.Intent
		want string
	}{
		{"nothing known", intent.Intent{Vendor: intent.Generic}, "the manufacturer and model, the type of equipment (drive, PLC, motor, robot...) and any fault code or message shown?"},
		{"class known", intent.Intent{Vendor: intent.Generic, EquipmentClass: "motor"}, "the manufacturer and model and any fault code or message shown?"},
		{"everything known", intent.Intent{Vendor: intent.ABB, EquipmentClass: "vfd", FaultCodes: []string{"2310"}}, "what the equipment was doing when the problem started?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Clarification(Input{Intent: tt.in})
			if d.Specialist != ClarificationName {
				t.Errorf("Specialist = %s", d.Specialist)
			}
			if !strings.HasSuffix(d.Claims[0].Text, tt.want) {
				t.Errorf("text = %q, want suffix %q", d.Claims[0].Text, tt.want)
			}
		})
	}
}

func TestAtomSentence_TruncatesOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", 276) + "°C limit exceeded on heatsink sensor"
	got := atomSentence(models.KnowledgeAtom{Body: body})
	if !utf8.ValidString(got) {
		t.Fatalf("truncated sentence is not valid UTF-8: %q", got[len(got)-8:])
	}
	if !strings.HasSuffix(got, "...") || len(got) > maxSentence {
		t.Errorf("len = %d suffix %q, want at most %d bytes ending in ...", len(got), got[len(got)-4:], maxSentence)
	}
	if strings.Contains(got, "°") {
		t.Errorf("partial rune kept: %q", got[len(got)-8:])
	}
}
