package assemble

import (
	"strings"
	"testing"
	"time"

	"github.com/zulandar/signalbox/internal/cases"
	"github.com/zulandar/signalbox/internal/enhance"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/route"
	"github.com/zulandar/signalbox/internal/specialist"
)

func atoms(ids ...string) []models.KnowledgeAtom {
	out := make([]models.KnowledgeAtom, len(ids))
	for i, id := range ids {
		out[i] = models.KnowledgeAtom{ID: id}
	}
	return out
}

func TestAssemble_CitedClaims(t *testing.T) {
	resp, replaced := Assemble(Input{
		RequestID: "r1",
		Route:     route.DirectSpecialist,
		Atoms:     atoms("a1", "a2", "a3"),
		Drafts: []specialist.Draft{{
			Specialist: "SIEMENS",
			Claims: []specialist.Claim{
				{Text: "Intro."},
				{Text: "Fact one.", AtomIDs: []string{"a1"}, Factual: true},
				{Text: "Fact two.", AtomIDs: []string{"a2", "a1"}, Factual: true},
				{Text: "Fact three.", AtomIDs: []string{"a3"}, Factual: true},
			},
			FollowUps: []string{"Read the diagnostic buffer."},
		}},
		Started: time.Now(),
	})
	if replaced != 0 {
		t.Errorf("replaced = %d, want 0", replaced)
	}
	if strings.Join(resp.AtomIDs(), ",") != "a1,a2,a3" {
		t.Errorf("citations = %v, want a1,a2,a3", resp.AtomIDs())
	}
	if resp.Answer != "Intro. Fact one. Fact two. Fact three." {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if resp.Route != route.DirectSpecialist || resp.RequestID != "r1" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Latency <= 0 {
		t.Error("Latency should be set when Started is provided")
	}
}

func TestAssemble_ReplacesUncitedClaims(t *testing.T) {
	tests := []struct {
		name  string
		claim specialist.Claim
	}{
		{"no citation", specialist.Claim{Text: "Made up.", Factual: true}},
		{"unmatched atom", specialist.Claim{Text: "Wrong atom.", AtomIDs: []string{"zzz"}, Factual: true}},
		{"partially unmatched", specialist.Claim{Text: "Half right.", AtomIDs: []string{"a1", "zzz"}, Factual: true}},
		{"case cited as atom", specialist.Claim{Text: "From a case.", AtomIDs: []string{"c1"}, Factual: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, replaced := Assemble(Input{
				Atoms: atoms("a1"),
				Drafts: []specialist.Draft{{Claims: []specialist.Claim{
					{Text: "Good.", AtomIDs: []string{"a1"}, Factual: true},
					tt.claim,
				}}},
				Enhancement: enhance.Result{Cases: []cases.Neighbor{{Case: models.MaintenanceCase{ID: "c1", Problem: "p"}}}},
			})
			if replaced != 1 {
				t.Errorf("replaced = %d, want 1", replaced)
			}
			if strings.Contains(resp.Answer, tt.claim.Text) {
				t.Errorf("uncited claim leaked into answer: %q", resp.Answer)
			}
			if !strings.Contains(resp.Answer, SafeSentence) {
				t.Errorf("answer missing safe sentence: %q", resp.Answer)
			}
			for _, id := range resp.AtomIDs() {
				if id != "a1" {
					t.Errorf("unexpected atom citation %q", id)
				}
			}
		})
	}
}

func TestAssemble_SafeSentenceOnce(t *testing.T) {
	resp, replaced := Assemble(Input{Drafts: []specialist.Draft{{Claims: []specialist.Claim{
		{Text: "x", Factual: true},
		{Text: "y", Factual: true},
	}}}})
	if replaced != 2 {
		t.Errorf("replaced = %d, want 2", replaced)
	}
	if strings.Count(resp.Answer, SafeSentence) != 1 {
		t.Errorf("answer = %q, want one safe sentence", resp.Answer)
	}
}

func TestAssemble_SafetyCaveatsFirst(t *testing.T) {
	resp, _ := Assemble(Input{
		Atoms: atoms("a1"),
		Drafts: []specialist.Draft{
			{Specialist: "SAFETY", Caveats: []string{"Lock out first."}, FollowUps: []string{"Permit."}},
			{Specialist: "ABB", Claims: []specialist.Claim{{Text: "Fact.", AtomIDs: []string{"a1"}, Factual: true}}, FollowUps: []string{"Permit.", "Event log."}},
		},
	})
	if !strings.HasPrefix(resp.Answer, "Lock out first.\n\n") {
		t.Errorf("Answer = %q, want caveat first", resp.Answer)
	}
	if strings.Join(resp.FollowUps, "|") != "Permit.|Event log." {
		t.Errorf("FollowUps = %v, want deduplicated", resp.FollowUps)
	}
}

func TestAssemble_CasesAreContext(t *testing.T) {
	resp, _ := Assemble(Input{
		Atoms:  atoms("a1"),
		Drafts: []specialist.Draft{{Claims: []specialist.Claim{{Text: "Fact.", AtomIDs: []string{"a1"}, Factual: true}}}},
		Enhancement: enhance.Result{Cases: []cases.Neighbor{
			{Case: models.MaintenanceCase{ID: "c9", Problem: "Trip on decel", Resolution: "Enabled braking chopper."}},
		}},
	})
	last := resp.Citations[len(resp.Citations)-1]
	if last.Kind != KindCase || last.ID != "c9" {
		t.Errorf("last citation = %+v, want case c9", last)
	}
	if len(resp.AtomIDs()) != 1 {
		t.Errorf("atom citations = %v", resp.AtomIDs())
	}
	if len(resp.Notes) != 1 || !strings.Contains(resp.Notes[0], "braking chopper") {
		t.Errorf("Notes = %v", resp.Notes)
	}
}

func TestAssemble_UnverifiedFallback(t *testing.T) {
	d := specialist.ResearchFallback(specialist.Input{})
	resp, replaced := Assemble(Input{Route: route.ResearchFallback, Drafts: []specialist.Draft{d}})
	if !resp.Unverified {
		t.Error("research fallback response must be unverified")
	}
	if replaced != 0 {
		t.Errorf("replaced = %d, want 0", replaced)
	}
	if len(resp.Citations) != 0 || resp.Citations == nil {
		t.Errorf("Citations = %#v, want empty non-nil", resp.Citations)
	}
}
