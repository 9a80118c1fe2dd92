// Package assemble merges specialist drafts and enhancement context into the
// final response, enforcing that every factual claim cites a matched atom.
package assemble

import (
	"strings"
	"time"

	"github.com/zulandar/signalbox/internal/enhance"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/route"
	"github.com/zulandar/signalbox/internal/specialist"
)

// SafeSentence replaces any factual claim without a valid atom citation.
const SafeSentence = "One point could not be verified against the reference material and was left out; confirm it in the manufacturer's documentation."

// Citation kinds.
const (
	KindAtom = "atom"
	KindCase = "case"
)

// Citation references an atom that supports the answer, or a similar case
// offered as context.
type Citation struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Response is the answer returned to the caller.
type Response struct {
	RequestID  string        `json:"request_id"`
	Answer     string        `json:"answer"`
	Citations  []Citation    `json:"citations"`
	FollowUps  []string      `json:"follow_ups,omitempty"`
	Notes      []string      `json:"notes,omitempty"`
	Route      route.Route   `json:"route"`
	Unverified bool          `json:"unverified"`
	Latency    time.Duration `json:"latency"`
}

// AtomIDs returns the atom citations in order.
func (r *Response) AtomIDs() []string {
	var ids []string
	for _, c := range r.Citations {
		if c.Kind == KindAtom {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Input is everything the assembler merges.
type Input struct {
	RequestID   string
	Route       route.Route
	Drafts      []specialist.Draft
	Atoms       []models.KnowledgeAtom
	Enhancement enhance.Result
	Started     time.Time
}

// Assemble builds the response and returns how many claims were replaced.
// Caveats from every draft come first, in draft order.
func Assemble(in Input) (*Response, int) {
	valid := make(map[string]bool, len(in.Atoms))
	for _, a := range in.Atoms {
		valid[a.ID] = true
	}

	resp := &Response{RequestID: in.RequestID, Route: in.Route}
	var caveats, sentences []string
	cited := make(map[string]bool)
	seenFollowUp := make(map[string]bool)
	replaced := 0
	safeAdded := false

	for _, d := range in.Drafts {
		caveats = append(caveats, d.Caveats...)
		if d.Unverified {
			resp.Unverified = true
		}
		for _, c := range d.Claims {
			ok := citesOnly(c.AtomIDs, valid)
			if c.Factual && !ok {
				replaced++
				if !safeAdded {
					sentences = append(sentences, SafeSentence)
					safeAdded = true
				}
				continue
			}
			sentences = append(sentences, strings.TrimSpace(c.Text))
			if !ok {
				continue
			}
			for _, id := range c.AtomIDs {
				if !cited[id] {
					cited[id] = true
					resp.Citations = append(resp.Citations, Citation{Kind: KindAtom, ID: id})
				}
			}
		}
		for _, f := range d.FollowUps {
			if !seenFollowUp[f] {
				seenFollowUp[f] = true
				resp.FollowUps = append(resp.FollowUps, f)
			}
		}
	}

	for _, n := range in.Enhancement.Cases {
		resp.Citations = append(resp.Citations, Citation{Kind: KindCase, ID: n.Case.ID})
	}
	resp.Notes = in.Enhancement.Notes()

	var parts []string
	if len(caveats) > 0 {
		parts = append(parts, strings.Join(caveats, " "))
	}
	if len(sentences) > 0 {
		parts = append(parts, strings.Join(sentences, " "))
	}
	resp.Answer = strings.Join(parts, "\n\n")
	if resp.Citations == nil {
		resp.Citations = []Citation{}
	}
	if !in.Started.IsZero() {
		resp.Latency = time.Since(in.Started)
	}
	return resp, replaced
}

// citesOnly reports whether ids is non-empty and every id is a matched atom.
func citesOnly(ids []string, valid map[string]bool) bool {
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if !valid[id] {
			return false
		}
	}
	return true
}
