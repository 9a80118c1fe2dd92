// Package specialist drafts answers from matched atoms. Each vendor has its
// own specialist; GENERIC handles everything else and SAFETY is layered on
// top for safety-critical requests.
package specialist

import (
	"github.com/zulandar/signalbox/internal/cases"
	"github.com/zulandar/signalbox/internal/intent"
	"github.com/zulandar/signalbox/internal/models"
)

// Input is everything a specialist sees. Cases are context only and must
// never be cited.
type Input struct {
	Intent intent.Intent
	Text   string
	Atoms  []models.KnowledgeAtom
	Cases  []cases.Neighbor
}

// Claim is one sentence of a draft. Factual claims must cite at least one
// matched atom id.
type Claim struct {
	Text    string   `json:"text"`
	AtomIDs []string `json:"atom_ids,omitempty"`
	Factual bool     `json:"factual"`
}

// Draft is a specialist's proposed answer before assembly.
type Draft struct {
	Specialist string   `json:"specialist"`
	Claims     []Claim  `json:"claims"`
	Caveats    []string `json:"caveats,omitempty"`
	FollowUps  []string `json:"follow_ups,omitempty"`
	Unverified bool     `json:"unverified,omitempty"`
}

// Specialist drafts an answer for one capability.
type Specialist interface {
	Name() string
	Answer(in Input) Draft
}
