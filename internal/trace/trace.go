// Package trace records how each request was processed. Traces are for
// observability only and are never read back into routing.
package trace

import (
	"time"
)

// Stage names the timed steps of a run.
type Stage string

const (
	StageClassification Stage = "classification"
	StageCoverage       Stage = "coverage"
	StageRouting        Stage = "routing"
	StageEnhancement    Stage = "enhancement"
	StageDispatch       Stage = "dispatch"
	StageAssembly       Stage = "assembly"
)

// Flags recorded on traces.
const (
	FlagEnhancementTimeout     = "enhancement_timeout"
	FlagEnhancementUnavailable = "enhancement_unavailable"
	FlagEnhancementNoEmbedding = "enhancement_no_embedding"
	FlagUncitedClaim           = "uncited_claim_replaced"
	FlagEnrichmentDropped      = "enrichment_dropped"
	FlagAmbiguous              = "classification_ambiguous"
	FlagStorageUnavailable     = "storage_unavailable"
)

// StageTiming is one completed stage.
type StageTiming struct {
	Stage    Stage         `json:"stage"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
}

// AgentTrace is the structured record of one request.
type AgentTrace struct {
	Seq                uint64        `json:"seq,omitempty"` // set by MemorySink
	RequestID          string        `json:"request_id"`
	Channel            string        `json:"channel,omitempty"`
	Route              string        `json:"route,omitempty"`
	Vendor             string        `json:"vendor,omitempty"`
	Confidence         float64       `json:"confidence"`
	Coverage           string        `json:"coverage,omitempty"`
	Specialists        []string      `json:"specialists,omitempty"`
	EnrichmentUsed     bool          `json:"enrichment_used"`
	EnrichmentDegraded bool          `json:"enrichment_degraded"`
	EnrichmentQueued   bool          `json:"enrichment_queued"`
	Substitutions      int           `json:"substitutions"`
	Flags              []string      `json:"flags,omitempty"`
	Stages             []StageTiming `json:"stages"`
	Cancelled          bool          `json:"cancelled"`
	Success            bool          `json:"success"`
	Error              string        `json:"error,omitempty"`
	StartedAt          time.Time     `json:"started_at"`
	Total              time.Duration `json:"total"`
}

// HasFlag reports whether f was raised.
func (t *AgentTrace) HasFlag(f string) bool {
	for _, x := range t.Flags {
		if x == f {
			return true
		}
	}
	return false
}

// StageDuration returns the duration of stage s, if it ran.
func (t *AgentTrace) StageDuration(s Stage) (time.Duration, bool) {
	for _, st := range t.Stages {
		if st.Stage == s {
			return st.Duration, true
		}
	}
	return 0, false
}
