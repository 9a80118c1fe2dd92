// Package route decides how a classified request is answered.
package route

import (
	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/intent"
)

// Route is the answering strategy chosen for a request.
type Route string

const (
	// DirectSpecialist answers from strong atom coverage.
	DirectSpecialist Route = "A"
	// SpecialistWithEnrichment answers from thin coverage and asks the
	// ingestion pipeline to fill the gap.
	SpecialistWithEnrichment Route = "B"
	// ResearchFallback answers without atom support, marked unverified.
	ResearchFallback Route = "C"
	// Clarification asks the user for more detail.
	Clarification Route = "D"
)

func (r Route) String() string { return string(r) }

// Description returns a short human label.
func (r Route) Description() string {
	switch r {
	case DirectSpecialist:
		return "direct specialist"
	case SpecialistWithEnrichment:
		return "specialist plus enrichment"
	case ResearchFallback:
		return "research fallback"
	case Clarification:
		return "clarification request"
	default:
		return "unknown"
	}
}

// Enhanced reports whether similar-case enhancement applies to r.
func (r Route) Enhanced() bool {
	return r == DirectSpecialist || r == SpecialistWithEnrichment
}

// Policy holds the decision thresholds.
type Policy struct {
	MinConfidence float64
}

// PolicyFrom extracts the decision policy from a configuration snapshot.
func PolicyFrom(cfg config.RoutingConfig) Policy {
	return Policy{MinConfidence: cfg.MinConfidence}
}

// Decide maps an intent to exactly one route. It is pure and total.
func Decide(in intent.Intent, p Policy) Route {
	if in.Confidence < p.MinConfidence {
		return Clarification
	}
	switch in.Coverage {
	case intent.CoverageStrong:
		return DirectSpecialist
	case intent.CoverageThin:
		return SpecialistWithEnrichment
	default:
		return ResearchFallback
	}
}
