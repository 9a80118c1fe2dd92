// Package enhance adds similar resolved cases to routes A and B under a hard
// latency budget. It never fails a request: every problem degrades to an
// empty result.
package enhance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/signalbox/internal/bounded"
	"github.com/zulandar/signalbox/internal/cases"
	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/logging"
)

// Degradation reasons.
const (
	ReasonTimeout     = "timeout"
	ReasonUnavailable = "unavailable"
	ReasonNoEmbedding = "no_embedding"
	ReasonCancelled   = "cancelled"
)

// CaseQuerier is the case store surface the enhancer needs.
type CaseQuerier interface {
	QueryNearestCases(ctx context.Context, embedding []float32, k int) ([]cases.Neighbor, error)
}

// Policy holds the enhancement budget.
type Policy struct {
	Enabled bool
	Timeout time.Duration
	TopK    int
}

// PolicyFrom extracts the enhancement policy from a configuration snapshot.
func PolicyFrom(cfg config.EnhancerConfig) Policy {
	return Policy{Enabled: cfg.IsEnabled(), Timeout: cfg.Timeout(), TopK: cfg.TopK}
}

// Result is the enhancement outcome. Degraded results carry no cases.
type Result struct {
	Cases    []cases.Neighbor
	Degraded bool
	Reason   string
	Elapsed  time.Duration
}

// Notes renders the cases as context annotations for the response.
func (r Result) Notes() []string {
	notes := make([]string, 0, len(r.Cases))
	for _, n := range r.Cases {
		c := n.Case
		note := fmt.Sprintf("Similar resolved case: %s", c.Problem)
		if c.Resolution != "" {
			note += " Resolution: " + c.Resolution
		}
		notes = append(notes, note)
	}
	return notes
}

// Enhancer looks up nearest resolved cases.
type Enhancer struct {
	cases CaseQuerier
	log   logging.Logger
}

// New returns an Enhancer over store.
func New(store CaseQuerier, log logging.Logger) (*Enhancer, error) {
	if store == nil {
		return nil, fmt.Errorf("enhance: case store is required")
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Enhancer{cases: store, log: log}, nil
}

// Enhance returns up to p.TopK nearest cases. It returns within p.Timeout
// plus scheduling overhead even if the store never answers.
func (e *Enhancer) Enhance(ctx context.Context, embedding []float32, p Policy) Result {
	start := time.Now()
	if len(embedding) == 0 {
		return Result{Degraded: true, Reason: ReasonNoEmbedding}
	}
	found, err := bounded.Call(ctx, p.Timeout, func(ctx context.Context) ([]cases.Neighbor, error) {
		return e.cases.QueryNearestCases(ctx, embedding, p.TopK)
	})
	elapsed := time.Since(start)
	if err == nil {
		return Result{Cases: found, Elapsed: elapsed}
	}

	reason := ReasonUnavailable
	switch {
	case ctx.Err() != nil:
		reason = ReasonCancelled
	case errors.Is(err, context.DeadlineExceeded):
		reason = ReasonTimeout
	}
	e.log.Warn("case enhancement degraded", "reason", reason, "elapsed", elapsed, "error", err)
	return Result{Degraded: true, Reason: reason, Elapsed: elapsed}
}
