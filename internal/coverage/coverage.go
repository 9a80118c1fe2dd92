// Package coverage estimates how well the atom store covers an intent.
package coverage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/signalbox/internal/bounded"
	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/embed"
	"github.com/zulandar/signalbox/internal/intent"
	"github.com/zulandar/signalbox/internal/knowledge"
	"github.com/zulandar/signalbox/internal/logging"
)

// Degradation flags recorded on the trace.
const (
	FlagTimeout  = "coverage_timeout"
	FlagDegraded = "coverage_degraded"
)

// AtomQuerier is the atom store surface the estimator needs.
type AtomQuerier interface {
	QueryAtoms(ctx context.Context, q knowledge.Query) ([]knowledge.Match, error)
}

// Policy holds the coverage thresholds.
type Policy struct {
	HighWater     int
	MinSimilarity float64
	Timeout       time.Duration
}

// PolicyFrom extracts the coverage policy from a configuration snapshot.
func PolicyFrom(cfg config.RoutingConfig) Policy {
	return Policy{
		HighWater:     cfg.CoverageHighWater,
		MinSimilarity: cfg.MinSimilarity,
		Timeout:       cfg.CoverageTimeout(),
	}
}

// Bucket maps a matched-atom count to a coverage bucket.
func (p Policy) Bucket(count int) intent.Coverage {
	high := p.HighWater
	if high < 1 {
		high = 1
	}
	switch {
	case count >= high:
		return intent.CoverageStrong
	case count >= 1:
		return intent.CoverageThin
	default:
		return intent.CoverageNone
	}
}

// Result is the outcome of one estimate.
type Result struct {
	Intent    intent.Intent
	Matches   []knowledge.Match
	Embedding []float32
	Flags     []string
}

// Options configures an Estimator.
type Options struct {
	Atoms    AtomQuerier
	Embedder embed.Embedder // optional
	Logger   logging.Logger
}

// Estimator counts and ranks candidate atoms for an intent.
type Estimator struct {
	atoms    AtomQuerier
	embedder embed.Embedder
	log      logging.Logger
}

// NewEstimator validates opts and returns an Estimator.
func NewEstimator(opts Options) (*Estimator, error) {
	if opts.Atoms == nil {
		return nil, fmt.Errorf("coverage: atom store is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Estimator{atoms: opts.Atoms, embedder: opts.Embedder, log: opts.Logger}, nil
}

// Estimate returns in with its coverage bucket set. Embedding and query both
// run inside the policy timeout; when it elapses the intent is bucketed as
// none and flagged. A failed or missing embedder degrades to keyword ranking.
// Storage unavailability and caller cancellation are returned as errors.
func (e *Estimator) Estimate(ctx context.Context, in intent.Intent, text string, p Policy) (Result, error) {
	res, err := bounded.Call(ctx, p.Timeout, func(ctx context.Context) (Result, error) {
		return e.estimate(ctx, in, text, p)
	})
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		e.log.Warn("coverage query timed out", "request_id", in.RequestID, "timeout", p.Timeout)
		return Result{Intent: in.WithCoverage(intent.CoverageNone), Flags: []string{FlagTimeout}}, nil
	}
	return Result{}, err
}

func (e *Estimator) estimate(ctx context.Context, in intent.Intent, text string, p Policy) (Result, error) {
	var flags []string
	var emb []float32
	if e.embedder != nil {
		v, err := e.embedder.Embed(ctx, text)
		switch {
		case err == nil:
			emb = v
		case ctx.Err() != nil:
			return Result{}, ctx.Err()
		default:
			e.log.Warn("request embedding failed, using keyword coverage", "request_id", in.RequestID, "error", err)
		}
	}
	if len(emb) == 0 {
		flags = append(flags, FlagDegraded)
	}

	matches, err := e.atoms.QueryAtoms(ctx, knowledge.Query{
		Manufacturer:   string(in.Vendor),
		EquipmentClass: in.EquipmentClass,
		Embedding:      emb,
		MinSimilarity:  p.MinSimilarity,
		Terms:          in.Terms,
	})
	if err != nil {
		return Result{}, fmt.Errorf("coverage: %w", err)
	}
	return Result{
		Intent:    in.WithCoverage(p.Bucket(len(matches))),
		Matches:   matches,
		Embedding: emb,
		Flags:     flags,
	}, nil
}
