// Package orchestration runs one request through classification, coverage
// estimation, routing, enhancement, specialist dispatch and assembly.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/signalbox/internal/assemble"
	"github.com/zulandar/signalbox/internal/bounded"
	"github.com/zulandar/signalbox/internal/cases"
	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/coverage"
	"github.com/zulandar/signalbox/internal/enhance"
	"github.com/zulandar/signalbox/internal/enrichment"
	"github.com/zulandar/signalbox/internal/intent"
	"github.com/zulandar/signalbox/internal/logging"
	"github.com/zulandar/signalbox/internal/metrics"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/route"
	"github.com/zulandar/signalbox/internal/specialist"
	"github.com/zulandar/signalbox/internal/storage"
	"github.com/zulandar/signalbox/internal/trace"
)

// defaultTraceTimeout bounds how long a trace write may hold up the response.
const defaultTraceTimeout = 250 * time.Millisecond

// ConfigSource supplies the configuration snapshot for each request.
type ConfigSource interface {
	Current() *config.Config
}

// CoverageEstimator buckets an intent by atom coverage.
type CoverageEstimator interface {
	Estimate(ctx context.Context, in intent.Intent, text string, p coverage.Policy) (coverage.Result, error)
}

// CaseEnhancer finds similar resolved cases within a latency budget.
type CaseEnhancer interface {
	Enhance(ctx context.Context, embedding []float32, p enhance.Policy) enhance.Result
}

// Enricher accepts knowledge-gap handoffs without blocking.
type Enricher interface {
	RequestEnrichment(in intent.Intent, gap string) bool
}

// Options configures NewEngine.
type Options struct {
	Config     ConfigSource
	Classifier *intent.Classifier
	Coverage   CoverageEstimator
	Enhancer   CaseEnhancer // optional
	Registry   *specialist.Registry
	Enrichment Enricher   // optional
	Sink       trace.Sink // optional
	Logger     logging.Logger
	Metrics    *metrics.Metrics

	TraceTimeout time.Duration // default 250ms
}

// Engine handles requests. It holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	cfg        ConfigSource
	classifier *intent.Classifier
	coverage   CoverageEstimator
	enhancer   CaseEnhancer
	registry   *specialist.Registry
	enrichment Enricher
	sink       trace.Sink
	traceLimit time.Duration
	log        logging.Logger
	metrics    *metrics.Metrics
}

// NewEngine validates opts and returns an Engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("orchestration: config source is required")
	}
	if opts.Coverage == nil {
		return nil, fmt.Errorf("orchestration: coverage estimator is required")
	}
	if opts.Classifier == nil {
		c, err := intent.NewClassifier(nil)
		if err != nil {
			return nil, fmt.Errorf("orchestration: default classifier: %w", err)
		}
		opts.Classifier = c
	}
	if opts.Registry == nil {
		opts.Registry = specialist.DefaultRegistry()
	}
	if opts.Sink == nil {
		opts.Sink = trace.NopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.TraceTimeout <= 0 {
		opts.TraceTimeout = defaultTraceTimeout
	}
	return &Engine{
		cfg:        opts.Config,
		classifier: opts.Classifier,
		coverage:   opts.Coverage,
		enhancer:   opts.Enhancer,
		registry:   opts.Registry,
		enrichment: opts.Enrichment,
		sink:       opts.Sink,
		traceLimit: opts.TraceTimeout,
		log:        opts.Logger,
		metrics:    opts.Metrics,
	}, nil
}

// Handle answers req. Only ErrEmptyPayload, storage.ErrStorageUnavailable
// and context errors are returned; every other failure degrades into the
// response and is visible on the trace. The trace is nil when nothing ran.
func (e *Engine) Handle(ctx context.Context, req intent.Request) (*assemble.Response, *trace.AgentTrace, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	cfg := e.cfg.Current()
	log := e.log.With("request_id", req.ID)
	b := trace.NewBuilder(req.ID, req.Channel)
	started := time.Now()

	// Classification.
	done := b.Start(trace.StageClassification)
	in := e.classifier.Classify(req)
	e.metrics.ObserveStage(string(trace.StageClassification), done())
	b.Update(func(t *trace.AgentTrace) {
		t.Vendor = string(in.Vendor)
		t.Confidence = in.Confidence
	})
	if in.Ambiguous {
		b.Flag(trace.FlagAmbiguous)
	}

	// Coverage. Below the confidence floor the route is D regardless of
	// coverage, so the query is skipped.
	routePolicy := route.PolicyFrom(cfg.Routing)
	var est coverage.Result
	if in.Confidence >= routePolicy.MinConfidence {
		done = b.Start(trace.StageCoverage)
		res, err := e.coverage.Estimate(ctx, in, req.Text(), coverage.PolicyFrom(cfg.Routing))
		e.metrics.ObserveStage(string(trace.StageCoverage), done())
		if err != nil {
			if ctx.Err() != nil {
				return e.cancelled(ctx, b, log)
			}
			return e.fail(ctx, b, err, log)
		}
		est = res
		in = res.Intent
		b.Flag(res.Flags...)
		b.Update(func(t *trace.AgentTrace) { t.Coverage = string(in.Coverage) })
	}

	// Routing.
	done = b.Start(trace.StageRouting)
	r := route.Decide(in, routePolicy)
	e.metrics.ObserveStage(string(trace.StageRouting), done())
	b.Update(func(t *trace.AgentTrace) { t.Route = r.String() })
	log.Debug("routed request", "route", r, "vendor", in.Vendor, "confidence", in.Confidence, "coverage", in.Coverage)

	// Enhancement.
	var enh enhance.Result
	ep := enhance.PolicyFrom(cfg.Enhancer)
	if r.Enhanced() && ep.Enabled && e.enhancer != nil {
		done = b.Start(trace.StageEnhancement)
		enh = e.enhancer.Enhance(ctx, est.Embedding, ep)
		e.metrics.ObserveStage(string(trace.StageEnhancement), done())
		if ctx.Err() != nil {
			return e.cancelled(ctx, b, log)
		}
		if enh.Degraded {
			b.Flag(enhancementFlag(enh.Reason))
		}
		b.Update(func(t *trace.AgentTrace) {
			t.EnrichmentUsed = len(enh.Cases) > 0
			t.EnrichmentDegraded = enh.Degraded
		})
	}

	// Dispatch.
	atoms := matchedAtoms(est)
	done = b.Start(trace.StageDispatch)
	drafts := e.dispatch(r, specialist.Input{Intent: in, Text: req.Text(), Atoms: atoms, Cases: enhCases(enh)})
	e.metrics.ObserveStage(string(trace.StageDispatch), done())
	b.Update(func(t *trace.AgentTrace) {
		for _, d := range drafts {
			t.Specialists = append(t.Specialists, d.Specialist)
		}
	})

	if r == route.SpecialistWithEnrichment && e.enrichment != nil {
		queued := e.enrichment.RequestEnrichment(in, enrichment.Gap(in, len(atoms)))
		if !queued {
			b.Flag(trace.FlagEnrichmentDropped)
		}
		b.Update(func(t *trace.AgentTrace) { t.EnrichmentQueued = queued })
	}

	// Assembly.
	done = b.Start(trace.StageAssembly)
	resp, replaced := assemble.Assemble(assemble.Input{
		RequestID:   req.ID,
		Route:       r,
		Drafts:      drafts,
		Atoms:       atoms,
		Enhancement: enh,
		Started:     started,
	})
	e.metrics.ObserveStage(string(trace.StageAssembly), done())
	if replaced > 0 {
		b.Flag(trace.FlagUncitedClaim)
		e.metrics.ClaimsReplaced(replaced)
		log.Warn("replaced uncited claims", "count", replaced)
	}
	b.Update(func(t *trace.AgentTrace) { t.Substitutions = replaced })

	t := b.Finish(nil, false)
	e.record(ctx, t, "ok")
	return resp, t, nil
}

func (e *Engine) dispatch(r route.Route, in specialist.Input) []specialist.Draft {
	switch r {
	case route.DirectSpecialist, route.SpecialistWithEnrichment:
		return e.registry.Dispatch(in)
	case route.ResearchFallback:
		var drafts []specialist.Draft
		if d, ok := e.registry.SafetyDraft(in); ok {
			drafts = append(drafts, d)
		}
		return append(drafts, specialist.ResearchFallback(in))
	default:
		return []specialist.Draft{specialist.Clarification(in)}
	}
}

// cancelled finishes a run abandoned by its caller. A run with no
// completed stage leaves no trace.
func (e *Engine) cancelled(ctx context.Context, b *trace.Builder, log logging.Logger) (*assemble.Response, *trace.AgentTrace, error) {
	err := ctx.Err()
	if b.Completed() == 0 {
		return nil, nil, err
	}
	log.Info("request cancelled", "stages", b.Completed())
	t := b.Finish(err, true)
	e.record(ctx, t, "cancelled")
	return nil, t, err
}

func (e *Engine) fail(ctx context.Context, b *trace.Builder, err error, log logging.Logger) (*assemble.Response, *trace.AgentTrace, error) {
	outcome := "error"
	if errors.Is(err, storage.ErrStorageUnavailable) {
		b.Flag(trace.FlagStorageUnavailable)
		outcome = "storage_unavailable"
	}
	log.Error("request failed", "error", err)
	t := b.Finish(err, false)
	e.record(ctx, t, outcome)
	return nil, t, fmt.Errorf("orchestration: handle %s: %w", t.RequestID, err)
}

// record persists the trace even when the caller's context is already done.
// A sink slower than traceLimit is abandoned and the response goes out.
func (e *Engine) record(ctx context.Context, t *trace.AgentTrace, outcome string) {
	e.metrics.ObserveRequest(t.Route, outcome)
	for _, f := range t.Flags {
		e.metrics.Degraded(f)
	}
	_, err := bounded.Call(context.WithoutCancel(ctx), e.traceLimit, func(ctx context.Context) (struct{}, error) {
		trace.SafeRecord(ctx, e.sink, t, e.log)
		return struct{}{}, nil
	})
	if err != nil {
		e.log.Warn("trace write abandoned", "request_id", t.RequestID, "error", err)
	}
}

func enhancementFlag(reason string) string {
	switch reason {
	case enhance.ReasonTimeout:
		return trace.FlagEnhancementTimeout
	case enhance.ReasonNoEmbedding:
		return trace.FlagEnhancementNoEmbedding
	default:
		return trace.FlagEnhancementUnavailable
	}
}

func matchedAtoms(est coverage.Result) []models.KnowledgeAtom {
	if len(est.Matches) == 0 {
		return nil
	}
	out := make([]models.KnowledgeAtom, 0, len(est.Matches))
	for _, m := range est.Matches {
		out = append(out, m.Atom)
	}
	return out
}

func enhCases(r enhance.Result) []cases.Neighbor {
	if r.Degraded {
		return nil
	}
	return r.Cases
}
