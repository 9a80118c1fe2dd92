package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/zulandar/signalbox/internal/cases"
	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/coverage"
	"github.com/zulandar/signalbox/internal/embed"
	"github.com/zulandar/signalbox/internal/enhance"
	"github.com/zulandar/signalbox/internal/enrichment"
	"github.com/zulandar/signalbox/internal/intent"
	"github.com/zulandar/signalbox/internal/knowledge"
	"github.com/zulandar/signalbox/internal/logging"
	"github.com/zulandar/signalbox/internal/metrics"
	"github.com/zulandar/signalbox/internal/orchestration"
	"github.com/zulandar/signalbox/internal/specialist"
	"github.com/zulandar/signalbox/internal/storage"
	"github.com/zulandar/signalbox/internal/trace"
)

const (
	// recentTraces is the in-memory trace window behind the API and digest.
	recentTraces = 256
	// drainTimeout bounds delivery of queued enrichment requests on exit.
	drainTimeout = 5 * time.Second
)

// app holds the collaborators shared by the commands.
type app struct {
	cfg      *config.Manager
	log      logging.Logger
	metrics  *metrics.Metrics
	pool     *storage.Pool
	atoms    *knowledge.Store
	cases    *cases.Store
	embedder embed.Embedder

	// Set by buildEngine.
	queue  *enrichment.Queue
	memory *trace.MemorySink
	engine *orchestration.Engine
}

// openApp loads configuration and opens the storage pool. Logs go to logOut.
func openApp(configPath string, logOut io.Writer) (*app, error) {
	mgr, err := config.NewManager(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := mgr.Current()

	log := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		JSON:   cfg.Logging.JSON,
		Output: logOut,
	})
	m := metrics.New()

	pool, err := storage.Open(cfg.Storage, log, m)
	if err != nil {
		return nil, err
	}
	atoms, err := knowledge.NewStore(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	caseStore, err := cases.NewStore(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	embedder, err := embed.New(cfg.Embedding)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &app{
		cfg:      mgr,
		log:      log,
		metrics:  m,
		pool:     pool,
		atoms:    atoms,
		cases:    caseStore,
		embedder: embedder,
	}, nil
}

// buildEngine wires the request pipeline on top of the storage layer.
func (a *app) buildEngine() error {
	cfg := a.cfg.Current()

	lex := intent.DefaultLexicon()
	if cfg.LexiconPath != "" {
		loaded, err := intent.LoadLexicon(cfg.LexiconPath)
		if err != nil {
			return err
		}
		lex = loaded
	}
	classifier, err := intent.NewClassifier(lex)
	if err != nil {
		return err
	}

	estimator, err := coverage.NewEstimator(coverage.Options{
		Atoms:    a.atoms,
		Embedder: a.embedder,
		Logger:   a.log,
	})
	if err != nil {
		return err
	}
	enhancer, err := enhance.New(a.cases, a.log)
	if err != nil {
		return err
	}

	sinks := []enrichment.Sink{enrichment.NewStoreSink(a.pool)}
	if gh := cfg.Enrichment.GitHub; gh.Enabled() {
		ghSink, err := enrichment.NewGitHubSink(enrichment.GitHubOptions{
			Owner:  gh.Owner,
			Repo:   gh.Repo,
			Token:  gh.Token,
			Labels: gh.Labels,
		})
		if err != nil {
			return err
		}
		sinks = append(sinks, ghSink)
	}
	queue, err := enrichment.NewQueue(enrichment.Options{
		Size:    cfg.Enrichment.QueueSize,
		Sinks:   sinks,
		Logger:  a.log,
		Metrics: a.metrics,
	})
	if err != nil {
		return err
	}

	traceStore, err := trace.NewStoreSink(a.pool)
	if err != nil {
		return err
	}
	memory := trace.NewMemorySink(recentTraces)

	engine, err := orchestration.NewEngine(orchestration.Options{
		Config:     a.cfg,
		Classifier: classifier,
		Coverage:   estimator,
		Enhancer:   enhancer,
		Registry:   specialist.DefaultRegistry(),
		Enrichment: queue,
		Sink:       trace.MultiSink{memory, traceStore},
		Logger:     a.log,
		Metrics:    a.metrics,
	})
	if err != nil {
		return err
	}

	a.queue = queue
	a.memory = memory
	a.engine = engine
	return nil
}

// runEnrichment starts the enrichment worker and returns a stop function
// that halts it and delivers whatever is still queued.
func (a *app) runEnrichment(ctx context.Context, out io.Writer) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.queue.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
		a.flushEnrichment(out)
	}
}

// flushEnrichment delivers queued enrichment requests within drainTimeout.
func (a *app) flushEnrichment(out io.Writer) {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if n := a.queue.Drain(ctx); n > 0 {
		fmt.Fprintf(out, "Delivered %d queued enrichment requests\n", n)
	}
}

func (a *app) Close() error {
	return a.pool.Close()
}
