// Package storage runs database operations against an ordered set of
// interchangeable providers, failing over when the preferred one breaks.
package storage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zulandar/signalbox/internal/logging"
	"github.com/zulandar/signalbox/internal/metrics"
	"gorm.io/gorm"
)

// ProviderSpec describes one storage backend handed to New. Either DB or
// Dial must be set. When DB is nil the pool dials at construction and again
// on every probe until a connection succeeds.
type ProviderSpec struct {
	Name string
	DB   *gorm.DB
	Dial func() (*gorm.DB, error)
}

// Options configures a Pool.
type Options struct {
	Providers    []ProviderSpec
	ProbeTimeout time.Duration // default 1s
	Logger       logging.Logger
	Metrics      *metrics.Metrics
}

// ProviderStatus is a point-in-time view of one provider.
type ProviderStatus struct {
	Name       string    `json:"name"`
	Health     string    `json:"health"`
	Priority   int       `json:"priority"`
	LastError  string    `json:"last_error,omitempty"`
	LastChange time.Time `json:"last_change"`
}

type provider struct {
	name  string
	state atomic.Int32
	db    atomic.Pointer[gorm.DB]
	dial  func() (*gorm.DB, error)

	mu         sync.Mutex // serialises state transitions
	lastErr    string
	lastChange time.Time
}

func (p *provider) health() Health {
	return Health(p.state.Load())
}

// Pool selects the first healthy provider for each operation.
type Pool struct {
	providers    map[string]*provider
	order        atomic.Pointer[[]*provider]
	probeTimeout time.Duration
	log          logging.Logger
	metrics      *metrics.Metrics
}

// New builds a Pool. Providers that cannot be dialled start unhealthy and
// are retried by the health loop.
func New(opts Options) (*Pool, error) {
	if len(opts.Providers) == 0 {
		return nil, fmt.Errorf("storage: at least one provider is required")
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	p := &Pool{
		providers:    make(map[string]*provider, len(opts.Providers)),
		probeTimeout: opts.ProbeTimeout,
		log:          opts.Logger,
		metrics:      opts.Metrics,
	}
	order := make([]*provider, 0, len(opts.Providers))
	for i, spec := range opts.Providers {
		if spec.Name == "" {
			return nil, fmt.Errorf("storage: providers[%d].name is required", i)
		}
		if spec.DB == nil && spec.Dial == nil {
			return nil, fmt.Errorf("storage: provider %q needs a DB or a Dial func", spec.Name)
		}
		if _, dup := p.providers[spec.Name]; dup {
			return nil, fmt.Errorf("storage: provider %q is duplicated", spec.Name)
		}
		prov := &provider{name: spec.Name, dial: spec.Dial, lastChange: time.Now()}
		if spec.DB != nil {
			prov.db.Store(spec.DB)
		} else if db, err := spec.Dial(); err != nil {
			prov.state.Store(int32(Unhealthy))
			prov.lastErr = err.Error()
			p.log.Warn("storage provider unavailable at startup", "provider", spec.Name, "error", err)
		} else {
			prov.db.Store(db)
		}
		p.metrics.ProviderState(prov.name, int(prov.health()))
		p.providers[spec.Name] = prov
		order = append(order, prov)
	}
	p.order.Store(&order)
	return p, nil
}

// Do runs fn on the first healthy provider. If the provider fails, it is
// marked unhealthy and fn is retried once on the next healthy provider.
// Logical errors are returned as-is without failover.
func (p *Pool) Do(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var lastErr error
	attempts := 0
	for _, prov := range *p.order.Load() {
		if prov.health() != Healthy {
			continue
		}
		db := prov.db.Load()
		if db == nil {
			continue
		}
		if attempts > 0 {
			p.metrics.Failover()
			p.log.Warn("storage failing over", "provider", prov.name, "cause", lastErr)
		}
		err := fn(db.WithContext(ctx))
		if err == nil {
			return nil
		}
		if !isProviderFailure(ctx, err) {
			return err
		}
		p.observe(prov, err)
		lastErr = err
		attempts++
		if attempts == 2 {
			break
		}
	}
	if lastErr != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, lastErr)
	}
	return ErrStorageUnavailable
}

// Health returns the current state of a provider.
func (p *Pool) Health(name string) (Health, bool) {
	prov, ok := p.providers[name]
	if !ok {
		return Unhealthy, false
	}
	return prov.health(), true
}

// Status returns every provider in priority order.
func (p *Pool) Status() []ProviderStatus {
	order := *p.order.Load()
	out := make([]ProviderStatus, 0, len(order))
	for i, prov := range order {
		prov.mu.Lock()
		out = append(out, ProviderStatus{
			Name:       prov.name,
			Health:     prov.health().String(),
			Priority:   i,
			LastError:  prov.lastErr,
			LastChange: prov.lastChange,
		})
		prov.mu.Unlock()
	}
	return out
}

// SetOrder changes provider priority. Named providers come first in the
// given order; unnamed ones keep their relative order after them.
func (p *Pool) SetOrder(names []string) error {
	seen := make(map[string]bool, len(names))
	order := make([]*provider, 0, len(p.providers))
	for _, name := range names {
		prov, ok := p.providers[name]
		if !ok {
			return fmt.Errorf("storage: unknown provider %q", name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		order = append(order, prov)
	}
	for _, prov := range *p.order.Load() {
		if !seen[prov.name] {
			order = append(order, prov)
		}
	}
	p.order.Store(&order)
	return nil
}

// CheckNow probes every provider once, concurrently, and applies the results.
func (p *Pool) CheckNow(ctx context.Context) {
	order := *p.order.Load()
	var wg sync.WaitGroup
	for _, prov := range order {
		wg.Add(1)
		go func(prov *provider) {
			defer wg.Done()
			p.observe(prov, p.probe(ctx, prov))
		}(prov)
	}
	wg.Wait()
}

// Run probes providers every interval until ctx is cancelled.
func (p *Pool) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("storage: health interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.CheckNow(ctx)
		}
	}
}

// Each runs fn on every provider that currently holds a connection,
// regardless of health. Used for schema migration and seeding.
func (p *Pool) Each(fn func(name string, db *gorm.DB) error) error {
	for _, prov := range *p.order.Load() {
		db := prov.db.Load()
		if db == nil {
			continue
		}
		if err := fn(prov.name, db); err != nil {
			return fmt.Errorf("storage: provider %s: %w", prov.name, err)
		}
	}
	return nil
}

// Close closes every provider connection.
func (p *Pool) Close() error {
	var firstErr error
	for _, prov := range *p.order.Load() {
		db := prov.db.Swap(nil)
		if db == nil {
			continue
		}
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Close()
		}
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("storage: close %s: %w", prov.name, err)
		}
	}
	return firstErr
}

func (p *Pool) probe(ctx context.Context, prov *provider) error {
	ctx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	db := prov.db.Load()
	if db == nil {
		if prov.dial == nil {
			return fmt.Errorf("storage: provider %s has no connection", prov.name)
		}
		fresh, err := prov.dial()
		if err != nil {
			return err
		}
		prov.db.Store(fresh)
		db = fresh
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		if prov.dial != nil {
			// Drop the broken handle so the next probe redials.
			if prov.db.CompareAndSwap(db, nil) {
				_ = sqlDB.Close()
			}
		}
		return err
	}
	return nil
}

// observe applies one health observation (err == nil means success).
func (p *Pool) observe(prov *provider, err error) {
	prov.mu.Lock()
	defer prov.mu.Unlock()

	cur := prov.health()
	nxt := next(cur, err == nil)
	if err != nil {
		prov.lastErr = err.Error()
		p.metrics.ProviderFailure(prov.name)
	}
	if nxt == cur {
		return
	}
	prov.state.Store(int32(nxt))
	prov.lastChange = time.Now()
	if nxt == Healthy {
		prov.lastErr = ""
	}
	p.metrics.ProviderState(prov.name, int(nxt))
	if nxt == Unhealthy {
		p.log.Warn("storage provider unhealthy", "provider", prov.name, "from", cur.String(), "error", err)
	} else {
		p.log.Info("storage provider state changed", "provider", prov.name, "from", cur.String(), "to", nxt.String())
	}
}
