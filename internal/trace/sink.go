package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/zulandar/signalbox/internal/logging"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/storage"
	"gorm.io/gorm"
)

// Sink receives completed traces. Writes are append-only.
type Sink interface {
	Record(ctx context.Context, t *AgentTrace) error
}

// NopSink discards traces.
type NopSink struct{}

func (NopSink) Record(context.Context, *AgentTrace) error { return nil }

// SafeRecord writes t to s and logs, rather than returns, any error or panic.
// Trace persistence never fails a request.
func SafeRecord(ctx context.Context, s Sink, t *AgentTrace, log logging.Logger) {
	if s == nil || t == nil {
		return
	}
	if log == nil {
		log = logging.Nop()
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error("trace sink panicked", "request_id", t.RequestID, "panic", p)
		}
	}()
	if err := s.Record(ctx, t); err != nil {
		log.Warn("trace write failed", "request_id", t.RequestID, "error", err)
	}
}

// MultiSink fans a trace out to several sinks, attempting every one.
type MultiSink []Sink

func (m MultiSink) Record(ctx context.Context, t *AgentTrace) error {
	var errs []string
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, t); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("trace: %s", strings.Join(errs, "; "))
	}
	return nil
}

// MemorySink keeps the most recent traces in a ring buffer.
type MemorySink struct {
	mu   sync.RWMutex
	buf  []AgentTrace
	next int
	full bool
	seq  uint64
}

// NewMemorySink returns a ring holding up to size traces.
func NewMemorySink(size int) *MemorySink {
	if size <= 0 {
		size = 256
	}
	return &MemorySink{buf: make([]AgentTrace, size)}
}

// Record stores a copy of t stamped with the next sequence number. Request
// ids are caller supplied and may repeat; the sequence does not.
func (m *MemorySink) Record(_ context.Context, t *AgentTrace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.buf[m.next] = *t
	m.buf[m.next].Seq = m.seq
	m.next = (m.next + 1) % len(m.buf)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// Recent returns up to limit traces, newest first. A non-positive limit
// returns everything held.
func (m *MemorySink) Recent(limit int) []AgentTrace {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := m.next
	if m.full {
		n = len(m.buf)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]AgentTrace, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (m.next - 1 - i + len(m.buf)) % len(m.buf)
		out = append(out, m.buf[idx])
	}
	return out
}

// StoreSink persists traces through the storage pool.
type StoreSink struct {
	pool *storage.Pool
}

// NewStoreSink returns a sink writing to pool.
func NewStoreSink(pool *storage.Pool) (*StoreSink, error) {
	if pool == nil {
		return nil, fmt.Errorf("trace: pool is required")
	}
	return &StoreSink{pool: pool}, nil
}

func (s *StoreSink) Record(ctx context.Context, t *AgentTrace) error {
	row, err := ToModel(t)
	if err != nil {
		return err
	}
	if err := s.pool.Do(ctx, func(tx *gorm.DB) error { return tx.Create(&row).Error }); err != nil {
		return fmt.Errorf("trace: record %s: %w", t.RequestID, err)
	}
	return nil
}

// ToModel converts a trace to its persisted row.
func ToModel(t *AgentTrace) (models.AgentTrace, error) {
	flags, err := json.Marshal(t.Flags)
	if err != nil {
		return models.AgentTrace{}, fmt.Errorf("trace: marshal flags: %w", err)
	}
	stages, err := json.Marshal(t.Stages)
	if err != nil {
		return models.AgentTrace{}, fmt.Errorf("trace: marshal stages: %w", err)
	}
	return models.AgentTrace{
		RequestID:          t.RequestID,
		Channel:            t.Channel,
		Route:              t.Route,
		Vendor:             t.Vendor,
		Confidence:         t.Confidence,
		Coverage:           t.Coverage,
		Specialists:        strings.Join(t.Specialists, ","),
		EnrichmentUsed:     t.EnrichmentUsed,
		EnrichmentDegraded: t.EnrichmentDegraded,
		EnrichmentQueued:   t.EnrichmentQueued,
		Substitutions:      t.Substitutions,
		Flags:              string(flags),
		Stages:             string(stages),
		Cancelled:          t.Cancelled,
		Success:            t.Success,
		Error:              t.Error,
		TotalMs:            t.Total.Milliseconds(),
		CreatedAt:          t.StartedAt,
	}, nil
}
