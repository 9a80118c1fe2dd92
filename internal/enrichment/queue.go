// Package enrichment hands knowledge gaps found on thin-coverage answers to
// the external ingestion pipeline. Requests go onto a bounded queue and a
// background worker delivers them to the configured sinks.
package enrichment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/signalbox/internal/intent"
	"github.com/zulandar/signalbox/internal/logging"
	"github.com/zulandar/signalbox/internal/metrics"
)

// deliverTimeout bounds one delivery across all sinks.
const deliverTimeout = 10 * time.Second

// Request is one queued knowledge gap.
type Request struct {
	RequestID      string
	Vendor         string
	EquipmentClass string
	Gap            string
	QueuedAt       time.Time
}

// Title is a one-line summary used by sinks that need one.
func (r Request) Title() string {
	subject := strings.TrimSpace(r.Vendor + " " + r.EquipmentClass)
	return fmt.Sprintf("Knowledge gap: %s", subject)
}

// Sink receives delivered requests.
type Sink interface {
	Deliver(ctx context.Context, r Request) error
}

// Options configures NewQueue.
type Options struct {
	Size    int
	Sinks   []Sink
	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// Queue is a bounded, non-blocking handoff.
type Queue struct {
	ch      chan Request
	sinks   []Sink
	log     logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewQueue creates a queue. Size defaults to 64.
func NewQueue(opts Options) (*Queue, error) {
	if opts.Size < 0 {
		return nil, fmt.Errorf("enrichment: size must not be negative")
	}
	if opts.Size == 0 {
		opts.Size = 64
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Queue{
		ch:      make(chan Request, opts.Size),
		sinks:   opts.Sinks,
		log:     opts.Logger,
		metrics: opts.Metrics,
		now:     time.Now,
	}, nil
}

// RequestEnrichment enqueues a gap for in without blocking. It reports
// false when the queue is full and the request was dropped.
func (q *Queue) RequestEnrichment(in intent.Intent, gap string) bool {
	r := Request{
		RequestID:      in.RequestID,
		Vendor:         string(in.Vendor),
		EquipmentClass: in.EquipmentClass,
		Gap:            gap,
		QueuedAt:       q.now(),
	}
	select {
	case q.ch <- r:
		q.metrics.EnrichmentQueued()
		return true
	default:
		q.log.Warn("enrichment queue full, dropping request", "request_id", r.RequestID, "vendor", r.Vendor)
		q.metrics.EnrichmentDropped()
		return false
	}
}

// Len returns the number of requests waiting for delivery.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Run delivers queued requests until ctx is cancelled. Sink failures are
// logged and do not stop the worker.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-q.ch:
			// A request taken off the queue is delivered even if the
			// worker is stopped meanwhile.
			q.deliver(context.WithoutCancel(ctx), r)
		}
	}
}

// Drain delivers whatever is already queued and returns the count. It stops
// early when ctx ends.
func (q *Queue) Drain(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil {
		select {
		case r := <-q.ch:
			q.deliver(ctx, r)
			n++
		default:
			return n
		}
	}
	return n
}

func (q *Queue) deliver(ctx context.Context, r Request) {
	ctx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()
	for _, s := range q.sinks {
		if err := s.Deliver(ctx, r); err != nil {
			q.log.Error("enrichment delivery failed", "request_id", r.RequestID, "sink", fmt.Sprintf("%T", s), "error", err)
		}
	}
}

// Gap describes what a thin-coverage answer was missing.
func Gap(in intent.Intent, matched int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Only %d reference atom(s) matched", matched)
	if in.EquipmentClass != "" {
		fmt.Fprintf(&b, " for %s %s", in.Vendor, in.EquipmentClass)
	} else {
		fmt.Fprintf(&b, " for %s", in.Vendor)
	}
	if len(in.FaultCodes) > 0 {
		fmt.Fprintf(&b, " (fault codes: %s)", strings.Join(in.FaultCodes, ", "))
	}
	if len(in.Terms) > 0 {
		terms := in.Terms
		if len(terms) > 8 {
			terms = terms[:8]
		}
		fmt.Fprintf(&b, ". Terms: %s", strings.Join(terms, " "))
	}
	b.WriteString(".")
	return b.String()
}
