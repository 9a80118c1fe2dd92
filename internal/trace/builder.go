package trace

import (
	"time"
)

// Builder accumulates a trace during one run. It is owned by a single
// goroutine.
type Builder struct {
	t   AgentTrace
	now func() time.Time
}

// NewBuilder starts a trace for requestID.
func NewBuilder(requestID, channel string) *Builder {
	return newBuilder(requestID, channel, time.Now)
}

func newBuilder(requestID, channel string, now func() time.Time) *Builder {
	return &Builder{
		t:   AgentTrace{RequestID: requestID, Channel: channel, StartedAt: now()},
		now: now,
	}
}

// Start begins timing stage s and returns the function that ends it.
func (b *Builder) Start(s Stage) func() time.Duration {
	start := b.now()
	return func() time.Duration {
		d := b.now().Sub(start)
		b.t.Stages = append(b.t.Stages, StageTiming{Stage: s, Start: start, Duration: d})
		return d
	}
}

// Completed returns how many stages have finished.
func (b *Builder) Completed() int { return len(b.t.Stages) }

// Flag records a degradation flag once.
func (b *Builder) Flag(flags ...string) {
	for _, f := range flags {
		if f == "" || b.t.HasFlag(f) {
			continue
		}
		b.t.Flags = append(b.t.Flags, f)
	}
}

// Update applies fn to the trace under construction.
func (b *Builder) Update(fn func(t *AgentTrace)) { fn(&b.t) }

// Finish stamps the outcome and returns the completed trace.
func (b *Builder) Finish(err error, cancelled bool) *AgentTrace {
	b.t.Total = b.now().Sub(b.t.StartedAt)
	b.t.Cancelled = cancelled
	b.t.Success = err == nil && !cancelled
	if err != nil {
		b.t.Error = err.Error()
	}
	out := b.t
	out.Flags = append([]string(nil), b.t.Flags...)
	out.Stages = append([]StageTiming(nil), b.t.Stages...)
	out.Specialists = append([]string(nil), b.t.Specialists...)
	return &out
}
