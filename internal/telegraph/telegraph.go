package telegraph

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/logging"
	"github.com/zulandar/signalbox/internal/trace"
)

// digestPeriod is the window summarised by each digest.
const digestPeriod = 24 * time.Hour

// DigestSource returns recent traces, newest first.
type DigestSource interface {
	Recent(limit int) []trace.AgentTrace
}

// Daemon connects to a chat platform, answers questions addressed to the
// bot and posts the scheduled routing digest.
type Daemon struct {
	adapter  Adapter
	answerer Answerer
	health   HealthReporter
	digest   config.DigestConfig
	source   DigestSource
	log      logging.Logger
	out      io.Writer
	now      func() time.Time
}

// DaemonOpts holds parameters for creating a new Daemon.
type DaemonOpts struct {
	Adapter  Adapter
	Answerer Answerer
	Health   HealthReporter // optional
	Digest   config.DigestConfig
	Source   DigestSource // required when the digest is enabled
	Logger   logging.Logger
	Out      io.Writer // defaults to os.Stdout
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("telegraph: adapter is required")
	}
	if opts.Answerer == nil {
		return nil, fmt.Errorf("telegraph: answerer is required")
	}
	if opts.Digest.Enabled {
		if opts.Source == nil {
			return nil, fmt.Errorf("telegraph: digest source is required when the digest is enabled")
		}
		if err := ValidateCron(opts.Digest.Cron); err != nil {
			return nil, err
		}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Daemon{
		adapter:  opts.Adapter,
		answerer: opts.Answerer,
		health:   opts.Health,
		digest:   opts.Digest,
		source:   opts.Source,
		log:      opts.Logger,
		out:      opts.Out,
		now:      time.Now,
	}, nil
}

// Run connects the adapter and pumps inbound messages until ctx is
// cancelled or the adapter closes its inbound channel. Each message is
// handled on its own goroutine; Run waits for them before returning.
func (d *Daemon) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "Telegraph connecting...\n")
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("telegraph: connect: %w", err)
	}

	var botUserID string
	if bui, ok := d.adapter.(BotUserIDer); ok {
		botUserID = bui.BotUserID()
	}
	router, err := NewRouter(RouterOpts{
		Answerer:  d.answerer,
		Health:    d.health,
		Adapter:   d.adapter,
		BotUserID: botUserID,
		Logger:    d.log,
	})
	if err != nil {
		d.adapter.Close()
		return err
	}

	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("telegraph: listen: %w", err)
	}

	var wg sync.WaitGroup
	if d.digest.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.runDigestScheduler(ctx)
		}()
	}
	fmt.Fprintf(d.out, "Telegraph online\n")

	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "Telegraph shutting down...\n")
			if err := d.adapter.Close(); err != nil {
				d.log.Warn("telegraph: close adapter", "error", err)
			}
			return nil
		case msg, ok := <-inbound:
			if !ok {
				fmt.Fprintf(d.out, "Telegraph inbound channel closed\n")
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				router.Handle(ctx, msg)
			}()
		}
	}
}

// runDigestScheduler posts the digest each time the cron expression fires.
func (d *Daemon) runDigestScheduler(ctx context.Context) {
	wait := nextCronDuration(d.digest.Cron, d.now())
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			d.PostDigest(ctx)
			if wait := nextCronDuration(d.digest.Cron, d.now()); wait > 0 {
				timer.Reset(wait)
			}
		}
	}
}

// PostDigest summarises the last day of traces and posts it. Nothing is
// posted when there was no traffic.
func (d *Daemon) PostDigest(ctx context.Context) bool {
	evt := BuildDigest(d.source, d.now(), digestPeriod)
	if evt == nil {
		return false
	}
	if err := d.adapter.Send(ctx, OutboundMessage{Events: []FormattedEvent{*evt}}); err != nil {
		d.log.Error("telegraph: send digest", "error", err)
		return false
	}
	return true
}

// BuildDigest summarises traces started within period before now. It
// returns nil when there are none.
func BuildDigest(src DigestSource, now time.Time, period time.Duration) *FormattedEvent {
	if src == nil {
		return nil
	}
	since := now.Add(-period)
	var window []trace.AgentTrace
	for _, t := range src.Recent(0) {
		if t.StartedAt.Before(since) {
			continue
		}
		window = append(window, t)
	}
	if len(window) == 0 {
		return nil
	}
	evt := FormatDigest(trace.Summarize(window), period)
	return &evt
}
