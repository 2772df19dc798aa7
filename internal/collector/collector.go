// Package collector samples the foreground window and idle time on a fixed
// period and hands each observation to the recording pipeline.
package collector

import (
	"context"
	"time"

	"cdr.dev/slog"
	"github.com/coder/quartz"
	"golang.org/x/xerrors"

	"github.com/fakeyudi/dwell/internal/activity"
)

const (
	DefaultInterval     = time.Second
	DefaultAFKThreshold = 2 * time.Minute
)

// ErrUnsupported is returned by NewPlatformProbe on systems without a probe.
var ErrUnsupported = xerrors.New("window probing is not supported on this platform")

// Window describes the window that currently has input focus.
type Window struct {
	Title      string
	Executable string // full path to the owning executable
}

// Probe queries the desktop for the focused window and input idle time.
// Either call may fail, for example when the display connection is lost.
type Probe interface {
	ActiveWindow(ctx context.Context) (Window, error)
	IdleTime(ctx context.Context) (time.Duration, error)
}

// Sink accepts samples without blocking.
type Sink interface {
	Offer(ctx context.Context, s activity.Sample) bool
}

// AFKEvaluator decides whether the user is away from the keyboard.
type AFKEvaluator struct {
	Threshold time.Duration
}

// IsAFK reports whether idle strictly exceeds the threshold.
func (e AFKEvaluator) IsAFK(idle time.Duration) bool {
	return idle > e.Threshold
}

// Options tunes a Collector. Zero values select the defaults.
type Options struct {
	Interval     time.Duration
	AFKThreshold time.Duration
}

// Collector drives a Probe on a ticker.
type Collector struct {
	log      slog.Logger
	probe    Probe
	clock    quartz.Clock
	sink     Sink
	interval time.Duration
	afk      AFKEvaluator
}

// New returns a Collector that polls probe every opts.Interval and offers
// each sample to sink. Zero options take their defaults.
func New(log slog.Logger, probe Probe, clock quartz.Clock, sink Sink, opts Options) *Collector {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.AFKThreshold <= 0 {
		opts.AFKThreshold = DefaultAFKThreshold
	}
	return &Collector{
		log:      log.Named("collector"),
		probe:    probe,
		clock:    clock,
		sink:     sink,
		interval: opts.Interval,
		afk:      AFKEvaluator{Threshold: opts.AFKThreshold},
	}
}

// Run samples once immediately and then on every tick until ctx is done.
// Cancellation is only observed between ticks.
func (c *Collector) Run(ctx context.Context) error {
	ticker := c.clock.NewTicker(c.interval, "collector")
	defer ticker.Stop()

	c.log.Info(ctx, "collector started",
		slog.F("interval", c.interval),
		slog.F("afk_threshold", c.afk.Threshold),
	)
	for {
		if s, ok := c.collect(ctx); ok {
			c.sink.Offer(ctx, s)
		}
		select {
		case <-ctx.Done():
			c.log.Info(ctx, "collector stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (c *Collector) collect(ctx context.Context) (activity.Sample, bool) {
	win, err := c.probe.ActiveWindow(ctx)
	if err != nil {
		c.log.Warn(ctx, "query active window", slog.Error(err))
		return activity.Sample{}, false
	}
	idle, err := c.probe.IdleTime(ctx)
	if err != nil {
		c.log.Warn(ctx, "query idle time", slog.Error(err))
		return activity.Sample{}, false
	}
	return activity.Sample{
		WindowName:  win.Title,
		ProcessName: win.Executable,
		AFK:         c.afk.IsAFK(idle),
		Timestamp:   c.clock.Now().UTC(),
	}, true
}
