// Package timeline turns stored day files back into a continuous interval
// stream and aggregates it into calendar-aligned buckets.
package timeline

import (
	"context"
	"fmt"
	"time"

	"cdr.dev/slog"
	"github.com/reugn/go-streams"
	"github.com/reugn/go-streams/flow"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/fakeyudi/dwell/internal/activity"
	"github.com/fakeyudi/dwell/internal/record"
)

// DefaultConcurrency is the number of days fetched in parallel.
const DefaultConcurrency = 4

// ErrInvalidRange is returned when a range does not have start before end.
var ErrInvalidRange = xerrors.New("invalid time range")

// DayReader loads all intervals stored for one UTC day.
type DayReader interface {
	ReadAll(ctx context.Context, day time.Time) ([]activity.Interval, error)
}

// DayError reports that one day of a range could not be read.
type DayError struct {
	Day time.Time
	Err error
}

func (e *DayError) Error() string {
	return fmt.Sprintf("read %s: %v", record.FileName(e.Day), e.Err)
}

func (e *DayError) Unwrap() error {
	return e.Err
}

// Extractor reads a wall-clock range out of a DayReader.
type Extractor struct {
	log         slog.Logger
	reader      DayReader
	concurrency int
}

// NewExtractor returns an Extractor fetching up to concurrency days at once.
func NewExtractor(log slog.Logger, reader DayReader, concurrency int) *Extractor {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Extractor{log: log.Named("extract"), reader: reader, concurrency: concurrency}
}

// DaysIn lists the UTC days that can hold data for [start, end).
func DaysIn(start, end time.Time) []time.Time {
	var days []time.Time
	last := record.DayOf(end)
	for d := record.DayOf(start); !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Extract streams the intervals of [start, end), clamped to the range, in
// chronological order. Each item on the returned outlet is either an
// activity.Interval or a *DayError; a failed day does not stop later days.
// The outlet must be drained, or ctx cancelled, to release its goroutines.
//
// Days are fetched concurrently but enter the stream in day order, one
// []any batch per day. The batches are flattened and clamped by
// single-worker flows, which keep that order.
func (e *Extractor) Extract(ctx context.Context, start, end time.Time) (streams.Outlet, error) {
	if !start.Before(end) {
		return nil, xerrors.Errorf("start %s is not before end %s: %w",
			start.Format(time.RFC3339), end.Format(time.RFC3339), ErrInvalidRange)
	}

	days := &daySource{out: make(chan any)}
	go e.fetch(ctx, DaysIn(start, end), days.out)

	clamped := days.
		Via(flow.Flatten[any](1)).
		Via(flow.NewFlatMap(clampTo(start, end), 1))
	return cancellable(ctx, clamped), nil
}

// fetch reads days with bounded concurrency and sends one batch per day, in
// order, until ctx is done.
func (e *Extractor) fetch(ctx context.Context, days []time.Time, out chan<- any) {
	type result struct {
		day       time.Time
		intervals []activity.Interval
		err       error
	}

	// Results are queued in day order; fetches complete in any order.
	pending := make(chan chan result, e.concurrency)

	go func() {
		defer close(pending)
		var g errgroup.Group
		g.SetLimit(e.concurrency)
		for _, day := range days {
			res := make(chan result, 1)
			select {
			case pending <- res:
			case <-ctx.Done():
				_ = g.Wait()
				return
			}
			g.Go(func() error {
				intervals, err := e.reader.ReadAll(ctx, day)
				res <- result{day: day, intervals: intervals, err: err}
				return nil
			})
		}
		_ = g.Wait()
	}()

	defer close(out)
	stopped := false
	for res := range pending {
		r := <-res
		if stopped {
			continue
		}
		var batch []any
		if r.err != nil {
			e.log.Warn(ctx, "failed to read day", slog.F("day", record.FileName(r.day)), slog.Error(r.err))
			batch = []any{&DayError{Day: r.day, Err: r.err}}
		} else {
			batch = make([]any, 0, len(r.intervals))
			for _, iv := range r.intervals {
				batch = append(batch, iv)
			}
		}
		if len(batch) == 0 {
			continue
		}
		select {
		case out <- batch:
		case <-ctx.Done():
			stopped = true
		}
	}
}

// clampTo cuts intervals to [start, end) and drops those outside it. Error
// items pass through.
func clampTo(start, end time.Time) func(any) []any {
	return func(item any) []any {
		iv, ok := item.(activity.Interval)
		if !ok {
			return []any{item}
		}
		clamped := iv.Clamp(start, end)
		if clamped == nil {
			return nil
		}
		return []any{*clamped}
	}
}

// daySource is the head of the extraction stream.
type daySource struct {
	out chan any
}

var _ streams.Source = (*daySource)(nil)

func (s *daySource) Out() <-chan any {
	return s.out
}

func (s *daySource) Via(operator streams.Flow) streams.Flow {
	flow.DoStream(s, operator)
	return operator
}

type chanOutlet chan any

func (c chanOutlet) Out() <-chan any {
	return c
}

// cancellable forwards in until ctx is done, then discards the rest of in so
// the flows upstream can finish.
func cancellable(ctx context.Context, in streams.Outlet) streams.Outlet {
	out := make(chanOutlet)
	go func() {
		defer close(out)
		for item := range in.Out() {
			select {
			case out <- item:
			case <-ctx.Done():
				for range in.Out() {
				}
				return
			}
		}
	}()
	return out
}
