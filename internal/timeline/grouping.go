package timeline

import (
	"context"
	"time"

	"github.com/reugn/go-streams"
	"golang.org/x/xerrors"

	"github.com/fakeyudi/dwell/internal/activity"
)

// Bucket is one closed analysis window and the analyzer's result for it.
type Bucket[T any] struct {
	Start  time.Time
	End    time.Time
	Result T
}

// Analyzer reduces the intervals collected for one bucket.
type Analyzer[T any] func(intervals []activity.Interval) T

// GroupOptions configures a Grouper.
type GroupOptions struct {
	// Location aligns bucket starts and midnight clipping. Defaults to
	// time.Local.
	Location *time.Location
	// OnError is called for every error item in the input. Returning nil
	// skips the item; returning an error aborts grouping with it. When nil,
	// the first error item aborts grouping.
	OnError func(err error) error
}

// Grouper replays an interval stream into consecutive calendar-aligned
// buckets. It is a single forward pass over its input.
type Grouper[T any] struct {
	in      <-chan any
	width   Width
	analyze Analyzer[T]
	loc     *time.Location
	onError func(error) error

	started bool
	done    bool
	backlog *activity.Interval
	start   time.Time
	end     time.Time
}

// NewGrouper reads intervals (and error items) from in. in is typically the
// Source returned by Extractor.Extract.
func NewGrouper[T any](in streams.Outlet, width Width, analyze Analyzer[T], opts GroupOptions) *Grouper[T] {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Grouper[T]{
		in:      in.Out(),
		width:   width,
		analyze: analyze,
		loc:     opts.Location,
		onError: opts.OnError,
	}
}

// Next returns the next bucket. ok is false once the input is exhausted.
func (g *Grouper[T]) Next(ctx context.Context) (bucket Bucket[T], ok bool, err error) {
	if g.done {
		return bucket, false, nil
	}
	if !g.started {
		first, more, err := g.pull(ctx)
		if err != nil || !more {
			g.done = true
			return bucket, false, err
		}
		g.started = true
		g.backlog = &first
		g.start = g.width.CleanStart(first.Start, g.loc)
		g.end = g.width.bucketEnd(g.start, g.loc)
	}

	var collected []activity.Interval
	for {
		var iv activity.Interval
		if g.backlog != nil {
			iv, g.backlog = *g.backlog, nil
		} else {
			next, more, err := g.pull(ctx)
			if err != nil {
				g.done = true
				return bucket, false, err
			}
			if !more {
				g.done = true
				if len(collected) == 0 {
					return bucket, false, nil
				}
				return g.emit(collected), true, nil
			}
			iv = next
		}

		if iv.End().Before(g.start) {
			continue
		}
		before, after := iv.SplitBy(g.end)
		if before != nil && (after == nil || before.Duration > 0) {
			collected = append(collected, *before)
		}
		if after != nil {
			g.backlog = after
			return g.emit(collected), true, nil
		}
	}
}

// emit closes the current bucket and advances to the next one.
func (g *Grouper[T]) emit(collected []activity.Interval) Bucket[T] {
	b := Bucket[T]{Start: g.start, End: g.end, Result: g.analyze(collected)}
	g.start = g.end
	g.end = g.width.bucketEnd(g.start, g.loc)
	return b
}

// pull returns the next interval from the input, routing error items
// through OnError.
func (g *Grouper[T]) pull(ctx context.Context) (activity.Interval, bool, error) {
	for {
		select {
		case <-ctx.Done():
			return activity.Interval{}, false, ctx.Err()
		case item, ok := <-g.in:
			if !ok {
				return activity.Interval{}, false, nil
			}
			switch v := item.(type) {
			case activity.Interval:
				return v, true, nil
			case error:
				if g.onError == nil {
					return activity.Interval{}, false, v
				}
				if err := g.onError(v); err != nil {
					return activity.Interval{}, false, err
				}
			default:
				return activity.Interval{}, false, xerrors.Errorf("unexpected stream item %T", item)
			}
		}
	}
}

// Group drains a Grouper into a slice.
func Group[T any](ctx context.Context, in streams.Outlet, width Width, analyze Analyzer[T], opts GroupOptions) ([]Bucket[T], error) {
	g := NewGrouper(in, width, analyze, opts)
	var out []Bucket[T]
	for {
		b, ok, err := g.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, b)
	}
}
