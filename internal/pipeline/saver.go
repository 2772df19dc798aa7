package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"cdr.dev/slog"
	"github.com/coder/quartz"

	"github.com/fakeyudi/dwell/internal/activity"
	"github.com/fakeyudi/dwell/internal/record"
)

// Saver appends queued samples to the file of the current UTC day.
type Saver struct {
	log   slog.Logger
	store *record.Store
	clock quartz.Clock

	appended atomic.Int64
	failed   atomic.Int64
}

// NewSaver returns a Saver writing into store. The clock decides which day
// file a sample lands in.
func NewSaver(log slog.Logger, store *record.Store, clock quartz.Clock) *Saver {
	return &Saver{log: log.Named("saver"), store: store, clock: clock}
}

// Run consumes samples until the channel is closed, then flushes and closes
// the open file. Append failures are logged and the sample is dropped.
func (s *Saver) Run(ctx context.Context, samples <-chan activity.Sample) {
	var current *record.File
	defer func() {
		if current != nil {
			s.release(ctx, current)
		}
	}()

	for sample := range samples {
		today := record.DayOf(s.clock.Now())
		if current != nil && !current.Day().Equal(today) {
			s.log.Debug(ctx, "day rolled over",
				slog.F("from", record.FileName(current.Day())),
				slog.F("to", record.FileName(today)),
			)
			s.release(ctx, current)
			current = nil
		}
		if current == nil {
			f, err := s.store.OpenOrCreate(today)
			if err != nil {
				s.failed.Add(1)
				s.log.Error(ctx, "open record file", slog.F("day", record.FileName(today)), slog.Error(err))
				continue
			}
			current = f
		}

		start := s.clock.Now()
		if err := current.Append(ctx, []activity.Sample{sample}); err != nil {
			s.failed.Add(1)
			s.log.Error(ctx, "append sample", slog.F("path", current.Path()), slog.Error(err))
			continue
		}
		s.appended.Add(1)
		if took := s.clock.Since(start); took > time.Second {
			s.log.Warn(ctx, "slow append", slog.F("took", took))
		}
	}
}

// Appended returns the number of samples written successfully.
func (s *Saver) Appended() int64 {
	return s.appended.Load()
}

// Failed returns the number of samples lost to I/O or lock errors.
func (s *Saver) Failed() int64 {
	return s.failed.Load()
}

func (s *Saver) release(ctx context.Context, f *record.File) {
	if err := f.Flush(); err != nil {
		s.log.Warn(ctx, "flush record file", slog.F("path", f.Path()), slog.Error(err))
	}
	if err := f.Close(); err != nil {
		s.log.Warn(ctx, "close record file", slog.F("path", f.Path()), slog.Error(err))
	}
}
