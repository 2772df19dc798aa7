package daemon

import (
	"context"
	"os"
	"time"

	"cdr.dev/slog"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/fakeyudi/dwell/internal/collector"
	"github.com/fakeyudi/dwell/internal/pipeline"
	"github.com/fakeyudi/dwell/internal/record"
)

// Options configures Run.
type Options struct {
	DataDir      string
	Executable   string
	Interval     time.Duration
	AFKThreshold time.Duration
	QueueSize    int
	LockTimeout  time.Duration
}

// Run records activity until ctx is done. Samples flow from the collector
// through a bounded queue into the saver; on shutdown the collector stops
// first and the saver drains whatever is queued before returning.
func Run(ctx context.Context, log slog.Logger, clock quartz.Clock, probe collector.Probe, states StateStore, opts Options) error {
	store, err := record.NewStore(log, opts.DataDir, opts.LockTimeout)
	if err != nil {
		return err
	}

	state := &State{
		ID:         uuid.New(),
		PID:        os.Getpid(),
		Executable: opts.Executable,
		StartTime:  clock.Now(),
		DataDir:    opts.DataDir,
	}
	if err := states.Save(state); err != nil {
		return err
	}
	defer func() {
		if err := states.Delete(state.ID); err != nil {
			log.Warn(context.Background(), "remove daemon state", slog.Error(err))
		}
	}()
	log.Info(ctx, "daemon started",
		slog.F("id", state.ID),
		slog.F("pid", state.PID),
		slog.F("data_dir", opts.DataDir),
	)

	queue := pipeline.NewQueue(log, opts.QueueSize)
	saver := pipeline.NewSaver(log, store, clock)
	coll := collector.New(log, probe, clock, queue, collector.Options{
		Interval:     opts.Interval,
		AFKThreshold: opts.AFKThreshold,
	})

	var g errgroup.Group
	g.Go(func() error {
		defer queue.Close()
		if err := coll.Run(ctx); err != nil {
			return xerrors.Errorf("collector: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// Not bound to ctx: queued samples are still written after shutdown.
		saver.Run(context.WithoutCancel(ctx), queue.Samples())
		return nil
	})
	err = g.Wait()

	log.Info(context.Background(), "daemon stopped",
		slog.F("appended", saver.Appended()),
		slog.F("failed", saver.Failed()),
		slog.F("dropped", queue.Dropped()),
	)
	return err
}
