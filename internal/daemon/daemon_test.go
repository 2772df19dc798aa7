package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cdr.dev/slog/sloggers/slogtest"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"pgregory.net/rapid"

	"github.com/fakeyudi/dwell/internal/activity"
	"github.com/fakeyudi/dwell/internal/collector"
	"github.com/fakeyudi/dwell/internal/daemon"
	"github.com/fakeyudi/dwell/internal/record"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Feature: dwell, Property: daemon state persistence round-trip
func TestStateRoundTrip(t *testing.T) {
	store, err := daemon.NewStateStore(t.TempDir())
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		var id uuid.UUID
		copy(id[:], rapid.SliceOfN(rapid.Byte(), 16, 16).Draw(t, "id"))
		want := &daemon.State{
			ID:         id,
			PID:        rapid.IntRange(1, 1<<22).Draw(t, "pid"),
			Executable: rapid.StringN(1, 100, -1).Draw(t, "exe"),
			StartTime:  time.Unix(rapid.Int64Range(0, 1_900_000_000).Draw(t, "start"), 0).UTC(),
			DataDir:    rapid.StringN(1, 100, -1).Draw(t, "dir"),
		}
		if err := store.Save(want); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if *got != *want {
			t.Fatalf("round trip: got %+v, want %+v", got, want)
		}
	})
}

func TestStateLoadMissing(t *testing.T) {
	store, err := daemon.NewStateStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load()
	assert.ErrorIs(t, err, daemon.ErrNotRunning)
	assert.NoError(t, store.Delete(uuid.New()))
}

func TestStateDeleteOnlyOwnInstance(t *testing.T) {
	store, err := daemon.NewStateStore(t.TempDir())
	require.NoError(t, err)

	s := &daemon.State{ID: uuid.New(), PID: 42}
	require.NoError(t, store.Save(s))

	require.NoError(t, store.Delete(uuid.New()))
	_, err = store.Load()
	require.NoError(t, err, "a newer instance's state must survive")

	require.NoError(t, store.Delete(s.ID))
	_, err = store.Load()
	assert.ErrorIs(t, err, daemon.ErrNotRunning)
}

type fakeProbe struct {
	idle chan struct{}
}

func (p *fakeProbe) ActiveWindow(context.Context) (collector.Window, error) {
	return collector.Window{Title: "main.go", Executable: "/usr/bin/editor"}, nil
}

func (p *fakeProbe) IdleTime(context.Context) (time.Duration, error) {
	p.idle <- struct{}{}
	return 0, nil
}

func TestRunRecordsUntilCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dir := t.TempDir()
	log := slogtest.Make(t, nil)
	clock := quartz.NewMock(t)
	start := time.Date(2024, 4, 5, 10, 0, 0, 0, time.UTC)
	clock.Set(start)
	trap := clock.Trap().NewTicker("collector")
	defer trap.Close()

	states, err := daemon.NewStateStore(dir)
	require.NoError(t, err)
	probe := &fakeProbe{idle: make(chan struct{}, 8)}

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- daemon.Run(runCtx, log, clock, probe, states, daemon.Options{
			DataDir:    dir,
			Executable: "/usr/local/bin/dwell",
			QueueSize:  10,
		})
	}()

	trap.MustWait(ctx).MustRelease(ctx)

	running, err := states.Load()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), running.PID)
	assert.Equal(t, "/usr/local/bin/dwell", running.Executable)

	waitIdle := func() {
		select {
		case <-probe.idle:
		case <-ctx.Done():
			t.Fatal("timed out waiting for a sample")
		}
	}
	waitIdle()
	clock.Advance(time.Second).MustWait(ctx)
	waitIdle()
	stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("daemon did not stop")
	}

	_, err = states.Load()
	assert.ErrorIs(t, err, daemon.ErrNotRunning)

	store, err := record.NewStore(log, dir, 0)
	require.NoError(t, err)
	got, err := store.ReadAll(ctx, start)
	require.NoError(t, err)
	assert.Equal(t, []activity.Interval{{
		WindowName:  "main.go",
		ProcessName: "/usr/bin/editor",
		Start:       start,
		Duration:    time.Second,
	}}, got)
	_, err = os.Stat(filepath.Join(dir, record.FileName(start)))
	assert.NoError(t, err)
}
