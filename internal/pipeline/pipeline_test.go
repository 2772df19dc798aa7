package pipeline_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cdr.dev/slog/sloggers/slogtest"
	"github.com/coder/quartz"
	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fakeyudi/dwell/internal/activity"
	"github.com/fakeyudi/dwell/internal/pipeline"
	"github.com/fakeyudi/dwell/internal/record"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestQueueDropsWhenFull(t *testing.T) {
	ctx := context.Background()
	q := pipeline.NewQueue(slogtest.Make(t, nil), 2)

	s := activity.Sample{ProcessName: "/bin/a", Timestamp: time.Unix(0, 0)}
	assert.True(t, q.Offer(ctx, s))
	assert.True(t, q.Offer(ctx, s))
	assert.False(t, q.Offer(ctx, s))
	assert.EqualValues(t, 1, q.Dropped())

	q.Close()
	q.Close()
	assert.False(t, q.Offer(ctx, s))

	var drained int
	for range q.Samples() {
		drained++
	}
	assert.Equal(t, 2, drained)
}

type harness struct {
	store *record.Store
	clock *quartz.Mock
	queue *pipeline.Queue
	saver *pipeline.Saver
	done  chan struct{}
}

func start(t *testing.T) *harness {
	t.Helper()
	log := slogtest.Make(t, &slogtest.Options{IgnoreErrors: true})
	store, err := record.NewStore(log, t.TempDir(), 100*time.Millisecond)
	require.NoError(t, err)

	h := &harness{
		store: store,
		clock: quartz.NewMock(t),
		queue: pipeline.NewQueue(log, 10),
		done:  make(chan struct{}),
	}
	h.saver = pipeline.NewSaver(log, store, h.clock)
	go func() {
		defer close(h.done)
		h.saver.Run(context.Background(), h.queue.Samples())
	}()
	t.Cleanup(func() {
		h.queue.Close()
		<-h.done
	})
	return h
}

func (h *harness) offer(t *testing.T, s activity.Sample) {
	t.Helper()
	processed := h.saver.Appended() + h.saver.Failed()
	require.True(t, h.queue.Offer(context.Background(), s))
	require.Eventually(t, func() bool {
		return h.saver.Appended()+h.saver.Failed() > processed
	}, 5*time.Second, 5*time.Millisecond)
}

func TestSaverRollsOverDays(t *testing.T) {
	ctx := context.Background()
	h := start(t)

	day1 := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	at := day2.Add(-3 * time.Second)
	h.clock.Set(at)

	for i := 0; i < 3; i++ {
		h.offer(t, activity.Sample{WindowName: "W", ProcessName: "A", Timestamp: at.Add(time.Duration(i) * time.Second)})
	}

	h.clock.Set(day2)
	h.offer(t, activity.Sample{WindowName: "V", ProcessName: "B", Timestamp: day2})

	h.queue.Close()
	<-h.done

	first, err := h.store.ReadAll(ctx, day1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "A", first[0].ProcessName)
	assert.Equal(t, "W", first[0].WindowName)
	assert.Equal(t, 2*time.Second, first[0].Duration)

	second, err := h.store.ReadAll(ctx, day2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "B", second[0].ProcessName)
	assert.Equal(t, "V", second[0].WindowName)
	assert.Zero(t, second[0].Duration)
	assert.Equal(t, day2, second[0].Start)

	assert.EqualValues(t, 4, h.saver.Appended())
	assert.Zero(t, h.saver.Failed())
}

func TestSaverSurvivesAppendFailure(t *testing.T) {
	ctx := context.Background()
	h := start(t)

	day := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	h.clock.Set(day.Add(time.Hour))

	held := flock.New(filepath.Join(h.store.Dir(), record.FileName(day)+".lock"))
	require.NoError(t, held.Lock())

	h.offer(t, activity.Sample{WindowName: "W", ProcessName: "A", Timestamp: day.Add(time.Hour)})
	assert.EqualValues(t, 1, h.saver.Failed())

	require.NoError(t, held.Close())
	h.offer(t, activity.Sample{WindowName: "V", ProcessName: "B", Timestamp: day.Add(time.Hour + time.Second)})
	assert.EqualValues(t, 1, h.saver.Appended())

	got, err := h.store.ReadAll(ctx, day)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].ProcessName)
}
