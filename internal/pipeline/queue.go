// Package pipeline moves samples from the collector to the record store
// through a bounded queue.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"cdr.dev/slog"

	"github.com/fakeyudi/dwell/internal/activity"
)

// DefaultQueueSize is the number of samples buffered between the collector
// and the saver.
const DefaultQueueSize = 10

// Queue is a bounded, drop-on-full channel of samples. Offer never blocks.
type Queue struct {
	log slog.Logger
	ch  chan activity.Sample

	mu      sync.Mutex
	closed  bool
	dropped atomic.Int64
}

// NewQueue returns a Queue holding up to size samples. A non-positive size
// selects DefaultQueueSize.
func NewQueue(log slog.Logger, size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{log: log.Named("queue"), ch: make(chan activity.Sample, size)}
}

// Offer enqueues s and reports whether it was accepted. A full or closed
// queue drops the sample.
func (q *Queue) Offer(ctx context.Context, s activity.Sample) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- s:
		return true
	default:
		q.dropped.Add(1)
		q.log.Warn(ctx, "queue full, dropping sample",
			slog.F("process", s.ProcessName),
			slog.F("timestamp", s.Timestamp),
		)
		return false
	}
}

// Samples is the receive side consumed by the saver.
func (q *Queue) Samples() <-chan activity.Sample {
	return q.ch
}

// Dropped returns how many samples were rejected because the queue was full.
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

// Close stops accepting samples. The saver drains what is left and exits.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
