package record

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"cdr.dev/slog"
	"golang.org/x/xerrors"

	"github.com/fakeyudi/dwell/internal/activity"
)

// File is an open handle on one day's record file.
type File struct {
	store *Store
	day   time.Time
	path  string

	mu     sync.Mutex
	file   *os.File
	closed bool
}

// Day returns the UTC date the file belongs to.
func (f *File) Day() time.Time {
	return f.day
}

// Path returns the file's location on disk.
func (f *File) Path() string {
	return f.path
}

// Append merges samples into the file. The last line is read back and used as
// the carried interval, then everything from the start of that line onwards is
// replaced by the collapsed result. The whole sequence runs under the
// exclusive lock.
func (f *File) Append(ctx context.Context, samples []activity.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return xerrors.Errorf("append to %s: %w", f.path, os.ErrClosed)
	}

	unlock, err := f.store.lock(ctx, f.path, false)
	if err != nil {
		return err
	}
	defer unlock()

	info, err := f.file.Stat()
	if err != nil {
		return xerrors.Errorf("stat %s: %w", f.path, err)
	}
	offset, err := lastLineOffset(f.file, info.Size())
	if err != nil {
		return xerrors.Errorf("seek last line of %s: %w", f.path, err)
	}

	carried, err := f.readCarried(ctx, offset, info.Size())
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, iv := range activity.Collapse(carried, samples) {
		if err := enc.Encode(iv); err != nil {
			return xerrors.Errorf("encode interval: %w", err)
		}
	}

	if _, err := f.file.WriteAt(buf.Bytes(), offset); err != nil {
		return xerrors.Errorf("write %s: %w", f.path, err)
	}
	// A rewritten line can be shorter than the one it replaced.
	if err := f.file.Truncate(offset + int64(buf.Len())); err != nil {
		return xerrors.Errorf("truncate %s: %w", f.path, err)
	}
	return nil
}

func (f *File) readCarried(ctx context.Context, offset, size int64) (*activity.Interval, error) {
	if offset >= size {
		return nil, nil
	}
	tail := make([]byte, size-offset)
	if _, err := f.file.ReadAt(tail, offset); err != nil {
		return nil, xerrors.Errorf("read last line of %s: %w", f.path, err)
	}
	tail = bytes.TrimSpace(tail)
	if len(tail) == 0 {
		return nil, nil
	}
	var iv activity.Interval
	if err := json.Unmarshal(tail, &iv); err != nil {
		f.store.log.Warn(ctx, "last record is corrupted, overwriting it",
			slog.F("path", f.path),
			slog.Error(err),
		)
		return nil, nil
	}
	return &iv, nil
}

// Flush forces written data to stable storage. It may be called any number
// of times, including after Close.
func (f *File) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	if err := f.file.Sync(); err != nil {
		return xerrors.Errorf("sync %s: %w", f.path, err)
	}
	return nil
}

// Close releases the handle.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.file.Close()
}
