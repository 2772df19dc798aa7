// Package record persists intervals into one newline-delimited JSON file per
// UTC calendar day.
//
// Files live in a single flat directory and are named after their date
// (YYYY-MM-DD). A sidecar "<date>.lock" file carries the advisory lock shared
// by the recorder and any concurrent readers.
package record

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"cdr.dev/slog"
	"github.com/gofrs/flock"
	"golang.org/x/xerrors"

	"github.com/fakeyudi/dwell/internal/activity"
)

const (
	// DefaultLockTimeout bounds how long Append and ReadAll wait for a lock.
	DefaultLockTimeout = 5 * time.Second

	lockRetry    = 50 * time.Millisecond
	maxLineBytes = 16 << 20
	dateLayout   = "2006-01-02"
)

// ErrLockTimeout is returned when the advisory lock on a day file could not
// be acquired in time.
var ErrLockTimeout = xerrors.New("timed out waiting for record lock")

// Store reads and writes day files under a directory.
type Store struct {
	dir         string
	log         slog.Logger
	lockTimeout time.Duration
}

// NewStore creates dir if needed and returns a Store rooted there. A zero
// lockTimeout selects DefaultLockTimeout.
func NewStore(log slog.Logger, dir string, lockTimeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, xerrors.Errorf("create record directory: %w", err)
	}
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Store{dir: dir, log: log.Named("record"), lockTimeout: lockTimeout}, nil
}

// Dir returns the directory holding the day files.
func (s *Store) Dir() string {
	return s.dir
}

// DayOf returns UTC midnight of the calendar day containing t.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FileName returns the base name of the file holding day.
func FileName(day time.Time) string {
	return DayOf(day).Format(dateLayout)
}

// ParseFileName is the inverse of FileName.
func ParseFileName(name string) (time.Time, bool) {
	day, err := time.Parse(dateLayout, filepath.Base(name))
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

func (s *Store) path(day time.Time) string {
	return filepath.Join(s.dir, FileName(day))
}

// OpenOrCreate returns a handle bound to day's file, creating the file if it
// does not exist yet. Calling it repeatedly for the same day is safe.
func (s *Store) OpenOrCreate(day time.Time) (*File, error) {
	day = DayOf(day)
	path := s.path(day)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, xerrors.Errorf("open record file %s: %w", path, err)
	}
	return &File{store: s, day: day, path: path, file: f}, nil
}

// ReadAll returns every well-formed interval stored for day. A missing file
// yields an empty result. Lines that fail to parse are logged and skipped.
func (s *Store) ReadAll(ctx context.Context, day time.Time) ([]activity.Interval, error) {
	path := s.path(day)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, xerrors.Errorf("stat record file %s: %w", path, err)
	}

	unlock, err := s.lock(ctx, path, true)
	if err != nil {
		return nil, err
	}
	defer unlock()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, xerrors.Errorf("open record file %s: %w", path, err)
	}
	defer f.Close()

	var intervals []activity.Interval
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		var iv activity.Interval
		if err := json.Unmarshal(data, &iv); err != nil {
			s.log.Warn(ctx, "skipping malformed record",
				slog.F("path", path),
				slog.F("line", line),
				slog.Error(err),
			)
			continue
		}
		intervals = append(intervals, iv)
	}
	if err := scanner.Err(); err != nil {
		// Keep what was parsed; a torn tail must not hide the prefix.
		s.log.Warn(ctx, "stopped reading record file early",
			slog.F("path", path),
			slog.F("line", line),
			slog.Error(err),
		)
	}
	return intervals, nil
}

// lock takes the advisory lock for path and returns its release function.
func (s *Store) lock(ctx context.Context, path string, shared bool) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	fl := flock.New(path + ".lock")
	var (
		ok  bool
		err error
	)
	if shared {
		ok, err = fl.TryRLockContext(ctx, lockRetry)
	} else {
		ok, err = fl.TryLockContext(ctx, lockRetry)
	}
	if err != nil {
		_ = fl.Close()
		if ctx.Err() != nil {
			return nil, xerrors.Errorf("lock %s: %w", path, ErrLockTimeout)
		}
		return nil, xerrors.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		_ = fl.Close()
		return nil, xerrors.Errorf("lock %s: %w", path, ErrLockTimeout)
	}
	return func() { _ = fl.Close() }, nil
}
