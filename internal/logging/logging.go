// Package logging builds the structured logger shared by every command.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cdr.dev/slog"
	"cdr.dev/slog/sloggers/sloghuman"
	"golang.org/x/xerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 10
	maxBackups = 8
)

// Options configures New.
type Options struct {
	// Dir receives <Prefix>.log and its rotated backups. Empty disables the
	// file sink.
	Dir    string
	Prefix string
	// Console, when set, also receives human-readable output.
	Console io.Writer
	Level   string
}

// New returns a logger and a function that flushes and closes its sinks.
func New(opts Options) (log slog.Logger, closeLog func(), err error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return slog.Logger{}, func() {}, err
	}

	var (
		sinks   []slog.Sink
		closers []func() error
	)
	if opts.Dir != "" {
		dir := filepath.Join(opts.Dir, "logs")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return slog.Logger{}, func() {}, xerrors.Errorf("create log directory: %w", err)
		}
		w := &writeCloseFixer{Writer: &lumberjack.Logger{
			Filename:   filepath.Join(dir, opts.Prefix+".log"),
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
		}}
		closers = append(closers, w.Close)
		sinks = append(sinks, sloghuman.Sink(w))
	}
	if opts.Console != nil {
		sinks = append(sinks, sloghuman.Sink(opts.Console))
	}

	log = slog.Make(sinks...).Leveled(level)
	return log, func() {
		log.Sync()
		for _, closer := range closers {
			_ = closer()
		}
	}, nil
}

// ParseLevel maps debug, info, warn and error to slog levels. Empty means
// info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, xerrors.Errorf("unknown log level %q", s)
	}
}

// writeCloseFixer drops writes after Close. lumberjack reopens its file on
// Write, which would leave a file handle behind.
type writeCloseFixer struct {
	Writer io.WriteCloser

	mu     sync.Mutex // Protects following.
	closed bool
}

func (c *writeCloseFixer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.Writer.Close()
}

func (c *writeCloseFixer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, io.ErrClosedPipe
	}
	return c.Writer.Write(p)
}
