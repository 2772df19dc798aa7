package timeline

import (
	"context"
	"path/filepath"
	"time"

	"cdr.dev/slog"
	"github.com/coder/quartz"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/xerrors"

	"github.com/fakeyudi/dwell/internal/record"
)

// DefaultDebounce coalesces bursts of writes into one refresh.
const DefaultDebounce = 500 * time.Millisecond

// Watcher calls back whenever a day file in the record directory changes.
type Watcher struct {
	log      slog.Logger
	clock    quartz.Clock
	dir      string
	debounce time.Duration
}

// NewWatcher returns a Watcher for dir. A debounce of zero or less uses
// DefaultDebounce.
func NewWatcher(log slog.Logger, clock quartz.Clock, dir string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{log: log.Named("watch"), clock: clock, dir: dir, debounce: debounce}
}

// Run blocks until ctx is done. onChange runs on the watcher goroutine once
// per burst of writes; its errors are logged.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return xerrors.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return xerrors.Errorf("watch %s: %w", w.dir, err)
	}

	var (
		timer  *quartz.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if _, isDay := record.ParseFileName(filepath.Base(event.Name)); !isDay {
				continue
			}
			if timer == nil {
				timer = w.clock.NewTimer(w.debounce, "watch")
				timerC = timer.C
			}

		case <-timerC:
			timer, timerC = nil, nil
			if err := onChange(ctx); err != nil {
				w.log.Warn(ctx, "refresh after change", slog.Error(err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn(ctx, "watcher error", slog.Error(err))
		}
	}
}
