package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cdr.dev/slog"
	"github.com/coder/quartz"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fakeyudi/dwell/internal/record"
	"github.com/fakeyudi/dwell/internal/report"
	"github.com/fakeyudi/dwell/internal/timeline"
	"github.com/fakeyudi/dwell/internal/tui"
)

// intervalsShown is how many buckets a query covers when --start is absent.
const intervalsShown = 10

var (
	now      = time.Now
	location = time.Local
)

type timelineFlags struct {
	start      string
	end        string
	dateStyle  string
	days       bool
	duration   int
	unit       string
	percentage string
	processes  bool
	afk        bool
	format     string
	output     string
	tui        bool
	follow     bool
	skipErrors bool
}

var tl timelineFlags

// query is a fully resolved timeline request.
type query struct {
	start   time.Time
	end     time.Time
	width   timeline.Width
	analyze timeline.AnalyzeOptions
}

// resolve turns the flags into a query relative to ref. Whole-day ranges
// are used with --days and for day or week buckets.
func (f timelineFlags) resolve(ref time.Time) (query, error) {
	unit, err := timeline.ParseUnit(f.unit)
	if err != nil {
		return query{}, err
	}
	width, err := timeline.NewWidth(f.duration, unit)
	if err != nil {
		return query{}, err
	}

	pctText := f.percentage
	if pctText == "" {
		pctText = cfg.MinPercentage
	}
	pct, err := timeline.ParsePercentage(pctText)
	if err != nil {
		return query{}, err
	}

	style := f.dateStyle
	if style == "" {
		style = cfg.DateStyle
	}
	end := ref.In(location)
	if f.end != "" {
		if end, err = parseDate(f.end, style, ref, location); err != nil {
			return query{}, err
		}
	}
	start := end.Add(-intervalsShown * width.Duration())
	if f.start != "" {
		if start, err = parseDate(f.start, style, ref, location); err != nil {
			return query{}, err
		}
	}
	if f.days || !width.ShowsTime() {
		start = startOfDay(start, location)
		end = nextDayStart(end, location)
	}
	if !start.Before(end) {
		return query{}, fmt.Errorf("start %s is not before end %s: %w",
			start.Format(time.RFC3339), end.Format(time.RFC3339), timeline.ErrInvalidRange)
	}

	return query{
		start: start,
		end:   end,
		width: width,
		analyze: timeline.AnalyzeOptions{
			ByWindow:      !f.processes,
			IncludeAFK:    f.afk,
			MinPercentage: pct,
		},
	}, nil
}

// buildReport runs q against ex and returns the aggregated report.
func buildReport(ctx context.Context, ex *timeline.Extractor, q query, skipErrors bool) (*report.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	src, err := ex.Extract(ctx, q.start, q.end)
	if err != nil {
		return nil, err
	}
	opts := timeline.GroupOptions{Location: location}
	if skipErrors {
		opts.OnError = func(err error) error {
			log.Warn(ctx, "skipping unreadable day", slog.Error(err))
			return nil
		}
	}
	buckets, err := timeline.Group(ctx, src, q.width, q.analyze.Analyzer(), opts)
	if err != nil {
		return nil, err
	}
	return report.Build(report.Meta{
		Start:    q.start,
		End:      q.end,
		Width:    q.width,
		ByWindow: q.analyze.ByWindow,
	}, buckets, now()), nil
}

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Show where the time went, bucket by bucket",
	Example: `  dwell timeline -d 15 -o minutes
  dwell timeline -s yesterday -d 1 -o days --format markdown --output yesterday.md
  dwell timeline -s "12:00 16/03/2025" -e "18:00 16/03/2025" -d 1 -o hours --processes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Validate everything before touching the data directory.
		q, err := tl.resolve(now())
		if err != nil {
			return err
		}
		renderer, err := report.RendererFor(tl.format)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := record.NewStore(log, cfg.DataDir, cfg.LockTimeout.Std())
		if err != nil {
			return err
		}
		ex := timeline.NewExtractor(log, store, cfg.FetchConcurrency)

		r, err := buildReport(ctx, ex, q, tl.skipErrors)
		if err != nil {
			return err
		}

		if tl.tui {
			return runTimelineTUI(ctx, ex, store.Dir(), r)
		}

		out := cmd.OutOrStdout()
		if err := writeReport(out, renderer, r); err != nil {
			return err
		}
		if !tl.follow {
			return nil
		}
		return timeline.NewWatcher(log, quartz.NewReal(), store.Dir(), timeline.DefaultDebounce).
			Run(ctx, func(ctx context.Context) error {
				r, err := refresh(ctx, ex)
				if err != nil {
					return err
				}
				if tl.output == "" {
					fmt.Fprintf(out, "-- updated %s --\n", now().In(location).Format(time.TimeOnly))
				}
				return writeReport(out, renderer, r)
			})
	},
}

// refresh re-resolves the flags against the current time, so a range ending
// "now" keeps moving.
func refresh(ctx context.Context, ex *timeline.Extractor) (*report.Report, error) {
	q, err := tl.resolve(now())
	if err != nil {
		return nil, err
	}
	return buildReport(ctx, ex, q, tl.skipErrors)
}

// writeReport renders r to --output when set, otherwise to out.
func writeReport(out io.Writer, renderer report.Renderer, r *report.Report) error {
	data, err := renderer.Render(r)
	if err != nil {
		return err
	}
	if tl.output == "" {
		_, err = out.Write(data)
		return err
	}
	if err := atomic.WriteFile(tl.output, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing %s: %w", tl.output, err)
	}
	log.Info(context.Background(), "report written", slog.F("path", tl.output), slog.F("buckets", len(r.Buckets)))
	return nil
}

func runTimelineTUI(ctx context.Context, ex *timeline.Extractor, dir string, r *report.Report) error {
	if !tl.follow {
		return tui.Run(ctx, r, "timeline", nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan *report.Report)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return timeline.NewWatcher(log, quartz.NewReal(), dir, timeline.DefaultDebounce).
			Run(egCtx, func(ctx context.Context) error {
				r, err := refresh(ctx, ex)
				if err != nil {
					return err
				}
				select {
				case updates <- r:
				case <-ctx.Done():
				}
				return nil
			})
	})

	err := tui.Run(ctx, r, "timeline (following)", updates)
	cancel()
	if werr := eg.Wait(); werr != nil && err == nil {
		err = werr
	}
	return err
}

func init() {
	f := timelineCmd.Flags()
	f.StringVarP(&tl.start, "start", "s", "", `start of the range, e.g. "yesterday", "1 hour ago", "15/03/2025", "12:00 16/03/2025", "12 AM 16/03/2025"`)
	f.StringVarP(&tl.end, "end", "e", "", "end of the range (default now)")
	f.StringVar(&tl.dateStyle, "date-style", "", "numeric date order: uk is day/month/year, us is month/day/year (default from config)")
	f.BoolVar(&tl.days, "days", false, "expand the range to whole days")
	f.IntVarP(&tl.duration, "duration", "d", 0, "bucket size, combined with --option: -d 15 -o minutes")
	f.StringVarP(&tl.unit, "option", "o", "", "bucket unit: seconds, minutes, hours, days or weeks")
	f.StringVarP(&tl.percentage, "percentage", "p", "", "hide entries at or below this share of a bucket, e.g. 5 or 5% (default from config)")
	f.BoolVar(&tl.processes, "processes", false, "aggregate by process only, ignoring window names")
	f.BoolVarP(&tl.afk, "afk", "a", false, "count idle time under the real process instead of Inactive")
	f.StringVar(&tl.format, "format", "text", "output format: text, json or markdown")
	f.StringVar(&tl.output, "output", "", "write the report to this file instead of stdout")
	f.BoolVar(&tl.tui, "tui", false, "browse the report interactively")
	f.BoolVar(&tl.follow, "follow", false, "recompute whenever new records are written")
	f.BoolVar(&tl.skipErrors, "skip-errors", false, "skip days whose record file cannot be read")
	_ = timelineCmd.MarkFlagRequired("duration")
	_ = timelineCmd.MarkFlagRequired("option")
	rootCmd.AddCommand(timelineCmd)
}
