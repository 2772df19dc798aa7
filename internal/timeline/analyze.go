package timeline

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/fakeyudi/dwell/internal/activity"
)

// InactiveName is the synthetic process that collects AFK time.
const InactiveName = "Inactive"

// Usage is the time attributed to one process, or one process window.
type Usage struct {
	Process  string
	Window   string
	Path     string // first full executable path seen for Process
	Duration time.Duration
}

// Analysis is the result for one bucket.
type Analysis struct {
	Usages []Usage
	// Total is the summed duration of every interval in the bucket,
	// AFK time included.
	Total time.Duration
}

// Percent returns the integer share of u in a, truncated towards zero.
func (a Analysis) Percent(u Usage) int {
	if a.Total <= 0 {
		return 0
	}
	return int(u.Duration * 100 / a.Total)
}

// AnalyzeOptions controls how a bucket is aggregated.
type AnalyzeOptions struct {
	// ByWindow keys usage on (process, window) instead of process alone.
	ByWindow bool
	// IncludeAFK attributes AFK time to its real process instead of
	// InactiveName.
	IncludeAFK bool
	// MinPercentage drops entries whose share of Total is at or below it.
	MinPercentage float64
}

// Analyzer returns an Analyzer bound to opts.
func (o AnalyzeOptions) Analyzer() Analyzer[Analysis] {
	return func(intervals []activity.Interval) Analysis {
		return Analyze(intervals, o)
	}
}

type usageKey struct {
	process string
	window  string
}

// Analyze aggregates one bucket's intervals. Entries are ordered by
// descending duration, then by process and window name.
func Analyze(intervals []activity.Interval, opts AnalyzeOptions) Analysis {
	byKey := make(map[usageKey]*Usage)
	inactive := Usage{Process: InactiveName}
	var total time.Duration

	for _, iv := range intervals {
		total += iv.Duration
		if iv.AFK && !opts.IncludeAFK {
			inactive.Duration += iv.Duration
			continue
		}
		key := usageKey{process: ProcessBaseName(iv.ProcessName)}
		if opts.ByWindow {
			key.window = iv.WindowName
		}
		u, ok := byKey[key]
		if !ok {
			u = &Usage{Process: key.process, Window: key.window, Path: iv.ProcessName}
			byKey[key] = u
		}
		u.Duration += iv.Duration
	}
	if inactive.Duration > 0 {
		key := usageKey{process: InactiveName}
		if u, ok := byKey[key]; ok {
			u.Duration += inactive.Duration
		} else {
			byKey[key] = &inactive
		}
	}

	threshold := opts.MinPercentage * float64(total) / 100
	usages := make([]Usage, 0, len(byKey))
	for _, u := range byKey {
		if float64(u.Duration) <= threshold {
			continue
		}
		usages = append(usages, *u)
	}
	sort.SliceStable(usages, func(i, j int) bool {
		a, b := usages[i], usages[j]
		if a.Duration != b.Duration {
			return a.Duration > b.Duration
		}
		if a.Process != b.Process {
			return a.Process < b.Process
		}
		return a.Window < b.Window
	})
	return Analysis{Usages: usages, Total: total}
}

// ProcessBaseName reduces an executable path to its final component. Both
// slash styles are treated as separators so paths recorded on Windows group
// the same way everywhere.
func ProcessBaseName(path string) string {
	trimmed := strings.TrimRight(path, `/\`)
	if trimmed == "" {
		return path
	}
	if i := strings.LastIndexAny(trimmed, `/\`); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// ErrInvalidPercentage is returned by ParsePercentage for negative or
// malformed input.
var ErrInvalidPercentage = xerrors.New("invalid percentage")

// ParsePercentage accepts "10" or "10%".
func ParsePercentage(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil {
		return 0, xerrors.Errorf("parse %q: %w", s, ErrInvalidPercentage)
	}
	if v < 0 {
		return 0, xerrors.Errorf("%q is negative: %w", s, ErrInvalidPercentage)
	}
	return v, nil
}
