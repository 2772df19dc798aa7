// Package report turns bucket analyses into a self-contained document that
// can be rendered as text, JSON or Markdown and read back later.
package report

import (
	"sort"
	"time"

	"github.com/fakeyudi/dwell/internal/timeline"
)

// Report is the complete, renderable result of one timeline query.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Width       string    `json:"width"`
	ShowTime    bool      `json:"show_time"` // bucket labels need a time of day
	ByWindow    bool      `json:"by_window"`
	Buckets     []Bucket  `json:"buckets"`
}

// Bucket is one analysed time window. Durations are encoded as nanoseconds.
type Bucket struct {
	Start   time.Time     `json:"start"`
	End     time.Time     `json:"end"`
	Total   time.Duration `json:"total"`
	Entries []Entry       `json:"entries"`
}

// Entry is the time attributed to one process, or one process window.
type Entry struct {
	Process  string        `json:"process"`
	Window   string        `json:"window,omitempty"`
	Path     string        `json:"path,omitempty"`
	Duration time.Duration `json:"duration"`
	Percent  int           `json:"percent"`
}

// Meta describes the query a report was built from.
type Meta struct {
	Start    time.Time
	End      time.Time
	Width    timeline.Width
	ByWindow bool
}

// Build assembles a report from grouped analyses.
func Build(meta Meta, buckets []timeline.Bucket[timeline.Analysis], now time.Time) *Report {
	r := &Report{
		GeneratedAt: now,
		Start:       meta.Start,
		End:         meta.End,
		Width:       meta.Width.String(),
		ShowTime:    meta.Width.ShowsTime(),
		ByWindow:    meta.ByWindow,
		Buckets:     make([]Bucket, 0, len(buckets)),
	}
	for _, b := range buckets {
		out := Bucket{
			Start:   b.Start,
			End:     b.End,
			Total:   b.Result.Total,
			Entries: make([]Entry, 0, len(b.Result.Usages)),
		}
		for _, u := range b.Result.Usages {
			out.Entries = append(out.Entries, Entry{
				Process:  u.Process,
				Window:   u.Window,
				Path:     u.Path,
				Duration: u.Duration,
				Percent:  b.Result.Percent(u),
			})
		}
		r.Buckets = append(r.Buckets, out)
	}
	return r
}

// Tracked returns the summed bucket totals.
func (r *Report) Tracked() time.Duration {
	var total time.Duration
	for _, b := range r.Buckets {
		total += b.Total
	}
	return total
}

// Totals merges the entries of every bucket, ordered like a single bucket.
// Percentages are relative to Tracked.
func (r *Report) Totals() []Entry {
	type key struct{ process, window string }
	merged := make(map[key]*Entry)
	for _, b := range r.Buckets {
		for _, e := range b.Entries {
			k := key{e.Process, e.Window}
			m, ok := merged[k]
			if !ok {
				m = &Entry{Process: e.Process, Window: e.Window, Path: e.Path}
				merged[k] = m
			}
			m.Duration += e.Duration
		}
	}

	tracked := r.Tracked()
	totals := make([]Entry, 0, len(merged))
	for _, e := range merged {
		if tracked > 0 {
			e.Percent = int(e.Duration * 100 / tracked)
		}
		totals = append(totals, *e)
	}
	sort.Slice(totals, func(i, j int) bool {
		a, b := totals[i], totals[j]
		if a.Duration != b.Duration {
			return a.Duration > b.Duration
		}
		if a.Process != b.Process {
			return a.Process < b.Process
		}
		return a.Window < b.Window
	})
	return totals
}

// Label formats a bucket start the way every renderer shows it.
func (r *Report) Label(t time.Time) string {
	if r.ShowTime {
		return t.Format("2006-01-02 15:04:05")
	}
	return t.Format("2006-01-02")
}
