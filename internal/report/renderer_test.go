package report_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/fakeyudi/dwell/internal/report"
)

// generateTime produces a second-precision UTC time, which survives a JSON
// round trip unchanged.
func generateTime(t *rapid.T, label string) time.Time {
	sec := rapid.Int64Range(1_000_000_000, 1_900_000_000).Draw(t, label+"_unix_sec")
	return time.Unix(sec, 0).UTC()
}

func generateReport(t *rapid.T) *report.Report {
	byWindow := rapid.Bool().Draw(t, "by_window")
	numBuckets := rapid.IntRange(1, 4).Draw(t, "num_buckets")
	buckets := make([]report.Bucket, numBuckets)
	for i := range buckets {
		numEntries := rapid.IntRange(1, 4).Draw(t, "num_entries")
		entries := make([]report.Entry, numEntries)
		var total time.Duration
		for j := range entries {
			e := report.Entry{
				Process:  rapid.StringN(1, 30, -1).Draw(t, "process"),
				Path:     rapid.StringN(0, 50, -1).Draw(t, "path"),
				Duration: time.Duration(rapid.Int64Range(0, 86_400).Draw(t, "seconds")) * time.Second,
				Percent:  rapid.IntRange(0, 100).Draw(t, "percent"),
			}
			if byWindow {
				e.Window = rapid.StringN(0, 30, -1).Draw(t, "window")
			}
			total += e.Duration
			entries[j] = e
		}
		start := generateTime(t, "bucket_start")
		buckets[i] = report.Bucket{
			Start:   start,
			End:     start.Add(time.Hour),
			Total:   total,
			Entries: entries,
		}
	}
	return &report.Report{
		GeneratedAt: generateTime(t, "generated"),
		Start:       generateTime(t, "start"),
		End:         generateTime(t, "end"),
		Width:       rapid.SampledFrom([]string{"30 seconds", "1 hours", "1 days"}).Draw(t, "width"),
		ShowTime:    rapid.Bool().Draw(t, "show_time"),
		ByWindow:    byWindow,
		Buckets:     buckets,
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{999 * time.Millisecond, "0s"},
		{59 * time.Second, "59s"},
		{time.Minute, "1m0s"},
		{2*time.Minute + 3*time.Second, "2m3s"},
		{time.Hour, "1h0m0s"},
		{26*time.Hour + 2*time.Minute + 3*time.Second, "26h2m3s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, report.FormatDuration(tt.in))
	}
}

func TestTextRenderer(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 4, 5, 12, 0, 0, 0, time.UTC)
	r := &report.Report{
		ShowTime: true,
		ByWindow: true,
		Buckets: []report.Bucket{
			{Start: start, Total: 30 * time.Second, Entries: []report.Entry{
				{Process: "a", Window: "entity a", Duration: 15 * time.Second, Percent: 50},
				{Process: "b", Window: "entity b", Duration: 15 * time.Second, Percent: 50},
			}},
			{Start: start.Add(30 * time.Second)},
			{Start: start.Add(time.Minute), Total: time.Hour, Entries: []report.Entry{
				{Process: "a", Window: "entity a", Duration: time.Hour, Percent: 100},
			}},
		},
	}

	out, err := (&report.TextRenderer{}).Render(r)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-05 12:00:00\t50%\t15s\ta\tentity a\n"+
		"2024-04-05 12:00:00\t50%\t15s\tb\tentity b\n"+
		"\n"+
		"2024-04-05 12:01:00\t100%\t1h0m0s\ta\tentity a\n"+
		"\n", string(out))

	r.ByWindow, r.ShowTime = false, false
	out, err = (&report.TextRenderer{}).Render(r)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "2024-04-05\t50%\t15s\ta\n"), string(out))
}

func TestRendererFor(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"", "text", "json", "JSON", "markdown", "md"} {
		_, err := report.RendererFor(format)
		assert.NoError(t, err, format)
	}
	_, err := report.RendererFor("yaml")
	assert.ErrorIs(t, err, report.ErrUnknownFormat)
}

// Feature: dwell, Property: every rendered Markdown report carries all
// sections and every process name.
func TestMarkdownCompleteness(t *testing.T) {
	renderer := &report.MarkdownRenderer{}

	rapid.Check(t, func(t *rapid.T) {
		r := generateReport(t)
		out, err := renderer.Render(r)
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		md := string(out)
		for _, section := range []string{"## Summary", "## Totals", "## Buckets"} {
			if !strings.Contains(md, section) {
				t.Errorf("missing section %q", section)
			}
		}
	})
}

// Feature: dwell, Property: JSON and Markdown reports parse back to the
// report that produced them.
func TestReportRoundTrip(t *testing.T) {
	cases := []struct {
		renderer report.Renderer
		parser   report.Parser
	}{
		{&report.JSONRenderer{}, &report.JSONParser{}},
		{&report.MarkdownRenderer{}, &report.MarkdownParser{}},
	}

	rapid.Check(t, func(t *rapid.T) {
		original := generateReport(t)
		for _, c := range cases {
			data, err := c.renderer.Render(original)
			if err != nil {
				t.Fatalf("%T.Render: %v", c.renderer, err)
			}
			got, err := c.parser.Parse(data)
			if err != nil {
				t.Fatalf("%T.Parse: %v", c.parser, err)
			}
			assert.Equal(t, original, got)
		}
	})
}
