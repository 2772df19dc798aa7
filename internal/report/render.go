package report

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/xerrors"
)

const (
	markdownSentinel = "<!-- dwell-report-version: 1 -->"
	markdownDataOpen = "<!-- dwell-data: "
	markdownDataEnd  = " -->"
)

// ErrUnknownFormat is returned by RendererFor for unsupported names.
var ErrUnknownFormat = xerrors.New("unknown report format")

// Renderer serializes a Report to bytes.
type Renderer interface {
	Render(r *Report) ([]byte, error)
}

// RendererFor returns the renderer for a --format value.
func RendererFor(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return &TextRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "markdown", "md":
		return &MarkdownRenderer{}, nil
	default:
		return nil, xerrors.Errorf("%q (want text, json or markdown): %w", format, ErrUnknownFormat)
	}
}

// FormatDuration prints d as 1h2m3s, 2m3s or 3s, dropping sub-second
// precision.
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	h, m, s := secs/3600, secs/60%60, secs%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm%ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// TextRenderer writes one tab-separated line per entry and a blank line
// after each bucket. Buckets without entries are omitted.
type TextRenderer struct{}

func (t *TextRenderer) Render(r *Report) ([]byte, error) {
	var sb strings.Builder
	for _, b := range r.Buckets {
		if len(b.Entries) == 0 {
			continue
		}
		label := r.Label(b.Start)
		for _, e := range b.Entries {
			fmt.Fprintf(&sb, "%s\t%d%%\t%s\t%s", label, e.Percent, FormatDuration(e.Duration), e.Process)
			if r.ByWindow {
				fmt.Fprintf(&sb, "\t%s", e.Window)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return []byte(sb.String()), nil
}

// JSONRenderer renders a Report as indented JSON.
type JSONRenderer struct{}

func (j *JSONRenderer) Render(r *Report) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// MarkdownRenderer renders a Report as Markdown tables with the JSON form
// embedded in a comment, so the file can be opened again with a Parser.
type MarkdownRenderer struct{}

func (m *MarkdownRenderer) Render(r *Report) ([]byte, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, xerrors.Errorf("marshal report: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(markdownSentinel + "\n")
	fmt.Fprintf(&sb, "%s%s%s\n\n", markdownDataOpen, base64.StdEncoding.EncodeToString(payload), markdownDataEnd)

	fmt.Fprintf(&sb, "# Activity %s to %s\n\n",
		r.Start.Format("2006-01-02 15:04"), r.End.Format("2006-01-02 15:04"))

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Bucket width: %s\n", r.Width)
	fmt.Fprintf(&sb, "- Buckets: %d\n", len(r.Buckets))
	fmt.Fprintf(&sb, "- Tracked: %s\n\n", FormatDuration(r.Tracked()))

	sb.WriteString("## Totals\n\n")
	totals := r.Totals()
	if len(totals) == 0 {
		sb.WriteString("_No activity recorded._\n\n")
	} else {
		writeTable(&sb, r.ByWindow, totals)
	}

	sb.WriteString("## Buckets\n\n")
	for _, b := range r.Buckets {
		if len(b.Entries) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "### %s\n\n", r.Label(b.Start))
		writeTable(&sb, r.ByWindow, b.Entries)
	}
	return []byte(sb.String()), nil
}

func writeTable(sb *strings.Builder, byWindow bool, entries []Entry) {
	if byWindow {
		sb.WriteString("| Share | Duration | Process | Window |\n")
		sb.WriteString("|------:|---------:|---------|--------|\n")
	} else {
		sb.WriteString("| Share | Duration | Process |\n")
		sb.WriteString("|------:|---------:|---------|\n")
	}
	for _, e := range entries {
		fmt.Fprintf(sb, "| %d%% | %s | %s |", e.Percent, FormatDuration(e.Duration), escapeCell(e.Process))
		if byWindow {
			fmt.Fprintf(sb, " %s |", escapeCell(e.Window))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
