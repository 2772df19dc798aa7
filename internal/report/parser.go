package report

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"
)

// ErrNotReport is returned when a file does not hold a dwell report.
var ErrNotReport = xerrors.New("not a dwell report")

// Parser deserializes a report file back into structured data.
type Parser interface {
	Parse(data []byte) (*Report, error)
}

// ParserFor picks a parser from the file extension.
func ParserFor(path string) Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return &MarkdownParser{}
	default:
		return &JSONParser{}
	}
}

// JSONParser parses a JSON-encoded Report.
type JSONParser struct{}

func (p *JSONParser) Parse(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, xerrors.Errorf("parse JSON report: %w", err)
	}
	return &r, nil
}

// MarkdownParser extracts the JSON payload embedded by MarkdownRenderer.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(data []byte) (*Report, error) {
	if !bytes.Contains(data, []byte(markdownSentinel)) {
		return nil, xerrors.Errorf("missing version sentinel: %w", ErrNotReport)
	}
	content := string(data)
	start := strings.Index(content, markdownDataOpen)
	if start == -1 {
		return nil, xerrors.Errorf("missing data payload: %w", ErrNotReport)
	}
	start += len(markdownDataOpen)
	end := strings.Index(content[start:], markdownDataEnd)
	if end == -1 {
		return nil, xerrors.Errorf("malformed data payload: %w", ErrNotReport)
	}

	payload, err := base64.StdEncoding.DecodeString(content[start : start+end])
	if err != nil {
		return nil, xerrors.Errorf("corrupted payload: %v: %w", err, ErrNotReport)
	}
	var r Report
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, xerrors.Errorf("embedded JSON: %v: %w", err, ErrNotReport)
	}
	return &r, nil
}
