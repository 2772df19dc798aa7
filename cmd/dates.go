package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/tj/go-naturaldate"
)

// dateLayouts are tried in order before falling back to natural language.
// Single-digit layout fields also accept two digits.
var dateLayouts = map[string][]string{
	"uk": {"2/1/2006", "15:04 2/1/2006", "3 PM 2/1/2006", "3PM 2/1/2006"},
	"us": {"1/2/2006", "15:04 1/2/2006", "3 PM 1/2/2006", "3PM 1/2/2006"},
}

var isoLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"}

// parseDate reads a --start/--end value. Numeric dates follow style (uk is
// day/month/year, us is month/day/year); anything else is natural language
// relative to ref, such as "yesterday" or "2 hours ago".
func parseDate(s, style string, ref time.Time, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	layouts, ok := dateLayouts[strings.ToLower(style)]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown date style %q (want uk or us)", style)
	}
	for _, layout := range append(layouts, isoLayouts...) {
		if t, err := time.ParseInLocation(layout, strings.ToUpper(s), loc); err == nil {
			return t, nil
		}
	}
	t, err := naturaldate.Parse(s, ref.In(loc), naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse date %q: %w", s, err)
	}
	return t, nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func nextDayStart(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}
