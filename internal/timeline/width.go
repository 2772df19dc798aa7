package timeline

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/xerrors"
)

// Unit is the calendar unit of a bucket width, ordered from finest to
// coarsest.
type Unit int

const (
	Seconds Unit = iota
	Minutes
	Hours
	Days
	Weeks
)

var unitNames = [...]string{"seconds", "minutes", "hours", "days", "weeks"}

// ErrInvalidWidth is returned for bucket widths outside the supported range.
var ErrInvalidWidth = xerrors.New("invalid bucket width")

func (u Unit) String() string {
	if u < Seconds || u > Weeks {
		return "unknown"
	}
	return unitNames[u]
}

// ParseUnit accepts a unit name, case-insensitively, in plural or singular
// form.
func ParseUnit(s string) (Unit, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range unitNames {
		if s == name || s == strings.TrimSuffix(name, "s") {
			return Unit(i), nil
		}
	}
	return 0, xerrors.Errorf("unknown unit %q (want one of %s): %w", s, strings.Join(unitNames[:], ", "), ErrInvalidWidth)
}

// unitLimit is the exclusive upper bound on N for each unit.
var unitLimit = [...]int{60, 60, 24, 7, 2}

// Width is a bucket size such as "15 minutes".
type Width struct {
	N    int
	Unit Unit
}

// NewWidth validates n against the range allowed for unit.
func NewWidth(n int, unit Unit) (Width, error) {
	if unit < Seconds || unit > Weeks {
		return Width{}, xerrors.Errorf("unit %d: %w", unit, ErrInvalidWidth)
	}
	if n <= 0 || n >= unitLimit[unit] {
		return Width{}, xerrors.Errorf("%d %s must be between 1 and %d: %w", n, unit, unitLimit[unit]-1, ErrInvalidWidth)
	}
	return Width{N: n, Unit: unit}, nil
}

func (w Width) String() string {
	return fmt.Sprintf("%d %s", w.N, w.Unit)
}

// Duration returns the nominal length of one bucket.
func (w Width) Duration() time.Duration {
	n := time.Duration(w.N)
	switch w.Unit {
	case Seconds:
		return n * time.Second
	case Minutes:
		return n * time.Minute
	case Hours:
		return n * time.Hour
	case Days:
		return n * 24 * time.Hour
	default:
		return n * 7 * 24 * time.Hour
	}
}

// ShowsTime reports whether buckets of this width need a time of day to be
// told apart.
func (w Width) ShowsTime() bool {
	return w.Unit < Days
}

// CleanStart rounds t down to the nearest boundary of w in loc, so a bucket
// starts at 12:00:00 rather than 12:07:32. Weeks start on Monday.
func (w Width) CleanStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, mo, d := t.Date()
	switch w.Unit {
	case Weeks:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, mo, d-offset, 0, 0, 0, 0, loc)
	case Days:
		return time.Date(y, mo, d, 0, 0, 0, 0, loc)
	case Hours:
		return time.Date(y, mo, d, t.Hour()-t.Hour()%w.N, 0, 0, 0, loc)
	case Minutes:
		return time.Date(y, mo, d, t.Hour(), t.Minute()-t.Minute()%w.N, 0, 0, loc)
	default:
		return time.Date(y, mo, d, t.Hour(), t.Minute(), t.Second()-t.Second()%w.N, 0, loc)
	}
}

// bucketEnd returns start + w, pulled back to local midnight when that would
// cross into another calendar day. Day and week widths step by calendar
// days so daylight saving changes keep buckets aligned to midnight.
func (w Width) bucketEnd(start time.Time, loc *time.Location) time.Time {
	var end time.Time
	switch w.Unit {
	case Days:
		end = start.In(loc).AddDate(0, 0, w.N)
	case Weeks:
		end = start.In(loc).AddDate(0, 0, 7*w.N)
	default:
		end = start.Add(w.Duration())
	}
	ls, le := start.In(loc), end.In(loc)
	sy, sm, sd := ls.Date()
	ey, em, ed := le.Date()
	if sy != ey || sm != em || sd != ed {
		end = time.Date(ey, em, ed, 0, 0, 0, 0, loc)
	}
	return end
}
