// Package activity defines the observation and interval types that flow
// through the recorder, along with the interval algebra used by queries.
package activity

import (
	"encoding/json"
	"time"
)

// Sample is a single point-in-time observation of the foreground window.
type Sample struct {
	WindowName  string
	ProcessName string // full path to the owning executable
	AFK         bool
	Timestamp   time.Time
}

// Interval is a span of constant window, process and AFK state.
type Interval struct {
	WindowName  string
	ProcessName string
	Start       time.Time
	Duration    time.Duration
	AFK         bool
}

// Seed returns the zero-duration interval a sample opens.
func Seed(s Sample) Interval {
	return Interval{
		WindowName:  s.WindowName,
		ProcessName: s.ProcessName,
		Start:       s.Timestamp,
		AFK:         s.AFK,
	}
}

// End returns Start + Duration.
func (i Interval) End() time.Time {
	return i.Start.Add(i.Duration)
}

// Matches reports whether the sample carries the same window, process and
// AFK state as the interval.
func (i Interval) Matches(s Sample) bool {
	return i.WindowName == s.WindowName &&
		i.ProcessName == s.ProcessName &&
		i.AFK == s.AFK
}

// SplitBy partitions the interval at t. A nil half means the interval has no
// part on that side of t.
func (i Interval) SplitBy(t time.Time) (before, after *Interval) {
	if t.Before(i.Start) {
		return nil, &i
	}
	if !t.Before(i.End()) {
		return &i, nil
	}
	b, a := i, i
	b.Duration = t.Sub(i.Start)
	a.Start = t
	a.Duration = i.End().Sub(t)
	return &b, &a
}

// Clamp returns the part of the interval inside [from, to), or nil.
func (i Interval) Clamp(from, to time.Time) *Interval {
	_, after := i.SplitBy(from)
	if after == nil {
		return nil
	}
	before, _ := after.SplitBy(to)
	if before == nil || (before.Duration == 0 && !before.Start.Before(to)) {
		return nil
	}
	return before
}

// record is the on-disk shape of an Interval. Times are whole seconds.
type record struct {
	WindowName  string `json:"window_name"`
	ProcessName string `json:"process_name"`
	Start       int64  `json:"start"`
	Duration    int64  `json:"duration"`
	AFK         bool   `json:"afk"`
}

// MarshalJSON writes the record-file representation. Sub-second precision
// is dropped.
func (i Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal(record{
		WindowName:  i.WindowName,
		ProcessName: i.ProcessName,
		Start:       i.Start.Unix(),
		Duration:    int64(i.Duration / time.Second),
		AFK:         i.AFK,
	})
}

// UnmarshalJSON reads the record-file representation. A missing afk field
// decodes as false.
func (i *Interval) UnmarshalJSON(data []byte) error {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*i = Interval{
		WindowName:  r.WindowName,
		ProcessName: r.ProcessName,
		Start:       time.Unix(r.Start, 0).UTC(),
		Duration:    time.Duration(r.Duration) * time.Second,
		AFK:         r.AFK,
	}
	return nil
}
