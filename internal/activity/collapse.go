package activity

import "time"

// MergeGap is the largest gap between the end of one interval and the next
// sample that is still bridged when the window changes.
const MergeGap = 2 * time.Second

// Collapse folds samples into the minimal ordered list of intervals, seeded
// with carried when it is non-nil. The first element of the result replaces
// carried.
//
// A sample with a different key that arrives within MergeGap of the previous
// interval's end opens an interval anchored at that end and running up to the
// sample's timestamp, so the slack between polls is attributed to the new
// window. A run of bridged switches therefore abuts end to end and its
// durations add up to the elapsed time. An unbridged sample starts a
// zero-length interval at its own timestamp.
func Collapse(carried *Interval, samples []Sample) []Interval {
	out := make([]Interval, 0, len(samples)+1)
	if carried != nil {
		out = append(out, *carried)
	}
	for _, s := range samples {
		if len(out) == 0 {
			out = append(out, Seed(s))
			continue
		}
		last := &out[len(out)-1]
		if last.Matches(s) {
			if s.Timestamp.After(last.End()) {
				last.Duration = s.Timestamp.Sub(last.Start)
			}
			continue
		}
		next := Seed(s)
		if s.Timestamp.Sub(last.End()) < MergeGap {
			next.Start = last.End()
			if s.Timestamp.After(next.Start) {
				next.Duration = s.Timestamp.Sub(next.Start)
			}
		}
		out = append(out, next)
	}
	return out
}
