package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWidthLimits(t *testing.T) {
	tests := []struct {
		n     int
		unit  Unit
		valid bool
	}{
		{1, Seconds, true},
		{59, Seconds, true},
		{60, Seconds, false},
		{0, Minutes, false},
		{59, Minutes, true},
		{23, Hours, true},
		{24, Hours, false},
		{6, Days, true},
		{7, Days, false},
		{1, Weeks, true},
		{2, Weeks, false},
		{-1, Hours, false},
	}
	for _, tt := range tests {
		_, err := NewWidth(tt.n, tt.unit)
		if tt.valid {
			assert.NoError(t, err, "%d %s", tt.n, tt.unit)
		} else {
			assert.ErrorIs(t, err, ErrInvalidWidth, "%d %s", tt.n, tt.unit)
		}
	}
}

func TestParseUnit(t *testing.T) {
	for in, want := range map[string]Unit{
		"seconds": Seconds,
		"minute":  Minutes,
		"Hours":   Hours,
		" days ":  Days,
		"week":    Weeks,
	} {
		got, err := ParseUnit(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseUnit("fortnights")
	assert.ErrorIs(t, err, ErrInvalidWidth)
}

func TestCleanStart(t *testing.T) {
	at := func(h, m, s int) time.Time { return time.Date(2024, 4, 5, h, m, s, 0, time.UTC) }

	tests := []struct {
		n    int
		unit Unit
		in   time.Time
		want time.Time
	}{
		{2, Hours, at(12, 24, 54), at(12, 0, 0)},
		{1, Hours, at(11, 56, 5), at(11, 0, 0)},
		{1, Hours, at(16, 0, 0), at(16, 0, 0)},
		{5, Hours, at(23, 59, 59), at(20, 0, 0)},
		{15, Minutes, at(4, 24, 54), at(4, 15, 0)},
		{10, Minutes, at(11, 56, 5), at(11, 50, 0)},
		{1, Minutes, at(16, 5, 0), at(16, 5, 0)},
		{5, Minutes, at(23, 59, 59), at(23, 55, 0)},
		{5, Seconds, at(4, 24, 4), at(4, 24, 0)},
		{15, Seconds, at(4, 24, 59), at(4, 24, 45)},
		{15, Seconds, at(4, 24, 45), at(4, 24, 45)},
		{3, Days, at(4, 24, 45), at(0, 0, 0)},
		// 2024-04-05 is a Friday.
		{1, Weeks, at(4, 24, 45), time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		w, err := NewWidth(tt.n, tt.unit)
		require.NoError(t, err)
		assert.Equal(t, tt.want, w.CleanStart(tt.in, time.UTC), "%s from %s", w, tt.in.Format(time.TimeOnly))
	}
}

func TestCleanStartUsesLocation(t *testing.T) {
	zone := time.FixedZone("UTC+3", 3*60*60)
	w, err := NewWidth(1, Days)
	require.NoError(t, err)

	// 22:30 UTC is already the next day in UTC+3.
	got := w.CleanStart(time.Date(2024, 4, 5, 22, 30, 0, 0, time.UTC), zone)
	assert.True(t, got.Equal(time.Date(2024, 4, 6, 0, 0, 0, 0, zone)), got)
}

func TestBucketEndClipsAtMidnight(t *testing.T) {
	w, err := NewWidth(5, Hours)
	require.NoError(t, err)

	start := time.Date(2024, 4, 5, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 4, 6, 0, 0, 0, 0, time.UTC), w.bucketEnd(start, time.UTC))

	start = time.Date(2024, 4, 6, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 4, 6, 5, 0, 0, 0, time.UTC), w.bucketEnd(start, time.UTC))
}

func TestWidthShowsTime(t *testing.T) {
	assert.True(t, Width{N: 30, Unit: Minutes}.ShowsTime())
	assert.False(t, Width{N: 1, Unit: Days}.ShowsTime())
	assert.Equal(t, 90*time.Second, Width{N: 90, Unit: Seconds}.Duration())
	assert.Equal(t, "15 minutes", Width{N: 15, Unit: Minutes}.String())
}
