package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClock_Advance(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := NewFixedClock(start)

	assert.Equal(t, start, c.Now())
	c.Advance(72 * time.Hour)
	assert.Equal(t, start.Add(72*time.Hour), c.Now())
}

func TestFormatRelative(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero", time.Time{}, "-"},
		{"future days", now.Add(52 * time.Hour), "in 2d 4h"},
		{"future exact days", now.Add(72 * time.Hour), "in 3d"},
		{"past hours", now.Add(-3 * time.Hour), "3h ago"},
		{"past minutes", now.Add(-10 * time.Minute), "10m ago"},
		{"imminent", now.Add(20 * time.Second), "in <1m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatRelative(tt.t, now))
		})
	}
}

func TestWithin(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	assert.True(t, Within(now, time.Time{}, time.Time{}))
	assert.True(t, Within(now, now.Add(-time.Hour), now.Add(time.Hour)))
	assert.False(t, Within(now, now.Add(time.Hour), time.Time{}))
	assert.False(t, Within(now, time.Time{}, now.Add(-time.Hour)))
}

func TestLoadLocation_FallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, LoadLocation(""))
	assert.Equal(t, time.UTC, LoadLocation("Not/AZone"))
}
