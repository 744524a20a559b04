package scheduler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printfleet/printfleet/internal/application/scheduler"
)

func TestParseBlackoutWindow_EmptyDisables(t *testing.T) {
	w, err := scheduler.ParseBlackoutWindow("", "")
	require.NoError(t, err)
	assert.False(t, w.Enabled())

	// A disabled window never moves a start.
	start := at(23, 0)
	assert.Equal(t, start, w.PushOutsideBlackout(start, time.Hour))
}

func TestParseBlackoutWindow_RejectsMalformedInput(t *testing.T) {
	cases := []struct{ start, end string }{
		{"2200", "07:00"},
		{"22:00", "7pm"},
		{"25:00", "07:00"},
		{"22:00", "07:61"},
		{"-1:00", "07:00"},
	}
	for _, c := range cases {
		_, err := scheduler.ParseBlackoutWindow(c.start, c.end)
		assert.Error(t, err, "start=%q end=%q", c.start, c.end)
	}
}

func TestPushOutsideBlackout_SlidesToWindowEnd(t *testing.T) {
	w, err := scheduler.ParseBlackoutWindow("22:00", "07:00")
	require.NoError(t, err)

	// Starting inside the evening half of the window.
	got := w.PushOutsideBlackout(at(23, 0), time.Hour)
	assert.Equal(t, time.Date(2026, 3, 3, 7, 0, 0, 0, time.UTC), got)

	// Starting inside the morning half.
	got = w.PushOutsideBlackout(at(6, 0), time.Hour)
	assert.Equal(t, at(7, 0), got)
}

func TestPushOutsideBlackout_WindowStraddlingBlackoutIsPushed(t *testing.T) {
	w, err := scheduler.ParseBlackoutWindow("22:00", "07:00")
	require.NoError(t, err)

	// 21:30 + 2h would run into the 22:00 blackout.
	got := w.PushOutsideBlackout(at(21, 30), 2*time.Hour)
	assert.Equal(t, time.Date(2026, 3, 3, 7, 0, 0, 0, time.UTC), got)
}

func TestPushOutsideBlackout_BoundariesAreExclusive(t *testing.T) {
	w, err := scheduler.ParseBlackoutWindow("22:00", "07:00")
	require.NoError(t, err)

	// Ending exactly at blackout start is valid.
	assert.Equal(t, at(21, 0), w.PushOutsideBlackout(at(21, 0), time.Hour))

	// Starting exactly at blackout end is valid.
	assert.Equal(t, at(7, 0), w.PushOutsideBlackout(at(7, 0), time.Hour))
}

func TestPushOutsideBlackout_NonWrappingWindow(t *testing.T) {
	w, err := scheduler.ParseBlackoutWindow("12:00", "13:00")
	require.NoError(t, err)

	assert.Equal(t, at(13, 0), w.PushOutsideBlackout(at(12, 30), time.Hour))
	assert.Equal(t, at(10, 0), w.PushOutsideBlackout(at(10, 0), time.Hour))
}
