// Package scheduler implements the batch job-assignment planner: a
// single-pass greedy pass that assigns pending jobs to printers over a
// bounded horizon while minimizing filament-swap setup cost and respecting
// a daily blackout window.
package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BlackoutWindow is a daily "HH:MM"-"HH:MM" interval during which no job
// may start or run, which may wrap midnight.
type BlackoutWindow struct {
	StartMinute int
	EndMinute   int
	enabled     bool
}

// ParseBlackoutWindow parses two "HH:MM" strings into a BlackoutWindow. An
// empty start or end disables the window entirely (PushOutsideBlackout
// becomes a no-op), matching a deployment with no configured blackout.
func ParseBlackoutWindow(start, end string) (BlackoutWindow, error) {
	if start == "" || end == "" {
		return BlackoutWindow{}, nil
	}
	sm, err := parseHHMM(start)
	if err != nil {
		return BlackoutWindow{}, fmt.Errorf("scheduler: blackout start: %w", err)
	}
	em, err := parseHHMM(end)
	if err != nil {
		return BlackoutWindow{}, fmt.Errorf("scheduler: blackout end: %w", err)
	}
	return BlackoutWindow{StartMinute: sm, EndMinute: em, enabled: true}, nil
}

func parseHHMM(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid HH:MM value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("out-of-range HH:MM value %q", s)
	}
	return h*60 + m, nil
}

// Enabled reports whether a blackout window is configured.
func (b BlackoutWindow) Enabled() bool { return b.enabled }

// occurrenceOn returns the absolute [start, end) blackout interval that
// begins on the calendar day of day, honoring midnight wrap (end on the
// following day when EndMinute <= StartMinute).
func (b BlackoutWindow) occurrenceOn(day time.Time) (time.Time, time.Time) {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	start := midnight.Add(time.Duration(b.StartMinute) * time.Minute)
	end := midnight.Add(time.Duration(b.EndMinute) * time.Minute)
	if b.EndMinute <= b.StartMinute {
		end = end.AddDate(0, 0, 1)
	}
	return start, end
}

// PushOutsideBlackout slides a candidate [start, start+dur) window forward
// past any blackout occurrence it intersects, repeating until the window
// fits entirely outside every blackout interval. Intersection uses half-open
// interval semantics, so a window ending exactly at blackout start, or
// starting exactly at blackout end, is never considered an intersection.
func (b BlackoutWindow) PushOutsideBlackout(start time.Time, dur time.Duration) time.Time {
	if !b.enabled {
		return start
	}
	// One pass per day the job could possibly straddle is always enough;
	// 400 is a generous bound against any logic error turning this into an
	// infinite loop rather than a reflection of real schedules.
	for i := 0; i < 400; i++ {
		end := start.Add(dur)
		moved := false
		for _, dayOffset := range []int{-1, 0, 1} {
			day := start.AddDate(0, 0, dayOffset)
			bs, be := b.occurrenceOn(day)
			if bs.Before(end) && be.After(start) {
				start = be
				moved = true
				break
			}
		}
		if !moved {
			return start
		}
	}
	return start
}
