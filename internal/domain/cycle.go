package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// cycleLayout is the wire format of a cycle timestamp: YYYYMMDDHH, UTC.
const cycleLayout = "2006010215"

// ErrNoCycleAvailable is returned by LatestCycle when no cycle within the
// search window has cleared its availability delay yet.
var ErrNoCycleAvailable = errors.New("no forecast cycle available yet")

// Cycle identifies one model run issuance by its UTC reference time.
type Cycle struct {
	t time.Time
}

// NewCycle builds a Cycle from a time, truncated to the hour in UTC.
func NewCycle(t time.Time) Cycle {
	return Cycle{t: t.UTC().Truncate(time.Hour)}
}

// ParseCycle parses a YYYYMMDDHH timestamp.
func ParseCycle(s string) (Cycle, error) {
	t, err := time.ParseInLocation(cycleLayout, s, time.UTC)
	if err != nil {
		return Cycle{}, fmt.Errorf("invalid cycle time %q (want YYYYMMDDHH): %w", s, err)
	}
	return Cycle{t: t}, nil
}

// Time returns the cycle reference time in UTC.
func (c Cycle) Time() time.Time { return c.t }

// String formats the cycle as YYYYMMDDHH.
func (c Cycle) String() string { return c.t.Format(cycleLayout) }

// Stamp formats the cycle for artifact file names, e.g. "20190701T00Z".
func (c Cycle) Stamp() string { return c.t.Format("20060102T15Z") }

// IsZero reports whether the cycle is unset.
func (c Cycle) IsZero() bool { return c.t.IsZero() }

// HourTime returns the valid time of the given lead hour.
func (c Cycle) HourTime(hour int) time.Time {
	return c.t.Add(time.Duration(hour) * time.Hour)
}

// LatestCycle returns the most recent cycle of m whose availability delay has
// elapsed at the current clock time. Today's and yesterday's scheduled cycles
// are searched in reverse chronological order.
func LatestCycle(m Model, now time.Time) (Cycle, error) {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	hours := append([]int(nil), m.CycleHours...)
	sort.Ints(hours)

	var candidates []time.Time
	for _, d := range []time.Time{day.AddDate(0, 0, -1), day} {
		for _, h := range hours {
			candidates = append(candidates, d.Add(time.Duration(h)*time.Hour))
		}
	}

	for i := len(candidates) - 1; i >= 0; i-- {
		if !now.Before(candidates[i].Add(m.AvailabilityDelay)) {
			return Cycle{t: candidates[i]}, nil
		}
	}
	return Cycle{}, fmt.Errorf("%w for model %s at %s", ErrNoCycleAvailable, m.ID, now.Format(time.RFC3339))
}
