package reminder

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// InactivityMonths is how long a user must stay away before being reminded.
const InactivityMonths = 3

const wallClockLayout = "2006-01-02 15:04:05"

// Cutoff is now minus months calendar months in loc. The day is clamped to the length
// of the target month (May 31 gives Feb 29 or 28) and the wall clock is kept.
func Cutoff(now time.Time, loc *time.Location, months int) time.Time {
	now = now.In(loc)
	y, m, d := now.Date()

	target := time.Date(y, m-time.Month(months), 1, 0, 0, 0, 0, loc)
	if last := daysIn(target.Year(), target.Month(), loc); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d,
		now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), loc)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// ParseServerTime reads a time service datetime. RFC 3339 values keep their offset
// and are converted to loc; bare wall-clock values are read in loc.
func ParseServerTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range []string{wallClockLayout, "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognised server time %q", s)
}
