package recurrence

import (
	"fmt"
	"strings"
	"time"
)

const (
	// StampLayout is the compact UTC form shared by DTSTART, DTEND and EXDATE.
	StampLayout = "20060102T150405Z"
	DateLayout  = "2006-01-02"
)

var clockLayouts = []string{"15:04:05", "15:04"}

// At combines a YYYY-MM-DD date and an HH:MM[:SS] clock into a UTC instant.
func At(date, clock string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	clock = strings.TrimSpace(clock)
	for _, layout := range clockLayouts {
		c, cerr := time.Parse(layout, clock)
		if cerr == nil {
			return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q: unrecognized layout", clock)
}

func Stamp(t time.Time) string {
	return t.UTC().Format(StampLayout)
}

// FormatExDates renders cancelled dates at the meeting's start clock so that
// each value matches the DTSTART of the instance it cancels. The first bad
// date aborts with an error naming it.
func FormatExDates(dates []string, clock string) ([]string, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		t, err := At(d, clock)
		if err != nil {
			return nil, fmt.Errorf("exdate: %w", err)
		}
		out = append(out, Stamp(t))
	}
	return out, nil
}
