// Package recurrence models how a meeting series repeats. The same Rule value
// drives both the RRULE written into the feed and the occurrence listing, so
// the two cannot disagree about which dates a series produces.
package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// ErrUnknownRule is returned when a frequency or qualifier is outside the
// recognized grammar.
var ErrUnknownRule = errors.New("unknown recurrence rule")

type Frequency int

const (
	None Frequency = iota
	Weekly
	Monthly
)

func (f Frequency) String() string {
	switch f {
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	default:
		return "none"
	}
}

// OrdinalWeekday is a positional qualifier such as "3rd Wednesday".
// Ordinal is one of 1, 2, 3, 4 or -1 (last).
type OrdinalWeekday struct {
	Ordinal int
	Weekday time.Weekday
}

var weekdayCodes = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// Code renders the BYDAY value, e.g. "3WE" or "-1FR".
func (o OrdinalWeekday) Code() string {
	return strconv.Itoa(o.Ordinal) + weekdayCodes[o.Weekday]
}

func (o OrdinalWeekday) String() string {
	var ord string
	switch o.Ordinal {
	case 1:
		ord = "1st"
	case 2:
		ord = "2nd"
	case 3:
		ord = "3rd"
	case 4:
		ord = "4th"
	default:
		ord = "last"
	}
	return ord + " " + o.Weekday.String()
}

// Rule is None, Weekly, or Monthly with an optional qualifier. The zero
// value is a one-off event. Qualifier is ignored unless Freq is Monthly.
type Rule struct {
	Freq      Frequency
	Qualifier *OrdinalWeekday
}

func WeeklyRule() Rule { return Rule{Freq: Weekly} }

func MonthlyRule() Rule { return Rule{Freq: Monthly} }

func MonthlyOn(ordinal int, wd time.Weekday) Rule {
	return Rule{Freq: Monthly, Qualifier: &OrdinalWeekday{Ordinal: ordinal, Weekday: wd}}
}

func (r Rule) IsRecurring() bool { return r.Freq != None }

// RRule returns the RRULE value without the "RRULE:" prefix, or "" for a
// one-off event.
func (r Rule) RRule() string {
	switch r.Freq {
	case Weekly:
		return "FREQ=WEEKLY"
	case Monthly:
		if r.Qualifier != nil {
			return "FREQ=MONTHLY;BYDAY=" + r.Qualifier.Code()
		}
		return "FREQ=MONTHLY"
	default:
		return ""
	}
}

// Option builds the rrule-go options for a series starting at dtstart.
// ok is false for a one-off event.
func (r Rule) Option(dtstart time.Time) (rrule.ROption, bool) {
	opt := rrule.ROption{Dtstart: dtstart}
	switch r.Freq {
	case Weekly:
		opt.Freq = rrule.WEEKLY
	case Monthly:
		opt.Freq = rrule.MONTHLY
		if r.Qualifier != nil {
			wd := rruleWeekday(r.Qualifier.Weekday)
			opt.Byweekday = []rrule.Weekday{wd.Nth(r.Qualifier.Ordinal)}
		}
	default:
		return rrule.ROption{}, false
	}
	return opt, true
}

func rruleWeekday(wd time.Weekday) rrule.Weekday {
	switch wd {
	case time.Monday:
		return rrule.MO
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	default:
		return rrule.SU
	}
}

// ParseRule reads the stored form of a rule: a frequency ("", "none",
// "weekly", "monthly") and, for monthly rules, an optional qualifier such as
// "3rd Wednesday" or "last friday".
func ParseRule(freq, qualifier string) (Rule, error) {
	switch strings.ToLower(strings.TrimSpace(freq)) {
	case "", "none":
		return Rule{}, nil
	case "weekly":
		return WeeklyRule(), nil
	case "monthly":
		q := strings.TrimSpace(qualifier)
		if q == "" {
			return MonthlyRule(), nil
		}
		ow, err := ParseOrdinalWeekday(q)
		if err != nil {
			return Rule{}, err
		}
		return Rule{Freq: Monthly, Qualifier: &ow}, nil
	default:
		return Rule{}, fmt.Errorf("%w: frequency %q", ErrUnknownRule, freq)
	}
}

var ordinals = map[string]int{
	"1": 1, "1st": 1, "first": 1,
	"2": 2, "2nd": 2, "second": 2,
	"3": 3, "3rd": 3, "third": 3,
	"4": 4, "4th": 4, "fourth": 4,
	"-1": -1, "last": -1,
}

func ParseOrdinalWeekday(s string) (OrdinalWeekday, error) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) != 2 {
		return OrdinalWeekday{}, fmt.Errorf("%w: qualifier %q", ErrUnknownRule, s)
	}
	n, ok := ordinals[fields[0]]
	if !ok {
		return OrdinalWeekday{}, fmt.Errorf("%w: ordinal %q", ErrUnknownRule, fields[0])
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		name := strings.ToLower(wd.String())
		if fields[1] == name || fields[1] == name[:3] || fields[1] == strings.ToLower(weekdayCodes[wd]) {
			return OrdinalWeekday{Ordinal: n, Weekday: wd}, nil
		}
	}
	return OrdinalWeekday{}, fmt.Errorf("%w: weekday %q", ErrUnknownRule, fields[1])
}
