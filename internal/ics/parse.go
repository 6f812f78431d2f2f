package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"meetcal/internal/recurrence"
)

// ParsedEvent is a VEVENT read back from a published feed.
type ParsedEvent struct {
	UID     string
	Summary string

	Start time.Time
	End   time.Time

	RawRRule string
	ExDates  []time.Time
}

// ParsedFeed is the calendar-level view of a published feed.
type ParsedFeed struct {
	ProductID string
	Method    string
	Events    []ParsedEvent
}

// ParseFeed reads a generated document with an independent iCalendar
// parser. It is how the binary's -once mode and the tests check that what
// we publish is something a calendar client can consume.
func ParseFeed(body []byte) (ParsedFeed, error) {
	var out ParsedFeed
	if len(body) == 0 {
		return out, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return out, err
	}

	for _, p := range cal.CalendarProperties {
		switch p.IANAToken {
		case string(ical.PropertyProductId):
			out.ProductID = p.Value
		case string(ical.PropertyMethod):
			out.Method = p.Value
		}
	}

	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			return out, perr
		}
		out.Events = append(out.Events, ev)
	}
	return out, nil
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return out, err
	}
	out.Start = start
	out.End = end

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, perr := time.Parse(recurrence.StampLayout, part)
			if perr != nil {
				return out, perr
			}
			out.ExDates = append(out.ExDates, t)
		}
	}

	return out, nil
}
