package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "meetcal/internal/log"
	"meetcal/internal/model"
	"meetcal/internal/recurrence"
)

const (
	defaultMaxOccurrencesPerEvent = 500
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// RangeStart / RangeEnd define the inclusive time window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single series. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the list of expanded occurrences and optionally
// information about truncation.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
	// Skipped records UIDs of malformed meetings.
	Skipped []string
}

// ExpandOccurrences lists the concrete instances of each meeting inside the
// configured window, applying cancellations. It reads the same
// recurrence.Rule the feed formatter writes as RRULE, so a calendar client
// and this listing agree on every date. Results are sorted by start time,
// then UID.
func ExpandOccurrences(meetings []model.Meeting, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	all := make([]model.Occurrence, 0)
	for _, m := range meetings {
		occ, hitCap, err := expandMeeting(m, cfg)
		if err != nil {
			appLog.Warn("expand: skipping malformed meeting", "id", m.ID, "err", err.Error())
			result.Skipped = append(result.Skipped, m.ID)
			continue
		}
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, m.ID)
			appLog.Warn("expand: truncated occurrences due to cap", "uid", m.ID, "cap", cfg.MaxOccurrencesPerEvent)
		}
		all = append(all, occ...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].Start.Equal(all[j].Start) {
			return all[i].Start.Before(all[j].Start)
		}
		return all[i].UID < all[j].UID
	})

	result.Occurrences = all
	return result, nil
}

func expandMeeting(m model.Meeting, cfg ExpandConfig) ([]model.Occurrence, bool, error) {
	start, err := m.Start()
	if err != nil {
		return nil, false, err
	}

	opt, recurring := m.Recurrence.Option(start)
	if !recurring {
		end := start.Add(model.Duration)
		if !timeRangesOverlap(start, end, cfg.RangeStart, cfg.RangeEnd) {
			return nil, false, nil
		}
		return []model.Occurrence{makeOccurrence(m, start)}, false, nil
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, false, err
	}

	var set rrule.Set
	set.RRule(r)
	for _, d := range m.Cancelled {
		ex, exErr := recurrence.At(d, m.Time)
		if exErr != nil {
			return nil, false, exErr
		}
		set.ExDate(ex)
	}

	// Widen the lower bound by one duration so a meeting already in progress
	// at RangeStart is listed.
	times := set.Between(cfg.RangeStart.Add(-model.Duration), cfg.RangeEnd, true)

	hitCap := false
	if len(times) > cfg.MaxOccurrencesPerEvent {
		times = times[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]model.Occurrence, 0, len(times))
	for _, t := range times {
		if !timeRangesOverlap(t, t.Add(model.Duration), cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		out = append(out, makeOccurrence(m, t))
	}
	return out, hitCap, nil
}

func makeOccurrence(m model.Meeting, start time.Time) model.Occurrence {
	start = start.UTC()
	return model.Occurrence{
		UID:         m.ID,
		Team:        m.Team,
		Title:       m.Title,
		InstanceKey: recurrence.Stamp(start),
		Start:       start,
		End:         start.Add(model.Duration),
	}
}

// timeRangesOverlap treats [aStart, aEnd) and [bStart, bEnd] as overlapping
// when any instant is shared.
func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !aEnd.After(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
