// Package store reads meeting records from their backing store and adapts
// team-filtered queries for the feed service.
package store

import (
	"context"
	"fmt"
	"strings"

	"meetcal/internal/model"
	"meetcal/internal/recurrence"
)

// Store returns meetings for a team; an empty team returns every meeting.
// Team matching is case-insensitive. Order must be stable across calls while
// the data is unchanged.
type Store interface {
	Meetings(ctx context.Context, team string) ([]model.Meeting, error)
}

// Record is the persisted shape of a meeting: the recurrence is kept as the
// two strings editors see ("monthly", "3rd Wednesday").
type Record struct {
	ID         string   `yaml:"id" json:"id"`
	Team       string   `yaml:"team" json:"team"`
	Title      string   `yaml:"title" json:"title"`
	StartDate  string   `yaml:"start_date" json:"start_date"`
	Time       string   `yaml:"time" json:"time"`
	Recurring  string   `yaml:"recurring" json:"recurring"`
	Occurrence string   `yaml:"occurrence" json:"occurrence"`
	Cancelled  []string `yaml:"cancelled" json:"cancelled"`
}

// Meeting converts a record; an unknown recurrence grammar is reported as a
// malformed record.
func (r Record) Meeting() (model.Meeting, error) {
	rule, err := recurrence.ParseRule(r.Recurring, r.Occurrence)
	if err != nil {
		return model.Meeting{}, fmt.Errorf("%w: id %s: %w", model.ErrMalformedRecord, r.ID, err)
	}
	return model.Meeting{
		ID:         r.ID,
		Team:       r.Team,
		Title:      r.Title,
		StartDate:  r.StartDate,
		Time:       r.Time,
		Recurrence: rule,
		Cancelled:  append([]string(nil), r.Cancelled...),
	}, nil
}

func teamMatches(filter, team string) bool {
	filter = strings.TrimSpace(filter)
	return filter == "" || strings.EqualFold(filter, strings.TrimSpace(team))
}

// convert filters and converts records, collecting conversion failures.
// The caller decides whether a partial result is usable.
func convert(records []Record, team string) ([]model.Meeting, []error) {
	out := make([]model.Meeting, 0, len(records))
	var errs []error
	for _, r := range records {
		if !teamMatches(team, r.Team) {
			continue
		}
		m, err := r.Meeting()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, m)
	}
	return out, errs
}
