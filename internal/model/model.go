package model

import (
	"errors"
	"fmt"
	"time"

	"meetcal/internal/recurrence"
)

// Duration is the fixed length of every meeting.
const Duration = time.Hour

var (
	// ErrNoRecords means the store had no meetings for the requested team.
	ErrNoRecords = errors.New("no meeting records")
	// ErrMalformedRecord marks a single meeting with unusable date data.
	ErrMalformedRecord = errors.New("malformed meeting record")
	// ErrStoreUnavailable wraps failures of the backing meeting store.
	ErrStoreUnavailable = errors.New("meeting store unavailable")
)

// Meeting is one scheduled meeting series as held by the meeting store.
type Meeting struct {
	ID    string `yaml:"id" json:"id"`
	Team  string `yaml:"team" json:"team"`
	Title string `yaml:"title" json:"title"`

	// StartDate is the date of the first occurrence, YYYY-MM-DD.
	StartDate string `yaml:"start_date" json:"start_date"`
	// Time is the UTC start clock, HH:MM:SS.
	Time string `yaml:"time" json:"time"`

	Recurrence recurrence.Rule `yaml:"-" json:"-"`

	// Cancelled lists cancelled occurrence dates in StartDate form.
	Cancelled []string `yaml:"cancelled" json:"cancelled"`
}

// Start returns the UTC instant of the first occurrence.
func (m Meeting) Start() (time.Time, error) {
	t, err := recurrence.At(m.StartDate, m.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: id %s: %w", ErrMalformedRecord, m.ID, err)
	}
	return t, nil
}

// Occurrence is one concrete instance of a meeting series.
type Occurrence struct {
	UID   string
	Team  string
	Title string

	// InstanceKey identifies one occurrence of a series; it is the compact
	// UTC stamp of Start, the same value an EXDATE would carry.
	InstanceKey string

	Start time.Time
	End   time.Time
}
