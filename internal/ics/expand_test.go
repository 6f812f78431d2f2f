package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetcal/internal/model"
	"meetcal/internal/recurrence"
)

func keys(occ []model.Occurrence, uid string) []string {
	var out []string
	for _, o := range occ {
		if o.UID == uid {
			out = append(out, o.InstanceKey)
		}
	}
	return out
}

func TestExpandOccurrences(t *testing.T) {
	t.Parallel()

	ms := coreMeetings()
	ms[0].Cancelled = []string{"2021-01-13"}
	ms = append(ms, model.Meeting{ID: "4", Team: "Core", Title: "One-off", StartDate: "2021-02-01", Time: "09:00:00"})

	res, err := ExpandOccurrences(ms, ExpandConfig{
		RangeStart: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2021, 3, 31, 23, 59, 59, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Skipped)
	assert.Empty(t, res.TruncatedEvents)

	weekly := keys(res.Occurrences, "1")
	assert.NotContains(t, weekly, "20210113T100000Z")
	assert.Equal(t, "20210106T100000Z", weekly[0])
	assert.Equal(t, "20210120T100000Z", weekly[1])
	assert.Len(t, weekly, 12)

	assert.Equal(t, []string{"20210106T110000Z", "20210206T110000Z", "20210306T110000Z"}, keys(res.Occurrences, "2"))
	assert.Equal(t, []string{"20210120T120000Z", "20210217T120000Z", "20210317T120000Z"}, keys(res.Occurrences, "3"))
	assert.Equal(t, []string{"20210201T090000Z"}, keys(res.Occurrences, "4"))

	for i := 1; i < len(res.Occurrences); i++ {
		assert.False(t, res.Occurrences[i].Start.Before(res.Occurrences[i-1].Start))
	}
	for _, o := range res.Occurrences {
		assert.Equal(t, time.Hour, o.End.Sub(o.Start))
	}
}

// Every EXDATE the feed writes must hit an instance the listing would
// otherwise produce.
func TestExpandOccurrences_ExDateMatchesInstance(t *testing.T) {
	t.Parallel()

	m := model.Meeting{ID: "5", Team: "Core", Title: "x", StartDate: "2021-01-20", Time: "12:00:00", Recurrence: recurrence.MonthlyOn(3, time.Wednesday)}
	cfg := ExpandConfig{RangeStart: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), RangeEnd: time.Date(2021, 6, 30, 0, 0, 0, 0, time.UTC)}

	before, err := ExpandOccurrences([]model.Meeting{m}, cfg)
	require.NoError(t, err)
	require.Contains(t, keys(before.Occurrences, "5"), "20210317T120000Z")

	m.Cancelled = []string{"2021-03-17"}
	ex, err := recurrence.FormatExDates(m.Cancelled, m.Time)
	require.NoError(t, err)
	assert.Equal(t, []string{"20210317T120000Z"}, ex)

	after, err := ExpandOccurrences([]model.Meeting{m}, cfg)
	require.NoError(t, err)
	assert.Len(t, after.Occurrences, len(before.Occurrences)-1)
	assert.NotContains(t, keys(after.Occurrences, "5"), "20210317T120000Z")
}

func TestExpandOccurrences_CapAndSkip(t *testing.T) {
	t.Parallel()

	ms := []model.Meeting{
		coreMeetings()[0],
		{ID: "bad", StartDate: "??", Time: "10:00:00", Recurrence: recurrence.WeeklyRule()},
	}
	res, err := ExpandOccurrences(ms, ExpandConfig{
		RangeStart:             time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:               time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		MaxOccurrencesPerEvent: 5,
	})
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 5)
	assert.Equal(t, []string{"1"}, res.TruncatedEvents)
	assert.Equal(t, []string{"bad"}, res.Skipped)
}

func TestExpandOccurrences_BadRange(t *testing.T) {
	t.Parallel()

	now := time.Now()
	_, err := ExpandOccurrences(nil, ExpandConfig{RangeStart: now, RangeEnd: now.Add(-time.Hour)})
	require.Error(t, err)
}

func TestExpandOccurrences_OneOffOutsideRange(t *testing.T) {
	t.Parallel()

	res, err := ExpandOccurrences([]model.Meeting{{ID: "1", StartDate: "2020-01-01", Time: "10:00:00"}}, ExpandConfig{
		RangeStart: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Occurrences)
}
