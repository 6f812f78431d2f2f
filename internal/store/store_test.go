package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetcal/internal/model"
)

const sampleYAML = `meetings:
  - id: "1"
    team: Team-A
    title: A weekly meeting
    start_date: "2021-01-06"
    time: "10:00:00"
    recurring: weekly
    cancelled: ["2021-01-13"]
  - id: "2"
    team: Team-B
    title: A monthly meeting
    start_date: "2021-01-06"
    time: "11:00:00"
    recurring: monthly
  - id: "3"
    team: team-a
    title: A third Wednesday meeting
    start_date: "2021-01-20"
    time: "12:00:00"
    recurring: monthly
    occurrence: 3rd Wednesday
  - id: "4"
    title: Unowned
    start_date: "2021-01-08"
    time: "12:00:00"
  - id: "5"
    team: Team-A
    title: Bad rule
    start_date: "2021-01-08"
    time: "12:00:00"
    recurring: hourly
`

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meetings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func ids(ms []model.Meeting) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}

func TestYAMLFile_Meetings(t *testing.T) {
	t.Parallel()

	s, err := NewYAMLFile(writeYAML(t, sampleYAML))
	require.NoError(t, err)

	tests := []struct {
		team string
		want []string
	}{
		{team: "", want: []string{"1", "2", "3", "4"}},
		{team: "team-a", want: []string{"1", "3"}},
		{team: "TEAM-B", want: []string{"2"}},
		{team: "nobody", want: []string{}},
	}
	for _, tt := range tests {
		t.Run("team="+tt.team, func(t *testing.T) {
			t.Parallel()
			got, err := s.Meetings(context.Background(), tt.team)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}

	all, err := s.Meetings(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "FREQ=MONTHLY;BYDAY=3WE", all[2].Recurrence.RRule())
	assert.Equal(t, []string{"2021-01-13"}, all[0].Cancelled)
	assert.False(t, all[3].Recurrence.IsRecurring())
}

func TestYAMLFile_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewYAMLFile("")
	require.Error(t, err)

	s, err := NewYAMLFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	_, err = s.Meetings(context.Background(), "")
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)

	s, err = NewYAMLFile(writeYAML(t, "meetings: [unterminated"))
	require.NoError(t, err)
	_, err = s.Meetings(context.Background(), "")
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
}

func TestRecord_Meeting(t *testing.T) {
	t.Parallel()

	r := Record{ID: "9", Recurring: "monthly", Occurrence: "last Friday", Cancelled: []string{"2021-01-29"}}
	m, err := r.Meeting()
	require.NoError(t, err)
	assert.Equal(t, "FREQ=MONTHLY;BYDAY=-1FR", m.Recurrence.RRule())

	r.Cancelled[0] = "changed"
	assert.Equal(t, "2021-01-29", m.Cancelled[0], "conversion copies the cancellation list")

	_, err = Record{ID: "9", Recurring: "yearly"}.Meeting()
	assert.ErrorIs(t, err, model.ErrMalformedRecord)
}

type stubStore struct {
	meetings []model.Meeting
	err      error
	gotTeam  string
}

func (s *stubStore) Meetings(_ context.Context, team string) ([]model.Meeting, error) {
	s.gotTeam = team
	return s.meetings, s.err
}

func TestQuery_Fetch(t *testing.T) {
	t.Parallel()

	ok := &stubStore{meetings: []model.Meeting{{ID: "1"}}}
	got := NewQuery(ok).Fetch(context.Background(), " core ")
	assert.Equal(t, []string{"1"}, ids(got))
	assert.Equal(t, "core", ok.gotTeam)

	down := &stubStore{err: errors.New("timeout")}
	assert.Empty(t, NewQuery(down).Fetch(context.Background(), "core"))
}
