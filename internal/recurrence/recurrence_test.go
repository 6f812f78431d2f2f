package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"
)

func TestRule_RRule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule Rule
		want string
	}{
		{name: "none", rule: Rule{}, want: ""},
		{name: "weekly", rule: WeeklyRule(), want: "FREQ=WEEKLY"},
		{name: "monthly", rule: MonthlyRule(), want: "FREQ=MONTHLY"},
		{name: "third wednesday", rule: MonthlyOn(3, time.Wednesday), want: "FREQ=MONTHLY;BYDAY=3WE"},
		{name: "first monday", rule: MonthlyOn(1, time.Monday), want: "FREQ=MONTHLY;BYDAY=1MO"},
		{name: "last friday", rule: MonthlyOn(-1, time.Friday), want: "FREQ=MONTHLY;BYDAY=-1FR"},
		{name: "qualifier ignored for weekly", rule: Rule{Freq: Weekly, Qualifier: &OrdinalWeekday{Ordinal: 2, Weekday: time.Tuesday}}, want: "FREQ=WEEKLY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.rule.RRule())
			assert.Equal(t, tt.want != "", tt.rule.IsRecurring())
		})
	}
}

func TestParseRule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		freq      string
		qualifier string
		want      string
		wantErr   bool
	}{
		{name: "empty", freq: "", want: ""},
		{name: "none", freq: "None", want: ""},
		{name: "weekly", freq: "weekly", want: "FREQ=WEEKLY"},
		{name: "monthly plain", freq: "monthly", want: "FREQ=MONTHLY"},
		{name: "monthly ordinal", freq: "MONTHLY", qualifier: "3rd Wednesday", want: "FREQ=MONTHLY;BYDAY=3WE"},
		{name: "monthly last", freq: "monthly", qualifier: "last fri", want: "FREQ=MONTHLY;BYDAY=-1FR"},
		{name: "monthly code", freq: "monthly", qualifier: "2 TU", want: "FREQ=MONTHLY;BYDAY=2TU"},
		{name: "weekly ignores qualifier", freq: "weekly", qualifier: "junk", want: "FREQ=WEEKLY"},
		{name: "unknown frequency", freq: "daily", wantErr: true},
		{name: "bad ordinal", freq: "monthly", qualifier: "5th Monday", wantErr: true},
		{name: "bad weekday", freq: "monthly", qualifier: "1st Funday", wantErr: true},
		{name: "too many words", freq: "monthly", qualifier: "1st Monday please", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseRule(tt.freq, tt.qualifier)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownRule)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.RRule())
		})
	}
}

func TestOrdinalWeekday_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "3rd Wednesday", OrdinalWeekday{Ordinal: 3, Weekday: time.Wednesday}.String())
	assert.Equal(t, "last Friday", OrdinalWeekday{Ordinal: -1, Weekday: time.Friday}.String())
}

// The option handed to rrule-go must describe the same series as the RRULE
// text written into the feed.
func TestRule_OptionAgreesWithRRuleText(t *testing.T) {
	t.Parallel()

	dtstart := time.Date(2021, 1, 6, 10, 0, 0, 0, time.UTC)
	rules := []Rule{WeeklyRule(), MonthlyRule(), MonthlyOn(3, time.Wednesday), MonthlyOn(-1, time.Friday)}

	for _, r := range rules {
		t.Run(r.RRule(), func(t *testing.T) {
			t.Parallel()

			opt, ok := r.Option(dtstart)
			require.True(t, ok)
			opt.Count = 6
			fromOpt, err := rrule.NewRRule(opt)
			require.NoError(t, err)

			parsed, err := rrule.StrToROption(r.RRule() + ";COUNT=6")
			require.NoError(t, err)
			parsed.Dtstart = dtstart
			fromText, err := rrule.NewRRule(*parsed)
			require.NoError(t, err)

			assert.Equal(t, fromText.All(), fromOpt.All())
		})
	}
}

func TestRule_OptionOrdinalWeekday(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rule Rule
		want []time.Time
	}{
		{
			rule: MonthlyOn(3, time.Wednesday),
			want: []time.Time{
				time.Date(2021, 1, 20, 10, 0, 0, 0, time.UTC),
				time.Date(2021, 2, 17, 10, 0, 0, 0, time.UTC),
				time.Date(2021, 3, 17, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			rule: MonthlyOn(-1, time.Friday),
			want: []time.Time{
				time.Date(2021, 1, 29, 10, 0, 0, 0, time.UTC),
				time.Date(2021, 2, 26, 10, 0, 0, 0, time.UTC),
				time.Date(2021, 3, 26, 10, 0, 0, 0, time.UTC),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.rule.RRule(), func(t *testing.T) {
			t.Parallel()

			opt, ok := tt.rule.Option(time.Date(2021, 1, 1, 10, 0, 0, 0, time.UTC))
			require.True(t, ok)
			require.Len(t, opt.Byweekday, 1)
			opt.Count = 3
			r, err := rrule.NewRRule(opt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.All())
		})
	}
}

func TestRule_OptionNone(t *testing.T) {
	t.Parallel()
	_, ok := Rule{}.Option(time.Now())
	assert.False(t, ok)
}

func TestAt(t *testing.T) {
	t.Parallel()

	got, err := At("2021-03-17", "10:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 3, 17, 10, 0, 0, 0, time.UTC), got)

	got, err = At("2021-03-17", "18:30")
	require.NoError(t, err)
	assert.Equal(t, "20210317T183000Z", Stamp(got))

	_, err = At("17/03/2021", "10:00:00")
	require.Error(t, err)
	_, err = At("2021-03-17", "ten")
	require.Error(t, err)
}

func TestFormatExDates(t *testing.T) {
	t.Parallel()

	got, err := FormatExDates([]string{"2021-03-17"}, "10:00:00")
	require.NoError(t, err)
	assert.Equal(t, []string{"20210317T100000Z"}, got)

	got, err = FormatExDates([]string{"2021-01-13", "2021-01-20"}, "10:00:00")
	require.NoError(t, err)
	assert.Equal(t, []string{"20210113T100000Z", "20210120T100000Z"}, got)

	got, err = FormatExDates(nil, "10:00:00")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = FormatExDates([]string{"2021-02-30"}, "10:00:00")
	require.Error(t, err)
}
