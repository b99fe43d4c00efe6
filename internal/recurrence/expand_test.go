package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventcal/internal/dates"
	"eventcal/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func ptr(t time.Time) *time.Time { return &t }

func template(id string, on time.Time) model.Event {
	return model.Event{
		ID:        id,
		Title:     "Standup",
		Date:      on,
		StartTime: time.Date(on.Year(), on.Month(), on.Day(), 9, 0, 0, 0, time.Local),
		EndTime:   time.Date(on.Year(), on.Month(), on.Day(), 10, 30, 0, 0, time.Local),
		Category:  model.CategoryWork,
	}
}

func days(events []model.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = dates.FormatDay(ev.Date)
	}
	return out
}

func TestExpandDailyDefaultBoundIsCapped(t *testing.T) {
	tmpl := template("abc", day(2025, 1, 1))
	got := Expand(tmpl, model.RecurrencePattern{Type: model.RecurrenceDaily, Interval: 1})

	// Jan 1 2025 through Jan 1 2026 inclusive is 366 days.
	require.Len(t, got, MaxInstances)
	assert.Equal(t, "abc_1", got[0].ID)
	assert.Equal(t, "abc_365", got[len(got)-1].ID)
	assert.Equal(t, "2025-12-31", dates.FormatDay(got[len(got)-1].Date))
	for _, ev := range got {
		assert.Equal(t, tmpl.Duration(), ev.Duration(), ev.ID)
		assert.Equal(t, "abc", ev.SeriesID)
	}
}

func TestExpandDailyWithEndDate(t *testing.T) {
	tmpl := template("abc", day(2025, 1, 1))
	got := Expand(tmpl, model.RecurrencePattern{Type: model.RecurrenceDaily, Interval: 1, EndDate: ptr(day(2025, 1, 10))})

	require.Len(t, got, 10)
	assert.Equal(t, "2025-01-10", dates.FormatDay(got[9].Date))
	assert.Equal(t, time.Date(2025, 1, 10, 9, 0, 0, 0, time.Local), got[9].StartTime)
	assert.Equal(t, time.Date(2025, 1, 10, 10, 30, 0, 0, time.Local), got[9].EndTime)
}

func TestExpandCustomInterval(t *testing.T) {
	tmpl := template("abc", day(2025, 1, 1))
	got := Expand(tmpl, model.RecurrencePattern{Type: model.RecurrenceCustom, Interval: 3, EndDate: ptr(day(2025, 1, 10))})

	assert.Equal(t, []string{"2025-01-01", "2025-01-04", "2025-01-07", "2025-01-10"}, days(got))
}

func TestExpandWeeklyMonWedFri(t *testing.T) {
	start := day(2025, 1, 6) // Monday
	tmpl := template("abc", start)
	got := Expand(tmpl, model.RecurrencePattern{
		Type:     model.RecurrenceWeekly,
		Interval: 1,
		WeekDays: []int{1, 3, 5},
		EndDate:  ptr(day(2025, 1, 31)),
	})

	require.Len(t, got, 12)
	for i, ev := range got {
		assert.Contains(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, ev.Date.Weekday())
		assert.False(t, ev.Date.Before(start))
		assert.Equal(t, model.InstanceID("abc", i+1), ev.ID)
		if i > 0 {
			assert.True(t, ev.Date.After(got[i-1].Date))
		}
	}
}

func TestExpandWeeklySkipsNonMatchingStart(t *testing.T) {
	tmpl := template("abc", day(2025, 1, 5)) // Sunday
	got := Expand(tmpl, model.RecurrencePattern{
		Type:     model.RecurrenceWeekly,
		Interval: 1,
		WeekDays: []int{1},
		EndDate:  ptr(day(2025, 1, 20)),
	})

	assert.Equal(t, []string{"2025-01-06", "2025-01-13", "2025-01-20"}, days(got))
	assert.Equal(t, "abc_1", got[0].ID)
}

func TestExpandWeeklyWithoutWeekDays(t *testing.T) {
	tmpl := template("abc", day(2025, 1, 6))
	got := Expand(tmpl, model.RecurrencePattern{Type: model.RecurrenceWeekly, Interval: 2, EndDate: ptr(day(2025, 2, 28))})

	assert.Equal(t, []string{"2025-01-06", "2025-01-20", "2025-02-03", "2025-02-17"}, days(got))
}

// The day scan always finds a selected weekday within seven days, so the
// interval jump never fires for valid weekdays and the interval is not
// applied.
func TestExpandWeeklyWeekDaysIgnoresIntervalWhenScanMatches(t *testing.T) {
	tmpl := template("abc", day(2025, 1, 6))
	got := Expand(tmpl, model.RecurrencePattern{
		Type:     model.RecurrenceWeekly,
		Interval: 2,
		WeekDays: []int{1},
		EndDate:  ptr(day(2025, 2, 3)),
	})

	assert.Equal(t, []string{"2025-01-06", "2025-01-13", "2025-01-20", "2025-01-27", "2025-02-03"}, days(got))
}

func TestWeekDayStep(t *testing.T) {
	tests := []struct {
		name     string
		from     time.Weekday
		weekDays []int
		interval int
		want     int
	}{
		{"next day", time.Monday, []int{1, 2}, 1, 1},
		{"wrap to same weekday", time.Monday, []int{1}, 3, 7},
		{"saturday to monday", time.Saturday, []int{1, 3, 5}, 1, 2},
		{"no match interval 1", time.Monday, []int{9}, 1, 1},
		{"no match interval 3", time.Monday, []int{9}, 3, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, weekDayStep(tt.from, tt.weekDays, tt.interval))
		})
	}
}

func TestExpandWeeklyInvalidWeekDaysFallsBack(t *testing.T) {
	tmpl := template("abc", day(2025, 1, 6))
	got := Expand(tmpl, model.RecurrencePattern{Type: model.RecurrenceWeekly, Interval: 1, WeekDays: []int{9}})

	require.Len(t, got, 1)
	assert.Equal(t, tmpl, got[0])
}

func TestExpandMonthlyRollsOverShortMonths(t *testing.T) {
	tmpl := template("abc", day(2025, 1, 31))
	got := Expand(tmpl, model.RecurrencePattern{Type: model.RecurrenceMonthly, Interval: 1, EndDate: ptr(day(2025, 5, 31))})

	assert.Equal(t, []string{"2025-01-31", "2025-03-03", "2025-04-03", "2025-05-03"}, days(got))
}

func TestExpandMonthlyInterval(t *testing.T) {
	tmpl := template("abc", day(2025, 1, 15))
	got := Expand(tmpl, model.RecurrencePattern{Type: model.RecurrenceMonthly, Interval: 4})

	assert.Equal(t, []string{"2025-01-15", "2025-05-15", "2025-09-15", "2026-01-15"}, days(got))
}

func TestExpandFallbacks(t *testing.T) {
	tmpl := template("abc", day(2025, 1, 6))

	tests := []struct {
		name string
		rule model.RecurrencePattern
	}{
		{"unknown type", model.RecurrencePattern{Type: "yearly", Interval: 1}},
		{"none", model.RecurrencePattern{Type: model.RecurrenceNone, Interval: 1}},
		{"end before start", model.RecurrencePattern{Type: model.RecurrenceDaily, Interval: 1, EndDate: ptr(day(2024, 12, 31))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Expand(tmpl, tt.rule)
			require.Len(t, got, 1)
			assert.Equal(t, "abc", got[0].ID)
			assert.Empty(t, got[0].SeriesID)
		})
	}
}

func TestExpandZeroIntervalStepsOneDay(t *testing.T) {
	tmpl := template("abc", day(2025, 1, 1))
	got := Expand(tmpl, model.RecurrencePattern{Type: model.RecurrenceDaily, EndDate: ptr(day(2025, 1, 3))})

	assert.Equal(t, []string{"2025-01-01", "2025-01-02", "2025-01-03"}, days(got))
}

func TestExpandNormalizesTemplateDate(t *testing.T) {
	tmpl := template("abc", day(2025, 1, 1))
	tmpl.Date = time.Date(2025, 1, 1, 9, 0, 0, 0, time.Local)
	got := Expand(tmpl, model.RecurrencePattern{Type: model.RecurrenceDaily, Interval: 1, EndDate: ptr(day(2025, 1, 2))})

	require.Len(t, got, 2)
	assert.Equal(t, 0, got[1].Date.Hour())
}

func TestExpandIsDeterministic(t *testing.T) {
	tmpl := template("abc", day(2025, 1, 6))
	rule := model.RecurrencePattern{Type: model.RecurrenceWeekly, Interval: 1, WeekDays: []int{2, 4}, EndDate: ptr(day(2025, 6, 30))}

	assert.Equal(t, Expand(tmpl, rule), Expand(tmpl, rule))
}

func TestExpandDoesNotShareRecurrence(t *testing.T) {
	tmpl := template("abc", day(2025, 1, 6))
	rule := model.RecurrencePattern{Type: model.RecurrenceWeekly, Interval: 1, WeekDays: []int{1, 3}, EndDate: ptr(day(2025, 1, 31))}
	tmpl.Recurrence = &rule

	got := Expand(tmpl, rule)
	require.NotEmpty(t, got)
	got[0].Recurrence.WeekDays[0] = 6

	assert.Equal(t, 1, tmpl.Recurrence.WeekDays[0])
	assert.Equal(t, 1, got[1].Recurrence.WeekDays[0])
}
