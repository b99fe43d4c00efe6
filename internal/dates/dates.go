// Package dates holds the calendar math shared by the expander, the conflict
// detector, the store and the HTTP views. All values are wall-clock times in
// whatever location they carry; nothing here converts between zones.
package dates

import (
	"fmt"
	"time"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// StartOfDay returns local midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsSameDay compares (year, month, day) only.
func IsSameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// IsSameMonth compares (year, month) only.
func IsSameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// AtTimeOf places the hour and minute of clock onto day. Seconds are dropped.
func AtTimeOf(day, clock time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, day.Location())
}

// MonthGrid returns every day shown in a month view for t's month: padded
// back to the Sunday on or before the 1st and forward to the Saturday on or
// after the last day. The length is always a multiple of 7.
func MonthGrid(t time.Time) []time.Time {
	y, m, _ := t.Date()
	loc := t.Location()
	first := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	last := time.Date(y, m+1, 0, 0, 0, 0, 0, loc)

	start := first.AddDate(0, 0, -int(first.Weekday()))
	end := last.AddDate(0, 0, int(time.Saturday-last.Weekday()))

	days := make([]time.Time, 0, 42)
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		days = append(days, cur)
	}
	return days
}

// WeekDays returns the seven days, Sunday first, of the week containing t.
func WeekDays(t time.Time) []time.Time {
	start := StartOfDay(t).AddDate(0, 0, -int(t.Weekday()))
	week := make([]time.Time, 7)
	for i := range week {
		week[i] = start.AddDate(0, 0, i)
	}
	return week
}

// ParseDay parses "2006-01-02" as local midnight.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dayLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return t, nil
}

// ParseMonth parses "2006-01" as local midnight of the 1st.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.ParseInLocation(monthLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return t, nil
}

// FormatDay renders t as "2006-01-02".
func FormatDay(t time.Time) string {
	return t.Format(dayLayout)
}

// FormatDate renders t like "Monday, January 6, 2025".
func FormatDate(t time.Time) string {
	return t.Format("Monday, January 2, 2006")
}

// FormatTime renders t like "09:30 AM".
func FormatTime(t time.Time) string {
	return t.Format("03:04 PM")
}

// FormatMonth renders t like "January 2025".
func FormatMonth(t time.Time) string {
	return t.Format("January 2006")
}
