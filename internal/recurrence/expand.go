package recurrence

import (
	"time"

	"eventcal/internal/dates"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// MaxInstances caps a single expansion so a bad rule can never run away.
const MaxInstances = 365

// Expand turns template plus rule into concrete, dated instances in
// increasing date order. Instance n (1-based, counting emissions only) gets
// id template.ID+"_"+n and SeriesID template.ID; its start and end keep the
// template's hour and minute on the new day.
//
// The result is never empty: an unrecognized rule type, or a rule that
// emits nothing before its bound, yields []model.Event{template}.
func Expand(template model.Event, rule model.RecurrencePattern) []model.Event {
	if !knownType(rule.Type) {
		appLog.Debug("recurrence: unrecognized rule type, keeping template", "id", template.ID, "type", rule.Type)
		return []model.Event{template}
	}

	interval := rule.Interval
	if interval < 1 {
		interval = 1
	}

	cursor := dates.StartOfDay(template.Date)
	limit := cursor.AddDate(1, 0, 0)
	if rule.EndDate != nil {
		limit = *rule.EndDate
	}

	filterWeekDays := rule.Type == model.RecurrenceWeekly && len(rule.WeekDays) > 0

	out := make([]model.Event, 0)
	for !cursor.After(limit) && len(out) < MaxInstances {
		if !filterWeekDays || rule.HasWeekDay(cursor.Weekday()) {
			out = append(out, instance(template, cursor, len(out)+1))
		}

		switch rule.Type {
		case model.RecurrenceDaily, model.RecurrenceCustom:
			cursor = cursor.AddDate(0, 0, interval)
		case model.RecurrenceWeekly:
			if filterWeekDays {
				cursor = cursor.AddDate(0, 0, weekDayStep(cursor.Weekday(), rule.WeekDays, interval))
			} else {
				cursor = cursor.AddDate(0, 0, interval*7)
			}
		case model.RecurrenceMonthly:
			// time.AddDate normalizes overflow, so Jan 31 + 1 month lands in March.
			cursor = cursor.AddDate(0, interval, 0)
		}
	}

	if len(out) == 0 {
		return []model.Event{template}
	}
	if len(out) == MaxInstances && !cursor.After(limit) {
		appLog.Warn("recurrence: expansion capped", "id", template.ID, "cap", MaxInstances)
	}
	return out
}

// weekDayStep scans forward one day at a time for the next selected weekday.
// If more than seven days go by without a match the scan gives up and jumps
// (interval-1)*7+1 days instead.
func weekDayStep(from time.Weekday, weekDays []int, interval int) int {
	rule := model.RecurrencePattern{WeekDays: weekDays}
	step := 1
	next := (from + 1) % 7
	for !rule.HasWeekDay(next) {
		step++
		next = (next + 1) % 7
		if step > 7 {
			return (interval-1)*7 + 1
		}
	}
	return step
}

func instance(template model.Event, day time.Time, n int) model.Event {
	ev := template.Clone()
	ev.ID = model.InstanceID(template.ID, n)
	ev.SeriesID = template.ID
	ev.Date = day
	ev.StartTime = dates.AtTimeOf(day, template.StartTime)
	ev.EndTime = dates.AtTimeOf(day, template.EndTime)
	return ev
}

func knownType(t model.RecurrenceType) bool {
	switch t {
	case model.RecurrenceDaily, model.RecurrenceWeekly, model.RecurrenceMonthly, model.RecurrenceCustom:
		return true
	default:
		return false
	}
}
