package ics

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"eventcal/internal/dates"
	"eventcal/internal/model"
)

var ErrUnsupportedRule = errors.New("unsupported recurrence rule")

// weekdays is indexed Sunday=0, matching model.RecurrencePattern.WeekDays.
var weekdays = []rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// ToRRule renders p as RRULE text (without the "RRULE:" prefix). Custom
// rules are day-stepped, so they map to DAILY.
func ToRRule(p model.RecurrencePattern) (string, error) {
	opt := rrule.ROption{Interval: p.Interval}
	if opt.Interval < 1 {
		opt.Interval = 1
	}

	switch p.Type {
	case model.RecurrenceDaily, model.RecurrenceCustom:
		opt.Freq = rrule.DAILY
	case model.RecurrenceWeekly:
		opt.Freq = rrule.WEEKLY
		for _, d := range p.WeekDays {
			if d < 0 || d >= len(weekdays) {
				continue
			}
			opt.Byweekday = append(opt.Byweekday, weekdays[d])
		}
	case model.RecurrenceMonthly:
		opt.Freq = rrule.MONTHLY
	default:
		return "", fmt.Errorf("%w: type %q", ErrUnsupportedRule, p.Type)
	}

	if p.EndDate != nil {
		opt.Until = *p.EndDate
	}
	return opt.RRuleString(), nil
}

// FromRRule converts RRULE text into a pattern. DAILY, WEEKLY and MONTHLY
// are supported. A COUNT is turned into an end date by expanding the rule
// from dtstart.
func FromRRule(s string, dtstart time.Time) (model.RecurrencePattern, error) {
	opt, err := rrule.StrToROption(s)
	if err != nil {
		return model.RecurrencePattern{}, fmt.Errorf("parse rrule %q: %w", s, err)
	}

	var p model.RecurrencePattern
	switch opt.Freq {
	case rrule.DAILY:
		p.Type = model.RecurrenceDaily
	case rrule.WEEKLY:
		p.Type = model.RecurrenceWeekly
	case rrule.MONTHLY:
		p.Type = model.RecurrenceMonthly
	default:
		return model.RecurrencePattern{}, fmt.Errorf("%w: %s", ErrUnsupportedRule, s)
	}

	p.Interval = opt.Interval
	if p.Interval < 1 {
		p.Interval = 1
	}

	if p.Type == model.RecurrenceWeekly {
		for _, wd := range opt.Byweekday {
			// rrule counts Monday=0.
			p.WeekDays = append(p.WeekDays, (wd.Day()+1)%7)
		}
	}

	switch {
	case !opt.Until.IsZero():
		end := dates.StartOfDay(opt.Until.In(time.Local))
		p.EndDate = &end
	case opt.Count > 0:
		opt.Dtstart = dtstart
		r, err := rrule.NewRRule(*opt)
		if err != nil {
			return model.RecurrencePattern{}, fmt.Errorf("build rrule %q: %w", s, err)
		}
		if all := r.All(); len(all) > 0 {
			end := dates.StartOfDay(all[len(all)-1].In(time.Local))
			p.EndDate = &end
		}
	}

	return p, nil
}
