package web

import (
	"fmt"
	"strings"
	"time"

	"eventcal/internal/dates"
	"eventcal/internal/model"
)

// eventRequest is the JSON body accepted by create, update and
// POST /api/conflicts.
//
// startTime/endTime may be RFC3339 instants or "15:04" clock times on date.
type eventRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Date        string             `json:"date"`
	StartTime   string             `json:"startTime"`
	EndTime     string             `json:"endTime"`
	Category    model.Category     `json:"category"`
	Recurrence  *recurrenceRequest `json:"recurrence,omitempty"`

	// Force accepts a proposed conflict override.
	Force bool `json:"force"`
	// ExcludeID is only read by POST /api/conflicts.
	ExcludeID string `json:"excludeId"`
}

func (req eventRequest) toEvent() (model.Event, error) {
	day, err := dates.ParseDay(strings.TrimSpace(req.Date))
	if err != nil {
		return model.Event{}, err
	}
	start, err := parseClock(day, req.StartTime)
	if err != nil {
		return model.Event{}, fmt.Errorf("startTime: %w", err)
	}
	end, err := parseClock(day, req.EndTime)
	if err != nil {
		return model.Event{}, fmt.Errorf("endTime: %w", err)
	}

	ev := model.Event{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Date:        day,
		StartTime:   start,
		EndTime:     end,
		Category:    knownCategory(req.Category),
	}
	if req.Recurrence != nil {
		rule, err := req.Recurrence.toPattern()
		if err != nil {
			return model.Event{}, err
		}
		if rule.Repeats() {
			ev.Recurrence = &rule
		}
	}

	if err := model.Validate(ev); err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

// recurrenceRequest mirrors model.RecurrencePattern with endDate as text,
// either "2006-01-02" or an RFC3339 instant.
type recurrenceRequest struct {
	Type     model.RecurrenceType `json:"type"`
	Interval int                  `json:"interval"`
	WeekDays []int                `json:"weekDays,omitempty"`
	EndDate  string               `json:"endDate,omitempty"`
}

func (r recurrenceRequest) toPattern() (model.RecurrencePattern, error) {
	p := model.RecurrencePattern{
		Type:     r.Type,
		Interval: r.Interval,
		WeekDays: r.WeekDays,
	}
	if raw := strings.TrimSpace(r.EndDate); raw != "" {
		end, err := parseEndDate(raw)
		if err != nil {
			return model.RecurrencePattern{}, fmt.Errorf("recurrence.endDate: %w", err)
		}
		p.EndDate = &end
	}
	return p, nil
}

// parseEndDate returns local midnight of the calendar day named by s. An
// RFC3339 instant keeps the day written in its own offset, so
// "2025-02-01T00:00:00Z" still ends on Feb 1 west of UTC.
func parseEndDate(s string) (time.Time, error) {
	if day, err := dates.ParseDay(s); err == nil {
		return day, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local), nil
}

// parseClock reads s as an RFC3339 instant, or as "15:04" on day.
func parseClock(day time.Time, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(time.Local), nil
	}
	clock, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", s)
	}
	return dates.AtTimeOf(day, clock), nil
}

func knownCategory(c model.Category) model.Category {
	for _, known := range model.Categories {
		if c == known {
			return c
		}
	}
	return model.CategoryOther
}
