package ics

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"eventcal/internal/dates"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

var textUnescaper = strings.NewReplacer(`\,`, ",", `\;`, ";", `\n`, "\n", `\N`, "\n", `\\`, `\`)

// Parse reads an iCalendar document into events ready for the store.
//
//   - Times are moved into the local zone; Date is local midnight of the start.
//   - A VEVENT with an RRULE becomes a template carrying the converted rule.
//   - A VEVENT written by Export keeps its series key and rule as-is.
//   - VEVENTs that cannot be converted are logged and skipped.
func Parse(r io.Reader) ([]model.Event, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("ics parse: %w", err)
	}

	events := make([]model.Event, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve)
		if perr != nil {
			appLog.Error("ics vevent skipped", perr, "uid", propValue(ve, ical.ComponentPropertyUniqueId))
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (model.Event, error) {
	var out model.Event

	out.ID = propValue(ve, ical.ComponentPropertyUniqueId)
	if out.ID == "" {
		return out, errors.New("missing UID")
	}
	out.Title = unescape(propValue(ve, ical.ComponentPropertySummary))
	out.Description = unescape(propValue(ve, ical.ComponentPropertyDescription))
	out.Category = category(propValue(ve, ical.ComponentPropertyCategories))
	out.SeriesID = propValue(ve, propRelatedTo)

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return out, fmt.Errorf("DTEND: %w", err)
	}
	out.StartTime = start.In(time.Local)
	out.EndTime = end.In(time.Local)
	out.Date = dates.StartOfDay(out.StartTime)

	if err := model.Validate(out); err != nil {
		return out, err
	}

	rawRule := propValue(ve, ical.ComponentPropertyRrule)
	if out.SeriesID != "" {
		rawRule = propValue(ve, propRecurrence)
	}
	if rawRule != "" {
		rule, err := FromRRule(unescape(rawRule), out.StartTime)
		if err != nil {
			// Keep the event itself; only the repetition is lost.
			appLog.Error("ics rrule ignored", err, "uid", out.ID, "rrule", rawRule)
		} else {
			out.Recurrence = &rule
		}
	}

	return out, nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

func unescape(s string) string {
	return textUnescaper.Replace(s)
}

// category takes the first CATEGORIES value; unknown labels map to other.
func category(raw string) model.Category {
	first, _, _ := strings.Cut(raw, ",")
	c := model.Category(strings.ToLower(strings.TrimSpace(first)))
	for _, known := range model.Categories {
		if c == known {
			return c
		}
	}
	return model.CategoryOther
}
