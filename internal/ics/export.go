package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

const ProductID = "-//eventcal//calendar export//EN"

// Non-standard properties. RELATED-TO carries the series key; the
// recurrence property keeps the originating rule on exported instances so
// a round trip restores it without re-expanding.
const (
	propRelatedTo  = ical.ComponentProperty("RELATED-TO")
	propRecurrence = ical.ComponentProperty("X-EVENTCAL-RECURRENCE")
)

// Export serializes events as an iCalendar document, one VEVENT per
// concrete event. stamp is written as DTSTAMP on every VEVENT.
func Export(events []model.Event, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(ev.StartTime)
		ve.SetEndAt(ev.EndTime)
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Category != "" {
			ve.AddProperty(ical.ComponentPropertyCategories, string(ev.Category))
		}
		if ev.SeriesID != "" {
			ve.AddProperty(propRelatedTo, ev.SeriesID)
		}
		if ev.Recurrence.Repeats() {
			rr, err := ToRRule(*ev.Recurrence)
			if err != nil {
				appLog.Error("ics export: recurrence not representable", err, "id", ev.ID)
				continue
			}
			prop := propRecurrence
			if ev.SeriesID == "" {
				// A template that was never expanded: publish a real RRULE.
				prop = ical.ComponentPropertyRrule
			}
			ve.AddProperty(prop, rr)
		}
	}

	appLog.Debug("ics export completed", "event_count", len(events))
	return cal.Serialize()
}
