package model

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// SeriesSeparator joins a template id and the 1-based instance counter in
// generated instance ids ("abc" -> "abc_1", "abc_2", ...).
const SeriesSeparator = "_"

var (
	ErrTitleRequired    = errors.New("title is required")
	ErrInvalidTimeRange = errors.New("end time must be after start time")
)

// Category is a display/filter label. It has no effect on scheduling.
type Category string

const (
	CategoryWork     Category = "work"
	CategoryPersonal Category = "personal"
	CategoryHealth   Category = "health"
	CategorySocial   Category = "social"
	CategoryOther    Category = "other"
)

// Categories lists the known labels in display order.
var Categories = []Category{CategoryWork, CategoryPersonal, CategoryHealth, CategorySocial, CategoryOther}

type RecurrenceType string

const (
	RecurrenceNone    RecurrenceType = "none"
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
	RecurrenceCustom  RecurrenceType = "custom"
)

// RecurrencePattern is the generation rule carried by a template event.
type RecurrencePattern struct {
	Type     RecurrenceType `json:"type"`
	Interval int            `json:"interval"`
	// WeekDays holds weekday indices, Sunday=0. Only meaningful for weekly.
	WeekDays []int `json:"weekDays,omitempty"`
	// EndDate is the inclusive bound. Nil means one year after the start.
	EndDate *time.Time `json:"endDate,omitempty"`
}

// Repeats reports whether p should be handed to the expander.
func (p *RecurrencePattern) Repeats() bool {
	return p != nil && p.Type != "" && p.Type != RecurrenceNone
}

// HasWeekDay reports whether d is one of the selected weekdays.
func (p *RecurrencePattern) HasWeekDay(d time.Weekday) bool {
	for _, wd := range p.WeekDays {
		if wd == int(d) {
			return true
		}
	}
	return false
}

// Event is a scheduled item. Date carries the calendar day; StartTime and
// EndTime are absolute instants on that day.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Category    Category  `json:"category"`

	// SeriesID is the id of the template an instance was generated from.
	// Empty for standalone events.
	SeriesID string `json:"seriesId,omitempty"`

	Recurrence *RecurrencePattern `json:"recurrence,omitempty"`
}

// Duration is EndTime - StartTime.
func (e Event) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// InSeries reports whether e belongs to the series keyed by seriesID,
// either as a generated instance or as the template itself.
func (e Event) InSeries(seriesID string) bool {
	if seriesID == "" {
		return false
	}
	return e.SeriesID == seriesID || e.ID == seriesID
}

// Clone returns a copy that shares no mutable state with e.
func (e Event) Clone() Event {
	if e.Recurrence == nil {
		return e
	}
	r := *e.Recurrence
	if r.WeekDays != nil {
		r.WeekDays = append([]int(nil), r.WeekDays...)
	}
	if r.EndDate != nil {
		end := *r.EndDate
		r.EndDate = &end
	}
	e.Recurrence = &r
	return e
}

// Validate enforces the entry rules applied before an event reaches the store.
func Validate(e Event) error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrTitleRequired
	}
	if !e.EndTime.After(e.StartTime) {
		return ErrInvalidTimeRange
	}
	return nil
}

// InstanceID builds the id of the n-th (1-based) generated instance.
func InstanceID(baseID string, n int) string {
	return baseID + SeriesSeparator + strconv.Itoa(n)
}

// LegacySeriesID infers the series of a record persisted before SeriesID
// existed. Only ids shaped "<base>_<digits>" qualify; the base is the text
// before the first separator.
func LegacySeriesID(id string) (string, bool) {
	first := strings.Index(id, SeriesSeparator)
	if first <= 0 {
		return "", false
	}
	last := strings.LastIndex(id, SeriesSeparator)
	suffix := id[last+len(SeriesSeparator):]
	if suffix == "" {
		return "", false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return id[:first], true
}
