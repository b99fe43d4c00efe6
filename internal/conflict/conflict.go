package conflict

import (
	"time"

	"eventcal/internal/dates"
	"eventcal/internal/model"
)

// Policy decides what a mutation does when its candidate collides with
// existing events.
type Policy int

const (
	// Reject refuses the change outright.
	Reject Policy = iota
	// ProposeOverride hands the conflicting set back so the caller can
	// retry with an explicit override.
	ProposeOverride
)

func (p Policy) String() string {
	switch p {
	case Reject:
		return "reject"
	case ProposeOverride:
		return "propose_override"
	default:
		return "unknown"
	}
}

// Overlaps is the half-open interval test [aStart, aEnd) x [bStart, bEnd).
// Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Collides reports whether a and b share a calendar day and overlap in time.
func Collides(a, b model.Event) bool {
	if !dates.IsSameDay(a.Date, b.Date) {
		return false
	}
	return Overlaps(a.StartTime, a.EndTime, b.StartTime, b.EndTime)
}

// Conflicts reports whether candidate collides with any of existing. The
// caller excludes candidate's own id beforehand.
func Conflicts(candidate model.Event, existing []model.Event) bool {
	for _, ev := range existing {
		if Collides(candidate, ev) {
			return true
		}
	}
	return false
}

// Find returns every event in existing that collides with candidate, in
// input order.
func Find(candidate model.Event, existing []model.Event) []model.Event {
	var out []model.Event
	for _, ev := range existing {
		if Collides(candidate, ev) {
			out = append(out, ev)
		}
	}
	return out
}
