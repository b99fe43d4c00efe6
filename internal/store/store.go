package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventcal/internal/conflict"
	"eventcal/internal/dates"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/recurrence"
)

const persistTimeout = 5 * time.Second

var (
	ErrEventNotFound = errors.New("event not found")
	ErrDuplicateID   = errors.New("event id already exists")
)

// Persister moves the whole collection in and out of durable storage.
type Persister interface {
	Load(ctx context.Context) ([]model.Event, error)
	Save(ctx context.Context, events []model.Event) error
}

// Status is the result of a conflict-checked mutation.
type Status int

const (
	// StatusApplied means the change was written.
	StatusApplied Status = iota
	// StatusNeedsOverride means nothing was written; Conflicts lists the
	// colliding events and the caller may retry with Force.
	StatusNeedsOverride
	// StatusRejected means nothing was written and no override is offered.
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusNeedsOverride:
		return "needs_override"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Options carries the conflict policy for one mutation. Force only has an
// effect under conflict.ProposeOverride.
type Options struct {
	OnConflict conflict.Policy
	Force      bool
}

// CreateOptions is the default for Create and Update.
func CreateOptions() Options { return Options{OnConflict: conflict.ProposeOverride} }

// MoveOptions is the default for Move.
func MoveOptions() Options { return Options{OnConflict: conflict.Reject} }

// Outcome reports what a mutation did.
type Outcome struct {
	Status Status
	// Events holds the events written when Status is StatusApplied.
	Events []model.Event
	// Conflicts holds the colliding events otherwise.
	Conflicts []model.Event
}

// Applied is shorthand for Status == StatusApplied.
func (o Outcome) Applied() bool { return o.Status == StatusApplied }

// Store owns the event collection. Callers only ever see copies.
type Store struct {
	mu        sync.RWMutex
	events    map[string]model.Event
	persister Persister

	// NewID generates ids for candidates created without one.
	NewID func() string
}

// New builds a store over seed. A nil persister keeps everything in memory.
func New(p Persister, seed ...model.Event) *Store {
	s := &Store{
		events:    make(map[string]model.Event, len(seed)),
		persister: p,
		NewID:     uuid.NewString,
	}
	for _, ev := range seed {
		s.events[ev.ID] = backfillSeries(ev).Clone()
	}
	return s
}

// Open loads the collection from p.
func Open(ctx context.Context, p Persister) (*Store, error) {
	events, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: load: %w", err)
	}
	appLog.Info("store: collection loaded", "event_count", len(events))
	return New(p, events...), nil
}

func backfillSeries(ev model.Event) model.Event {
	if ev.SeriesID != "" {
		return ev
	}
	if series, ok := model.LegacySeriesID(ev.ID); ok {
		ev.SeriesID = series
	}
	return ev
}

// Create inserts candidate, expanding it first when it is a template with a
// repeating rule. Instances (SeriesID set) are inserted as they are, and a
// standalone id shaped "<base>_<digits>" joins series <base> exactly as it
// would on load. Only the candidate itself is conflict-checked. Nothing is
// written when any id it would produce already exists.
func (s *Store) Create(candidate model.Event, opts Options) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if candidate.ID == "" {
		candidate.ID = s.NewID()
	}
	toAdd := []model.Event{backfillSeries(candidate)}
	if candidate.SeriesID == "" && candidate.Recurrence.Repeats() {
		toAdd = recurrence.Expand(candidate, *candidate.Recurrence)
	}
	if _, exists := s.events[candidate.ID]; exists {
		return Outcome{}, fmt.Errorf("create %q: %w", candidate.ID, ErrDuplicateID)
	}
	for _, ev := range toAdd {
		if _, exists := s.events[ev.ID]; exists {
			return Outcome{}, fmt.Errorf("create %q: instance %q: %w", candidate.ID, ev.ID, ErrDuplicateID)
		}
	}

	if out, blocked := s.check(candidate, "", opts); blocked {
		appLog.Info("store: create blocked by conflict", "id", candidate.ID, "status", out.Status.String(), "conflicts", len(out.Conflicts))
		return out, nil
	}

	for _, ev := range toAdd {
		s.events[ev.ID] = ev.Clone()
	}
	s.persist()

	appLog.Info("store: events created", "id", candidate.ID, "count", len(toAdd))
	return Outcome{Status: StatusApplied, Events: cloneAll(toAdd)}, nil
}

// Update replaces the event with id by revised, keeping its id and series.
func (s *Store) Update(id string, revised model.Event, opts Options) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.events[id]
	if !ok {
		return Outcome{}, fmt.Errorf("update %q: %w", id, ErrEventNotFound)
	}
	revised.ID = id
	revised.SeriesID = current.SeriesID

	if out, blocked := s.check(revised, id, opts); blocked {
		appLog.Info("store: update blocked by conflict", "id", id, "status", out.Status.String(), "conflicts", len(out.Conflicts))
		return out, nil
	}

	s.events[id] = revised.Clone()
	s.persist()

	appLog.Info("store: event updated", "id", id)
	return Outcome{Status: StatusApplied, Events: []model.Event{revised.Clone()}}, nil
}

// Move reschedules the event with id onto day, keeping its time of day and
// duration.
func (s *Store) Move(id string, day time.Time, opts Options) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.events[id]
	if !ok {
		return Outcome{}, fmt.Errorf("move %q: %w", id, ErrEventNotFound)
	}

	moved := current.Clone()
	moved.Date = dates.StartOfDay(day)
	moved.StartTime = dates.AtTimeOf(day, current.StartTime)
	moved.EndTime = moved.StartTime.Add(current.Duration())

	if out, blocked := s.check(moved, id, opts); blocked {
		appLog.Info("store: move blocked by conflict", "id", id, "date", dates.FormatDay(day), "status", out.Status.String())
		return out, nil
	}

	s.events[id] = moved
	s.persist()

	appLog.Info("store: event moved", "id", id, "date", dates.FormatDay(day))
	return Outcome{Status: StatusApplied, Events: []model.Event{moved.Clone()}}, nil
}

// Delete removes the event with id. When the event belongs to a series, or
// is the key other events' series point at, the whole series goes. It
// returns the removed ids in sorted order.
func (s *Store) Delete(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, found := s.events[id]

	series := ""
	switch {
	case found && target.SeriesID != "":
		series = target.SeriesID
	case s.hasSeriesMembers(id):
		series = id
	}

	var removed []string
	if series != "" {
		for evID, ev := range s.events {
			if ev.InSeries(series) {
				removed = append(removed, evID)
			}
		}
	} else if found {
		removed = []string{id}
	}
	if len(removed) == 0 {
		return nil, fmt.Errorf("delete %q: %w", id, ErrEventNotFound)
	}

	for _, evID := range removed {
		delete(s.events, evID)
	}
	s.persist()

	sort.Strings(removed)
	appLog.Info("store: events deleted", "id", id, "series", series, "count", len(removed))
	return removed, nil
}

// ImportResult counts what Import did.
type ImportResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Import creates every event, accepting conflicts. Events whose id, or any
// instance id a template would expand into, already exists are skipped, so
// importing the same feed twice leaves the collection unchanged.
func (s *Store) Import(events []model.Event) ImportResult {
	opts := Options{OnConflict: conflict.ProposeOverride, Force: true}
	var res ImportResult
	for _, ev := range events {
		out, err := s.Create(ev, opts)
		if err != nil {
			appLog.Warn("store: import skipped event", "id", ev.ID, "err", err.Error())
			res.Skipped++
			continue
		}
		res.Created += len(out.Events)
	}
	return res
}

// FindConflicts is the enumeration form of the conflict check against the
// whole collection, skipping excludeID.
func (s *Store) FindConflicts(candidate model.Event, excludeID string) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(conflict.Find(candidate, s.others(excludeID)))
}

// check runs the conflict detector for candidate and reports whether the
// mutation must stop.
func (s *Store) check(candidate model.Event, excludeID string, opts Options) (Outcome, bool) {
	others := s.others(excludeID)
	if !conflict.Conflicts(candidate, others) {
		return Outcome{}, false
	}
	if opts.OnConflict == conflict.ProposeOverride && opts.Force {
		appLog.Debug("store: conflict overridden", "id", candidate.ID)
		return Outcome{}, false
	}

	out := Outcome{Conflicts: cloneAll(SortByStart(conflict.Find(candidate, others)))}
	if opts.OnConflict == conflict.ProposeOverride {
		out.Status = StatusNeedsOverride
	} else {
		out.Status = StatusRejected
	}
	return out, true
}

func (s *Store) others(excludeID string) []model.Event {
	out := make([]model.Event, 0, len(s.events))
	for id, ev := range s.events {
		if id == excludeID {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (s *Store) hasSeriesMembers(series string) bool {
	for _, ev := range s.events {
		if ev.SeriesID == series {
			return true
		}
	}
	return false
}

// persist writes the collection. A failed write is logged and the in-memory
// state stays as it is.
func (s *Store) persist() {
	if s.persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	snapshot := SortByStart(s.others(""))
	if err := s.persister.Save(ctx, snapshot); err != nil {
		appLog.Error("store: persist failed", err, "event_count", len(snapshot))
	}
}

// Get returns a copy of the event with id.
func (s *Store) Get(id string) (model.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return model.Event{}, false
	}
	return ev.Clone(), true
}

// All returns every event ordered by start time.
func (s *Store) All() []model.Event {
	return s.where(func(model.Event) bool { return true })
}

// Len is the number of events in the collection.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// ForDate returns the events on day's calendar day.
func (s *Store) ForDate(day time.Time) []model.Event {
	return s.where(func(ev model.Event) bool { return dates.IsSameDay(ev.Date, day) })
}

// ForMonth returns the events in day's calendar month.
func (s *Store) ForMonth(day time.Time) []model.Event {
	return s.where(func(ev model.Event) bool { return dates.IsSameMonth(ev.Date, day) })
}

// ForWeek returns the events in the Sunday-first week containing day.
func (s *Store) ForWeek(day time.Time) []model.Event {
	week := dates.WeekDays(day)
	from, to := week[0], week[6].AddDate(0, 0, 1)
	return s.where(func(ev model.Event) bool {
		d := dates.StartOfDay(ev.Date)
		return !d.Before(from) && d.Before(to)
	})
}

// Filter matches search case-insensitively against title and description,
// and category exactly. An empty search, and a category of "" or "all",
// match everything.
func (s *Store) Filter(search string, category string) []model.Event {
	return FilterEvents(s.All(), search, category)
}

// FilterEvents applies the Filter rules to events.
func FilterEvents(events []model.Event, search string, category string) []model.Event {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if needle != "" &&
			!strings.Contains(strings.ToLower(ev.Title), needle) &&
			!strings.Contains(strings.ToLower(ev.Description), needle) {
			continue
		}
		if category != "" && category != "all" && string(ev.Category) != category {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Stats summarizes the collection relative to now.
type Stats struct {
	Total      int                    `json:"total"`
	Categories map[model.Category]int `json:"categories"`
	TodayCount int                    `json:"todayCount"`
	Upcoming   []model.Event          `json:"upcoming"`
}

const upcomingLimit = 5

// Stats counts events per category and today, and lists the first few
// events dated after now.
func (s *Store) Stats(now time.Time) Stats {
	all := s.All()
	st := Stats{Total: len(all), Categories: map[model.Category]int{}, Upcoming: []model.Event{}}
	for _, ev := range all {
		st.Categories[ev.Category]++
		if dates.IsSameDay(ev.Date, now) {
			st.TodayCount++
		}
		if ev.Date.After(now) && len(st.Upcoming) < upcomingLimit {
			st.Upcoming = append(st.Upcoming, ev)
		}
	}
	return st
}

func (s *Store) where(keep func(model.Event) bool) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Event, 0)
	for _, ev := range s.events {
		if keep(ev) {
			out = append(out, ev.Clone())
		}
	}
	return SortByStart(out)
}

// SortByStart orders events by start time, then id, in place.
func SortByStart(events []model.Event) []model.Event {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].StartTime.Before(events[j].StartTime)
		}
		return events[i].ID < events[j].ID
	})
	return events
}

func cloneAll(events []model.Event) []model.Event {
	if events == nil {
		return nil
	}
	out := make([]model.Event, len(events))
	for i, ev := range events {
		out[i] = ev.Clone()
	}
	return out
}
