package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category classifies what an event is for.
type Category string

const (
	CategoryWork         Category = "Work"
	CategoryMeeting      Category = "Meeting"
	CategoryPersonal     Category = "Personal"
	CategoryRecreational Category = "Recreational"
	CategoryMeal         Category = "Meal"
)

// Categories lists every category in optimization order.
var Categories = []Category{CategoryWork, CategoryMeeting, CategoryRecreational, CategoryMeal, CategoryPersonal}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c.Rank() >= 0
}

// Rank orders categories for deterministic processing.
func (c Category) Rank() int {
	for i, known := range Categories {
		if c == known {
			return i
		}
	}
	return -1
}

// Productive reports whether the category counts as work time.
func (c Category) Productive() bool {
	return c == CategoryWork || c == CategoryMeeting
}

// Priority ranks how important an event is to place.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Rank orders priorities high first. Unknown values sort as medium.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// EventKind discriminates the event variants.
type EventKind string

const (
	KindFixed             EventKind = "fixed"
	KindRecurringParent   EventKind = "recurring_parent"
	KindRecurringInstance EventKind = "recurring_instance"
	KindFloating          EventKind = "floating"
)

// Valid reports whether k is a known kind.
func (k EventKind) Valid() bool {
	switch k {
	case KindFixed, KindRecurringParent, KindRecurringInstance, KindFloating:
		return true
	}
	return false
}

// Rank orders kinds fixed, recurring, floating.
func (k EventKind) Rank() int {
	switch k {
	case KindFixed:
		return 0
	case KindRecurringParent, KindRecurringInstance:
		return 1
	default:
		return 2
	}
}

// PreferredWindow is an optional daily window an event would like to sit in.
type PreferredWindow struct {
	DailyWindow
	Enabled bool `json:"enabled"`
}

// Active reports whether the window should drive scoring.
func (p *PreferredWindow) Active() bool {
	return p != nil && p.Enabled
}

// RecurrenceRule is the payload of a recurring parent.
type RecurrenceRule struct {
	DurationMinutes int       `json:"duration_minutes"`
	FrequencyDays   int       `json:"frequency_days"`
	StartDate       time.Time `json:"start_date"`
}

// Duration returns the per-instance duration.
func (r RecurrenceRule) Duration() time.Duration {
	return time.Duration(r.DurationMinutes) * time.Minute
}

// FloatingWindow is the payload of a floating task.
type FloatingWindow struct {
	EarliestStart time.Time `json:"earliest_start"`
	Deadline      time.Time `json:"deadline"`
}

// Event is a time-bounded activity on the calendar. Exactly one of
// Recurrence, ParentID or Window is set, matching Kind.
type Event struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Category Category  `json:"category"`
	Priority Priority  `json:"priority"`
	Kind     EventKind `json:"type"`
	Span
	Locked    bool             `json:"locked"`
	Notes     string           `json:"notes,omitempty"`
	Preferred *PreferredWindow `json:"preferred_time,omitempty"`

	Recurrence *RecurrenceRule `json:"recurrence,omitempty"`
	ParentID   *string         `json:"parent_id,omitempty"`
	Window     *FloatingWindow `json:"floating,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks required fields and kind payload agreement.
func (e Event) Validate() error {
	var problems []string
	if strings.TrimSpace(e.Title) == "" {
		problems = append(problems, "title is required")
	}
	if !e.Category.Valid() {
		problems = append(problems, fmt.Sprintf("unknown category %q", e.Category))
	}
	if !e.Priority.Valid() {
		problems = append(problems, fmt.Sprintf("unknown priority %q", e.Priority))
	}
	if e.Kind != KindRecurringParent && !e.Span.Valid() {
		problems = append(problems, "end must be after start")
	}
	switch e.Kind {
	case KindFixed:
		if e.Recurrence != nil || e.ParentID != nil || e.Window != nil {
			problems = append(problems, "fixed events carry no recurrence, parent or floating window")
		}
	case KindRecurringParent:
		if e.Recurrence == nil {
			problems = append(problems, "recurring parent requires a recurrence rule")
		} else if e.Recurrence.DurationMinutes <= 0 || e.Recurrence.FrequencyDays <= 0 {
			problems = append(problems, "recurrence needs a positive duration and frequency")
		}
	case KindRecurringInstance:
		if e.ParentID == nil || *e.ParentID == "" {
			problems = append(problems, "recurring instance requires a parent id")
		}
	case KindFloating:
		if e.Window == nil {
			problems = append(problems, "floating event requires earliest start and deadline")
		} else if !e.Span.Start.IsZero() && (e.Start.Before(e.Window.EarliestStart) || e.End.After(e.Window.Deadline)) {
			problems = append(problems, "floating event must lie within its window")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown type %q", e.Kind))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// PlacementBounds is the range a relocated event has to stay within:
// the floating window, or from the occurrence date on for a recurring
// instance. A zero bound is open.
func (e Event) PlacementBounds() Span {
	switch e.Kind {
	case KindFloating:
		if e.Window != nil {
			return Span{Start: e.Window.EarliestStart, End: e.Window.Deadline}
		}
	case KindRecurringInstance:
		return Span{Start: StartOfDay(e.Start)}
	}
	return Span{}
}

// CanMoveTo reports whether span respects PlacementBounds.
func (e Event) CanMoveTo(span Span) bool {
	b := e.PlacementBounds()
	if !b.Start.IsZero() && span.Start.Before(b.Start) {
		return false
	}
	if !b.End.IsZero() && span.End.After(b.End) {
		return false
	}
	return true
}

// IsPast reports whether the event started before now.
func (e Event) IsPast(now time.Time) bool {
	return e.Start.Before(now)
}

// Movable reports whether optimization may target the event.
func (e Event) Movable(now time.Time) bool {
	return !e.Locked && !e.IsPast(now) && e.Kind != KindRecurringParent
}

// Occupies reports whether the event takes calendar time. Recurring parents
// are definitions only.
func (e Event) Occupies() bool {
	return e.Kind != KindRecurringParent
}

// WithSpan returns a copy of e moved to span.
func (e Event) WithSpan(span Span) Event {
	e.Span = span
	return e
}

// EventFilter narrows event listings.
type EventFilter struct {
	From     time.Time
	To       time.Time
	Category Category
	Kind     EventKind
	ParentID string
}
