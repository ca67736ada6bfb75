package optimizer

import (
	"sort"
	"time"

	"github.com/extraction017/temporav3/internal/models"
	"github.com/extraction017/temporav3/internal/scheduler"
)

// plan simulates the week while a policy runs. Every event is loaded so that
// placements are checked against the whole calendar, not only the targets.
type plan struct {
	state    *scheduler.State
	original map[string]models.Event
	order    []string
	mods     map[string]*models.Modification
}

// newPlan loads the engine's events. Events for which reserve returns true
// block time without counting toward their day's workload.
func (e *Engine) newPlan(reserve func(models.Event) bool) *plan {
	p := &plan{
		state:    scheduler.NewState(e.weekStart, daysPerWeek),
		original: make(map[string]models.Event, len(e.events)),
		mods:     make(map[string]*models.Modification),
	}
	for _, ev := range e.events {
		p.original[ev.ID] = ev
		b := scheduler.Busy{EventID: ev.ID, Category: ev.Category, Span: ev.Span}
		if reserve != nil && reserve(ev) {
			p.state.Reserve(b)
		} else {
			p.state.Add(b)
		}
	}
	return p
}

func (p *plan) span(id string) models.Span {
	s, _ := p.state.Lookup(id)
	return s
}

// move relocates ev. Repeated moves collapse into one modification and a
// move back to the original time drops it.
func (p *plan) move(ev models.Event, to models.Span, reason string) {
	p.state.Move(ev.ID, to)

	orig := p.original[ev.ID].Span
	if mod, ok := p.mods[ev.ID]; ok {
		if to.Equal(orig) {
			delete(p.mods, ev.ID)
			return
		}
		next := to
		mod.NewSpan = &next
		mod.Reason = reason
		return
	}
	if to.Equal(orig) {
		return
	}
	next := to
	p.mods[ev.ID] = &models.Modification{
		EventID:  ev.ID,
		Title:    ev.Title,
		Category: ev.Category,
		OldSpan:  orig,
		NewSpan:  &next,
		Reason:   reason,
	}
	p.order = append(p.order, ev.ID)
}

// keep turns a reservation into a counted interval at its current time.
func (p *plan) keep(ev models.Event) {
	p.state.Move(ev.ID, p.span(ev.ID))
}

func (p *plan) modifications() []models.Modification {
	out := make([]models.Modification, 0, len(p.mods))
	for _, id := range p.order {
		if mod, ok := p.mods[id]; ok {
			out = append(out, *mod)
		}
	}
	return out
}

// daysByLoad orders days from lightest to heaviest, ties by date.
func (p *plan) daysByLoad(days []time.Time) []time.Time {
	remaining := append([]time.Time(nil), days...)
	ordered := make([]time.Time, 0, len(days))
	for len(remaining) > 0 {
		day, _ := p.state.LightestDay(remaining)
		ordered = append(ordered, day)
		for i, d := range remaining {
			if d.Equal(day) {
				remaining = append(remaining[:i], remaining[i+1:]...)
				break
			}
		}
	}
	return ordered
}

// sortBySpan orders events by their current planned start.
func (p *plan) sortBySpan(events []models.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := p.span(events[i].ID), p.span(events[j].ID)
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return events[i].ID < events[j].ID
	})
}

// Apply returns events with mods applied: moved events get their new span
// and deleted events are dropped. The input is not modified.
func Apply(events []models.Event, mods []models.Modification) []models.Event {
	byID := make(map[string]models.Modification, len(mods))
	for _, m := range mods {
		byID[m.EventID] = m
	}
	out := make([]models.Event, 0, len(events))
	for _, ev := range events {
		m, ok := byID[ev.ID]
		switch {
		case !ok:
			out = append(out, ev)
		case m.IsDelete():
		default:
			out = append(out, ev.WithSpan(*m.NewSpan))
		}
	}
	return out
}
