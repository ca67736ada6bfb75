package scheduler

import (
	"sort"
	"time"

	"github.com/extraction017/temporav3/internal/models"
)

const dayKeyLayout = "2006-01-02"

type stateEntry struct {
	Busy
	counted bool
}

// State is a disposable in-memory mirror of a date range used to try
// placements before anything is written. It is not safe for concurrent use.
type State struct {
	days    []time.Time
	minutes map[string]int
	entries []stateEntry
}

// NewState covers numDays calendar days starting at the date of start.
func NewState(start time.Time, numDays int) *State {
	first := models.StartOfDay(start)
	s := &State{minutes: make(map[string]int, numDays)}
	for i := 0; i < numDays; i++ {
		day := first.AddDate(0, 0, i)
		s.days = append(s.days, day)
		s.minutes[day.Format(dayKeyLayout)] = 0
	}
	return s
}

// Days returns the covered dates in order.
func (s *State) Days() []time.Time {
	return append([]time.Time(nil), s.days...)
}

// Covers reports whether t falls on a covered date.
func (s *State) Covers(t time.Time) bool {
	_, ok := s.minutes[t.Format(dayKeyLayout)]
	return ok
}

// Add records an interval that counts toward its day's workload.
func (s *State) Add(b Busy) {
	s.insert(stateEntry{Busy: b, counted: true})
}

// Reserve blocks an interval without counting it toward workload. Used for
// events that still sit at their original time while others are re-planned.
func (s *State) Reserve(b Busy) {
	s.insert(stateEntry{Busy: b})
}

func (s *State) insert(e stateEntry) {
	idx := sort.Search(len(s.entries), func(i int) bool {
		return e.Span.Start.Before(s.entries[i].Span.Start)
	})
	s.entries = append(s.entries, stateEntry{})
	copy(s.entries[idx+1:], s.entries[idx:])
	s.entries[idx] = e
	if e.counted {
		s.account(e.Span, 1)
	}
}

func (s *State) account(span models.Span, sign int) {
	key := span.Start.Format(dayKeyLayout)
	if _, ok := s.minutes[key]; ok {
		s.minutes[key] += sign * span.Minutes()
	}
}

// Remove drops the interval recorded for id.
func (s *State) Remove(id string) (Busy, bool) {
	for i, e := range s.entries {
		if e.EventID != id {
			continue
		}
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
		if e.counted {
			s.account(e.Span, -1)
		}
		return e.Busy, true
	}
	return Busy{}, false
}

// Move relocates id to span and marks it counted. Unknown ids are added.
func (s *State) Move(id string, span models.Span) {
	b, ok := s.Remove(id)
	if !ok {
		b = Busy{EventID: id}
	}
	b.Span = span
	s.Add(b)
}

// Lookup returns the current interval for id.
func (s *State) Lookup(id string) (models.Span, bool) {
	for _, e := range s.entries {
		if e.EventID == id {
			return e.Span, true
		}
	}
	return models.Span{}, false
}

// Conflicts reports whether span overlaps anything except excludeID.
func (s *State) Conflicts(span models.Span, excludeID string) bool {
	for _, e := range s.entries {
		if !e.Span.Start.Before(span.End) {
			break
		}
		if excludeID != "" && e.EventID == excludeID {
			continue
		}
		if e.Span.Overlaps(span) {
			return true
		}
	}
	return false
}

// DayMinutes returns the counted minutes starting on the date of day.
func (s *State) DayMinutes(day time.Time) int {
	return s.minutes[day.Format(dayKeyLayout)]
}

// LightestDay returns the candidate with the fewest counted minutes. Ties go
// to the earliest date.
func (s *State) LightestDay(candidates []time.Time) (time.Time, bool) {
	if len(candidates) == 0 {
		return time.Time{}, false
	}
	ordered := append([]time.Time(nil), candidates...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })
	best := ordered[0]
	bestMinutes := s.DayMinutes(best)
	for _, day := range ordered[1:] {
		if m := s.DayMinutes(day); m < bestMinutes {
			best, bestMinutes = day, m
		}
	}
	return best, true
}

// On returns the intervals starting on the date of day, in start order.
func (s *State) On(day time.Time) []Busy {
	var out []Busy
	for _, e := range s.entries {
		if models.SameDay(day, e.Span.Start) {
			out = append(out, e.Busy)
		}
	}
	return out
}

// Snapshot copies every interval, counted or reserved.
func (s *State) Snapshot() Snapshot {
	out := make(Snapshot, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Busy
	}
	return out
}

// Overlapping returns pairs of ids whose intervals intersect. An empty result
// means the simulated plan is internally consistent.
func (s *State) Overlapping() [][2]string {
	var pairs [][2]string
	for i := range s.entries {
		for j := i + 1; j < len(s.entries); j++ {
			if !s.entries[j].Span.Start.Before(s.entries[i].Span.End) {
				break
			}
			pairs = append(pairs, [2]string{s.entries[i].EventID, s.entries[j].EventID})
		}
	}
	return pairs
}
