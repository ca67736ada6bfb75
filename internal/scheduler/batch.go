package scheduler

import (
	"math"
	"time"

	"github.com/extraction017/temporav3/internal/models"
)

const batchStride = 15 * time.Minute

// BatchPlacement is one event placed by PlaceBatch.
type BatchPlacement struct {
	Event models.Event
	Span  models.Span
	Score float64
}

// BatchResult splits a batch into placed and unplaced events.
type BatchResult struct {
	Placed []BatchPlacement
	Failed []models.Event
}

// PlaceBatch places events one by one, each on the best slot across every
// covered day. Slots are scored for workload balance, preferred time,
// chronology, closeness to the original time and category grouping.
// Events must already be present in the state, usually as reservations.
func (s *State) PlaceBatch(events []models.Event, prefs models.Preferences, now time.Time) BatchResult {
	var result BatchResult
	for _, event := range events {
		original, present := s.Remove(event.ID)
		if !present {
			original = Busy{EventID: event.ID, Category: event.Category, Span: event.Span}
		}

		duration := event.Duration()
		var (
			best      models.Span
			bestScore float64
			found     bool
		)
		for _, day := range s.days {
			for _, window := range s.batchWindows(event, day, prefs, now) {
				candidateQuery{
					window:   window,
					duration: duration,
					stride:   batchStride,
					occupied: s.Snapshot(),
				}.walk(func(span models.Span) bool {
					score := s.distributionScore(event, span)
					if !found || score > bestScore {
						best, bestScore, found = span, score, true
					}
					return true
				})
			}
		}

		if !found {
			s.Add(original)
			result.Failed = append(result.Failed, event)
			continue
		}
		s.Add(Busy{EventID: event.ID, Category: event.Category, Span: best})
		result.Placed = append(result.Placed, BatchPlacement{Event: event, Span: best, Score: bestScore})
	}
	return result
}

func (s *State) batchWindows(event models.Event, day time.Time, prefs models.Preferences, now time.Time) []models.Span {
	var raw []models.Span
	switch {
	case event.Kind == models.KindRecurringInstance && event.Preferred.Active():
		raw = []models.Span{event.Preferred.DailyWindow.On(day)}
	case event.Category.Productive():
		raw = []models.Span{prefs.Work.On(day)}
	default:
		raw = wakingWindows(day, prefs.Sleep)
	}

	last := s.days[len(s.days)-1].AddDate(0, 0, 1)
	bounds := models.Span{Start: s.days[0], End: last}
	if bounds.Start.Before(now) {
		bounds.Start = now
	}
	own := event.PlacementBounds()
	if !own.Start.IsZero() && own.Start.After(bounds.Start) {
		bounds.Start = own.Start
	}
	if !own.End.IsZero() && own.End.Before(bounds.End) {
		bounds.End = own.End
	}
	if !bounds.Valid() {
		return nil
	}
	out := make([]models.Span, 0, len(raw))
	for _, w := range raw {
		if clipped, ok := w.Intersect(bounds); ok {
			out = append(out, clipped)
		}
	}
	return out
}

func wakingWindows(day time.Time, sleep models.DailyWindow) []models.Span {
	dayStart := models.StartOfDay(day)
	if sleep.Overnight() {
		return []models.Span{{Start: sleep.End.On(day), End: sleep.Start.On(day)}}
	}
	return []models.Span{
		{Start: dayStart, End: sleep.Start.On(day)},
		{Start: sleep.End.On(day), End: dayStart.AddDate(0, 0, 1)},
	}
}

func (s *State) distributionScore(event models.Event, slot models.Span) float64 {
	score := 0.0

	total := 0
	for _, m := range s.minutes {
		total += m
	}
	avg := float64(total) / float64(len(s.minutes))
	if avg > 0 {
		ratio := 1 - float64(s.DayMinutes(slot.Start))/(avg*2)
		score += math.Max(0, ratio*40)
	} else {
		score += 40
	}

	if event.Preferred.Active() {
		diff := math.Abs(float64(models.TimeOfDayOf(slot.Start) - event.Preferred.Start))
		score += 25 / (1 + diff/60)
	}

	if event.Category.Productive() && event.Priority == models.PriorityHigh {
		switch h := slot.Start.Hour(); {
		case h >= 9 && h <= 12:
			score += 15
		case h >= 13 && h <= 15:
			score += 10
		default:
			score += 5
		}
	} else {
		score += 10
	}

	if event.Kind == models.KindRecurringInstance {
		hours := math.Abs(slot.Start.Sub(event.Start).Hours())
		switch {
		case hours <= 1:
			score += 10
		case hours <= 3:
			score += 7
		case hours <= 6:
			score += 4
		default:
			score += 2
		}
	} else {
		score += 5
	}

	same := 0
	for _, b := range s.On(slot.Start) {
		if b.Category == event.Category {
			same++
		}
	}
	score += math.Min(10, float64(same*3))
	return score
}
