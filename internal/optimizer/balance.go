package optimizer

import (
	"fmt"
	"sort"

	"github.com/extraction017/temporav3/internal/models"
)

// balanceOrder sorts by priority, event type, category and original start.
func balanceOrder(events []models.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if a.Kind.Rank() != b.Kind.Rank() {
			return a.Kind.Rank() < b.Kind.Rank()
		}
		if a.Category.Rank() != b.Category.Rank() {
			return a.Category.Rank() < b.Category.Rank()
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.ID < b.ID
	})
}

func (e *Engine) noMovableResult() Result {
	msg := "No moveable events"
	if past := e.pastUnlockedCount(); past > 0 {
		msg = fmt.Sprintf("No moveable events (excluded %d past events - cannot modify history)", past)
	}
	return Result{Message: msg}
}

// smartOptimizeWeek levels workload by putting each movable event on the
// day with the fewest scheduled minutes so far.
func (e *Engine) smartOptimizeWeek() Result {
	targets := e.movable()
	if len(targets) == 0 {
		return e.noMovableResult()
	}
	balanceOrder(targets)

	p := e.newPlan(e.isMovable)
	days := e.eligibleDays()
	var result Result

	for _, ev := range targets {
		placed := false
		for _, day := range p.daysByLoad(days) {
			load := p.state.DayMinutes(day)
			slot, err := e.findOnDay(p, ev, day, e.categoryAnchor(ev.Category).On(day), nil)
			if err != nil {
				slot, err = e.findOnDay(p, ev, day, day, nil)
			}
			if err != nil {
				continue
			}
			p.move(ev, slot.Span, fmt.Sprintf("%s (%s had %dmin scheduled)", ev.Category, day.Format("Mon"), load))
			placed = true
			break
		}
		if !placed {
			p.keep(ev)
			result.Unplaced++
			result.Recommendations = append(result.Recommendations, unplacedRecommendation(ev, "no free slot on any remaining day"))
		}
	}

	result.Modifications = p.modifications()
	result.Message = fmt.Sprintf("Distributed %d events evenly across %d days by workload duration", len(targets)-result.Unplaced, len(days))
	return result
}

// distributeWeek re-places every movable event with the multi-factor
// distribution score.
func (e *Engine) distributeWeek() Result {
	targets := e.movable()
	if len(targets) == 0 {
		return e.noMovableResult()
	}
	balanceOrder(targets)

	p := e.newPlan(e.isMovable)
	batch := p.state.PlaceBatch(targets, e.prefs, e.now)

	var result Result
	for _, placed := range batch.Placed {
		p.move(placed.Event, placed.Span, fmt.Sprintf("Balanced placement (score %.1f)", placed.Score))
	}
	for _, ev := range batch.Failed {
		result.Unplaced++
		result.Recommendations = append(result.Recommendations, unplacedRecommendation(ev, "no free slot in the week"))
	}

	result.Modifications = p.modifications()
	result.Message = fmt.Sprintf("Placed %d of %d events with distribution scoring", len(batch.Placed), len(targets))
	return result
}
