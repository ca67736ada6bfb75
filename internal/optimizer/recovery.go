package optimizer

import (
	"fmt"
	"math"
	"sort"

	"github.com/extraction017/temporav3/internal/models"
)

const (
	recoveryTargetMinutes = 10 * 60
	longBlockMinutes      = 180
	trimStepMinutes       = 30
	minTrimmedMinutes     = 60
)

// addRecoveryTime shortens the longest work blocks until the week holds ten
// hours of recreational and personal time, or no block can give more.
func (e *Engine) addRecoveryTime() Result {
	recovery := 0
	for _, c := range []models.Category{models.CategoryRecreational, models.CategoryPersonal} {
		for _, ev := range e.weekEvents(c) {
			recovery += ev.Minutes()
		}
	}
	deficit := recoveryTargetMinutes - recovery
	if deficit <= 0 {
		return Result{Message: fmt.Sprintf("Recovery time is adequate (%dh/week)", recovery/60)}
	}

	var long []models.Event
	for _, ev := range e.movable() {
		if ev.Category.Productive() && ev.Minutes() >= longBlockMinutes {
			long = append(long, ev)
		}
	}
	sort.SliceStable(long, func(i, j int) bool {
		return long[i].Minutes() > long[j].Minutes()
	})

	p := e.newPlan(nil)
	for _, ev := range long {
		if deficit <= 0 {
			break
		}
		cut := trimStepMinutes
		if deficit < cut {
			cut = deficit
		}
		trimmed := models.Span{Start: ev.Start, End: ev.End.Add(-minutes(cut))}
		if trimmed.Minutes() < minTrimmedMinutes {
			continue
		}
		p.move(ev, trimmed, fmt.Sprintf("Reducing %d-min work block by %d min to create recovery time", ev.Minutes(), cut))
		deficit -= cut
	}

	result := Result{Modifications: p.modifications()}
	if deficit > 0 {
		hours := math.Round(float64(deficit)/60*10) / 10
		result.Recommendations = append(result.Recommendations, models.Recommendation{
			Kind:    models.RecommendAddFreeTime,
			Message: fmt.Sprintf("Current recreational time: %dh, target: 10h+. Consider adding %.1fh of personal/recreational activities.", recovery/60, hours),
			Hours:   hours,
		})
	} else {
		result.Recommendations = append(result.Recommendations, models.Recommendation{
			Kind:    models.RecommendScheduleAchieved,
			Message: "Optimizations will bring recovery time to target (10h+/week). Consider scheduling specific personal/recreational activities in the freed time.",
			Hours:   recoveryTargetMinutes / 60,
		})
	}
	result.Message = fmt.Sprintf("Shortened %d long work blocks", len(result.Modifications))
	return result
}

// fixSleepSchedule moves events that touch the sleep window, first within
// the same day starting at work hours, then to the next day.
func (e *Engine) fixSleepSchedule() Result {
	p := e.newPlan(nil)
	var result Result
	for _, ev := range e.movable() {
		if ev.Title == breakTitle || !e.prefs.Sleep.Intersects(ev.Span) {
			continue
		}

		day := models.StartOfDay(ev.Start)
		slot, err := e.findOnDay(p, ev, day, e.prefs.Work.Start.On(day), nil)
		reason := "Moving out of sleep hours to protect sleep quality"
		if err != nil {
			next := day.AddDate(0, 0, 1)
			slot, err = e.findOnDay(p, ev, next, e.prefs.Work.Start.On(next), nil)
			reason = "Moving out of sleep hours to next available day"
		}
		if err != nil {
			result.Unplaced++
			result.Recommendations = append(result.Recommendations, unplacedRecommendation(ev, "no waking slot on this or the next day"))
			continue
		}
		p.move(ev, slot.Span, reason)
	}

	result.Modifications = p.modifications()
	if len(result.Modifications) == 0 && result.Unplaced == 0 {
		result.Message = "No events during sleep hours"
	} else {
		result.Message = fmt.Sprintf("Moved %d events out of sleep hours", len(result.Modifications))
	}
	return result
}
