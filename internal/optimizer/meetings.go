package optimizer

import (
	"fmt"
	"sort"
	"time"

	"github.com/extraction017/temporav3/internal/models"
)

const (
	meetingBuffer       = 10 * time.Minute
	heavyMeetingDay     = 3
	consolidateSuggests = 3
)

// addPlanningBuffer pushes a meeting that starts less than ten minutes after
// the previous one. Pushes may cascade down a chain of meetings.
func (e *Engine) addPlanningBuffer() Result {
	meetings := e.weekEvents(models.CategoryMeeting)
	if len(meetings) < 2 {
		return Result{Message: "No back-to-back meetings to optimize"}
	}

	p := e.newPlan(nil)
	p.sortBySpan(meetings)
	for i := 0; i+1 < len(meetings); i++ {
		prev, next := meetings[i], meetings[i+1]
		if !e.isMovable(next) {
			continue
		}
		prevSpan, nextSpan := p.span(prev.ID), p.span(next.ID)
		gap := nextSpan.Start.Sub(prevSpan.End)
		if gap < 0 || gap >= meetingBuffer {
			continue
		}

		shift := meetingBuffer - gap
		target := nextSpan.Shift(shift)
		if next.CanMoveTo(target) && !p.state.Conflicts(target, next.ID) {
			p.move(next, target, fmt.Sprintf("Adding %d-min buffer after %s", int(shift.Minutes()), prev.Title))
			continue
		}

		slot, err := e.findOnDay(p, next, target.Start, target.Start, e.meetingGapFilter(p, next.ID))
		if err != nil {
			continue
		}
		p.move(next, slot.Span, fmt.Sprintf("Adding buffer after %s (moved to next available slot)", prev.Title))
	}

	mods := p.modifications()
	result := Result{Modifications: mods}
	if len(mods) == 0 {
		result.Message = "No back-to-back meetings to optimize"
	} else {
		result.Message = fmt.Sprintf("Added buffers before %d meetings", len(mods))
	}
	return result
}

// meetingGapFilter rejects slots closer than the buffer to another meeting.
func (e *Engine) meetingGapFilter(p *plan, id string) func(models.Span) bool {
	return func(s models.Span) bool {
		padded := models.Span{Start: s.Start.Add(-meetingBuffer), End: s.End.Add(meetingBuffer)}
		for _, b := range p.state.Snapshot() {
			if b.EventID != id && b.Category == models.CategoryMeeting && b.Span.Overlaps(padded) {
				return true
			}
		}
		return false
	}
}

// reduceMeetingLoad only advises: days with three or more movable meetings
// get a suggestion naming the shortest ones.
func (e *Engine) reduceMeetingLoad() Result {
	byDay := make(map[string][]models.Event)
	var keys []string
	for _, ev := range e.weekEvents(models.CategoryMeeting) {
		if !e.isMovable(ev) {
			continue
		}
		key := ev.Start.Format("2006-01-02")
		if _, ok := byDay[key]; !ok {
			keys = append(keys, key)
		}
		byDay[key] = append(byDay[key], ev)
	}

	var result Result
	for _, key := range keys {
		day := byDay[key]
		if len(day) < heavyMeetingDay {
			continue
		}
		shortest := append([]models.Event(nil), day...)
		sort.SliceStable(shortest, func(i, j int) bool {
			return shortest[i].Duration() < shortest[j].Duration()
		})
		if len(shortest) > consolidateSuggests {
			shortest = shortest[:consolidateSuggests]
		}
		ids := make([]string, len(shortest))
		for i, m := range shortest {
			ids[i] = m.ID
		}
		date := models.StartOfDay(day[0].Start)
		result.Recommendations = append(result.Recommendations, models.Recommendation{
			Kind:     models.RecommendConsolidateMeetings,
			Message:  fmt.Sprintf("%d meetings on %s - consider combining related ones", len(day), date.Weekday()),
			Day:      &date,
			EventIDs: ids,
		})
	}

	if len(result.Recommendations) == 0 {
		result.Message = "Meeting load is manageable"
	} else {
		result.Message = fmt.Sprintf("%d days with heavy meeting load", len(result.Recommendations))
	}
	return result
}
