package optimizer

import (
	"fmt"
	"time"

	"github.com/extraction017/temporav3/internal/models"
)

const (
	consolidateBuffer   = 15 * time.Minute
	deepWorkJoin        = 5 * time.Minute
	deepWorkMaxGap      = 60 * time.Minute
	deepWorkMaxMinutes  = 240
	consolidateWorkdays = 5
	breakTitle          = "Break"
)

// consolidate groups each category into runs on the same days while still
// spreading the category across the week.
func (e *Engine) consolidate() Result {
	days := e.eligibleDays()
	byCategory := make(map[models.Category][]models.Event)
	for _, ev := range e.movable() {
		if ev.Title == breakTitle {
			continue
		}
		byCategory[ev.Category] = append(byCategory[ev.Category], ev)
	}
	if len(days) == 0 || len(byCategory) == 0 {
		return e.noMovableResult()
	}

	p := e.newPlan(nil)
	for _, category := range models.Categories {
		events := byCategory[category]
		if len(events) <= 1 {
			continue
		}
		perDay := len(events) / consolidateWorkdays
		if perDay < 1 {
			perDay = 1
		}

		dayIndex, placedToday := 0, 0
		cursor := e.prefs.Work.Start.On(days[dayIndex])
		for _, ev := range events {
			workEnd := e.prefs.Work.End.On(days[dayIndex])
			if placedToday >= perDay || cursor.After(workEnd) {
				dayIndex = (dayIndex + 1) % len(days)
				cursor = e.prefs.Work.Start.On(days[dayIndex])
				placedToday = 0
			}

			slot, err := e.findOnDay(p, ev, days[dayIndex], cursor, nil)
			if err != nil {
				continue
			}
			if diff := slot.Start.Sub(ev.Start); diff > time.Minute || diff < -time.Minute {
				p.move(ev, slot.Span, fmt.Sprintf("Grouping %s events while distributing across week", category))
			}
			cursor = slot.End.Add(consolidateBuffer)
			placedToday++
		}
	}

	mods := p.modifications()
	result := Result{Modifications: mods}
	if len(mods) == 0 {
		result.Message = "Events are already grouped"
	} else {
		result.Message = fmt.Sprintf("Grouped %d events by category across the week", len(mods))
	}
	return result
}

// groupDeepWork closes short gaps between work events on the same day so they
// form longer blocks, never building a block of four hours or more.
func (e *Engine) groupDeepWork() Result {
	p := e.newPlan(nil)

	byDay := make(map[string][]models.Event)
	var keys []string
	for _, ev := range e.weekEvents(models.CategoryWork) {
		if ev.Title == breakTitle {
			continue
		}
		key := ev.Start.Format("2006-01-02")
		if _, ok := byDay[key]; !ok {
			keys = append(keys, key)
		}
		byDay[key] = append(byDay[key], ev)
	}

	for _, key := range keys {
		events := byDay[key]
		blockMinutes := 0
		for i := 0; i+1 < len(events); i++ {
			cur, next := p.span(events[i].ID), p.span(events[i+1].ID)
			if blockMinutes == 0 {
				blockMinutes = cur.Minutes()
			}
			gap := next.Start.Sub(cur.End)
			combined := blockMinutes + next.Minutes()

			switch {
			case gap > deepWorkJoin && gap < deepWorkMaxGap && combined < deepWorkMaxMinutes && e.isMovable(events[i+1]):
				target := models.NewSpan(cur.End.Add(deepWorkJoin), next.Duration())
				if events[i+1].CanMoveTo(target) && !p.state.Conflicts(target, events[i+1].ID) {
					p.move(events[i+1], target, fmt.Sprintf("Creating deep work block (closing %d min gap, total: %d min)", int(gap.Minutes()), combined))
					blockMinutes = combined
					continue
				}
				blockMinutes = 0
			case gap >= 0 && gap <= deepWorkJoin:
				blockMinutes = combined
			default:
				blockMinutes = 0
			}
		}
	}

	mods := p.modifications()
	result := Result{Modifications: mods}
	if len(mods) == 0 {
		result.Message = "No deep work blocks to merge"
	} else {
		result.Message = fmt.Sprintf("Merged %d work events into deep work blocks", len(mods))
	}
	return result
}
