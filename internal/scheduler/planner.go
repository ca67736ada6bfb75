package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/extraction017/temporav3/internal/models"
)

// RecurringHorizonDays is how far ahead a series is materialised.
const RecurringHorizonDays = 30

var (
	// ErrInvalidFrequency is returned for a non-positive day interval.
	ErrInvalidFrequency = errors.New("frequency must be positive")
	// ErrInvalidRange is returned when the deadline is not after the earliest start.
	ErrInvalidRange = errors.New("deadline must be after earliest start")
	// ErrDeadlinePassed is returned when the deadline already elapsed.
	ErrDeadlinePassed = errors.New("deadline has already passed")
)

// Planner places recurring series and floating tasks.
type Planner struct {
	finder *Finder
	now    func() time.Time
}

// NewPlanner wires a planner to a finder and a clock.
func NewPlanner(finder *Finder, now func() time.Time) *Planner {
	if now == nil {
		now = time.Now
	}
	return &Planner{finder: finder, now: now}
}

// RecurringRequest describes a series to place.
type RecurringRequest struct {
	Duration      time.Duration
	FrequencyDays int
	StartDate     time.Time
	Category      models.Category
	Preferred     *models.PreferredWindow
}

// Placement is one placed occurrence.
type Placement struct {
	Date time.Time
	Slot Slot
}

// RecurringResult reports the outcome of a series.
type RecurringResult struct {
	HorizonStart time.Time
	HorizonEnd   time.Time
	Placed       []Placement
	Failed       []time.Time
	Stats        map[Level]int
}

// Success reports whether at least one occurrence was placed.
func (r RecurringResult) Success() bool {
	return len(r.Placed) > 0
}

// ScheduleRecurring places each occurrence in date order. Every placement is
// added to the obstacle set before the next date is searched.
func (p *Planner) ScheduleRecurring(req RecurringRequest, occupied Snapshot) (RecurringResult, error) {
	if req.Duration <= 0 {
		return RecurringResult{}, ErrInvalidDuration
	}
	if req.FrequencyDays <= 0 {
		return RecurringResult{}, ErrInvalidFrequency
	}

	now := p.now()
	start := models.StartOfDay(req.StartDate.In(now.Location()))
	if today := models.StartOfDay(now); start.Before(today) {
		start = today
	}
	horizon := start.AddDate(0, 0, RecurringHorizonDays)

	dates, err := occurrenceDates(start, req.FrequencyDays, horizon)
	if err != nil {
		return RecurringResult{}, err
	}

	result := RecurringResult{
		HorizonStart: start,
		HorizonEnd:   horizon,
		Stats:        make(map[Level]int),
	}
	working := append(Snapshot(nil), occupied...)
	for _, date := range dates {
		dayStart := models.StartOfDay(date)
		legal := models.Span{Start: dayStart, End: dayStart.AddDate(0, 0, 1)}
		if legal.Start.Before(now) {
			legal.Start = now
		}
		if !legal.Valid() {
			result.Failed = append(result.Failed, dayStart)
			continue
		}

		windows := GeneralWindow(legal)
		if req.Preferred.Active() {
			windows = DayWindows(dayStart, p.finder.Preferences(), req.Preferred, legal)
		}
		slot, err := p.finder.FindBestSlot(SlotRequest{
			Duration:  req.Duration,
			Windows:   windows,
			Preferred: req.Preferred,
			Anchor:    legal.Start,
		}, working)
		if err != nil {
			result.Failed = append(result.Failed, dayStart)
			continue
		}
		working = working.With(Busy{Category: req.Category, Span: slot.Span})
		result.Placed = append(result.Placed, Placement{Date: dayStart, Slot: slot})
		result.Stats[slot.Level]++
	}
	return result, nil
}

func occurrenceDates(start time.Time, frequencyDays int, horizon time.Time) ([]time.Time, error) {
	rule, err := rrule.StrToRRule(fmt.Sprintf("FREQ=DAILY;INTERVAL=%d", frequencyDays))
	if err != nil {
		return nil, fmt.Errorf("build recurrence rule: %w", err)
	}
	rule.DTStart(start)
	dates := rule.Between(start, horizon, true)
	for i, d := range dates {
		dates[i] = models.StartOfDay(d.In(start.Location()))
	}
	return dates, nil
}

// FloatingRequest describes a deadline-bound task.
type FloatingRequest struct {
	Duration      time.Duration
	EarliestStart time.Time
	Deadline      time.Time
	Preferred     *models.PreferredWindow
	ExcludeID     string
}

// ScheduleFloating picks the best slot in [EarliestStart, Deadline). With a
// preferred window each day contributes its best slot and the global maximum wins.
func (p *Planner) ScheduleFloating(req FloatingRequest, occupied Snapshot) (Slot, error) {
	if req.Duration <= 0 {
		return Slot{}, ErrInvalidDuration
	}
	if !req.Deadline.After(req.EarliestStart) {
		return Slot{}, ErrInvalidRange
	}
	now := p.now()
	if !req.Deadline.After(now) {
		return Slot{}, ErrDeadlinePassed
	}
	earliest := req.EarliestStart
	if earliest.Before(now) {
		earliest = now
	}
	legal := models.Span{Start: earliest, End: req.Deadline}

	if !req.Preferred.Active() {
		return p.finder.FindBestSlot(SlotRequest{
			Duration:  req.Duration,
			Windows:   GeneralWindow(legal),
			Anchor:    earliest,
			ExcludeID: req.ExcludeID,
		}, occupied)
	}

	var daily []Slot
	for day := models.StartOfDay(earliest); day.Before(req.Deadline); day = day.AddDate(0, 0, 1) {
		slot, err := p.finder.FindBestSlot(SlotRequest{
			Duration:  req.Duration,
			Windows:   DayWindows(day, p.finder.Preferences(), req.Preferred, legal),
			Preferred: req.Preferred,
			Anchor:    earliest,
			ExcludeID: req.ExcludeID,
		}, occupied)
		if err != nil {
			continue
		}
		daily = append(daily, slot)
		if len(daily) >= p.finder.maxCandidates {
			break
		}
	}
	if len(daily) == 0 {
		return Slot{}, ErrNoSlot
	}

	input := ScoreInput{Preferred: req.Preferred, Anchor: earliest, Occupied: occupied, ExcludeID: req.ExcludeID}
	best := daily[0]
	best.Score = p.finder.scorer.Score(best.Span, input)
	for _, candidate := range daily[1:] {
		candidate.Score = p.finder.scorer.Score(candidate.Span, input)
		if candidate.Score > best.Score {
			best = candidate
		}
	}
	return best, nil
}
