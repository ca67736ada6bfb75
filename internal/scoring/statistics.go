package scoring

import (
	"math"
	"time"

	"github.com/extraction017/temporav3/internal/models"
)

const (
	idealWorkBreakRatio = 8.0
	noBreakPenalty      = 30
	noBreakMinutes      = 240
)

// DayBreakdown aggregates one weekday.
type DayBreakdown struct {
	Count      int                `json:"count"`
	Minutes    float64            `json:"duration"`
	Categories map[string]float64 `json:"categories"`
}

// DayLoad names a day with its event count and hours.
type DayLoad struct {
	Day        string  `json:"day"`
	EventCount int     `json:"event_count"`
	TotalHours float64 `json:"total_hours"`
}

// Summary holds the headline numbers of a week.
type Summary struct {
	TotalEvents      int      `json:"total_events"`
	TotalHours       float64  `json:"total_hours"`
	AvgEventDuration float64  `json:"avg_event_duration"`
	AvgEventsPerDay  float64  `json:"avg_events_per_day"`
	ProductiveHours  float64  `json:"productive_hours"`
	RestHours        float64  `json:"rest_hours"`
	BusiestDay       *DayLoad `json:"busiest_day"`
	SlowestDay       *DayLoad `json:"slowest_day"`
	WorkBreakRatio   *float64 `json:"work_break_ratio"`
	BalanceScore     int      `json:"balance_score"`
}

// Statistics are duration aggregates for one week. Durations are minutes.
type Statistics struct {
	WeekStart         time.Time               `json:"week_start"`
	WeekEnd           time.Time               `json:"week_end"`
	Summary           Summary                 `json:"summary"`
	EventDurations    map[string]float64      `json:"event_durations"`
	CategoryDurations map[string]float64      `json:"category_durations"`
	PriorityDurations map[string]float64      `json:"priority_durations"`
	TypeDurations     map[string]float64      `json:"type_durations"`
	Daily             map[string]DayBreakdown `json:"daily_breakdown"`
}

func typeLabel(k models.EventKind) string {
	switch k {
	case models.KindFixed:
		return "Fixed"
	case models.KindRecurringInstance:
		return "Recurring"
	case models.KindFloating:
		return "Floating"
	default:
		return "Other"
	}
}

// ComputeStatistics aggregates events starting in the seven days from
// weekStart.
func ComputeStatistics(events []models.Event, weekStart time.Time) Statistics {
	weekStart = models.StartOfDay(weekStart)
	weekEnd := weekStart.AddDate(0, 0, 7)
	stats := Statistics{
		WeekStart:         weekStart,
		WeekEnd:           weekEnd,
		EventDurations:    map[string]float64{},
		CategoryDurations: map[string]float64{},
		PriorityDurations: map[string]float64{},
		TypeDurations:     map[string]float64{},
		Daily:             map[string]DayBreakdown{},
	}

	var total, productive, rest float64
	for _, e := range events {
		if !e.Occupies() || e.Start.Before(weekStart) || !e.Start.Before(weekEnd) {
			continue
		}
		minutes := e.Duration().Minutes()
		stats.Summary.TotalEvents++
		total += minutes

		stats.EventDurations[e.Title] += minutes
		stats.CategoryDurations[string(e.Category)] += minutes
		stats.PriorityDurations[string(e.Priority)] += minutes
		stats.TypeDurations[typeLabel(e.Kind)] += minutes

		day := e.Start.Weekday().String()
		d, ok := stats.Daily[day]
		if !ok {
			d = DayBreakdown{Categories: map[string]float64{}}
		}
		d.Count++
		d.Minutes += minutes
		d.Categories[string(e.Category)] += minutes
		stats.Daily[day] = d

		switch {
		case e.Category.Productive():
			productive += minutes
		case e.Category == models.CategoryMeal:
			rest += minutes
		}
	}

	s := &stats.Summary
	s.TotalHours = round2(total / 60)
	if s.TotalEvents > 0 {
		s.AvgEventDuration = round1(total / float64(s.TotalEvents))
	}
	days := len(stats.Daily)
	if days < 1 {
		days = 1
	}
	s.AvgEventsPerDay = round1(float64(s.TotalEvents) / float64(days))
	s.ProductiveHours = round2(productive / 60)
	s.RestHours = round2(rest / 60)
	s.BusiestDay, s.SlowestDay = extremeDays(stats.Daily, weekStart)

	if rest > 0 {
		ratio := round2(productive / rest)
		s.WorkBreakRatio = &ratio
	}
	if productive > 0 {
		ratio := 0.0
		if s.WorkBreakRatio != nil {
			ratio = *s.WorkBreakRatio
		}
		s.BalanceScore = int(math.Round(100 * math.Pow(0.9, math.Abs(ratio-idealWorkBreakRatio))))
		if rest == 0 && productive > noBreakMinutes {
			s.BalanceScore -= noBreakPenalty
			if s.BalanceScore < 0 {
				s.BalanceScore = 0
			}
		}
	}
	return stats
}

// extremeDays walks the week in order so ties go to the earlier day.
func extremeDays(daily map[string]DayBreakdown, weekStart time.Time) (busiest, slowest *DayLoad) {
	for i := 0; i < 7; i++ {
		name := weekStart.AddDate(0, 0, i).Weekday().String()
		d, ok := daily[name]
		if !ok {
			continue
		}
		load := &DayLoad{Day: name, EventCount: d.Count, TotalHours: round2(d.Minutes / 60)}
		if busiest == nil || d.Count > busiest.EventCount {
			busiest = load
		}
		if slowest == nil || d.Count < slowest.EventCount {
			slowest = load
		}
	}
	return busiest, slowest
}
