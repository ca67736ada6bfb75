package optimizer

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/extraction017/temporav3/internal/models"
	"github.com/extraction017/temporav3/internal/scheduler"
)

// Policy names one optimization strategy.
type Policy string

const (
	PolicySmartOptimizeWeek Policy = "smart_optimize_week"
	PolicyConsolidate       Policy = "consolidate"
	PolicyGroupDeepWork     Policy = "group_deep_work"
	PolicyAddPlanningBuffer Policy = "add_planning_buffer"
	PolicyReduceMeetingLoad Policy = "reduce_meeting_load"
	PolicyAddRecoveryTime   Policy = "add_recovery_time"
	PolicyFixSleepSchedule  Policy = "fix_sleep_schedule"
	PolicyDistributeWeek    Policy = "distribute_week"
)

// Policies lists every supported policy.
var Policies = []Policy{
	PolicySmartOptimizeWeek,
	PolicyConsolidate,
	PolicyGroupDeepWork,
	PolicyAddPlanningBuffer,
	PolicyReduceMeetingLoad,
	PolicyAddRecoveryTime,
	PolicyFixSleepSchedule,
	PolicyDistributeWeek,
}

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	for _, known := range Policies {
		if p == known {
			return true
		}
	}
	return false
}

var (
	// ErrUnknownPolicy is returned by Run for unsupported policy names.
	ErrUnknownPolicy = errors.New("unknown optimization policy")
	// ErrPastWeek is returned when the whole target week already elapsed.
	ErrPastWeek = errors.New("cannot optimize past weeks")
)

const daysPerWeek = 7

// Result is the outcome of one policy run. Nothing is applied.
type Result struct {
	Policy          Policy                  `json:"action"`
	Modifications   []models.Modification   `json:"modifications"`
	Recommendations []models.Recommendation `json:"recommendations"`
	EventsModified  int                     `json:"events_modified"`
	Unplaced        int                     `json:"unplaced"`
	Message         string                  `json:"message"`
}

// Config tunes an Engine.
type Config struct {
	// WeekStart is the first day of the target week. Zero uses the date of
	// the earliest event, or the current week when there are none.
	WeekStart time.Time
	Now       func() time.Time
	Finder    scheduler.FinderConfig
	Logger    *zap.Logger
}

// Engine proposes rearrangements of one week. It works on a private copy of
// the events and is meant for a single request.
type Engine struct {
	events    []models.Event
	prefs     models.Preferences
	weekStart time.Time
	now       time.Time
	finder    *scheduler.Finder
	logger    *zap.Logger
}

// NewEngine builds an engine over events.
func NewEngine(events []models.Event, prefs models.Preferences, cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	now := cfg.Now()

	owned := make([]models.Event, 0, len(events))
	for _, e := range events {
		if e.Occupies() {
			owned = append(owned, e)
		}
	}
	sort.SliceStable(owned, func(i, j int) bool {
		if !owned[i].Start.Equal(owned[j].Start) {
			return owned[i].Start.Before(owned[j].Start)
		}
		return owned[i].ID < owned[j].ID
	})

	weekStart := cfg.WeekStart
	if weekStart.IsZero() {
		if len(owned) > 0 {
			weekStart = owned[0].Start
		} else {
			weekStart = models.WeekStart(now)
		}
	}

	return &Engine{
		events:    owned,
		prefs:     prefs,
		weekStart: models.StartOfDay(weekStart.In(now.Location())),
		now:       now,
		finder:    scheduler.NewFinder(prefs, cfg.Finder),
		logger:    cfg.Logger,
	}
}

// WeekStart returns the first day of the target week.
func (e *Engine) WeekStart() time.Time {
	return e.weekStart
}

// WeekEnd returns the instant after the last day of the target week.
func (e *Engine) WeekEnd() time.Time {
	return e.weekStart.AddDate(0, 0, daysPerWeek)
}

// Run executes one policy and returns its proposals.
func (e *Engine) Run(policy Policy) (Result, error) {
	if !policy.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
	if !e.WeekEnd().After(models.StartOfDay(e.now)) {
		return Result{}, ErrPastWeek
	}

	var result Result
	switch policy {
	case PolicySmartOptimizeWeek:
		result = e.smartOptimizeWeek()
	case PolicyConsolidate:
		result = e.consolidate()
	case PolicyGroupDeepWork:
		result = e.groupDeepWork()
	case PolicyAddPlanningBuffer:
		result = e.addPlanningBuffer()
	case PolicyReduceMeetingLoad:
		result = e.reduceMeetingLoad()
	case PolicyAddRecoveryTime:
		result = e.addRecoveryTime()
	case PolicyFixSleepSchedule:
		result = e.fixSleepSchedule()
	case PolicyDistributeWeek:
		result = e.distributeWeek()
	}
	result.Policy = policy
	result.EventsModified = len(result.Modifications)
	if result.Modifications == nil {
		result.Modifications = []models.Modification{}
	}
	if result.Recommendations == nil {
		result.Recommendations = []models.Recommendation{}
	}

	e.logger.Debug("optimization policy finished",
		zap.String("policy", string(policy)),
		zap.Time("week_start", e.weekStart),
		zap.Int("modifications", result.EventsModified),
		zap.Int("unplaced", result.Unplaced),
	)
	return result, nil
}

func (e *Engine) inWeek(ev models.Event) bool {
	return !ev.Start.Before(e.weekStart) && ev.Start.Before(e.WeekEnd())
}

func (e *Engine) isMovable(ev models.Event) bool {
	return ev.Movable(e.now) && e.inWeek(ev)
}

// movable lists the target events in start order.
func (e *Engine) movable() []models.Event {
	var out []models.Event
	for _, ev := range e.events {
		if e.isMovable(ev) {
			out = append(out, ev)
		}
	}
	return out
}

func (e *Engine) pastUnlockedCount() int {
	n := 0
	for _, ev := range e.events {
		if e.inWeek(ev) && !ev.Locked && ev.IsPast(e.now) {
			n++
		}
	}
	return n
}

func (e *Engine) weekEvents(category models.Category) []models.Event {
	var out []models.Event
	for _, ev := range e.events {
		if e.inWeek(ev) && ev.Category == category {
			out = append(out, ev)
		}
	}
	return out
}

func (e *Engine) weekDays() []time.Time {
	days := make([]time.Time, daysPerWeek)
	for i := range days {
		days[i] = e.weekStart.AddDate(0, 0, i)
	}
	return days
}

// eligibleDays are the week days that have not fully elapsed.
func (e *Engine) eligibleDays() []time.Time {
	var out []time.Time
	for _, day := range e.weekDays() {
		if day.AddDate(0, 0, 1).After(e.now) {
			out = append(out, day)
		}
	}
	return out
}

// categoryAnchor is where a day's search starts for a category.
func (e *Engine) categoryAnchor(c models.Category) models.TimeOfDay {
	switch c {
	case models.CategoryWork, models.CategoryMeeting:
		return e.prefs.Work.Start
	case models.CategoryMeal:
		return models.MustTimeOfDay("12:00")
	default:
		return models.MustTimeOfDay("14:00")
	}
}

// findOnDay searches the fallback levels of day, never before from or now.
func (e *Engine) findOnDay(p *plan, ev models.Event, day, from time.Time, reject func(models.Span) bool) (scheduler.Slot, error) {
	dayStart := models.StartOfDay(day)
	legal := models.Span{Start: dayStart, End: dayStart.AddDate(0, 0, 1)}
	if from.After(legal.Start) {
		legal.Start = from
	}
	if e.now.After(legal.Start) {
		legal.Start = e.now
	}
	legal, ok := clampToBounds(legal, ev.PlacementBounds())
	if !ok {
		return scheduler.Slot{}, scheduler.ErrNoSlot
	}
	return e.finder.FindBestSlot(scheduler.SlotRequest{
		Duration:  ev.Duration(),
		Windows:   scheduler.DayWindows(dayStart, e.prefs, ev.Preferred, legal),
		Preferred: ev.Preferred,
		Anchor:    legal.Start,
		ExcludeID: ev.ID,
		Reject: func(s models.Span) bool {
			return !ev.CanMoveTo(s) || (reject != nil && reject(s))
		},
	}, p.state.Snapshot())
}

// clampToBounds narrows legal to the event's own placement bounds.
func clampToBounds(legal, bounds models.Span) (models.Span, bool) {
	if !bounds.Start.IsZero() && bounds.Start.After(legal.Start) {
		legal.Start = bounds.Start
	}
	if !bounds.End.IsZero() && bounds.End.Before(legal.End) {
		legal.End = bounds.End
	}
	return legal, legal.Valid()
}

func unplacedRecommendation(ev models.Event, why string) models.Recommendation {
	return models.Recommendation{
		Kind:     models.RecommendUnplaced,
		Message:  fmt.Sprintf("Could not place %s: %s", ev.Title, why),
		EventIDs: []string{ev.ID},
	}
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
