package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/extraction017/temporav3/internal/dto"
	"github.com/extraction017/temporav3/internal/models"
	"github.com/extraction017/temporav3/internal/scheduler"
	appErrors "github.com/extraction017/temporav3/pkg/errors"
	"github.com/extraction017/temporav3/pkg/logger"
)

type eventRepository interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	ListInRange(ctx context.Context, from, to time.Time) ([]models.Event, error)
	FindByID(ctx context.Context, id string) (*models.Event, error)
	FindConflicts(ctx context.Context, span models.Span, excludeID string) ([]models.Event, error)
	Create(ctx context.Context, event *models.Event) error
	CreateSeries(ctx context.Context, parent *models.Event, instances []models.Event) error
	AppendInstances(ctx context.Context, parentID string, instances []models.Event) error
	LatestInstanceStart(ctx context.Context, parentID string) (time.Time, bool, error)
	Update(ctx context.Context, event *models.Event) error
	ToggleLock(ctx context.Context, id string) (*models.Event, error)
	Delete(ctx context.Context, id string) error
	DeleteFutureInstances(ctx context.Context, parentID string, from time.Time) (int64, error)
}

type preferenceReader interface {
	Get(ctx context.Context) (*models.Preferences, error)
}

type placementRecorder interface {
	RecordPlacement(kind string, level string)
}

// EventServiceConfig tunes placement searches.
type EventServiceConfig struct {
	Finder   scheduler.FinderConfig
	Now      func() time.Time
	Location *time.Location
}

// EventService manages calendar events and places recurring and floating ones.
type EventService struct {
	events    eventRepository
	prefs     preferenceReader
	cache     cacheInvalidator
	metrics   placementRecorder
	validator *validator.Validate
	logger    *zap.Logger
	cfg       EventServiceConfig
}

// NewEventService constructs an EventService.
func NewEventService(events eventRepository, prefs preferenceReader, cache cacheInvalidator, metrics placementRecorder, validate *validator.Validate, logger *zap.Logger, cfg EventServiceConfig) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &EventService{
		events:    events,
		prefs:     prefs,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

func (s *EventService) now() time.Time {
	return s.cfg.Now().In(s.cfg.Location)
}

// List returns events matching filter.
func (s *EventService) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.To.After(filter.From) {
		return nil, appErrors.Clone(appErrors.ErrInvalidRange, "to must be after from")
	}
	events, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return events, nil
}

// Get returns one event.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.events.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return event, nil
}

// CreateFixed stores a fixed event after rejecting past, inverted and
// overlapping spans.
func (s *EventService) CreateFixed(ctx context.Context, req dto.CreateEventRequest) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	preferred, err := preferredWindow(req.PreferredTime)
	if err != nil {
		return nil, err
	}
	event := &models.Event{
		Title:     strings.TrimSpace(req.Title),
		Category:  models.Category(req.Category),
		Priority:  priorityOrDefault(req.Priority),
		Kind:      models.KindFixed,
		Span:      models.Span{Start: req.Start.In(s.cfg.Location), End: req.End.In(s.cfg.Location)},
		Locked:    req.Locked,
		Notes:     req.Notes,
		Preferred: preferred,
	}
	if err := s.checkSpan(event.Span); err != nil {
		return nil, err
	}
	if err := event.Validate(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := s.ensureFree(ctx, event.Span, ""); err != nil {
		return nil, err
	}

	if err := s.events.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	invalidateScores(ctx, s.cache, s.logger)
	logger.WithContext(ctx, s.logger).Info("event created", zap.String("event_id", event.ID), zap.String("type", string(event.Kind)))
	return event, nil
}

// Validate dry-runs a fixed event and reports conflicts and soft warnings.
func (s *EventService) Validate(ctx context.Context, req dto.CreateEventRequest) (*dto.EventValidation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	span := models.Span{Start: req.Start.In(s.cfg.Location), End: req.End.In(s.cfg.Location)}
	result := &dto.EventValidation{Valid: true, Conflicts: []models.Event{}, Warnings: []string{}}
	if err := s.checkSpan(span); err != nil {
		result.Valid = false
		result.Warnings = append(result.Warnings, appErrors.FromError(err).Message)
		return result, nil
	}

	conflicts, err := s.events.FindConflicts(ctx, span, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check conflicts")
	}
	if len(conflicts) > 0 {
		result.Valid = false
		result.Conflicts = conflicts
	}

	prefs, err := s.preferences(ctx)
	if err != nil {
		return nil, err
	}
	category := models.Category(req.Category)
	if prefs.Sleep.Intersects(span) {
		result.Warnings = append(result.Warnings, fmt.Sprintf("overlaps sleep window %s", prefs.Sleep))
	}
	if category.Productive() && !prefs.Work.On(span.Start).Contains(span) {
		result.Warnings = append(result.Warnings, fmt.Sprintf("outside work hours %s", prefs.Work))
	}
	if category == models.CategoryWork && span.Duration() > 4*time.Hour {
		result.Warnings = append(result.Warnings, "work block longer than 4h")
	}
	return result, nil
}

// CreateRecurring stores a series definition and places every occurrence in
// the scheduling horizon. Dates that cannot be placed are reported, not fatal.
func (s *EventService) CreateRecurring(ctx context.Context, req dto.CreateRecurringRequest) (*dto.RecurringEventResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recurring event payload")
	}
	preferred, err := preferredWindow(req.PreferredTime)
	if err != nil {
		return nil, err
	}
	now := s.now()
	startDate := models.StartOfDay(now)
	if req.StartDate != nil {
		startDate = models.StartOfDay(req.StartDate.In(s.cfg.Location))
	}

	prefs, err := s.preferences(ctx)
	if err != nil {
		return nil, err
	}
	planner := scheduler.NewPlanner(scheduler.NewFinder(*prefs, s.cfg.Finder), s.now)
	from := startDate
	if from.Before(models.StartOfDay(now)) {
		from = models.StartOfDay(now)
	}
	occupied, err := s.snapshot(ctx, from.AddDate(0, 0, -1), from.AddDate(0, 0, scheduler.RecurringHorizonDays+1))
	if err != nil {
		return nil, err
	}

	duration := time.Duration(req.DurationMinutes) * time.Minute
	category := models.Category(req.Category)
	result, err := planner.ScheduleRecurring(scheduler.RecurringRequest{
		Duration:      duration,
		FrequencyDays: req.FrequencyDays,
		StartDate:     startDate,
		Category:      category,
		Preferred:     preferred,
	}, occupied)
	if err != nil {
		return nil, domainError(err, "failed to schedule recurring event")
	}
	if !result.Success() {
		return nil, appErrors.Clone(appErrors.ErrNoSlotFound, fmt.Sprintf("no occurrence could be scheduled in %d days", scheduler.RecurringHorizonDays))
	}

	parent := &models.Event{
		Title:     strings.TrimSpace(req.Title),
		Category:  category,
		Priority:  priorityOrDefault(req.Priority),
		Kind:      models.KindRecurringParent,
		Notes:     req.Notes,
		Preferred: preferred,
		Recurrence: &models.RecurrenceRule{
			DurationMinutes: req.DurationMinutes,
			FrequencyDays:   req.FrequencyDays,
			StartDate:       startDate,
		},
	}
	if err := parent.Validate(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	instances := s.instancesFor(parent, result.Placed)
	if err := s.events.CreateSeries(ctx, parent, instances); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create recurring event")
	}
	invalidateScores(ctx, s.cache, s.logger)

	resp := &dto.RecurringEventResponse{
		Parent:       *parent,
		Instances:    instances,
		Scheduled:    len(result.Placed),
		Failed:       len(result.Failed),
		FailedDates:  make([]string, 0, len(result.Failed)),
		Stats:        make(map[string]int, len(result.Stats)),
		HorizonStart: result.HorizonStart,
		HorizonEnd:   result.HorizonEnd,
	}
	for _, d := range result.Failed {
		resp.FailedDates = append(resp.FailedDates, d.Format("2006-01-02"))
	}
	for level, n := range result.Stats {
		resp.Stats[string(level)] = n
	}
	logger.WithContext(ctx, s.logger).Info("recurring event created",
		zap.String("event_id", parent.ID),
		zap.Int("scheduled", resp.Scheduled),
		zap.Int("failed", resp.Failed),
	)
	return resp, nil
}

// CreateFloating places a task between its earliest start and deadline.
func (s *EventService) CreateFloating(ctx context.Context, req dto.CreateFloatingRequest) (*dto.FloatingEventResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid floating event payload")
	}
	preferred, err := preferredWindow(req.PreferredTime)
	if err != nil {
		return nil, err
	}
	now := s.now()
	earliest := now
	if req.EarliestStart != nil {
		earliest = req.EarliestStart.In(s.cfg.Location)
	}
	deadline := req.Deadline.In(s.cfg.Location)

	prefs, err := s.preferences(ctx)
	if err != nil {
		return nil, err
	}
	from := earliest
	if from.Before(now) {
		from = now
	}
	var occupied scheduler.Snapshot
	if deadline.After(from) {
		occupied, err = s.snapshot(ctx, models.StartOfDay(from).AddDate(0, 0, -1), deadline.AddDate(0, 0, 1))
		if err != nil {
			return nil, err
		}
	}

	planner := scheduler.NewPlanner(scheduler.NewFinder(*prefs, s.cfg.Finder), s.now)
	slot, err := planner.ScheduleFloating(scheduler.FloatingRequest{
		Duration:      time.Duration(req.DurationMinutes) * time.Minute,
		EarliestStart: earliest,
		Deadline:      deadline,
		Preferred:     preferred,
	}, occupied)
	if err != nil {
		return nil, domainError(err, "failed to schedule floating event")
	}

	event := &models.Event{
		Title:     strings.TrimSpace(req.Title),
		Category:  models.Category(req.Category),
		Priority:  priorityOrDefault(req.Priority),
		Kind:      models.KindFloating,
		Span:      slot.Span,
		Notes:     req.Notes,
		Preferred: preferred,
		Window:    &models.FloatingWindow{EarliestStart: earliest, Deadline: deadline},
	}
	if err := event.Validate(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create floating event")
	}
	invalidateScores(ctx, s.cache, s.logger)
	s.recordPlacement(models.KindFloating, slot.Level)
	logger.WithContext(ctx, s.logger).Info("floating event placed",
		zap.String("event_id", event.ID),
		zap.Time("start", event.Start),
		zap.String("level", string(slot.Level)),
	)
	return &dto.FloatingEventResponse{Event: *event, Level: string(slot.Level), Score: slot.Score}, nil
}

// Update patches an event. A changed span is checked for the past and for
// conflicts with other events.
func (s *EventService) Update(ctx context.Context, id string, req dto.UpdateEventRequest) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		event.Title = strings.TrimSpace(*req.Title)
	}
	if req.Category != nil {
		event.Category = models.Category(*req.Category)
	}
	if req.Priority != nil {
		event.Priority = models.Priority(*req.Priority)
	}
	if req.Notes != nil {
		event.Notes = *req.Notes
	}
	if req.PreferredTime != nil {
		preferred, err := preferredWindow(req.PreferredTime)
		if err != nil {
			return nil, err
		}
		event.Preferred = preferred
	}

	span := event.Span
	if req.Start != nil {
		span.Start = req.Start.In(s.cfg.Location)
	}
	if req.End != nil {
		span.End = req.End.In(s.cfg.Location)
	}
	if !span.Equal(event.Span) {
		if event.Kind == models.KindRecurringParent {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a recurring definition has no time of its own")
		}
		if event.Locked {
			return nil, appErrors.Clone(appErrors.ErrConflict, "event is locked")
		}
		if err := s.checkSpan(span); err != nil {
			return nil, err
		}
		if err := s.ensureFree(ctx, span, event.ID); err != nil {
			return nil, err
		}
		event.Span = span
	}
	if err := event.Validate(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	if err := s.events.Update(ctx, event); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	invalidateScores(ctx, s.cache, s.logger)
	return event, nil
}

// ToggleLock flips the locked flag of an event.
func (s *EventService) ToggleLock(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.events.ToggleLock(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle lock")
	}
	s.logger.Info("event lock toggled", zap.String("event_id", id), zap.Bool("locked", event.Locked))
	return event, nil
}

// Delete removes an event. this_instance removes only the row, all_future
// removes an instance and every later sibling, and the default removes a
// parent together with its instances.
func (s *EventService) Delete(ctx context.Context, id string, mode dto.DeleteMode) (*dto.DeleteEventResponse, error) {
	if !mode.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown delete mode %q", mode))
	}
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := &dto.DeleteEventResponse{ID: id, Mode: mode}
	switch {
	case mode == dto.DeleteAllFuture && event.Kind == models.KindRecurringInstance && event.ParentID != nil:
		resp.Deleted, err = s.events.DeleteFutureInstances(ctx, *event.ParentID, event.Start)
	default:
		err = s.events.Delete(ctx, id)
		resp.Deleted = 1
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	invalidateScores(ctx, s.cache, s.logger)
	logger.WithContext(ctx, s.logger).Info("event deleted", zap.String("event_id", id), zap.String("mode", string(mode)), zap.Int64("deleted", resp.Deleted))
	return resp, nil
}

// RefillRecurring extends every series so its instances cover the
// scheduling horizon from today. It returns how many instances were added.
func (s *EventService) RefillRecurring(ctx context.Context) (int, error) {
	parents, err := s.events.List(ctx, models.EventFilter{Kind: models.KindRecurringParent})
	if err != nil {
		return 0, fmt.Errorf("list recurring parents: %w", err)
	}
	if len(parents) == 0 {
		return 0, nil
	}
	prefs, err := s.preferences(ctx)
	if err != nil {
		return 0, err
	}
	planner := scheduler.NewPlanner(scheduler.NewFinder(*prefs, s.cfg.Finder), s.now)

	today := models.StartOfDay(s.now())
	horizon := today.AddDate(0, 0, scheduler.RecurringHorizonDays)
	occupied, err := s.snapshot(ctx, today.AddDate(0, 0, -1), horizon.AddDate(0, 0, scheduler.RecurringHorizonDays+1))
	if err != nil {
		return 0, err
	}

	added := 0
	for i := range parents {
		parent := &parents[i]
		rule := parent.Recurrence
		if rule == nil || rule.FrequencyDays <= 0 {
			continue
		}
		next := models.StartOfDay(rule.StartDate)
		latest, ok, err := s.events.LatestInstanceStart(ctx, parent.ID)
		if err != nil {
			return added, err
		}
		if ok {
			next = models.StartOfDay(latest).AddDate(0, 0, rule.FrequencyDays)
		}
		for next.Before(today) {
			next = next.AddDate(0, 0, rule.FrequencyDays)
		}
		if !next.Before(horizon) {
			continue
		}

		result, err := planner.ScheduleRecurring(scheduler.RecurringRequest{
			Duration:      rule.Duration(),
			FrequencyDays: rule.FrequencyDays,
			StartDate:     next,
			Category:      parent.Category,
			Preferred:     parent.Preferred,
		}, occupied)
		if err != nil {
			s.logger.Warn("recurring refill failed", zap.String("event_id", parent.ID), zap.Error(err))
			continue
		}
		placed := result.Placed[:0]
		for _, p := range result.Placed {
			if p.Date.Before(horizon) {
				placed = append(placed, p)
			}
		}
		if len(placed) == 0 {
			continue
		}
		instances := s.instancesFor(parent, placed)
		if err := s.events.AppendInstances(ctx, parent.ID, instances); err != nil {
			return added, err
		}
		for _, inst := range instances {
			occupied = occupied.With(scheduler.Busy{EventID: inst.ID, Category: inst.Category, Span: inst.Span})
		}
		added += len(instances)
	}
	if added > 0 {
		invalidateScores(ctx, s.cache, s.logger)
	}
	s.logger.Info("recurring series refilled", zap.Int("series", len(parents)), zap.Int("instances", added))
	return added, nil
}

func (s *EventService) instancesFor(parent *models.Event, placed []scheduler.Placement) []models.Event {
	instances := make([]models.Event, 0, len(placed))
	for _, p := range placed {
		instances = append(instances, models.Event{
			Title:     parent.Title,
			Category:  parent.Category,
			Priority:  parent.Priority,
			Kind:      models.KindRecurringInstance,
			Span:      p.Slot.Span,
			Notes:     parent.Notes,
			Preferred: parent.Preferred,
		})
		s.recordPlacement(models.KindRecurringInstance, p.Slot.Level)
	}
	return instances
}

func (s *EventService) recordPlacement(kind models.EventKind, level scheduler.Level) {
	if s.metrics != nil {
		s.metrics.RecordPlacement(string(kind), string(level))
	}
}

func (s *EventService) checkSpan(span models.Span) error {
	if !span.Valid() {
		return appErrors.Clone(appErrors.ErrInvalidDuration, "end must be after start")
	}
	if span.End.Before(s.now()) {
		return appErrors.Clone(appErrors.ErrPastModification, "cannot schedule events in the past")
	}
	return nil
}

func (s *EventService) ensureFree(ctx context.Context, span models.Span, excludeID string) error {
	conflicts, err := s.events.FindConflicts(ctx, span, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check conflicts")
	}
	if len(conflicts) == 0 {
		return nil
	}
	titles := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		titles = append(titles, fmt.Sprintf("%s (%s)", c.Title, c.Span))
	}
	return appErrors.Clone(appErrors.ErrConflict, "overlaps "+strings.Join(titles, ", "))
}

func (s *EventService) preferences(ctx context.Context) (*models.Preferences, error) {
	prefs, err := s.prefs.Get(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load preferences")
	}
	return prefs, nil
}

func (s *EventService) snapshot(ctx context.Context, from, to time.Time) (scheduler.Snapshot, error) {
	events, err := s.events.ListInRange(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar")
	}
	return scheduler.SnapshotOf(events), nil
}

func priorityOrDefault(raw string) models.Priority {
	if raw == "" {
		return models.PriorityMedium
	}
	return models.Priority(raw)
}

func preferredWindow(req *dto.PreferredTimeRequest) (*models.PreferredWindow, error) {
	if req == nil {
		return nil, nil
	}
	window, err := models.NewDailyWindow(req.Start, req.End)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("preferred_time: %v", err))
	}
	return &models.PreferredWindow{DailyWindow: window, Enabled: req.Enabled}, nil
}
