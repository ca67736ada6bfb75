package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/extraction017/temporav3/internal/dto"
	"github.com/extraction017/temporav3/internal/models"
)

var monday = at("2026-10-19", "08:00")

func newEventService(repo *memoryEvents) (*EventService, *invalidatorStub, *metricsStub) {
	cache := &invalidatorStub{}
	metrics := &metricsStub{}
	svc := NewEventService(repo, newPrefsStub(), cache, metrics, validator.New(), zap.NewNop(), EventServiceConfig{
		Now:      clock(monday),
		Location: time.UTC,
	})
	return svc, cache, metrics
}

func TestEventServiceCreateFixed(t *testing.T) {
	repo := newMemoryEvents(fixed("standup", models.CategoryMeeting, "2026-10-20", "09:00", "09:30"))
	svc, cache, _ := newEventService(repo)

	event, err := svc.CreateFixed(context.Background(), dto.CreateEventRequest{
		Title:    " Review ",
		Category: "Work",
		Start:    at("2026-10-20", "10:00"),
		End:      at("2026-10-20", "11:00"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "Review", event.Title)
	assert.Equal(t, models.PriorityMedium, event.Priority)
	assert.Equal(t, models.KindFixed, event.Kind)
	assert.Equal(t, []string{scoreCachePattern}, cache.patterns)
}

func TestEventServiceCreateFixedRejections(t *testing.T) {
	repo := newMemoryEvents(fixed("standup", models.CategoryMeeting, "2026-10-20", "09:00", "09:30"))
	svc, _, _ := newEventService(repo)
	ctx := context.Background()

	cases := map[string]struct {
		req  dto.CreateEventRequest
		code string
	}{
		"overlap": {
			req:  dto.CreateEventRequest{Title: "Clash", Category: "Work", Start: at("2026-10-20", "09:15"), End: at("2026-10-20", "10:00")},
			code: "CONFLICT",
		},
		"inverted": {
			req:  dto.CreateEventRequest{Title: "Bad", Category: "Work", Start: at("2026-10-20", "11:00"), End: at("2026-10-20", "10:00")},
			code: "INVALID_DURATION",
		},
		"past": {
			req:  dto.CreateEventRequest{Title: "Old", Category: "Work", Start: at("2026-10-18", "09:00"), End: at("2026-10-18", "10:00")},
			code: "PAST_MODIFICATION",
		},
		"unknown category": {
			req:  dto.CreateEventRequest{Title: "Nap", Category: "Break", Start: at("2026-10-20", "13:00"), End: at("2026-10-20", "14:00")},
			code: "VALIDATION_ERROR",
		},
		"bad preferred window": {
			req: dto.CreateEventRequest{Title: "Gym", Category: "Personal", Start: at("2026-10-20", "18:00"), End: at("2026-10-20", "19:00"),
				PreferredTime: &dto.PreferredTimeRequest{Start: "25:00", End: "19:00"}},
			code: "VALIDATION_ERROR",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateFixed(ctx, tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.code, appCode(err))
		})
	}
}

func TestEventServiceValidateWarnings(t *testing.T) {
	repo := newMemoryEvents(fixed("late", models.CategoryPersonal, "2026-10-20", "22:00", "23:30"))
	svc, _, _ := newEventService(repo)

	result, err := svc.Validate(context.Background(), dto.CreateEventRequest{
		Title:    "Deploy",
		Category: "Work",
		Start:    at("2026-10-20", "23:00"),
		End:      at("2026-10-20", "23:45"),
	})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "late", result.Conflicts[0].ID)
	assert.Len(t, result.Warnings, 2)
}

func TestEventServiceCreateRecurring(t *testing.T) {
	repo := newMemoryEvents(fixed("standup", models.CategoryMeeting, "2026-10-19", "09:00", "10:00"))
	svc, _, metrics := newEventService(repo)

	resp, err := svc.CreateRecurring(context.Background(), dto.CreateRecurringRequest{
		Title:           "Run",
		Category:        "Personal",
		DurationMinutes: 45,
		FrequencyDays:   2,
		PreferredTime:   &dto.PreferredTimeRequest{Start: "09:00", End: "10:00", Enabled: true},
	})
	require.NoError(t, err)
	assert.Equal(t, models.KindRecurringParent, resp.Parent.Kind)
	assert.Positive(t, resp.Scheduled)
	assert.Equal(t, resp.Scheduled, len(resp.Instances))
	assert.Zero(t, resp.Failed)
	assert.Len(t, metrics.placements, resp.Scheduled)

	stored := repo.byKind(models.KindRecurringInstance)
	require.Len(t, stored, resp.Scheduled)
	standup := repo.get("standup")
	for i, inst := range stored {
		require.NotNil(t, inst.ParentID)
		assert.Equal(t, resp.Parent.ID, *inst.ParentID)
		assert.Equal(t, 45*time.Minute, inst.Duration())
		assert.False(t, inst.Overlaps(standup.Span), "instance %d hits the standup", i)
		if i > 0 {
			assert.False(t, inst.Overlaps(stored[i-1].Span))
		}
	}
	assert.Equal(t, 1, len(repo.byKind(models.KindRecurringParent)))
}

func TestEventServiceCreateRecurringRejectsBadInput(t *testing.T) {
	svc, _, _ := newEventService(newMemoryEvents())
	ctx := context.Background()

	_, err := svc.CreateRecurring(ctx, dto.CreateRecurringRequest{Title: "Run", Category: "Personal", DurationMinutes: 0, FrequencyDays: 1})
	assert.Equal(t, "INVALID_DURATION", appCode(err))

	_, err = svc.CreateRecurring(ctx, dto.CreateRecurringRequest{Title: "Run", Category: "Personal", DurationMinutes: 30, FrequencyDays: 0})
	assert.Equal(t, "INVALID_RANGE", appCode(err))
}

func TestEventServiceCreateFloating(t *testing.T) {
	repo := newMemoryEvents(fixed("block", models.CategoryWork, "2026-10-19", "09:00", "12:00"))
	svc, _, _ := newEventService(repo)
	earliest := at("2026-10-19", "09:00")
	deadline := at("2026-10-21", "18:00")

	resp, err := svc.CreateFloating(context.Background(), dto.CreateFloatingRequest{
		Title:           "Report",
		Category:        "Work",
		DurationMinutes: 90,
		EarliestStart:   &earliest,
		Deadline:        deadline,
	})
	require.NoError(t, err)
	placed := resp.Event
	assert.Equal(t, models.KindFloating, placed.Kind)
	assert.False(t, placed.Start.Before(monday))
	assert.False(t, placed.End.After(deadline))
	assert.Equal(t, 90*time.Minute, placed.Duration())
	assert.False(t, placed.Overlaps(repo.get("block").Span))
	assert.NotEmpty(t, resp.Level)
	require.NotNil(t, placed.Window)
	assert.Equal(t, deadline, placed.Window.Deadline)
}

func TestEventServiceCreateFloatingErrors(t *testing.T) {
	svc, _, _ := newEventService(newMemoryEvents())
	ctx := context.Background()
	earliest := at("2026-10-21", "09:00")

	_, err := svc.CreateFloating(ctx, dto.CreateFloatingRequest{Title: "T", Category: "Work", DurationMinutes: 30, EarliestStart: &earliest, Deadline: at("2026-10-20", "09:00")})
	assert.Equal(t, "INVALID_RANGE", appCode(err))

	past := at("2026-10-10", "09:00")
	_, err = svc.CreateFloating(ctx, dto.CreateFloatingRequest{Title: "T", Category: "Work", DurationMinutes: 30, EarliestStart: &past, Deadline: at("2026-10-12", "09:00")})
	assert.Equal(t, "PAST_MODIFICATION", appCode(err))

	_, err = svc.CreateFloating(ctx, dto.CreateFloatingRequest{Title: "T", Category: "Work", DurationMinutes: -5, Deadline: at("2026-10-22", "09:00")})
	assert.Equal(t, "INVALID_DURATION", appCode(err))
}

func TestEventServiceUpdate(t *testing.T) {
	locked := fixed("locked", models.CategoryWork, "2026-10-20", "14:00", "15:00")
	locked.Locked = true
	repo := newMemoryEvents(
		fixed("a", models.CategoryWork, "2026-10-20", "09:00", "10:00"),
		fixed("b", models.CategoryWork, "2026-10-20", "11:00", "12:00"),
		locked,
	)
	svc, _, _ := newEventService(repo)
	ctx := context.Background()

	title := "Renamed"
	updated, err := svc.Update(ctx, "a", dto.UpdateEventRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)

	clash := at("2026-10-20", "11:30")
	_, err = svc.Update(ctx, "a", dto.UpdateEventRequest{Start: &clash, End: ptrTime(clash.Add(time.Hour))})
	assert.Equal(t, "CONFLICT", appCode(err))

	moved := at("2026-10-20", "16:00")
	_, err = svc.Update(ctx, "locked", dto.UpdateEventRequest{Start: &moved, End: ptrTime(moved.Add(time.Hour))})
	assert.Equal(t, "CONFLICT", appCode(err))

	free := at("2026-10-20", "10:00")
	updated, err = svc.Update(ctx, "a", dto.UpdateEventRequest{Start: &free, End: ptrTime(at("2026-10-20", "11:00"))})
	require.NoError(t, err)
	assert.Equal(t, free, repo.get("a").Start)
	assert.Equal(t, time.Hour, updated.Duration())

	_, err = svc.Update(ctx, "missing", dto.UpdateEventRequest{Title: &title})
	assert.Equal(t, "NOT_FOUND", appCode(err))
}

func TestEventServiceToggleLock(t *testing.T) {
	repo := newMemoryEvents(fixed("a", models.CategoryWork, "2026-10-20", "09:00", "10:00"))
	svc, _, _ := newEventService(repo)

	event, err := svc.ToggleLock(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, event.Locked)

	_, err = svc.ToggleLock(context.Background(), "nope")
	assert.Equal(t, "NOT_FOUND", appCode(err))
}

func TestEventServiceDeleteModes(t *testing.T) {
	parentID := "p"
	instance := func(id, day string) models.Event {
		e := fixed(id, models.CategoryPersonal, day, "07:00", "07:30")
		e.Kind = models.KindRecurringInstance
		e.ParentID = &parentID
		return e
	}
	parent := models.Event{ID: parentID, Title: "Run", Category: models.CategoryPersonal, Priority: models.PriorityLow,
		Kind: models.KindRecurringParent, Recurrence: &models.RecurrenceRule{DurationMinutes: 30, FrequencyDays: 1}}
	repo := newMemoryEvents(parent,
		instance("i1", "2026-10-20"), instance("i2", "2026-10-21"), instance("i3", "2026-10-22"), instance("i4", "2026-10-23"))
	svc, _, _ := newEventService(repo)
	ctx := context.Background()

	resp, err := svc.Delete(ctx, "i1", dto.DeleteThisInstance)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Deleted)

	resp, err = svc.Delete(ctx, "i3", dto.DeleteAllFuture)
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Deleted)
	assert.Len(t, repo.byKind(models.KindRecurringInstance), 1)

	_, err = svc.Delete(ctx, parentID, dto.DeleteDefault)
	require.NoError(t, err)
	assert.Empty(t, repo.byKind(models.KindRecurringInstance))

	_, err = svc.Delete(ctx, "i2", dto.DeleteMode("everything"))
	assert.Equal(t, "VALIDATION_ERROR", appCode(err))
}

func TestEventServiceRefillRecurring(t *testing.T) {
	parentID := "p"
	last := fixed("last", models.CategoryPersonal, "2026-10-16", "07:00", "07:30")
	last.Kind = models.KindRecurringInstance
	last.ParentID = &parentID
	parent := models.Event{ID: parentID, Title: "Run", Category: models.CategoryPersonal, Priority: models.PriorityLow,
		Kind: models.KindRecurringParent, Recurrence: &models.RecurrenceRule{DurationMinutes: 30, FrequencyDays: 7, StartDate: at("2026-10-09", "00:00")}}
	repo := newMemoryEvents(parent, last)
	svc, _, _ := newEventService(repo)

	added, err := svc.RefillRecurring(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, added)

	var days []string
	for _, inst := range repo.byKind(models.KindRecurringInstance) {
		days = append(days, inst.Start.Format("2006-01-02"))
	}
	assert.Equal(t, []string{"2026-10-16", "2026-10-23", "2026-10-30", "2026-11-06", "2026-11-13"}, days)
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
