package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extraction017/temporav3/internal/models"
)

func newTestPlanner(now time.Time) *Planner {
	return NewPlanner(NewFinder(models.DefaultPreferences(), FinderConfig{}), fixedClock(now))
}

func TestScheduleRecurringClampsStartAndPlacesEveryDay(t *testing.T) {
	now := at("2026-10-19", "08:00")
	planner := newTestPlanner(now)

	result, err := planner.ScheduleRecurring(RecurringRequest{
		Duration:      time.Hour,
		FrequencyDays: 1,
		StartDate:     at("2026-10-01", "00:00"),
		Category:      models.CategoryPersonal,
	}, nil)

	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, at("2026-10-19", "00:00"), result.HorizonStart)
	assert.Len(t, result.Placed, RecurringHorizonDays+1)
	assert.Empty(t, result.Failed)
	assert.Equal(t, len(result.Placed), result.Stats[LevelGeneral])

	for i, p := range result.Placed {
		assert.False(t, p.Slot.Start.Before(p.Date), "instance %d precedes its date", i)
		assert.False(t, p.Slot.Start.Before(now), "instance %d precedes now", i)
		for _, q := range result.Placed[i+1:] {
			assert.False(t, p.Slot.Overlaps(q.Slot.Span))
		}
	}
}

func TestScheduleRecurringCommitsEachInstance(t *testing.T) {
	now := at("2026-10-19", "08:00")
	planner := newTestPlanner(now)
	// The second series wants the exact same window as the first one.
	first, err := planner.ScheduleRecurring(RecurringRequest{
		Duration:      90 * time.Minute,
		FrequencyDays: 2,
		StartDate:     at("2026-10-20", "00:00"),
		Preferred:     preferred("10:00", "11:30"),
	}, nil)
	require.NoError(t, err)

	var occupied Snapshot
	for _, p := range first.Placed {
		occupied = occupied.With(Busy{Span: p.Slot.Span})
	}
	second, err := planner.ScheduleRecurring(RecurringRequest{
		Duration:      90 * time.Minute,
		FrequencyDays: 2,
		StartDate:     at("2026-10-20", "00:00"),
		Preferred:     preferred("10:00", "11:30"),
	}, occupied)
	require.NoError(t, err)

	require.NotEmpty(t, second.Placed)
	for _, p := range second.Placed {
		assert.False(t, occupied.Conflicts(p.Slot.Span, ""))
		assert.NotEqual(t, LevelExact, p.Slot.Level)
	}
	assert.Equal(t, len(first.Placed), first.Stats[LevelExact])
}

func TestScheduleRecurringRecordsFailuresWithoutAborting(t *testing.T) {
	now := at("2026-10-19", "08:00")
	planner := newTestPlanner(now)
	blocked := Snapshot{{EventID: "trip", Span: models.Span{Start: at("2026-10-21", "00:00"), End: at("2026-10-22", "00:00")}}}

	result, err := planner.ScheduleRecurring(RecurringRequest{
		Duration:      time.Hour,
		FrequencyDays: 1,
		StartDate:     at("2026-10-20", "00:00"),
	}, blocked)

	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, []time.Time{at("2026-10-21", "00:00")}, result.Failed)
}

func TestScheduleRecurringValidation(t *testing.T) {
	planner := newTestPlanner(at("2026-10-19", "08:00"))

	_, err := planner.ScheduleRecurring(RecurringRequest{Duration: 0, FrequencyDays: 1}, nil)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = planner.ScheduleRecurring(RecurringRequest{Duration: time.Hour, FrequencyDays: 0}, nil)
	assert.ErrorIs(t, err, ErrInvalidFrequency)
}

func TestScheduleFloatingStaysInRange(t *testing.T) {
	now := at("2026-10-19", "08:00")
	planner := newTestPlanner(now)
	earliest := at("2026-10-20", "10:00")
	deadline := at("2026-10-22", "12:00")

	for _, pref := range []*models.PreferredWindow{nil, preferred("16:00", "17:00"), preferred("06:00", "07:00")} {
		slot, err := planner.ScheduleFloating(FloatingRequest{
			Duration:      2 * time.Hour,
			EarliestStart: earliest,
			Deadline:      deadline,
			Preferred:     pref,
		}, nil)
		require.NoError(t, err)
		assert.False(t, slot.Start.Before(earliest))
		assert.False(t, slot.End.After(deadline))
	}
}

func TestScheduleFloatingPrefersEarliestMatchingDay(t *testing.T) {
	planner := newTestPlanner(at("2026-10-19", "08:00"))

	slot, err := planner.ScheduleFloating(FloatingRequest{
		Duration:      time.Hour,
		EarliestStart: at("2026-10-20", "10:00"),
		Deadline:      at("2026-10-24", "12:00"),
		Preferred:     preferred("16:00", "17:00"),
	}, Snapshot{{EventID: "x", Span: span("2026-10-20", "15:00", "18:00")}})

	require.NoError(t, err)
	assert.Equal(t, at("2026-10-21", "16:00"), slot.Start)
	assert.Equal(t, LevelExact, slot.Level)
}

func TestScheduleFloatingClampsEarliestToNow(t *testing.T) {
	now := at("2026-10-19", "13:02")
	planner := newTestPlanner(now)

	slot, err := planner.ScheduleFloating(FloatingRequest{
		Duration:      30 * time.Minute,
		EarliestStart: at("2026-10-18", "09:00"),
		Deadline:      at("2026-10-19", "14:00"),
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, at("2026-10-19", "13:05"), slot.Start)
}

func TestScheduleFloatingValidation(t *testing.T) {
	planner := newTestPlanner(at("2026-10-19", "08:00"))

	_, err := planner.ScheduleFloating(FloatingRequest{Duration: 0, EarliestStart: at("2026-10-20", "09:00"), Deadline: at("2026-10-21", "09:00")}, nil)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = planner.ScheduleFloating(FloatingRequest{Duration: time.Hour, EarliestStart: at("2026-10-21", "09:00"), Deadline: at("2026-10-21", "09:00")}, nil)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = planner.ScheduleFloating(FloatingRequest{Duration: time.Hour, EarliestStart: at("2026-10-10", "09:00"), Deadline: at("2026-10-18", "09:00")}, nil)
	assert.ErrorIs(t, err, ErrDeadlinePassed)

	_, err = planner.ScheduleFloating(FloatingRequest{Duration: 3 * time.Hour, EarliestStart: at("2026-10-20", "09:00"), Deadline: at("2026-10-20", "10:00")}, nil)
	assert.ErrorIs(t, err, ErrNoSlot)
}
