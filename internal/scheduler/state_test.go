package scheduler

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extraction017/temporav3/internal/models"
)

func TestStateTracksCountedMinutes(t *testing.T) {
	state := NewState(at("2026-10-19", "00:00"), 7)
	require.Len(t, state.Days(), 7)

	state.Add(Busy{EventID: "a", Span: span("2026-10-19", "09:00", "10:30")})
	state.Reserve(Busy{EventID: "b", Span: span("2026-10-19", "11:00", "12:00")})
	assert.Equal(t, 90, state.DayMinutes(at("2026-10-19", "00:00")))
	assert.True(t, state.Conflicts(span("2026-10-19", "11:30", "12:30"), ""))

	state.Move("b", span("2026-10-20", "11:00", "12:00"))
	assert.Equal(t, 60, state.DayMinutes(at("2026-10-20", "00:00")))
	assert.False(t, state.Conflicts(span("2026-10-19", "11:30", "12:30"), ""))

	got, ok := state.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, at("2026-10-20", "11:00"), got.Start)

	_, ok = state.Remove("a")
	require.True(t, ok)
	assert.Zero(t, state.DayMinutes(at("2026-10-19", "00:00")))
}

func TestStateConflictsHonourExclude(t *testing.T) {
	state := NewState(at("2026-10-19", "00:00"), 1)
	state.Add(Busy{EventID: "a", Span: span("2026-10-19", "09:00", "10:00")})

	assert.True(t, state.Conflicts(span("2026-10-19", "09:30", "10:30"), ""))
	assert.False(t, state.Conflicts(span("2026-10-19", "09:30", "10:30"), "a"))
	assert.False(t, state.Conflicts(span("2026-10-19", "10:00", "11:00"), ""))
}

func TestStateLightestDayTiesGoToEarliest(t *testing.T) {
	state := NewState(at("2026-10-19", "00:00"), 7)
	days := state.Days()
	state.Add(Busy{EventID: "mon", Span: span("2026-10-19", "09:00", "10:00")})

	got, ok := state.LightestDay([]time.Time{days[3], days[0], days[1]})
	require.True(t, ok)
	assert.Equal(t, days[1], got)

	_, ok = state.LightestDay(nil)
	assert.False(t, ok)
}

func TestStateOverlapping(t *testing.T) {
	state := NewState(at("2026-10-19", "00:00"), 1)
	state.Add(Busy{EventID: "a", Span: span("2026-10-19", "09:00", "10:00")})
	state.Add(Busy{EventID: "b", Span: span("2026-10-19", "10:00", "11:00")})
	assert.Empty(t, state.Overlapping())

	state.Add(Busy{EventID: "c", Span: span("2026-10-19", "09:30", "09:45")})
	assert.Equal(t, [][2]string{{"a", "c"}}, state.Overlapping())
}

func TestPlaceBatchSpreadsAcrossDays(t *testing.T) {
	state := NewState(at("2026-10-19", "00:00"), 7)
	var events []models.Event
	for i := 0; i < 7; i++ {
		e := models.Event{
			ID:       fmt.Sprintf("e%d", i),
			Title:    "Write",
			Category: models.CategoryWork,
			Priority: models.PriorityMedium,
			Kind:     models.KindFixed,
			Span:     models.NewSpan(at("2026-10-26", "09:00").Add(time.Duration(i)*time.Hour), time.Hour),
		}
		state.Reserve(Busy{EventID: e.ID, Category: e.Category, Span: e.Span})
		events = append(events, e)
	}

	result := state.PlaceBatch(events, models.DefaultPreferences(), at("2026-10-18", "12:00"))

	require.Len(t, result.Placed, 7)
	assert.Empty(t, result.Failed)
	for _, day := range state.Days() {
		assert.Equal(t, 60, state.DayMinutes(day), day.Format("Mon"))
	}
	assert.Empty(t, state.Overlapping())
}
