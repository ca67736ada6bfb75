package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extraction017/temporav3/internal/models"
)

var eventRowColumns = []string{
	"id", "title", "category", "priority", "kind", "start_time", "end_time", "locked", "notes",
	"preferred_start", "preferred_end", "preferred_enabled", "duration_minutes", "frequency_days", "start_date",
	"parent_id", "earliest_start", "deadline", "created_at", "updated_at",
}

func newEventMock(t *testing.T) (*EventRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	repo := NewEventRepository(sqlx.NewDb(db, "sqlmock"), time.UTC)
	return repo, mock, func() { db.Close() }
}

func TestEventRepositoryFindByID(t *testing.T) {
	repo, mock, cleanup := newEventMock(t)
	defer cleanup()

	start := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(eventRowColumns).
		AddRow("ev-1", "Gym", "Personal", "medium", "floating", start, start.Add(time.Hour), false, "",
			"06:00", "08:00", true, nil, nil, nil,
			nil, start.Add(-24*time.Hour), start.Add(48*time.Hour), start, start)
	mock.ExpectQuery("FROM events WHERE id = \\$1").
		WithArgs("ev-1").
		WillReturnRows(rows)

	event, err := repo.FindByID(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, models.KindFloating, event.Kind)
	assert.True(t, event.Start.Equal(start))
	require.NotNil(t, event.Preferred)
	assert.True(t, event.Preferred.Enabled)
	assert.Equal(t, "06:00", event.Preferred.Start.String())
	require.NotNil(t, event.Window)
	assert.True(t, event.Window.Deadline.Equal(start.Add(48*time.Hour)))
	assert.Nil(t, event.Recurrence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryFindByIDNotFound(t *testing.T) {
	repo, mock, cleanup := newEventMock(t)
	defer cleanup()

	mock.ExpectQuery("FROM events WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestEventRepositoryListBuildsFilters(t *testing.T) {
	repo, mock, cleanup := newEventMock(t)
	defer cleanup()

	from := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	parentRows := sqlmock.NewRows(eventRowColumns).
		AddRow("p-1", "Run", "Personal", "low", "recurring_parent", nil, nil, false, "",
			nil, nil, false, int64(45), int64(2), from,
			nil, nil, nil, from, from)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE end_time > $1 AND start_time < $2 AND category = $3 ORDER BY start_time ASC NULLS LAST, id ASC")).
		WithArgs(from, to, "Work").
		WillReturnRows(sqlmock.NewRows(eventRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("FROM events ORDER BY start_time")).
		WillReturnRows(parentRows)

	events, err := repo.List(context.Background(), models.EventFilter{From: from, To: to, Category: models.CategoryWork})
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = repo.List(context.Background(), models.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Recurrence)
	assert.Equal(t, 45, events[0].Recurrence.DurationMinutes)
	assert.Equal(t, 2, events[0].Recurrence.FrequencyDays)
	assert.True(t, events[0].Start.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryCreateSeries(t *testing.T) {
	repo, mock, cleanup := newEventMock(t)
	defer cleanup()

	start := time.Date(2026, 10, 20, 7, 0, 0, 0, time.UTC)
	parent := &models.Event{
		Title:      "Run",
		Category:   models.CategoryPersonal,
		Priority:   models.PriorityLow,
		Kind:       models.KindRecurringParent,
		Recurrence: &models.RecurrenceRule{DurationMinutes: 30, FrequencyDays: 2, StartDate: start},
	}
	instances := []models.Event{
		{Title: "Run", Category: models.CategoryPersonal, Priority: models.PriorityLow, Span: models.NewSpan(start, 30*time.Minute)},
		{Title: "Run", Category: models.CategoryPersonal, Priority: models.PriorityLow, Span: models.NewSpan(start.AddDate(0, 0, 2), 30*time.Minute)},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateSeries(context.Background(), parent, instances))
	assert.NotEmpty(t, parent.ID)
	for _, inst := range instances {
		assert.NotEmpty(t, inst.ID)
		assert.Equal(t, models.KindRecurringInstance, inst.Kind)
		require.NotNil(t, inst.ParentID)
		assert.Equal(t, parent.ID, *inst.ParentID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryCreateSeriesRollsBack(t *testing.T) {
	repo, mock, cleanup := newEventMock(t)
	defer cleanup()

	parent := &models.Event{Title: "Run", Kind: models.KindRecurringParent, Recurrence: &models.RecurrenceRule{DurationMinutes: 30, FrequencyDays: 1}}
	start := time.Date(2026, 10, 20, 7, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO events").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := repo.CreateSeries(context.Background(), parent, []models.Event{{Title: "Run", Span: models.NewSpan(start, time.Hour)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create series instance")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryDeleteAndFuture(t *testing.T) {
	repo, mock, cleanup := newEventMock(t)
	defer cleanup()

	from := time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events WHERE id = $1")).
		WithArgs("ev-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events WHERE parent_id = $1 AND start_time >= $2")).
		WithArgs("p-1", from).
		WillReturnResult(sqlmock.NewResult(0, 3))

	assert.ErrorIs(t, repo.Delete(context.Background(), "ev-1"), sql.ErrNoRows)

	n, err := repo.DeleteFutureInstances(context.Background(), "p-1", from)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryApplyPlan(t *testing.T) {
	repo, mock, cleanup := newEventMock(t)
	defer cleanup()

	old := models.NewSpan(time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC), time.Hour)
	moved := old.Shift(2 * time.Hour)
	window := models.NewSpan(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), 7*24*time.Hour)
	mods := []models.Modification{
		{EventID: "ev-1", OldSpan: old, NewSpan: &moved},
		{EventID: "ev-2", OldSpan: old.Shift(24 * time.Hour)},
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE events SET start_time").
		WithArgs(moved.Start, moved.End, sqlmock.AnyArg(), "ev-1", old.Start, old.End).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM events WHERE id = \\$1 AND start_time = \\$2").
		WithArgs("ev-2", old.Start.Add(24*time.Hour), old.End.Add(24*time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM events a JOIN events b").
		WithArgs(window.Start, window.End).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectCommit()

	require.NoError(t, repo.ApplyPlan(context.Background(), mods, window))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryApplyPlanStale(t *testing.T) {
	repo, mock, cleanup := newEventMock(t)
	defer cleanup()

	old := models.NewSpan(time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC), time.Hour)
	moved := old.Shift(time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE events SET start_time").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ApplyPlan(context.Background(), []models.Modification{{EventID: "ev-1", OldSpan: old, NewSpan: &moved}}, old)
	assert.ErrorIs(t, err, ErrStalePlan)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryApplyPlanOverlapRollsBack(t *testing.T) {
	repo, mock, cleanup := newEventMock(t)
	defer cleanup()

	old := models.NewSpan(time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC), time.Hour)
	moved := old.Shift(time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE events SET start_time").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.ApplyPlan(context.Background(), []models.Modification{{EventID: "ev-1", OldSpan: old, NewSpan: &moved}}, old)
	assert.ErrorIs(t, err, ErrStalePlan)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryToggleLock(t *testing.T) {
	repo, mock, cleanup := newEventMock(t)
	defer cleanup()

	start := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(eventRowColumns).
		AddRow("ev-1", "Focus", "Work", "high", "fixed", start, start.Add(time.Hour), true, "",
			nil, nil, false, nil, nil, nil, nil, nil, nil, start, start)
	mock.ExpectQuery("UPDATE events SET locked = NOT locked").
		WithArgs("ev-1", sqlmock.AnyArg()).
		WillReturnRows(rows)

	event, err := repo.ToggleLock(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.True(t, event.Locked)
	assert.Nil(t, event.Preferred)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreferenceRepositoryGetAndUpsert(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewPreferenceRepository(sqlx.NewDb(db, "sqlmock"))

	now := time.Now()
	mock.ExpectQuery("SELECT work_start, work_end, sleep_start, sleep_end, round_to_minutes, updated_at").
		WillReturnRows(sqlmock.NewRows([]string{"work_start", "work_end", "sleep_start", "sleep_end", "round_to_minutes", "updated_at"}).
			AddRow("08:30:00", "17:00", "22:30", "06:30", int64(15), now))
	mock.ExpectQuery("FROM user_preferences").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO user_preferences").
		WithArgs("08:30", "17:00", "22:30", "06:30", 15, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	prefs, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "08:30", prefs.Work.Start.String())
	assert.Equal(t, 15, prefs.RoundingMinutes)

	defaults, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPreferences().Work, defaults.Work)

	require.NoError(t, repo.Upsert(context.Background(), prefs))
	assert.NoError(t, mock.ExpectationsWereMet())
}
