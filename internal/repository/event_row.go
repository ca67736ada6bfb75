package repository

import (
	"database/sql"
	"time"

	"github.com/extraction017/temporav3/internal/models"
)

// eventRow mirrors the events table. Kind specific columns are nullable.
type eventRow struct {
	ID               string         `db:"id"`
	Title            string         `db:"title"`
	Category         string         `db:"category"`
	Priority         string         `db:"priority"`
	Kind             string         `db:"kind"`
	StartTime        sql.NullTime   `db:"start_time"`
	EndTime          sql.NullTime   `db:"end_time"`
	Locked           bool           `db:"locked"`
	Notes            string         `db:"notes"`
	PreferredStart   sql.NullString `db:"preferred_start"`
	PreferredEnd     sql.NullString `db:"preferred_end"`
	PreferredEnabled bool           `db:"preferred_enabled"`
	DurationMinutes  sql.NullInt64  `db:"duration_minutes"`
	FrequencyDays    sql.NullInt64  `db:"frequency_days"`
	StartDate        sql.NullTime   `db:"start_date"`
	ParentID         sql.NullString `db:"parent_id"`
	EarliestStart    sql.NullTime   `db:"earliest_start"`
	Deadline         sql.NullTime   `db:"deadline"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func rowFromModel(e models.Event) eventRow {
	row := eventRow{
		ID:        e.ID,
		Title:     e.Title,
		Category:  string(e.Category),
		Priority:  string(e.Priority),
		Kind:      string(e.Kind),
		StartTime: nullTime(e.Start),
		EndTime:   nullTime(e.End),
		Locked:    e.Locked,
		Notes:     e.Notes,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if e.Preferred != nil {
		row.PreferredStart = sql.NullString{String: e.Preferred.Start.String(), Valid: true}
		row.PreferredEnd = sql.NullString{String: e.Preferred.End.String(), Valid: true}
		row.PreferredEnabled = e.Preferred.Enabled
	}
	if e.Recurrence != nil {
		row.DurationMinutes = sql.NullInt64{Int64: int64(e.Recurrence.DurationMinutes), Valid: true}
		row.FrequencyDays = sql.NullInt64{Int64: int64(e.Recurrence.FrequencyDays), Valid: true}
		row.StartDate = nullTime(e.Recurrence.StartDate)
	}
	if e.ParentID != nil {
		row.ParentID = sql.NullString{String: *e.ParentID, Valid: true}
	}
	if e.Window != nil {
		row.EarliestStart = nullTime(e.Window.EarliestStart)
		row.Deadline = nullTime(e.Window.Deadline)
	}
	return row
}

func (row eventRow) toModel(loc *time.Location) models.Event {
	in := func(t sql.NullTime) time.Time {
		if !t.Valid {
			return time.Time{}
		}
		return t.Time.In(loc)
	}

	e := models.Event{
		ID:        row.ID,
		Title:     row.Title,
		Category:  models.Category(row.Category),
		Priority:  models.Priority(row.Priority),
		Kind:      models.EventKind(row.Kind),
		Span:      models.Span{Start: in(row.StartTime), End: in(row.EndTime)},
		Locked:    row.Locked,
		Notes:     row.Notes,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.PreferredStart.Valid && row.PreferredEnd.Valid {
		start, errStart := models.ParseTimeOfDay(row.PreferredStart.String)
		end, errEnd := models.ParseTimeOfDay(row.PreferredEnd.String)
		if errStart == nil && errEnd == nil {
			e.Preferred = &models.PreferredWindow{
				DailyWindow: models.DailyWindow{Start: start, End: end},
				Enabled:     row.PreferredEnabled,
			}
		}
	}
	switch e.Kind {
	case models.KindRecurringParent:
		e.Recurrence = &models.RecurrenceRule{
			DurationMinutes: int(row.DurationMinutes.Int64),
			FrequencyDays:   int(row.FrequencyDays.Int64),
			StartDate:       in(row.StartDate),
		}
	case models.KindRecurringInstance:
		if row.ParentID.Valid {
			pid := row.ParentID.String
			e.ParentID = &pid
		}
	case models.KindFloating:
		e.Window = &models.FloatingWindow{
			EarliestStart: in(row.EarliestStart),
			Deadline:      in(row.Deadline),
		}
	}
	return e
}
