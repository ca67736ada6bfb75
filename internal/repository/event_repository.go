package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/extraction017/temporav3/internal/models"
)

// ErrStalePlan is returned when a committed plan no longer matches the stored calendar.
var ErrStalePlan = errors.New("stored events changed since the plan was built")

const eventColumns = `id, title, category, priority, kind, start_time, end_time, locked, notes,
	preferred_start, preferred_end, preferred_enabled, duration_minutes, frequency_days, start_date,
	parent_id, earliest_start, deadline, created_at, updated_at`

const insertEvent = `INSERT INTO events (id, title, category, priority, kind, start_time, end_time, locked, notes,
	preferred_start, preferred_end, preferred_enabled, duration_minutes, frequency_days, start_date,
	parent_id, earliest_start, deadline, created_at, updated_at)
	VALUES (:id, :title, :category, :priority, :kind, :start_time, :end_time, :locked, :notes,
	:preferred_start, :preferred_end, :preferred_enabled, :duration_minutes, :frequency_days, :start_date,
	:parent_id, :earliest_start, :deadline, :created_at, :updated_at)`

// EventRepository persists calendar events.
type EventRepository struct {
	db  *sqlx.DB
	loc *time.Location
}

// NewEventRepository constructs the repository. Stored instants are returned in loc.
func NewEventRepository(db *sqlx.DB, loc *time.Location) *EventRepository {
	if loc == nil {
		loc = time.Local
	}
	return &EventRepository{db: db, loc: loc}
}

// List returns events matching the filter ordered by start time. Recurring
// parents have no start and sort last.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	var conditions []string
	var args []interface{}

	if !filter.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("end_time > $%d", len(args)+1))
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, fmt.Sprintf("start_time < $%d", len(args)+1))
		args = append(args, filter.To)
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, string(filter.Category))
	}
	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, string(filter.Kind))
	}
	if filter.ParentID != "" {
		conditions = append(conditions, fmt.Sprintf("parent_id = $%d", len(args)+1))
		args = append(args, filter.ParentID)
	}

	query := "SELECT " + eventColumns + " FROM events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_time ASC NULLS LAST, id ASC"

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return r.toModels(rows), nil
}

// ListInRange returns events overlapping [from, to).
func (r *EventRepository) ListInRange(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	return r.List(ctx, models.EventFilter{From: from, To: to})
}

// FindByID loads an event by id.
func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.Event, error) {
	query := "SELECT " + eventColumns + " FROM events WHERE id = $1"
	var row eventRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	event := row.toModel(r.loc)
	return &event, nil
}

// FindConflicts returns occupying events overlapping span other than excludeID.
func (r *EventRepository) FindConflicts(ctx context.Context, span models.Span, excludeID string) ([]models.Event, error) {
	query := "SELECT " + eventColumns + ` FROM events
		WHERE kind <> 'recurring_parent' AND start_time < $2 AND end_time > $1 AND id <> $3
		ORDER BY start_time ASC`
	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, span.Start, span.End, excludeID); err != nil {
		return nil, fmt.Errorf("find event conflicts: %w", err)
	}
	return r.toModels(rows), nil
}

// Create stores a new event, assigning an id when missing.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	stamp(event, time.Now().UTC())
	if _, err := r.db.NamedExecContext(ctx, insertEvent, rowFromModel(*event)); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// CreateSeries inserts a recurring parent and its instances in one transaction.
func (r *EventRepository) CreateSeries(ctx context.Context, parent *models.Event, instances []models.Event) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create series: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	stamp(parent, now)
	if _, err = tx.NamedExecContext(ctx, insertEvent, rowFromModel(*parent)); err != nil {
		return fmt.Errorf("create series parent: %w", err)
	}
	if err = r.insertInstances(ctx, tx, parent.ID, instances, now); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create series: %w", err)
	}
	return nil
}

// AppendInstances adds instances to an existing series.
func (r *EventRepository) AppendInstances(ctx context.Context, parentID string, instances []models.Event) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append instances: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = r.insertInstances(ctx, tx, parentID, instances, time.Now().UTC()); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit append instances: %w", err)
	}
	return nil
}

func (r *EventRepository) insertInstances(ctx context.Context, exec sqlx.ExtContext, parentID string, instances []models.Event, now time.Time) error {
	for i := range instances {
		instances[i].Kind = models.KindRecurringInstance
		pid := parentID
		instances[i].ParentID = &pid
		stamp(&instances[i], now)
		if _, err := sqlx.NamedExecContext(ctx, exec, insertEvent, rowFromModel(instances[i])); err != nil {
			return fmt.Errorf("create series instance: %w", err)
		}
	}
	return nil
}

// Update overwrites the mutable fields of an event.
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE events SET title = :title, category = :category, priority = :priority,
		start_time = :start_time, end_time = :end_time, locked = :locked, notes = :notes,
		preferred_start = :preferred_start, preferred_end = :preferred_end, preferred_enabled = :preferred_enabled,
		updated_at = :updated_at
		WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, rowFromModel(*event))
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return expectRows(res, sql.ErrNoRows)
}

// ToggleLock flips the locked flag and returns the stored event.
func (r *EventRepository) ToggleLock(ctx context.Context, id string) (*models.Event, error) {
	query := "UPDATE events SET locked = NOT locked, updated_at = $2 WHERE id = $1 RETURNING " + eventColumns
	var row eventRow
	if err := r.db.GetContext(ctx, &row, query, id, time.Now().UTC()); err != nil {
		return nil, err
	}
	event := row.toModel(r.loc)
	return &event, nil
}

// Delete removes an event. Instances of a deleted parent cascade.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM events WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return expectRows(res, sql.ErrNoRows)
}

// DeleteFutureInstances removes the instances of parentID starting at or after from.
func (r *EventRepository) DeleteFutureInstances(ctx context.Context, parentID string, from time.Time) (int64, error) {
	const query = `DELETE FROM events WHERE parent_id = $1 AND start_time >= $2 AND kind = 'recurring_instance'`
	res, err := r.db.ExecContext(ctx, query, parentID, from)
	if err != nil {
		return 0, fmt.Errorf("delete future instances: %w", err)
	}
	return res.RowsAffected()
}

// LatestInstanceStart returns the start of the last instance of a series.
func (r *EventRepository) LatestInstanceStart(ctx context.Context, parentID string) (time.Time, bool, error) {
	const query = `SELECT MAX(start_time) FROM events WHERE parent_id = $1 AND kind = 'recurring_instance'`
	var latest sql.NullTime
	if err := r.db.GetContext(ctx, &latest, query, parentID); err != nil {
		return time.Time{}, false, fmt.Errorf("latest instance: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return latest.Time.In(r.loc), true, nil
}

// ApplyPlan writes a set of modifications atomically. Each write is guarded
// by the event's old span; any mismatch, or an overlap left in window after
// the writes, rolls everything back with ErrStalePlan.
func (r *EventRepository) ApplyPlan(ctx context.Context, mods []models.Modification, window models.Span) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin apply plan: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for _, mod := range mods {
		var res sql.Result
		if mod.IsDelete() {
			res, err = tx.ExecContext(ctx, `DELETE FROM events WHERE id = $1 AND start_time = $2 AND end_time = $3`,
				mod.EventID, mod.OldSpan.Start, mod.OldSpan.End)
		} else {
			res, err = tx.ExecContext(ctx, `UPDATE events SET start_time = $1, end_time = $2, updated_at = $3
				WHERE id = $4 AND start_time = $5 AND end_time = $6 AND locked = FALSE`,
				mod.NewSpan.Start, mod.NewSpan.End, now, mod.EventID, mod.OldSpan.Start, mod.OldSpan.End)
		}
		if err != nil {
			return fmt.Errorf("apply modification %s: %w", mod.EventID, err)
		}
		if err = expectRows(res, fmt.Errorf("%w: event %s", ErrStalePlan, mod.EventID)); err != nil {
			return err
		}
	}

	const overlapQuery = `SELECT COUNT(*) FROM events a JOIN events b
		ON a.id < b.id AND a.start_time < b.end_time AND b.start_time < a.end_time
		WHERE a.kind <> 'recurring_parent' AND b.kind <> 'recurring_parent'
		AND a.start_time < $2 AND a.end_time > $1`
	var overlaps int
	if err = tx.GetContext(ctx, &overlaps, overlapQuery, window.Start, window.End); err != nil {
		return fmt.Errorf("check plan overlaps: %w", err)
	}
	if overlaps > 0 {
		err = fmt.Errorf("%w: %d overlapping pairs", ErrStalePlan, overlaps)
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit apply plan: %w", err)
	}
	return nil
}

func (r *EventRepository) toModels(rows []eventRow) []models.Event {
	events := make([]models.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toModel(r.loc))
	}
	return events
}

func stamp(event *models.Event, now time.Time) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
}

func expectRows(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return none
	}
	return nil
}
