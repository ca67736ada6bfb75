package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/extraction017/temporav3/internal/models"
)

type preferenceRow struct {
	WorkStart      models.TimeOfDay `db:"work_start"`
	WorkEnd        models.TimeOfDay `db:"work_end"`
	SleepStart     models.TimeOfDay `db:"sleep_start"`
	SleepEnd       models.TimeOfDay `db:"sleep_end"`
	RoundToMinutes int              `db:"round_to_minutes"`
	UpdatedAt      time.Time        `db:"updated_at"`
}

// PreferenceRepository stores the single preferences record.
type PreferenceRepository struct {
	db *sqlx.DB
}

// NewPreferenceRepository constructs the repository.
func NewPreferenceRepository(db *sqlx.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Get returns stored preferences, or the defaults when none were saved.
func (r *PreferenceRepository) Get(ctx context.Context) (*models.Preferences, error) {
	const query = `SELECT work_start, work_end, sleep_start, sleep_end, round_to_minutes, updated_at
		FROM user_preferences WHERE id = 1`
	var row preferenceRow
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			prefs := models.DefaultPreferences()
			return &prefs, nil
		}
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return &models.Preferences{
		Work:            models.DailyWindow{Start: row.WorkStart, End: row.WorkEnd},
		Sleep:           models.DailyWindow{Start: row.SleepStart, End: row.SleepEnd},
		RoundingMinutes: row.RoundToMinutes,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}

// Upsert replaces the stored preferences.
func (r *PreferenceRepository) Upsert(ctx context.Context, prefs *models.Preferences) error {
	prefs.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO user_preferences (id, work_start, work_end, sleep_start, sleep_end, round_to_minutes, updated_at)
		VALUES (1, :work_start, :work_end, :sleep_start, :sleep_end, :round_to_minutes, :updated_at)
		ON CONFLICT (id) DO UPDATE SET work_start = EXCLUDED.work_start, work_end = EXCLUDED.work_end,
		sleep_start = EXCLUDED.sleep_start, sleep_end = EXCLUDED.sleep_end,
		round_to_minutes = EXCLUDED.round_to_minutes, updated_at = EXCLUDED.updated_at`
	row := preferenceRow{
		WorkStart:      prefs.Work.Start,
		WorkEnd:        prefs.Work.End,
		SleepStart:     prefs.Sleep.Start,
		SleepEnd:       prefs.Sleep.End,
		RoundToMinutes: prefs.RoundingMinutes,
		UpdatedAt:      prefs.UpdatedAt,
	}
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}
