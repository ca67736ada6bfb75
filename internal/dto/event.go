package dto

import (
	"time"

	"github.com/extraction017/temporav3/internal/models"
)

// PreferredTimeRequest is an optional HH:MM daily window.
type PreferredTimeRequest struct {
	Start   string `json:"start" validate:"required"`
	End     string `json:"end" validate:"required"`
	Enabled bool   `json:"enabled"`
}

// CreateEventRequest creates a fixed event.
type CreateEventRequest struct {
	Title         string                `json:"title" validate:"required,max=200"`
	Category      string                `json:"category" validate:"required,oneof=Work Meeting Personal Recreational Meal"`
	Priority      string                `json:"priority" validate:"omitempty,oneof=high medium low"`
	Start         time.Time             `json:"start" validate:"required"`
	End           time.Time             `json:"end" validate:"required"`
	Locked        bool                  `json:"locked"`
	Notes         string                `json:"notes" validate:"max=200"`
	PreferredTime *PreferredTimeRequest `json:"preferred_time" validate:"omitempty"`
}

// CreateRecurringRequest creates a series. Durations and frequency are
// checked by the scheduler so they map to domain errors.
type CreateRecurringRequest struct {
	Title           string                `json:"title" validate:"required,max=200"`
	Category        string                `json:"category" validate:"required,oneof=Work Meeting Personal Recreational Meal"`
	Priority        string                `json:"priority" validate:"omitempty,oneof=high medium low"`
	DurationMinutes int                   `json:"duration"`
	FrequencyDays   int                   `json:"frequency"`
	StartDate       *time.Time            `json:"start_date"`
	Notes           string                `json:"notes" validate:"max=200"`
	PreferredTime   *PreferredTimeRequest `json:"preferred_time" validate:"omitempty"`
}

// CreateFloatingRequest creates a deadline bound task placed automatically.
type CreateFloatingRequest struct {
	Title           string                `json:"title" validate:"required,max=200"`
	Category        string                `json:"category" validate:"required,oneof=Work Meeting Personal Recreational Meal"`
	Priority        string                `json:"priority" validate:"omitempty,oneof=high medium low"`
	DurationMinutes int                   `json:"duration"`
	EarliestStart   *time.Time            `json:"earliest_start"`
	Deadline        time.Time             `json:"deadline" validate:"required"`
	Notes           string                `json:"notes" validate:"max=200"`
	PreferredTime   *PreferredTimeRequest `json:"preferred_time" validate:"omitempty"`
}

// UpdateEventRequest patches an event. Nil fields are left unchanged.
type UpdateEventRequest struct {
	Title         *string               `json:"title" validate:"omitempty,max=200"`
	Category      *string               `json:"category" validate:"omitempty,oneof=Work Meeting Personal Recreational Meal"`
	Priority      *string               `json:"priority" validate:"omitempty,oneof=high medium low"`
	Start         *time.Time            `json:"start"`
	End           *time.Time            `json:"end"`
	Notes         *string               `json:"notes" validate:"omitempty,max=200"`
	PreferredTime *PreferredTimeRequest `json:"preferred_time" validate:"omitempty"`
}

// DeleteMode selects how much of a series a delete removes.
type DeleteMode string

const (
	DeleteDefault      DeleteMode = ""
	DeleteThisInstance DeleteMode = "this_instance"
	DeleteAllFuture    DeleteMode = "all_future"
)

// Valid reports whether the mode is supported.
func (m DeleteMode) Valid() bool {
	return m == DeleteDefault || m == DeleteThisInstance || m == DeleteAllFuture
}

// DeleteEventResponse reports how many rows a delete removed.
type DeleteEventResponse struct {
	ID      string     `json:"id"`
	Mode    DeleteMode `json:"mode,omitempty"`
	Deleted int64      `json:"deleted"`
}

// RecurringEventResponse is returned after a series was created.
type RecurringEventResponse struct {
	Parent       models.Event   `json:"parent"`
	Instances    []models.Event `json:"instances"`
	Scheduled    int            `json:"scheduled"`
	Failed       int            `json:"failed"`
	FailedDates  []string       `json:"failed_dates"`
	Stats        map[string]int `json:"stats"`
	HorizonStart time.Time      `json:"horizon_start"`
	HorizonEnd   time.Time      `json:"horizon_end"`
}

// FloatingEventResponse is the placed task plus how it was found.
type FloatingEventResponse struct {
	Event models.Event `json:"event"`
	Level string       `json:"level"`
	Score float64      `json:"score"`
}

// EventValidation is a dry run of a fixed event.
type EventValidation struct {
	Valid     bool           `json:"valid"`
	Conflicts []models.Event `json:"conflicts"`
	Warnings  []string       `json:"warnings"`
}
