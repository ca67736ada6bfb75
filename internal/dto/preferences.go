package dto

// DailyWindowRequest is an HH:MM range.
type DailyWindowRequest struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

// UpdatePreferencesRequest replaces the scheduling preferences.
type UpdatePreferencesRequest struct {
	Work           DailyWindowRequest `json:"work" validate:"required"`
	Sleep          DailyWindowRequest `json:"sleep" validate:"required"`
	RoundToMinutes int                `json:"round_to_minutes" validate:"required,oneof=5 10 15 30"`
}
