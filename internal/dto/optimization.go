package dto

import (
	"time"

	"github.com/extraction017/temporav3/internal/models"
	"github.com/extraction017/temporav3/internal/scoring"
)

// OptimizeRequest runs one policy against a week relative to the current one.
type OptimizeRequest struct {
	Action     string `json:"action" validate:"required"`
	WeekOffset int    `json:"week_offset" validate:"min=-52,max=52"`
	Preview    *bool  `json:"preview"`
}

// IsPreview defaults to true.
func (r OptimizeRequest) IsPreview() bool {
	return r.Preview == nil || *r.Preview
}

// OptimizationResponse is shared by preview, direct commit and apply.
type OptimizationResponse struct {
	ProposalID      string                       `json:"proposal_id,omitempty"`
	Action          string                       `json:"action"`
	Preview         bool                         `json:"preview"`
	Applied         bool                         `json:"applied"`
	WeekStart       time.Time                    `json:"week_start"`
	WeekEnd         time.Time                    `json:"week_end"`
	Modifications   []models.Modification        `json:"modifications"`
	Recommendations []models.Recommendation      `json:"recommendations"`
	EventsModified  int                          `json:"events_modified"`
	Unplaced        int                          `json:"unplaced"`
	Message         string                       `json:"message"`
	Scores          map[string]models.ScoreDelta `json:"scores"`
	ExpiresAt       *time.Time                   `json:"expires_at,omitempty"`
}

// ScoreResponse wraps a scorer report with the week it covers.
type ScoreResponse struct {
	WeekStart time.Time `json:"week_start"`
	WeekEnd   time.Time `json:"week_end"`
	scoring.Report
}
