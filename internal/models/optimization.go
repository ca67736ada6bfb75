package models

import "time"

// Modification is a proposed change to one event. A nil NewSpan deletes it.
type Modification struct {
	EventID  string   `json:"event_id"`
	Title    string   `json:"title"`
	Category Category `json:"category"`
	OldSpan  Span     `json:"old"`
	NewSpan  *Span    `json:"new"`
	Reason   string   `json:"reason"`
}

// IsDelete reports whether the modification removes the event.
func (m Modification) IsDelete() bool {
	return m.NewSpan == nil
}

// RecommendationKind tags advisory output.
type RecommendationKind string

const (
	RecommendConsolidateMeetings RecommendationKind = "consolidate_meetings"
	RecommendAddFreeTime         RecommendationKind = "add_free_time"
	RecommendScheduleAchieved    RecommendationKind = "schedule_achieved"
	RecommendUnplaced            RecommendationKind = "unplaced"
)

// Recommendation is advice that does not change the calendar.
type Recommendation struct {
	Kind     RecommendationKind `json:"type"`
	Message  string             `json:"reason"`
	Day      *time.Time         `json:"day,omitempty"`
	EventIDs []string           `json:"event_ids,omitempty"`
	Hours    float64            `json:"hours,omitempty"`
}

// ScoreDelta reports a before/after score pair.
type ScoreDelta struct {
	Before int `json:"before"`
	After  int `json:"after"`
	Delta  int `json:"delta"`
}

// NewScoreDelta fills Delta from before and after.
func NewScoreDelta(before, after int) ScoreDelta {
	return ScoreDelta{Before: before, After: after, Delta: after - before}
}
