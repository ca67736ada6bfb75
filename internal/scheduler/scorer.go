package scheduler

import (
	"math"
	"time"

	"github.com/extraction017/temporav3/internal/models"
)

// Preference-dominant ladder.
const (
	scoreInPreferred      = 50.0
	scoreNearPreferred    = 35.0
	scoreCloseToPreferred = 20.0
	scoreInsideWorkHours  = 10.0

	nearPreferredMinutes  = 60
	closePreferredMinutes = 120
)

// General-quality factors.
const (
	scoreWorkCentered   = 30.0
	scoreWorkComfort    = 25.0
	scoreWorkEdge       = 20.0
	scoreOutsideWork    = 5.0
	noNeighbourGap      = 999.0
	maxProximityScore   = 2.0
	preferredDecayDays  = 14.0
	minutesComfortWork  = 30.0
	minutesCenteredWork = 60.0
)

// generalProximity holds the banded day-distance tiebreaker of the general mode.
var generalProximity = []struct {
	maxDays int
	points  float64
}{
	{0, 2.0},
	{3, 1.5},
	{7, 1.0},
	{14, 0.5},
}

// Scorer grades candidate slots against user preferences.
type Scorer struct {
	prefs models.Preferences
}

// NewScorer builds a scorer for prefs.
func NewScorer(prefs models.Preferences) Scorer {
	return Scorer{prefs: prefs}
}

// ScoreInput carries what a single scoring call needs besides the slot.
type ScoreInput struct {
	Preferred *models.PreferredWindow
	Anchor    time.Time
	Occupied  Snapshot
	ExcludeID string
}

// Score returns the slot quality. An active preferred window selects the
// preference-dominant mode, otherwise the general-quality mode is used.
func (s Scorer) Score(slot models.Span, in ScoreInput) float64 {
	if in.Preferred.Active() {
		return s.preferenceScore(slot, in.Preferred.DailyWindow) + preferredProximity(in.Anchor, slot.Start)
	}
	return s.generalScore(slot, in.Occupied, in.ExcludeID) + generalProximityScore(in.Anchor, slot.Start)
}

func (s Scorer) preferenceScore(slot models.Span, window models.DailyWindow) float64 {
	if window.Contains(slot.Start) {
		return scoreInPreferred
	}
	distance := window.DistanceMinutes(slot.Start)
	switch {
	case distance <= nearPreferredMinutes:
		return scoreNearPreferred
	case distance <= closePreferredMinutes:
		return scoreCloseToPreferred
	case s.prefs.Work.Contains(slot.Start):
		return scoreInsideWorkHours
	default:
		return 0
	}
}

func (s Scorer) generalScore(slot models.Span, occupied Snapshot, excludeID string) float64 {
	return s.workHoursFit(slot) + spacingScore(slot, occupied, excludeID) +
		workloadScore(occupied.DayMinutes(slot.Start, excludeID)) + timeOfDayScore(slot.Start)
}

func (s Scorer) workHoursFit(slot models.Span) float64 {
	if !s.prefs.Work.Contains(slot.Start) {
		return scoreOutsideWork
	}
	work := s.prefs.Work.On(slot.Start)
	fromStart := slot.Start.Sub(work.Start).Minutes()
	toEnd := work.End.Sub(slot.End).Minutes()
	edge := math.Min(fromStart, toEnd)
	switch {
	case edge >= minutesCenteredWork:
		return scoreWorkCentered
	case edge >= minutesComfortWork:
		return scoreWorkComfort
	default:
		return scoreWorkEdge
	}
}

func spacingScore(slot models.Span, occupied Snapshot, excludeID string) float64 {
	before, after := noNeighbourGap, noNeighbourGap
	for _, b := range occupied {
		if excludeID != "" && b.EventID == excludeID {
			continue
		}
		if !b.Span.End.After(slot.Start) {
			before = math.Min(before, slot.Start.Sub(b.Span.End).Minutes())
		}
		if !b.Span.Start.Before(slot.End) {
			after = math.Min(after, b.Span.Start.Sub(slot.End).Minutes())
		}
	}
	avg := (before + after) / 2
	switch {
	case avg >= 60:
		return 20
	case avg >= 30:
		return 15
	case avg >= 15:
		return 8
	default:
		return 0
	}
}

func workloadScore(dayMinutes int) float64 {
	switch {
	case dayMinutes < 180:
		return 15
	case dayMinutes < 300:
		return 12
	case dayMinutes < 420:
		return 8
	default:
		return 4
	}
}

func timeOfDayScore(t time.Time) float64 {
	h := t.Hour()
	switch {
	case h == 10 || h == 14 || h == 15:
		return 10
	case h == 9 || (h >= 11 && h < 14) || h == 16:
		return 7
	default:
		return 3
	}
}

// preferredProximity decays linearly from 2 points on the anchor date to 0 after 14 days.
func preferredProximity(anchor, start time.Time) float64 {
	if anchor.IsZero() {
		return 0
	}
	days := math.Abs(float64(models.DaysBetween(anchor, start)))
	if days >= preferredDecayDays {
		return 0
	}
	return maxProximityScore * (1 - days/preferredDecayDays)
}

func generalProximityScore(anchor, start time.Time) float64 {
	if anchor.IsZero() {
		return 0
	}
	days := models.DaysBetween(anchor, start)
	if days < 0 {
		days = -days
	}
	for _, band := range generalProximity {
		if days <= band.maxDays {
			return band.points
		}
	}
	return 0
}
