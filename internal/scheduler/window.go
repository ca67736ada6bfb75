package scheduler

import (
	"sort"
	"time"

	"github.com/extraction017/temporav3/internal/models"
)

// Level labels how far a search window has been relaxed from the ideal.
type Level string

const (
	LevelExact     Level = "exact"
	LevelExpanded  Level = "expanded"
	LevelWorkHours Level = "work_hours"
	LevelFullDay   Level = "full_day"
	LevelGeneral   Level = "general"
)

// Levels lists the fallback levels in priority order.
var Levels = []Level{LevelExact, LevelExpanded, LevelWorkHours, LevelFullDay, LevelGeneral}

// preferredExpansionMinutes widens the preferred window at the second level.
const preferredExpansionMinutes = 60

// SearchWindow is one entry of the ordered fallback list.
type SearchWindow struct {
	models.Span
	Level Level
}

// DayWindows builds the fallback levels for one calendar day, clipped to legal.
// Without an active preferred window only work hours and the full day are tried.
func DayWindows(day time.Time, prefs models.Preferences, preferred *models.PreferredWindow, legal models.Span) []SearchWindow {
	var raw []SearchWindow
	if preferred.Active() {
		raw = append(raw,
			SearchWindow{Span: preferred.DailyWindow.On(day), Level: LevelExact},
			SearchWindow{Span: preferred.DailyWindow.Expand(preferredExpansionMinutes).On(day), Level: LevelExpanded},
		)
	}
	dayStart := models.StartOfDay(day)
	raw = append(raw,
		SearchWindow{Span: prefs.Work.On(day), Level: LevelWorkHours},
		SearchWindow{Span: models.Span{Start: dayStart, End: dayStart.AddDate(0, 0, 1)}, Level: LevelFullDay},
	)
	return clip(raw, legal)
}

// GeneralWindow is the single collapsed search over a whole legal range.
func GeneralWindow(legal models.Span) []SearchWindow {
	return clip([]SearchWindow{{Span: legal, Level: LevelGeneral}}, legal)
}

func clip(windows []SearchWindow, legal models.Span) []SearchWindow {
	out := make([]SearchWindow, 0, len(windows))
	for _, w := range windows {
		span, ok := w.Span.Intersect(legal)
		if !ok {
			continue
		}
		out = append(out, SearchWindow{Span: span, Level: w.Level})
	}
	return out
}

// Busy is one occupied interval known to a search.
type Busy struct {
	EventID  string
	Category models.Category
	Span     models.Span
}

// Snapshot is a read-only view of occupied time passed into each search.
type Snapshot []Busy

// SnapshotOf converts events into a snapshot, skipping recurring parents.
func SnapshotOf(events []models.Event) Snapshot {
	out := make(Snapshot, 0, len(events))
	for _, e := range events {
		if !e.Occupies() {
			continue
		}
		out = append(out, Busy{EventID: e.ID, Category: e.Category, Span: e.Span})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Span.Start.Before(out[j].Span.Start) })
	return out
}

// Conflicts reports whether span overlaps any entry other than excludeID.
func (s Snapshot) Conflicts(span models.Span, excludeID string) bool {
	for _, b := range s {
		if excludeID != "" && b.EventID == excludeID {
			continue
		}
		if b.Span.Overlaps(span) {
			return true
		}
	}
	return false
}

// With returns a copy of the snapshot including b.
func (s Snapshot) With(b Busy) Snapshot {
	out := make(Snapshot, 0, len(s)+1)
	out = append(out, s...)
	out = append(out, b)
	return out
}

// DayMinutes sums the minutes of entries starting on the date of day.
func (s Snapshot) DayMinutes(day time.Time, excludeID string) int {
	total := 0
	for _, b := range s {
		if excludeID != "" && b.EventID == excludeID {
			continue
		}
		if models.SameDay(day, b.Span.Start) {
			total += b.Span.Minutes()
		}
	}
	return total
}
