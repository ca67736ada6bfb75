// Package scoring grades a finished week of events. The optimizer uses the
// scorers as before/after oracles; the API also exposes them directly.
package scoring

import (
	"math"
	"sort"

	"github.com/extraction017/temporav3/internal/models"
)

const maxMessages = 5

// Scorer grades a set of events on a 0-100 scale.
type Scorer interface {
	Name() string
	Score(events []models.Event, prefs models.Preferences) int
}

// Report is a score with its per-dimension breakdown.
type Report struct {
	Name        string             `json:"name"`
	Score       int                `json:"score"`
	Breakdown   map[string]int     `json:"breakdown"`
	Issues      []string           `json:"issues"`
	Suggestions []string           `json:"suggestions"`
	Stats       map[string]float64 `json:"stats"`
}

func newReport(name string) Report {
	return Report{
		Name:        name,
		Breakdown:   map[string]int{},
		Issues:      []string{},
		Suggestions: []string{},
		Stats:       map[string]float64{},
	}
}

func (r *Report) issue(msg string) {
	if len(r.Issues) < maxMessages {
		r.Issues = append(r.Issues, msg)
	}
}

func (r *Report) suggest(msg string) {
	if len(r.Suggestions) < maxMessages {
		r.Suggestions = append(r.Suggestions, msg)
	}
}

// eventSet splits events by category. Recurring parents are dropped.
type eventSet struct {
	all          []models.Event
	work         []models.Event
	meetings     []models.Event
	recreational []models.Event
	meals        []models.Event
	personal     []models.Event
}

func partition(events []models.Event) eventSet {
	var set eventSet
	for _, e := range events {
		if !e.Occupies() {
			continue
		}
		set.all = append(set.all, e)
		switch e.Category {
		case models.CategoryWork:
			set.work = append(set.work, e)
		case models.CategoryMeeting:
			set.meetings = append(set.meetings, e)
		case models.CategoryRecreational:
			set.recreational = append(set.recreational, e)
		case models.CategoryMeal:
			set.meals = append(set.meals, e)
		default:
			set.personal = append(set.personal, e)
		}
	}
	sortByStart(set.all)
	sortByStart(set.meetings)
	return set
}

func sortByStart(events []models.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
}

func concat(groups ...[]models.Event) []models.Event {
	var out []models.Event
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func totalMinutes(events []models.Event) float64 {
	var sum float64
	for _, e := range events {
		sum += e.Duration().Minutes()
	}
	return sum
}

func overlapsAny(e models.Event, others []models.Event) bool {
	for _, o := range others {
		if o.ID != e.ID && o.Overlaps(e.Span) {
			return true
		}
	}
	return false
}

// gapAfter returns minutes from e's end to the next event starting strictly
// after it, or false when nothing follows.
func gapAfter(e models.Event, all []models.Event) (float64, bool) {
	var (
		next  models.Event
		found bool
	)
	for _, o := range all {
		if o.Start.After(e.End) && (!found || o.Start.Before(next.Start)) {
			next, found = o, true
		}
	}
	if !found {
		return 0, false
	}
	return next.Start.Sub(e.End).Minutes(), true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampLow(v, floor float64) float64 {
	if v < floor {
		return floor
	}
	return v
}
