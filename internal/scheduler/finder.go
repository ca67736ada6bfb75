package scheduler

import (
	"errors"
	"time"

	"github.com/extraction017/temporav3/internal/models"
)

// DefaultMaxCandidates bounds how many candidates one search scores.
const DefaultMaxCandidates = 50

var (
	// ErrNoSlot is returned when no window yields a conflict-free candidate.
	ErrNoSlot = errors.New("no available slot")
	// ErrInvalidDuration is returned for zero or negative durations.
	ErrInvalidDuration = errors.New("duration must be positive")
)

// Slot is a scored placement.
type Slot struct {
	models.Span
	Score float64
	Level Level
}

// SlotRequest describes one placement search.
type SlotRequest struct {
	Duration  time.Duration
	Windows   []SearchWindow
	Preferred *models.PreferredWindow
	// Anchor is the earliest legal start, used by the proximity tiebreaker.
	Anchor    time.Time
	ExcludeID string
	// Reject drops otherwise valid candidates.
	Reject    func(models.Span) bool
}

// FinderConfig tunes a Finder.
type FinderConfig struct {
	MaxCandidates int
	// AllowSleep lets candidates intersect the sleep window.
	AllowSleep    bool
}

// Finder runs the ordered fallback search.
type Finder struct {
	prefs         models.Preferences
	scorer        Scorer
	maxCandidates int
	allowSleep    bool
}

// NewFinder constructs a finder for prefs.
func NewFinder(prefs models.Preferences, cfg FinderConfig) *Finder {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	return &Finder{
		prefs:         prefs,
		scorer:        NewScorer(prefs),
		maxCandidates: cfg.MaxCandidates,
		allowSleep:    cfg.AllowSleep,
	}
}

// Preferences returns the preferences the finder scores against.
func (f *Finder) Preferences() models.Preferences {
	return f.prefs
}

// Scorer exposes the finder's scorer.
func (f *Finder) Scorer() Scorer {
	return f.scorer
}

// FindBestSlot walks every window in order, accumulating candidates until the
// cap, and returns the highest scoring one. Equal scores keep the first found.
func (f *Finder) FindBestSlot(req SlotRequest, occupied Snapshot) (Slot, error) {
	if req.Duration <= 0 {
		return Slot{}, ErrInvalidDuration
	}
	var sleep *models.DailyWindow
	if !f.allowSleep {
		sleep = &f.prefs.Sleep
	}
	input := ScoreInput{
		Preferred: req.Preferred,
		Anchor:    req.Anchor,
		Occupied:  occupied,
		ExcludeID: req.ExcludeID,
	}

	var (
		best  Slot
		found bool
		count int
		seen  = make(map[int64]struct{})
	)
	for _, window := range req.Windows {
		if count >= f.maxCandidates {
			break
		}
		candidateQuery{
			window:    window.Span,
			duration:  req.Duration,
			stride:    f.prefs.Granularity(),
			occupied:  occupied,
			excludeID: req.ExcludeID,
			sleep:     sleep,
		}.walk(func(span models.Span) bool {
			key := span.Start.UnixNano()
			if _, dup := seen[key]; dup {
				return true
			}
			if req.Reject != nil && req.Reject(span) {
				return true
			}
			seen[key] = struct{}{}
			score := f.scorer.Score(span, input)
			if !found || score > best.Score {
				best = Slot{Span: span, Score: score, Level: window.Level}
				found = true
			}
			count++
			return count < f.maxCandidates
		})
	}
	if !found {
		return Slot{}, ErrNoSlot
	}
	return best, nil
}
