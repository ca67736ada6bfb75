package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/extraction017/temporav3/internal/dto"
	"github.com/extraction017/temporav3/internal/models"
	"github.com/extraction017/temporav3/internal/scoring"
	appErrors "github.com/extraction017/temporav3/pkg/errors"
)

type weekReader interface {
	ListInRange(ctx context.Context, from, to time.Time) ([]models.Event, error)
}

type scoreCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type reportScorer interface {
	scoring.Scorer
	Evaluate(events []models.Event, prefs models.Preferences) scoring.Report
}

// ScoreService grades weeks and aggregates their statistics. Results are
// cached per week until the calendar or the preferences change.
type ScoreService struct {
	events  weekReader
	prefs   preferenceReader
	cache   scoreCache
	scorers map[string]reportScorer
	now     func() time.Time
	loc     *time.Location
	logger  *zap.Logger
}

// NewScoreService constructs a ScoreService. cache may be nil.
func NewScoreService(events weekReader, prefs preferenceReader, cache scoreCache, now func() time.Time, loc *time.Location, logger *zap.Logger) *ScoreService {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	health := scoring.NewHealthScorer()
	productivity := scoring.NewProductivityScorer()
	return &ScoreService{
		events: events,
		prefs:  prefs,
		cache:  cache,
		scorers: map[string]reportScorer{
			health.Name():       health,
			productivity.Name(): productivity,
		},
		now:    now,
		loc:    loc,
		logger: logger,
	}
}

// WeekStart returns the Monday weekOffset weeks from the current one.
func (s *ScoreService) WeekStart(weekOffset int) time.Time {
	return models.WeekStart(s.now().In(s.loc)).AddDate(0, 0, 7*weekOffset)
}

// Health grades the week's sustainability.
func (s *ScoreService) Health(ctx context.Context, weekOffset int) (*dto.ScoreResponse, error) {
	return s.report(ctx, "health", s.WeekStart(weekOffset))
}

// Productivity grades how efficiently the week is allocated.
func (s *ScoreService) Productivity(ctx context.Context, weekOffset int) (*dto.ScoreResponse, error) {
	return s.report(ctx, "productivity", s.WeekStart(weekOffset))
}

// Statistics aggregates durations for the week.
func (s *ScoreService) Statistics(ctx context.Context, weekOffset int) (*scoring.Statistics, error) {
	weekStart := s.WeekStart(weekOffset)
	key := cacheKey("statistics", weekStart)
	var cached scoring.Statistics
	if s.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	events, err := s.events.ListInRange(ctx, weekStart, weekStart.AddDate(0, 0, 7))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week")
	}
	stats := scoring.ComputeStatistics(events, weekStart)
	s.store(ctx, key, stats)
	return &stats, nil
}

// Warm fills the cache for the week starting at weekStart.
func (s *ScoreService) Warm(ctx context.Context, weekStart time.Time) error {
	for name := range s.scorers {
		if _, err := s.report(ctx, name, weekStart); err != nil {
			return err
		}
	}
	return nil
}

// Compare scores two versions of the same week with every scorer.
func (s *ScoreService) Compare(before, after []models.Event, prefs models.Preferences) map[string]models.ScoreDelta {
	out := make(map[string]models.ScoreDelta, len(s.scorers))
	for name, scorer := range s.scorers {
		out[name] = models.NewScoreDelta(scorer.Score(before, prefs), scorer.Score(after, prefs))
	}
	return out
}

func (s *ScoreService) report(ctx context.Context, name string, weekStart time.Time) (*dto.ScoreResponse, error) {
	scorer, ok := s.scorers[name]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown scorer %q", name))
	}
	key := cacheKey(name, weekStart)
	var cached dto.ScoreResponse
	if s.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	weekEnd := weekStart.AddDate(0, 0, 7)
	events, err := s.events.ListInRange(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week")
	}
	prefs, err := s.prefs.Get(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load preferences")
	}

	resp := &dto.ScoreResponse{
		WeekStart: weekStart,
		WeekEnd:   weekEnd,
		Report:    scorer.Evaluate(events, *prefs),
	}
	s.store(ctx, key, resp)
	return resp, nil
}

func (s *ScoreService) lookup(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dest)
	return err == nil && hit
}

func (s *ScoreService) store(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, 0); err != nil {
		s.logger.Debug("score cache write skipped", zap.String("key", key), zap.Error(err))
	}
}

func cacheKey(kind string, weekStart time.Time) string {
	return fmt.Sprintf("scores:%s:%s", kind, weekStart.Format("2006-01-02"))
}
