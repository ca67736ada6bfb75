package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/extraction017/temporav3/internal/models"
	appErrors "github.com/extraction017/temporav3/pkg/errors"
)

// jsonCacheRepo round-trips values through JSON the way the Redis repository does.
type jsonCacheRepo struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newJSONCacheRepo() *jsonCacheRepo {
	return &jsonCacheRepo{items: map[string][]byte{}}
}

func (r *jsonCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *jsonCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.items[key] = raw
	r.mu.Unlock()
	return nil
}

func (r *jsonCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(r.items, key)
		}
	}
	return nil
}

func scoredWeek() *memoryEvents {
	return newMemoryEvents(
		fixed("deep", models.CategoryWork, "2026-10-20", "09:00", "12:00"),
		fixed("standup", models.CategoryMeeting, "2026-10-20", "13:00", "13:30"),
		fixed("gym", models.CategoryRecreational, "2026-10-21", "18:00", "19:00"),
		fixed("lunch", models.CategoryMeal, "2026-10-21", "12:00", "12:45"),
		fixed("next-week", models.CategoryWork, "2026-10-27", "09:00", "10:00"),
	)
}

func TestScoreServiceCachesReports(t *testing.T) {
	repo := scoredWeek()
	cacheRepo := newJSONCacheRepo()
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewScoreService(repo, newPrefsStub(), cache, clock(monday), time.UTC, zap.NewNop())
	ctx := context.Background()

	first, err := svc.Health(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "health", first.Name)
	assert.Equal(t, at("2026-10-19", "00:00"), first.WeekStart)
	assert.Equal(t, at("2026-10-26", "00:00"), first.WeekEnd)
	assert.GreaterOrEqual(t, first.Score, 0)
	assert.LessOrEqual(t, first.Score, 100)
	assert.Contains(t, cacheRepo.items, "scores:health:2026-10-19")

	second, err := svc.Health(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, 1, repo.rangeHit)

	require.NoError(t, cache.Invalidate(ctx, scoreCachePattern))
	_, err = svc.Health(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.rangeHit)
}

func TestScoreServiceProductivityAndWarm(t *testing.T) {
	repo := scoredWeek()
	cacheRepo := newJSONCacheRepo()
	svc := NewScoreService(repo, newPrefsStub(), NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true), clock(monday), time.UTC, zap.NewNop())

	report, err := svc.Productivity(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "productivity", report.Name)

	require.NoError(t, svc.Warm(context.Background(), at("2026-10-26", "00:00")))
	assert.Contains(t, cacheRepo.items, "scores:health:2026-10-26")
	assert.Contains(t, cacheRepo.items, "scores:productivity:2026-10-26")
}

func TestScoreServiceStatistics(t *testing.T) {
	svc := NewScoreService(scoredWeek(), newPrefsStub(), nil, clock(monday), time.UTC, zap.NewNop())

	stats, err := svc.Statistics(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Summary.TotalEvents)
	assert.InDelta(t, 180.0, stats.CategoryDurations["Work"], 0.001)
	assert.InDelta(t, 30.0, stats.CategoryDurations["Meeting"], 0.001)

	next, err := svc.Statistics(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, next.Summary.TotalEvents)
}

func TestScoreServiceLoadFailure(t *testing.T) {
	repo := scoredWeek()
	repo.listErr = errors.New("db down")
	svc := NewScoreService(repo, newPrefsStub(), nil, clock(monday), time.UTC, zap.NewNop())

	_, err := svc.Health(context.Background(), 0)
	assert.Equal(t, "INTERNAL_ERROR", appCode(err))
}

func TestScoreServiceCompare(t *testing.T) {
	svc := NewScoreService(newMemoryEvents(), newPrefsStub(), nil, clock(monday), time.UTC, zap.NewNop())
	events, err := scoredWeek().ListInRange(context.Background(), at("2026-10-19", "00:00"), at("2026-10-26", "00:00"))
	require.NoError(t, err)

	deltas := svc.Compare(events, events, models.DefaultPreferences())
	require.Len(t, deltas, 2)
	for name, delta := range deltas {
		assert.Equal(t, delta.Before, delta.After, name)
	}
}
