package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/extraction017/temporav3/internal/models"
	"github.com/extraction017/temporav3/internal/repository"
	appErrors "github.com/extraction017/temporav3/pkg/errors"
	"github.com/extraction017/temporav3/pkg/jobs"
)

func at(day, clock string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", day+" "+clock)
	if err != nil {
		panic(err)
	}
	return t
}

func clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func fixed(id string, category models.Category, day, from, to string) models.Event {
	return models.Event{
		ID:       id,
		Title:    id,
		Category: category,
		Priority: models.PriorityMedium,
		Kind:     models.KindFixed,
		Span:     models.Span{Start: at(day, from), End: at(day, to)},
	}
}

// memoryEvents is an in-memory stand-in for the event repository.
type memoryEvents struct {
	mu       sync.Mutex
	items    map[string]models.Event
	seq      int
	listErr  error
	rangeHit int
}

func newMemoryEvents(events ...models.Event) *memoryEvents {
	m := &memoryEvents{items: map[string]models.Event{}}
	for _, e := range events {
		m.items[e.ID] = e
	}
	return m
}

func (m *memoryEvents) nextID() string {
	m.seq++
	return fmt.Sprintf("gen-%d", m.seq)
}

func (m *memoryEvents) sorted(keep func(models.Event) bool) []models.Event {
	out := []models.Event{}
	for _, e := range m.items {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memoryEvents) List(_ context.Context, filter models.EventFilter) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.sorted(func(e models.Event) bool {
		if filter.Kind != "" && e.Kind != filter.Kind {
			return false
		}
		if filter.Category != "" && e.Category != filter.Category {
			return false
		}
		if filter.ParentID != "" && (e.ParentID == nil || *e.ParentID != filter.ParentID) {
			return false
		}
		if !filter.From.IsZero() && !e.End.After(filter.From) {
			return false
		}
		if !filter.To.IsZero() && !e.Start.Before(filter.To) {
			return false
		}
		return true
	}), nil
}

func (m *memoryEvents) ListInRange(_ context.Context, from, to time.Time) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rangeHit++
	if m.listErr != nil {
		return nil, m.listErr
	}
	window := models.Span{Start: from, End: to}
	return m.sorted(func(e models.Event) bool {
		return e.Occupies() && e.Span.Overlaps(window)
	}), nil
}

func (m *memoryEvents) FindByID(_ context.Context, id string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (m *memoryEvents) FindConflicts(_ context.Context, span models.Span, excludeID string) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(e models.Event) bool {
		return e.Occupies() && e.ID != excludeID && e.Span.Overlaps(span)
	}), nil
}

func (m *memoryEvents) Create(_ context.Context, event *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if event.ID == "" {
		event.ID = m.nextID()
	}
	m.items[event.ID] = *event
	return nil
}

func (m *memoryEvents) CreateSeries(ctx context.Context, parent *models.Event, instances []models.Event) error {
	if err := m.Create(ctx, parent); err != nil {
		return err
	}
	return m.AppendInstances(ctx, parent.ID, instances)
}

func (m *memoryEvents) AppendInstances(_ context.Context, parentID string, instances []models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range instances {
		pid := parentID
		instances[i].ID = m.nextID()
		instances[i].Kind = models.KindRecurringInstance
		instances[i].ParentID = &pid
		m.items[instances[i].ID] = instances[i]
	}
	return nil
}

func (m *memoryEvents) LatestInstanceStart(_ context.Context, parentID string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest time.Time
	for _, e := range m.items {
		if e.ParentID != nil && *e.ParentID == parentID && e.Start.After(latest) {
			latest = e.Start
		}
	}
	return latest, !latest.IsZero(), nil
}

func (m *memoryEvents) Update(_ context.Context, event *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[event.ID]; !ok {
		return sql.ErrNoRows
	}
	m.items[event.ID] = *event
	return nil
}

func (m *memoryEvents) ToggleLock(_ context.Context, id string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	e.Locked = !e.Locked
	m.items[id] = e
	return &e, nil
}

func (m *memoryEvents) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	for key, e := range m.items {
		if e.ParentID != nil && *e.ParentID == id {
			delete(m.items, key)
		}
	}
	return nil
}

func (m *memoryEvents) DeleteFutureInstances(_ context.Context, parentID string, from time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, e := range m.items {
		if e.ParentID != nil && *e.ParentID == parentID && !e.Start.Before(from) {
			delete(m.items, key)
			n++
		}
	}
	return n, nil
}

func (m *memoryEvents) ApplyPlan(_ context.Context, mods []models.Modification, _ models.Span) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mod := range mods {
		e, ok := m.items[mod.EventID]
		if !ok || !e.Span.Equal(mod.OldSpan) {
			return repository.ErrStalePlan
		}
	}
	for _, mod := range mods {
		if mod.IsDelete() {
			delete(m.items, mod.EventID)
			continue
		}
		e := m.items[mod.EventID]
		e.Span = *mod.NewSpan
		m.items[mod.EventID] = e
	}
	return nil
}

func (m *memoryEvents) get(id string) models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id]
}

func (m *memoryEvents) put(e models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[e.ID] = e
}

func (m *memoryEvents) byKind(kind models.EventKind) []models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(e models.Event) bool { return e.Kind == kind })
}

type prefsStub struct {
	prefs  models.Preferences
	saved  *models.Preferences
	getErr error
}

func newPrefsStub() *prefsStub {
	return &prefsStub{prefs: models.DefaultPreferences()}
}

func (p *prefsStub) Get(context.Context) (*models.Preferences, error) {
	if p.getErr != nil {
		return nil, p.getErr
	}
	cp := p.prefs
	return &cp, nil
}

func (p *prefsStub) Upsert(_ context.Context, prefs *models.Preferences) error {
	cp := *prefs
	p.saved = &cp
	p.prefs = cp
	return nil
}

type invalidatorStub struct {
	patterns []string
}

func (i *invalidatorStub) Invalidate(_ context.Context, pattern string) error {
	i.patterns = append(i.patterns, pattern)
	return nil
}

type cacheRepoStub struct {
	mu    sync.Mutex
	items map[string]interface{}
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{items: map[string]interface{}{}}
}

func (c *cacheRepoStub) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	switch d := dest.(type) {
	case *Proposal:
		*d = v.(Proposal)
	default:
		return fmt.Errorf("unsupported cache destination %T", dest)
	}
	return nil
}

func (c *cacheRepoStub) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

func (c *cacheRepoStub) DeleteByPattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, pattern)
	return nil
}

type queueStub struct {
	jobs []jobs.Job
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

type metricsStub struct {
	optimizations []string
	placements    []string
	queries       []string
}

func (m *metricsStub) RecordOptimization(policy, outcome string) {
	m.optimizations = append(m.optimizations, policy+":"+outcome)
}

func (m *metricsStub) RecordPlacement(kind, level string) {
	m.placements = append(m.placements, kind+":"+level)
}

func (m *metricsStub) ObserveDBQuery(label string, _ time.Duration) {
	m.queries = append(m.queries, label)
}

func appCode(err error) string {
	if e := appErrors.FromError(err); e != nil {
		return e.Code
	}
	return ""
}
