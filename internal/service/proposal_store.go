package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/extraction017/temporav3/internal/models"
	"github.com/extraction017/temporav3/internal/optimizer"
	appErrors "github.com/extraction017/temporav3/pkg/errors"
)

const proposalKeyPrefix = "proposal:"

// Proposal is a previewed optimization waiting to be applied.
type Proposal struct {
	ID          string                       `json:"id"`
	Result      optimizer.Result             `json:"result"`
	WeekStart   time.Time                    `json:"week_start"`
	WeekEnd     time.Time                    `json:"week_end"`
	Scores      map[string]models.ScoreDelta `json:"scores"`
	RequestedAt time.Time                    `json:"requested_at"`
}

// ProposalStore keeps proposals for a limited time.
type ProposalStore interface {
	Save(ctx context.Context, proposal Proposal) error
	Get(ctx context.Context, id string) (Proposal, bool, error)
	Delete(ctx context.Context, id string) error
	Purge(ctx context.Context) (int, error)
}

type memoryProposalStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]Proposal
}

// NewMemoryProposalStore keeps proposals in process memory.
func NewMemoryProposalStore(ttl time.Duration, now func() time.Time) ProposalStore {
	if now == nil {
		now = time.Now
	}
	return &memoryProposalStore{ttl: ttl, now: now, items: make(map[string]Proposal)}
}

func (s *memoryProposalStore) Save(_ context.Context, proposal Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[proposal.ID] = proposal
	return nil
}

func (s *memoryProposalStore) Get(ctx context.Context, id string) (Proposal, bool, error) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return Proposal{}, false, nil
	}
	if s.expired(proposal) {
		_ = s.Delete(ctx, id)
		return Proposal{}, false, nil
	}
	return proposal, true, nil
}

func (s *memoryProposalStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}

func (s *memoryProposalStore) Purge(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for id, proposal := range s.items {
		if s.expired(proposal) {
			delete(s.items, id)
			purged++
		}
	}
	return purged, nil
}

func (s *memoryProposalStore) expired(p Proposal) bool {
	return s.now().Sub(p.RequestedAt) > s.ttl
}

type redisProposalStore struct {
	repo CacheRepository
	ttl  time.Duration
}

// NewRedisProposalStore keeps proposals in Redis so any instance can apply
// them. Expiry is left to Redis.
func NewRedisProposalStore(repo CacheRepository, ttl time.Duration) ProposalStore {
	return &redisProposalStore{repo: repo, ttl: ttl}
}

func (s *redisProposalStore) Save(ctx context.Context, proposal Proposal) error {
	return s.repo.Set(ctx, proposalKeyPrefix+proposal.ID, proposal, s.ttl)
}

func (s *redisProposalStore) Get(ctx context.Context, id string) (Proposal, bool, error) {
	var proposal Proposal
	if err := s.repo.Get(ctx, proposalKeyPrefix+id, &proposal); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return Proposal{}, false, nil
		}
		return Proposal{}, false, err
	}
	return proposal, true, nil
}

func (s *redisProposalStore) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteByPattern(ctx, proposalKeyPrefix+id)
}

func (s *redisProposalStore) Purge(context.Context) (int, error) {
	return 0, nil
}
