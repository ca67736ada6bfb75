package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/extraction017/temporav3/internal/dto"
	"github.com/extraction017/temporav3/internal/models"
	"github.com/extraction017/temporav3/internal/optimizer"
	"github.com/extraction017/temporav3/internal/scheduler"
	appErrors "github.com/extraction017/temporav3/pkg/errors"
	"github.com/extraction017/temporav3/pkg/jobs"
	"github.com/extraction017/temporav3/pkg/logger"
)

// JobScoreWarmup refreshes cached scores for a week after a commit.
const JobScoreWarmup = "score.warmup"

type planStore interface {
	ListInRange(ctx context.Context, from, to time.Time) ([]models.Event, error)
	ApplyPlan(ctx context.Context, mods []models.Modification, window models.Span) error
}

type scoreComparer interface {
	Compare(before, after []models.Event, prefs models.Preferences) map[string]models.ScoreDelta
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type optimizationMetrics interface {
	RecordOptimization(policy, outcome string)
	ObserveDBQuery(label string, duration time.Duration)
}

// OptimizationServiceConfig tunes the optimization service.
type OptimizationServiceConfig struct {
	ProposalTTL time.Duration
	Finder      scheduler.FinderConfig
	Now         func() time.Time
	Location    *time.Location
}

// OptimizationService previews and commits optimization policies for a week.
type OptimizationService struct {
	events    planStore
	prefs     preferenceReader
	scores    scoreComparer
	store     ProposalStore
	cache     cacheInvalidator
	queue     jobEnqueuer
	metrics   optimizationMetrics
	validator *validator.Validate
	logger    *zap.Logger
	cfg       OptimizationServiceConfig
}

// NewOptimizationService wires the optimization flow.
func NewOptimizationService(
	events planStore,
	prefs preferenceReader,
	scores scoreComparer,
	store ProposalStore,
	cache cacheInvalidator,
	queue jobEnqueuer,
	metrics optimizationMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg OptimizationServiceConfig,
) *OptimizationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if store == nil {
		store = NewMemoryProposalStore(cfg.ProposalTTL, cfg.Now)
	}
	return &OptimizationService{
		events:    events,
		prefs:     prefs,
		scores:    scores,
		store:     store,
		cache:     cache,
		queue:     queue,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run executes one policy. Previews are stored and returned with a proposal
// id; otherwise the plan is committed immediately.
func (s *OptimizationService) Run(ctx context.Context, req dto.OptimizeRequest) (*dto.OptimizationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid optimization payload")
	}
	policy := optimizer.Policy(strings.TrimSpace(req.Action))
	if !policy.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown action %q", req.Action))
	}

	now := s.cfg.Now().In(s.cfg.Location)
	weekStart := models.WeekStart(now).AddDate(0, 0, 7*req.WeekOffset)
	weekEnd := weekStart.AddDate(0, 0, 7)

	events, err := s.loadWeek(ctx, weekStart)
	if err != nil {
		return nil, err
	}
	prefs, err := s.prefs.Get(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load preferences")
	}

	engine := optimizer.NewEngine(events, *prefs, optimizer.Config{
		WeekStart: weekStart,
		Now:       func() time.Time { return now },
		Finder:    s.cfg.Finder,
		Logger:    s.logger,
	})
	result, err := engine.Run(policy)
	if err != nil {
		s.record(policy, "rejected")
		return nil, domainError(err, "failed to run optimization")
	}

	window := models.Span{Start: weekStart, End: weekEnd}
	proposal := Proposal{
		ID:          uuid.NewString(),
		Result:      result,
		WeekStart:   weekStart,
		WeekEnd:     weekEnd,
		Scores:      s.scores.Compare(inWindow(events, window), inWindow(optimizer.Apply(events, result.Modifications), window), *prefs),
		RequestedAt: now,
	}

	if !req.IsPreview() {
		return s.commit(ctx, proposal, *prefs)
	}

	if err := s.store.Save(ctx, proposal); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store proposal")
	}
	s.record(policy, "preview")
	logger.WithContext(ctx, s.logger).Info("optimization previewed",
		zap.String("proposal_id", proposal.ID),
		zap.String("policy", string(policy)),
		zap.Int("modifications", result.EventsModified),
	)
	resp := response(proposal, true, false)
	expires := now.Add(s.cfg.ProposalTTL)
	resp.ExpiresAt = &expires
	return resp, nil
}

// Apply commits a previously previewed proposal.
func (s *OptimizationService) Apply(ctx context.Context, id string) (*dto.OptimizationResponse, error) {
	proposal, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	prefs, err := s.prefs.Get(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load preferences")
	}
	return s.commit(ctx, proposal, *prefs)
}

// PurgeExpired drops proposals past their TTL.
func (s *OptimizationService) PurgeExpired(ctx context.Context) error {
	n, err := s.store.Purge(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("expired proposals purged", zap.Int("count", n))
	}
	return nil
}

// commit re-reads the live week, checks that every modification still
// applies and that the result is overlap free, then writes the plan.
func (s *OptimizationService) commit(ctx context.Context, proposal Proposal, prefs models.Preferences) (*dto.OptimizationResponse, error) {
	policy := proposal.Result.Policy
	mods := proposal.Result.Modifications
	window := models.Span{Start: proposal.WeekStart, End: proposal.WeekEnd}

	if len(mods) > 0 {
		live, err := s.loadWeek(ctx, proposal.WeekStart)
		if err != nil {
			return nil, err
		}
		if err := verifyPlan(live, mods, proposal.WeekStart, s.cfg.Now()); err != nil {
			s.record(policy, appErrors.FromError(err).Code)
			return nil, err
		}
		if err := s.events.ApplyPlan(ctx, mods, window); err != nil {
			s.record(policy, "failed")
			return nil, domainError(err, "failed to apply optimization")
		}
	}
	if err := s.store.Delete(ctx, proposal.ID); err != nil {
		s.logger.Warn("committed proposal not removed", zap.String("proposal_id", proposal.ID), zap.Error(err))
	}
	invalidateScores(ctx, s.cache, s.logger)

	after, err := s.loadWeek(ctx, proposal.WeekStart)
	if err == nil {
		before := proposal.Scores
		proposal.Scores = make(map[string]models.ScoreDelta, len(before))
		fresh := s.scores.Compare(nil, inWindow(after, window), prefs)
		for name, delta := range before {
			proposal.Scores[name] = models.NewScoreDelta(delta.Before, fresh[name].After)
		}
	} else {
		s.logger.Warn("post-commit reload failed", zap.Error(err))
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(jobs.Job{
			Key:     JobScoreWarmup + ":" + proposal.WeekStart.Format("2006-01-02"),
			Type:    JobScoreWarmup,
			Payload: proposal.WeekStart,
		}); err != nil {
			s.logger.Warn("score warm-up not queued", zap.Error(err))
		}
	}
	s.record(policy, "applied")
	logger.WithContext(ctx, s.logger).Info("optimization applied",
		zap.String("proposal_id", proposal.ID),
		zap.String("policy", string(policy)),
		zap.Int("modifications", len(mods)),
	)
	return response(proposal, false, true), nil
}

func (s *OptimizationService) loadWeek(ctx context.Context, weekStart time.Time) ([]models.Event, error) {
	start := time.Now()
	events, err := s.events.ListInRange(ctx, weekStart.AddDate(0, 0, -1), weekStart.AddDate(0, 0, 8))
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("events.list_week", time.Since(start))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week")
	}
	return events, nil
}

func (s *OptimizationService) record(policy optimizer.Policy, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordOptimization(string(policy), outcome)
	}
}

// verifyPlan rejects a plan whose source events moved, vanished or started,
// whose targets land in the past or outside their own placement bounds, or
// whose result overlaps anything added since.
func verifyPlan(live []models.Event, mods []models.Modification, weekStart, now time.Time) error {
	byID := make(map[string]models.Event, len(live))
	for _, e := range live {
		byID[e.ID] = e
	}
	targets := make(map[string]struct{}, len(mods))
	for _, m := range mods {
		current, ok := byID[m.EventID]
		if !ok {
			return conflictOnCommit(fmt.Sprintf("event %s no longer exists", m.EventID))
		}
		if !current.Span.Equal(m.OldSpan) {
			return conflictOnCommit(fmt.Sprintf("event %q was moved since the proposal", current.Title))
		}
		if current.Locked {
			return conflictOnCommit(fmt.Sprintf("event %q was locked since the proposal", current.Title))
		}
		if current.IsPast(now) {
			return appErrors.Clone(appErrors.ErrPastModification, fmt.Sprintf("event %q has already started", current.Title))
		}
		if m.NewSpan != nil {
			if m.NewSpan.Start.Before(now) {
				return appErrors.Clone(appErrors.ErrPastModification, fmt.Sprintf("event %q would move into the past", current.Title))
			}
			if !current.CanMoveTo(*m.NewSpan) {
				return conflictOnCommit(fmt.Sprintf("event %q would leave its allowed range", current.Title))
			}
		}
		targets[m.EventID] = struct{}{}
	}

	planned := optimizer.Apply(live, mods)
	for _, e := range planned {
		if _, ok := targets[e.ID]; !ok {
			continue
		}
		if err := e.Validate(); err != nil {
			return conflictOnCommit(fmt.Sprintf("event %q is invalid after the plan: %v", e.Title, err))
		}
	}

	state := scheduler.NewState(weekStart.AddDate(0, 0, -1), 9)
	for _, b := range scheduler.SnapshotOf(planned) {
		state.Add(b)
	}
	if pairs := state.Overlapping(); len(pairs) > 0 {
		return conflictOnCommit(fmt.Sprintf("plan overlaps %d event pairs", len(pairs)))
	}
	return nil
}

func conflictOnCommit(message string) error {
	return appErrors.Clone(appErrors.ErrConflictOnCommit, message)
}

func inWindow(events []models.Event, window models.Span) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		if e.Occupies() && !e.Start.Before(window.Start) && e.Start.Before(window.End) {
			out = append(out, e)
		}
	}
	return out
}

func response(p Proposal, preview, applied bool) *dto.OptimizationResponse {
	resp := &dto.OptimizationResponse{
		Action:          string(p.Result.Policy),
		Preview:         preview,
		Applied:         applied,
		WeekStart:       p.WeekStart,
		WeekEnd:         p.WeekEnd,
		Modifications:   p.Result.Modifications,
		Recommendations: p.Result.Recommendations,
		EventsModified:  p.Result.EventsModified,
		Unplaced:        p.Result.Unplaced,
		Message:         p.Result.Message,
		Scores:          p.Scores,
	}
	if preview {
		resp.ProposalID = p.ID
	}
	return resp
}
