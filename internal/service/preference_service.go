package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/extraction017/temporav3/internal/dto"
	"github.com/extraction017/temporav3/internal/models"
	appErrors "github.com/extraction017/temporav3/pkg/errors"
)

type preferenceRepository interface {
	Get(ctx context.Context) (*models.Preferences, error)
	Upsert(ctx context.Context, prefs *models.Preferences) error
}

// PreferenceService reads and updates scheduling preferences.
type PreferenceService struct {
	repo      preferenceRepository
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPreferenceService constructs the service.
func NewPreferenceService(repo preferenceRepository, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *PreferenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreferenceService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// Get returns the current preferences.
func (s *PreferenceService) Get(ctx context.Context) (*models.Preferences, error) {
	prefs, err := s.repo.Get(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load preferences")
	}
	return prefs, nil
}

// Update validates and stores new preferences. Cached scores depend on them
// so they are dropped.
func (s *PreferenceService) Update(ctx context.Context, req dto.UpdatePreferencesRequest) (*models.Preferences, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preferences payload")
	}
	work, err := models.NewDailyWindow(req.Work.Start, req.Work.End)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("work: %v", err))
	}
	sleep, err := models.NewDailyWindow(req.Sleep.Start, req.Sleep.End)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("sleep: %v", err))
	}
	prefs := &models.Preferences{Work: work, Sleep: sleep, RoundingMinutes: req.RoundToMinutes}
	if err := prefs.Validate(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	if err := s.repo.Upsert(ctx, prefs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save preferences")
	}
	invalidateScores(ctx, s.cache, s.logger)
	s.logger.Info("preferences updated",
		zap.String("work", prefs.Work.String()),
		zap.String("sleep", prefs.Sleep.String()),
		zap.Int("round_to_minutes", prefs.RoundingMinutes),
	)
	return prefs, nil
}
