package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/extraction017/temporav3/internal/optimizer"
	"github.com/extraction017/temporav3/internal/repository"
	"github.com/extraction017/temporav3/internal/scheduler"
	appErrors "github.com/extraction017/temporav3/pkg/errors"
)

const scoreCachePattern = "scores:*"

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// domainError maps core sentinels onto API errors. Unknown errors become
// internal errors carrying message.
func domainError(err error, message string) error {
	var target *appErrors.Error
	switch {
	case errors.As(err, &target):
		return err
	case errors.Is(err, scheduler.ErrInvalidDuration):
		target = appErrors.ErrInvalidDuration
	case errors.Is(err, scheduler.ErrInvalidFrequency), errors.Is(err, scheduler.ErrInvalidRange):
		target = appErrors.ErrInvalidRange
	case errors.Is(err, scheduler.ErrDeadlinePassed), errors.Is(err, optimizer.ErrPastWeek):
		target = appErrors.ErrPastModification
	case errors.Is(err, scheduler.ErrNoSlot):
		target = appErrors.ErrNoSlotFound
	case errors.Is(err, optimizer.ErrUnknownPolicy):
		target = appErrors.ErrValidation
	case errors.Is(err, repository.ErrStalePlan):
		target = appErrors.ErrConflictOnCommit
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
	mapped := appErrors.Clone(target, err.Error())
	mapped.Err = err
	return mapped
}

func invalidateScores(ctx context.Context, cache cacheInvalidator, logger *zap.Logger) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx, scoreCachePattern); err != nil {
		logger.Warn("score cache invalidation failed", zap.Error(err))
	}
}
