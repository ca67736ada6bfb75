package service

import (
	"context"
	"fmt"
	"time"

	"github.com/extraction017/temporav3/pkg/jobs"
)

type weekWarmer interface {
	Warm(ctx context.Context, weekStart time.Time) error
}

type recurringRefiller interface {
	RefillRecurring(ctx context.Context) (int, error)
}

type proposalPurger interface {
	PurgeExpired(ctx context.Context) error
}

type taskRegistrar interface {
	Register(name, spec string, task jobs.Task) error
}

// ScoreWarmupHandler handles JobScoreWarmup jobs.
func ScoreWarmupHandler(scores weekWarmer) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		if job.Type != JobScoreWarmup {
			return fmt.Errorf("unexpected job type %q", job.Type)
		}
		weekStart, ok := job.Payload.(time.Time)
		if !ok {
			return fmt.Errorf("score warm-up payload is %T", job.Payload)
		}
		return scores.Warm(ctx, weekStart)
	}
}

// HousekeepingSchedule holds cron specs for periodic tasks.
type HousekeepingSchedule struct {
	PurgeProposals  string
	RefillRecurring string
}

// RegisterHousekeeping adds proposal purging and recurring refills.
func RegisterHousekeeping(registrar taskRegistrar, schedule HousekeepingSchedule, events recurringRefiller, proposals proposalPurger) error {
	if err := registrar.Register("proposal-purge", schedule.PurgeProposals, proposals.PurgeExpired); err != nil {
		return err
	}
	return registrar.Register("recurring-refill", schedule.RefillRecurring, func(ctx context.Context) error {
		_, err := events.RefillRecurring(ctx)
		return err
	})
}
