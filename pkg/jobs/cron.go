package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is a periodic housekeeping function.
type Task func(context.Context) error

// Scheduler runs named tasks on cron specs. A run that is still going when
// its next tick fires is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler builds an idle scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a task. spec accepts the standard five field syntax and
// descriptors such as "@every 10m". An empty spec disables the task.
func (s *Scheduler) Register(name, spec string, task Task) error {
	if spec == "" {
		s.logger.Info("periodic task disabled", zap.String("task", name))
		return nil
	}
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		if err := task(s.ctx); err != nil {
			s.logger.Warn("periodic task failed", zap.String("task", name), zap.Error(err))
		}
	}))
	if _, err := s.cron.AddJob(spec, job); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	return nil
}

// Start launches the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running tasks.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
