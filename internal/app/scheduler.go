package app

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler repeats the runner on a cron schedule until the context is done.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	l      *zap.Logger
}

// NewScheduler creates a scheduler. Passes never overlap, a tick is skipped while the previous pass is running.
func NewScheduler(l *zap.Logger, runner *Runner) *Scheduler {
	if l == nil {
		l = zap.NewNop()
	}
	cl := cronLogger{l: l.Sugar()}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl))),
		runner: runner,
		l:      l,
	}
}

// Run runs one pass immediately, then one per schedule tick. It blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context, schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if err := s.runner.RunOnce(ctx); err != nil {
			s.l.Error("scheduled rebalance failed", zap.Error(err))
		}
	})
	if err != nil {
		return errors.Wrapf(err, "failed to register schedule %q", schedule)
	}

	if err := s.runner.RunOnce(ctx); err != nil {
		s.l.Error("initial rebalance failed", zap.Error(err))
	}

	s.cron.Start()
	s.l.Info("scheduler started", zap.String("schedule", schedule))

	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.l.Info("scheduler stopped")
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
