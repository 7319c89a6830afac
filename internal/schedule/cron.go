// Package schedule runs jobs on cron specs.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs registered jobs on their cron specs. A job still running when
// its next tick arrives is skipped, so each job has at most one run in flight.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New creates a scheduler evaluating specs in loc.
func New(loc *time.Location, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{logger: logger.Named("cron")}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// Add registers job under spec. The job's context is canceled when Run's
// context is.
func (s *Scheduler) Add(ctx context.Context, name, spec string, job func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Error("scheduled job failed", zap.String("job", name), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
			return
		}
		s.logger.Info("scheduled job finished", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	return nil
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to return.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, fields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(fields(keysAndValues), zap.Error(err))...)
}

func fields(keysAndValues []any) []zap.Field {
	out := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out = append(out, zap.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return out
}
