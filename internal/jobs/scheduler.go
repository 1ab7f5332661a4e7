package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler runs every registered job on its cron schedule. A failing or
// panicking job is logged and does not affect the others.
type Scheduler struct {
	cron     *cron.Cron
	registry *Registry
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewScheduler(registry *Registry) *Scheduler {
	logger := cron.PrintfLogger(logrus.StandardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		registry: registry,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Schedule adds every registered job. It fails on the first bad schedule.
func (s *Scheduler) Schedule() error {
	for _, job := range s.registry.List() {
		name := job.Name
		if _, err := s.cron.AddFunc(job.Schedule, func() {
			s.registry.Run(s.ctx, name)
		}); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", name, err)
		}
		logrus.WithFields(logrus.Fields{
			"job":      name,
			"schedule": job.Schedule,
		}).Info("Job scheduled")
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		logrus.Warn("Timed out waiting for running jobs")
	}
}

// Entries reports the number of scheduled entries.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
