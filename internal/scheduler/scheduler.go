package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"teamnet-backend/internal/jobs"
	"teamnet-backend/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
	log  logger.Logger
}

// NewScheduler creates a new scheduler with the provided job runner
func NewScheduler(jobRunner *jobs.JobRunner, log logger.Logger) *Scheduler {
	// Create cron with UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
		log:  logger.Module(log, "scheduler"),
	}

	s.registerJobs()
	return s
}

// registerJobs registers all scheduled jobs with the cron scheduler
func (s *Scheduler) registerJobs() {
	cfg := s.jobs.Config().Scheduler

	// Poll the gateway for payments whose webhook never arrived
	if _, err := s.cron.AddFunc(cfg.RefreshPendingPayments, s.jobs.RefreshPendingPayments); err != nil {
		s.log.Error("Failed to register RefreshPendingPayments job", "spec", cfg.RefreshPendingPayments, "error", err)
	}

	// Switch off lapsed subscriptions
	if _, err := s.cron.AddFunc(cfg.ExpireSubscriptions, s.jobs.ExpireSubscriptions); err != nil {
		s.log.Error("Failed to register ExpireSubscriptions job", "spec", cfg.ExpireSubscriptions, "error", err)
	}

	// Remind members before their subscription ends
	if _, err := s.cron.AddFunc(cfg.SendExpiryReminders, s.jobs.SendExpiryReminders); err != nil {
		s.log.Error("Failed to register SendExpiryReminders job", "spec", cfg.SendExpiryReminders, "error", err)
	}

	s.log.Info("Cron jobs registered", "count", len(s.cron.Entries()))
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	s.log.Info("Starting cron scheduler...")
	s.cron.Start()
}

// Stop gracefully stops the cron scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	s.log.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Cron scheduler stopped")
}

// IsRunning returns true if the scheduler has jobs registered
func (s *Scheduler) IsRunning() bool {
	return len(s.cron.Entries()) > 0
}
