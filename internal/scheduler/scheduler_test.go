package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"teamnet-backend/internal/config"
	"teamnet-backend/internal/jobs"
	"teamnet-backend/internal/logger"
)

func runner(cfg config.SchedulerConfig) *jobs.JobRunner {
	return jobs.NewJobRunner(&jobs.Services{}, &config.Config{Scheduler: cfg}, nil, logger.Nop())
}

func TestScheduler_RegistersJobs(t *testing.T) {
	s := NewScheduler(runner(config.SchedulerConfig{
		RefreshPendingPayments: "0 */5 * * * *",
		ExpireSubscriptions:    "0 0 * * * *",
		SendExpiryReminders:    "0 30 * * * *",
	}), logger.Nop())

	assert.True(t, s.IsRunning())
	assert.Len(t, s.cron.Entries(), 3)
}

func TestScheduler_SkipsInvalidSpec(t *testing.T) {
	s := NewScheduler(runner(config.SchedulerConfig{
		RefreshPendingPayments: "every five minutes",
		ExpireSubscriptions:    "0 0 * * * *",
		SendExpiryReminders:    "0 30 * * * *",
	}), logger.Nop())

	assert.Len(t, s.cron.Entries(), 2)
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(runner(config.SchedulerConfig{
		RefreshPendingPayments: "0 */5 * * * *",
		ExpireSubscriptions:    "0 0 * * * *",
		SendExpiryReminders:    "0 30 * * * *",
	}), logger.Nop())

	s.Start()
	s.Stop()
}
