package jobs

import (
	"context"
	"fmt"
	"time"

	"teamnet-backend/internal/config"
	"teamnet-backend/internal/logger"
	"teamnet-backend/internal/metrics"
	"teamnet-backend/internal/service"
)

const jobTimeout = 5 * time.Minute

// Job names accepted by RunJob.
const (
	JobRefreshPendingPayments = "refresh-pending-payments"
	JobExpireSubscriptions    = "expire-subscriptions"
	JobSendExpiryReminders    = "send-expiry-reminders"
	JobAll                    = "all"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	services *Services
	config   *config.Config
	metrics  *metrics.Metrics
	log      logger.Logger
	now      func() time.Time
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Payments     service.PaymentService
	Entitlements service.EntitlementService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(services *Services, cfg *config.Config, m *metrics.Metrics, log logger.Logger) *JobRunner {
	return &JobRunner{
		services: services,
		config:   cfg,
		metrics:  m,
		log:      logger.Module(log, "jobs"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery and a deadline.
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			jr.log.Error("Job panicked", "job", jobName, "panic", r)
			err = fmt.Errorf("job %s panicked: %v", jobName, r)
		}
		jr.metrics.ObserveJob(jobName, err)
		if err != nil {
			jr.log.Error("Job failed", "job", jobName, "error", err, "duration_ms", time.Since(start).Milliseconds())
			return
		}
		jr.log.Info("Job completed", "job", jobName, "duration_ms", time.Since(start).Milliseconds())
	}()

	jr.log.Info("Starting job", "job", jobName)
	return jobFunc(ctx)
}

// RunJob runs one job by name, or every job for JobAll.
func (jr *JobRunner) RunJob(name string) error {
	switch name {
	case JobRefreshPendingPayments:
		return jr.refreshPendingPayments()
	case JobExpireSubscriptions:
		return jr.expireSubscriptions()
	case JobSendExpiryReminders:
		return jr.sendExpiryReminders()
	case JobAll:
		var firstErr error
		for _, fn := range []func() error{jr.refreshPendingPayments, jr.expireSubscriptions, jr.sendExpiryReminders} {
			if err := fn(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	default:
		return fmt.Errorf("unknown job %q", name)
	}
}
