package jobs

import "context"

// RefreshPendingPayments polls the gateway for pending records old enough
// that a webhook should already have arrived.
func (jr *JobRunner) RefreshPendingPayments() {
	_ = jr.refreshPendingPayments()
}

func (jr *JobRunner) refreshPendingPayments() error {
	return jr.runWithRecovery(JobRefreshPendingPayments, func(ctx context.Context) error {
		cfg := jr.config.Scheduler
		olderThan := jr.now().Add(-cfg.RefreshMinAge())
		summary, err := jr.services.Payments.RefreshPending(ctx, olderThan, cfg.BatchSize)
		if err != nil {
			return err
		}
		jr.log.Info("Refreshed pending payments",
			"checked", summary.Checked, "changed", summary.Changed, "failed", summary.Failed)
		return nil
	})
}
