package jobs

import "context"

// ExpireSubscriptions switches off subscriptions whose expiry has passed.
func (jr *JobRunner) ExpireSubscriptions() {
	_ = jr.expireSubscriptions()
}

func (jr *JobRunner) expireSubscriptions() error {
	return jr.runWithRecovery(JobExpireSubscriptions, func(ctx context.Context) error {
		n, err := jr.services.Entitlements.ExpireLapsed(ctx, jr.config.Scheduler.BatchSize)
		if err != nil {
			return err
		}
		jr.log.Info("Expired subscriptions", "count", n)
		return nil
	})
}

// SendExpiryReminders emails members whose subscription ends within the
// configured reminder window.
func (jr *JobRunner) SendExpiryReminders() {
	_ = jr.sendExpiryReminders()
}

func (jr *JobRunner) sendExpiryReminders() error {
	return jr.runWithRecovery(JobSendExpiryReminders, func(ctx context.Context) error {
		n, err := jr.services.Entitlements.SendExpiryReminders(ctx, jr.config.Subscription.ReminderWindow())
		if err != nil {
			return err
		}
		jr.log.Info("Sent expiry reminders", "count", n)
		return nil
	})
}
