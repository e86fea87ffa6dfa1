package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"teamnet-backend/internal/config"
	"teamnet-backend/internal/logger"
	"teamnet-backend/internal/metrics"
	"teamnet-backend/internal/service"
)

type MockPaymentService struct {
	service.PaymentService
	mock.Mock
}

func (m *MockPaymentService) RefreshPending(ctx context.Context, olderThan time.Time, limit int) (service.RefreshSummary, error) {
	args := m.Called(ctx, olderThan, limit)
	return args.Get(0).(service.RefreshSummary), args.Error(1)
}

type MockEntitlementService struct {
	service.EntitlementService
	mock.Mock
}

func (m *MockEntitlementService) ExpireLapsed(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

func (m *MockEntitlementService) SendExpiryReminders(ctx context.Context, window time.Duration) (int, error) {
	args := m.Called(ctx, window)
	return args.Int(0), args.Error(1)
}

var jobNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRunner(t *testing.T) (*JobRunner, *MockPaymentService, *MockEntitlementService, *metrics.Metrics) {
	t.Helper()
	cfg := &config.Config{
		Scheduler:    config.SchedulerConfig{RefreshMinAgeMinutes: 5, BatchSize: 50},
		Subscription: config.SubscriptionConfig{ReminderWindowHours: 24},
	}
	payments := new(MockPaymentService)
	entitlements := new(MockEntitlementService)
	m := metrics.New()
	jr := NewJobRunner(&Services{Payments: payments, Entitlements: entitlements}, cfg, m, logger.Nop())
	jr.now = func() time.Time { return jobNow }
	return jr, payments, entitlements, m
}

func TestJobRunner_RefreshPendingPayments(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		jr, payments, _, m := newRunner(t)
		payments.On("RefreshPending", mock.Anything, jobNow.Add(-5*time.Minute), 50).
			Return(service.RefreshSummary{Checked: 3, Changed: 1}, nil).Once()

		require.NoError(t, jr.RunJob(JobRefreshPendingPayments))
		payments.AssertExpectations(t)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRunsTotal.WithLabelValues(JobRefreshPendingPayments, "ok")))
	})

	t.Run("Failure", func(t *testing.T) {
		jr, payments, _, m := newRunner(t)
		payments.On("RefreshPending", mock.Anything, mock.Anything, 50).
			Return(service.RefreshSummary{}, errors.New("db down")).Once()

		assert.Error(t, jr.RunJob(JobRefreshPendingPayments))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRunsTotal.WithLabelValues(JobRefreshPendingPayments, "error")))
	})
}

func TestJobRunner_SubscriptionJobs(t *testing.T) {
	jr, _, entitlements, _ := newRunner(t)
	entitlements.On("ExpireLapsed", mock.Anything, 50).Return(2, nil).Once()
	entitlements.On("SendExpiryReminders", mock.Anything, 24*time.Hour).Return(1, nil).Once()

	jr.ExpireSubscriptions()
	jr.SendExpiryReminders()
	entitlements.AssertExpectations(t)
}

func TestJobRunner_RecoversFromPanic(t *testing.T) {
	jr, _, _, m := newRunner(t)
	err := jr.runWithRecovery("boom", func(ctx context.Context) error {
		panic("unexpected")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRunsTotal.WithLabelValues("boom", "error")))
}

func TestJobRunner_RunJob(t *testing.T) {
	jr, payments, entitlements, _ := newRunner(t)
	payments.On("RefreshPending", mock.Anything, mock.Anything, mock.Anything).
		Return(service.RefreshSummary{}, errors.New("gateway down")).Once()
	entitlements.On("ExpireLapsed", mock.Anything, mock.Anything).Return(0, nil).Once()
	entitlements.On("SendExpiryReminders", mock.Anything, mock.Anything).Return(0, nil).Once()

	// Every job still runs when an earlier one fails.
	err := jr.RunJob(JobAll)
	assert.EqualError(t, err, "gateway down")
	entitlements.AssertExpectations(t)

	assert.Error(t, jr.RunJob("mark-overdue-rentals"))
}
