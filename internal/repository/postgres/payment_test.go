package postgres_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamnet-backend/internal/domain"
	"teamnet-backend/internal/logger"
	"teamnet-backend/internal/repository/postgres"
	"teamnet-backend/internal/service"
)

var paymentCols = []string{
	"id", "order_id", "invoice_id", "payment_id", "member_id", "amount", "currency",
	"pay_currency", "purpose", "description", "status", "provider", "invoice_url", "pay_address", "pay_amount",
	"received_amount", "received_currency", "metadata", "created_at", "last_checked", "last_updated",
	"entitlement_applied_at", "granted_tier", "granted_expiry", "revoked_at",
}

func paymentRow(id, orderID, status string, appliedAt any) []driver.Value {
	return []driver.Value{
		id, orderID, "", "4521", "m1", 15.0, "USD",
		"usdttrc20", "subscription:Premium", "", status, "nowpayments", "", "addr", 15.1,
		0.0, "", []byte(`{"events":[{"status":"waiting","normalized":"pending","source":"poll","outcome":"noop","observedAt":"2026-01-01T00:00:00Z","recordedAt":"2026-01-01T00:00:00Z"}]}`),
		time.Now(), nil, nil, appliedAt, "", nil, nil,
	}
}

func TestPaymentRepository_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := postgres.NewPaymentRepository(db, logger.Nop())
	ctx := context.Background()

	t.Run("ByOrderID", func(t *testing.T) {
		rows := sqlmock.NewRows(paymentCols).AddRow(paymentRow("p1", "o1", "pending", nil)...)
		mock.ExpectQuery("SELECT (.+) FROM payments WHERE order_id = \\$1$").
			WithArgs("o1").
			WillReturnRows(rows)

		p, err := repo.Get(ctx, domain.LookupKey{OrderID: "o1"})
		require.NoError(t, err)
		assert.Equal(t, "p1", p.ID)
		assert.Equal(t, domain.PaymentPending, p.Status)
		assert.Equal(t, "4521", p.PaymentID)
		assert.Nil(t, p.EntitlementAppliedAt)
		require.Len(t, p.Metadata.Events, 1)
		assert.Equal(t, "waiting", p.Metadata.Events[0].Status)
	})

	t.Run("ForUpdateByPaymentID", func(t *testing.T) {
		applied := time.Now()
		rows := sqlmock.NewRows(paymentCols).AddRow(paymentRow("p1", "o1", "finished", applied)...)
		mock.ExpectQuery("SELECT (.+) FROM payments WHERE payment_id = \\$1 FOR UPDATE").
			WithArgs("4521").
			WillReturnRows(rows)

		p, err := repo.GetForUpdate(ctx, domain.LookupKey{PaymentID: "4521"})
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentFinished, p.Status)
		assert.NotNil(t, p.EntitlementAppliedAt)
	})

	t.Run("AmbiguousKey", func(t *testing.T) {
		_, err := repo.Get(ctx, domain.LookupKey{OrderID: "o1", PaymentID: "4521"})
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM payments WHERE invoice_id = \\$1").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(paymentCols))

		_, err := repo.Get(ctx, domain.LookupKey{InvoiceID: "missing"})
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := postgres.NewPaymentRepository(db, logger.Nop())
	ctx := context.Background()
	record := func(orderID string) *domain.PaymentRecord {
		return &domain.PaymentRecord{
			ID: "p-" + orderID, OrderID: orderID, MemberID: "m1", Amount: 15, Currency: "USD",
			Purpose: "subscription:Premium", Status: domain.PaymentPending, Provider: domain.ProviderNOWPayments,
		}
	}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO payments").
			WithArgs("p-o1", "o1", "", "", "m1", 15.0, "USD", "", "subscription:Premium", "", "pending",
				"nowpayments", "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Create(ctx, record("o1")))
	})

	t.Run("DuplicateOrder", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO payments").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "payments_order_id_key"})

		err := repo.Create(ctx, record("o1"))
		assert.True(t, errors.Is(err, domain.ErrDuplicateOrder))
	})

	t.Run("ConflictingPendingIntent", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO payments").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "payments_pending_purpose_uniq"})

		err := repo.Create(ctx, record("o2"))
		assert.True(t, errors.Is(err, domain.ErrConflictingPendingIntent))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_Statistics(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := postgres.NewPaymentRepository(db, logger.Nop())

	mock.ExpectQuery("SELECT COUNT\\(\\*\\), COALESCE\\(SUM\\(amount\\), 0\\) FROM payments").
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum"}).AddRow(3, 50.0))
	mock.ExpectQuery("SELECT status, COUNT\\(\\*\\) FROM payments GROUP BY status").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("finished", 2).AddRow("pending", 1))
	mock.ExpectQuery("SELECT provider, COUNT\\(\\*\\) FROM payments GROUP BY provider").
		WillReturnRows(sqlmock.NewRows([]string{"provider", "count"}).AddRow("nowpayments", 3))

	stats, err := repo.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalPayments)
	assert.Equal(t, 50.0, stats.TotalAmount)
	assert.Equal(t, int64(2), stats.CompletedPayments)
	assert.Equal(t, int64(1), stats.PendingPayments)
	assert.Equal(t, int64(0), stats.FailedPayments)
	assert.Equal(t, int64(3), stats.PaymentsByProvider["nowpayments"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_ListByMember(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := postgres.NewPaymentRepository(db, logger.Nop())

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM payments WHERE member_id = \\$1").
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
	mock.ExpectQuery("SELECT (.+) FROM payments WHERE member_id = \\$1 ORDER BY created_at DESC, id LIMIT \\$2 OFFSET \\$3").
		WithArgs("m1", int32(10), int32(10)).
		WillReturnRows(sqlmock.NewRows(paymentCols).AddRow(paymentRow("p11", "o11", "failed", nil)...))

	payments, total, err := repo.ListByMember(context.Background(), "m1", 2, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(11), total)
	require.Len(t, payments, 1)
	assert.Equal(t, domain.PaymentFailed, payments[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RecordExternalStatusTransaction(t *testing.T) {
	ctx := context.Background()

	newPayments := func(t *testing.T, db *sql.DB) service.PaymentService {
		store := postgres.NewStore(db, logger.Nop())
		ent := service.NewEntitlementService(store, nil, nil, nil, nil, logger.Nop())
		svc, err := service.NewPaymentService(store, nil, ent, nil, nil, service.PaymentConfig{}, logger.Nop())
		require.NoError(t, err)
		return svc
	}

	t.Run("RowLockBeforeWrite", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		svc := newPayments(t, db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM payments WHERE order_id = \\$1 FOR UPDATE").
			WithArgs("o1").
			WillReturnRows(sqlmock.NewRows(paymentCols).AddRow(paymentRow("p1", "o1", "pending", nil)...))
		mock.ExpectExec("UPDATE payments SET").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		res, err := svc.RecordExternalStatus(ctx, service.StatusReport{
			Key:    domain.LookupKey{OrderID: "o1"},
			Status: "confirming",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeNoop, res.Outcome)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GrantInSameTransaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		svc := newPayments(t, db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM payments WHERE order_id = \\$1 FOR UPDATE").
			WithArgs("o1").
			WillReturnRows(sqlmock.NewRows(paymentCols).AddRow(paymentRow("p1", "o1", "pending", nil)...))
		mock.ExpectQuery("SELECT (.+) FROM members m (.+) WHERE m.id = \\$1 FOR UPDATE OF m").
			WithArgs("m1").
			WillReturnRows(sqlmock.NewRows(memberCols).
				AddRow("m1", "m1@test.com", "Member", "STANDARD", false, "", nil, nil, time.Now(), time.Now(), nil))
		mock.ExpectExec("UPDATE members SET subscription_status").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE payments SET").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		res, err := svc.RecordExternalStatus(ctx, service.StatusReport{
			Key:    domain.LookupKey{OrderID: "o1"},
			Status: "finished",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeApplied, res.Outcome)
		require.NotNil(t, res.Entitlement)
		assert.Equal(t, domain.TierPremium, res.Entitlement.Tier)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
