package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"teamnet-backend/internal/domain"
	"teamnet-backend/internal/logger"
	"teamnet-backend/internal/repository"
)

type paymentRepository struct {
	db  DBTX
	log logger.Logger
}

func NewPaymentRepository(db DBTX, log logger.Logger) repository.PaymentRepository {
	return &paymentRepository{db: db, log: log}
}

const paymentColumns = `id, order_id, COALESCE(invoice_id, ''), COALESCE(payment_id, ''), member_id, amount, currency,
	pay_currency, purpose, description, status, provider, invoice_url, pay_address, pay_amount, received_amount,
	received_currency, metadata, created_at, last_checked, last_updated, entitlement_applied_at, granted_tier,
	granted_expiry, revoked_at`

func scanPayment(row interface{ Scan(dest ...any) error }) (*domain.PaymentRecord, error) {
	p := &domain.PaymentRecord{}
	var status, grantedTier string
	var metadata []byte
	var lastChecked, lastUpdated, appliedAt, grantedExpiry, revokedAt sql.NullTime
	err := row.Scan(&p.ID, &p.OrderID, &p.InvoiceID, &p.PaymentID, &p.MemberID, &p.Amount, &p.Currency,
		&p.PayCurrency, &p.Purpose, &p.Description, &status, &p.Provider, &p.InvoiceURL, &p.PayAddress, &p.PayAmount,
		&p.ReceivedAmount, &p.ReceivedCurrency, &metadata, &p.CreatedAt, &lastChecked, &lastUpdated, &appliedAt,
		&grantedTier, &grantedExpiry, &revokedAt)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PaymentStatus(status)
	p.GrantedTier = domain.Tier(grantedTier)
	p.LastChecked = nullTimePtr(lastChecked)
	p.LastUpdated = nullTimePtr(lastUpdated)
	p.EntitlementAppliedAt = nullTimePtr(appliedAt)
	p.GrantedExpiry = nullTimePtr(grantedExpiry)
	p.RevokedAt = nullTimePtr(revokedAt)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("decoding payment metadata: %w", err)
		}
	}
	return p, nil
}

func keyClause(key domain.LookupKey) (string, string, error) {
	if err := key.Validate(); err != nil {
		return "", "", err
	}
	switch {
	case key.OrderID != "":
		return "order_id = $1", key.OrderID, nil
	case key.InvoiceID != "":
		return "invoice_id = $1", key.InvoiceID, nil
	default:
		return "payment_id = $1", key.PaymentID, nil
	}
}

func (r *paymentRepository) Create(ctx context.Context, p *domain.PaymentRecord) error {
	query := `INSERT INTO payments (id, order_id, invoice_id, payment_id, member_id, amount, currency, pay_currency,
	          purpose, description, status, provider, invoice_url, pay_address, metadata, created_at)
	          VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Metadata.Events == nil {
		p.Metadata.Events = []domain.StatusEvent{}
	}
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return err
	}
	logger.DatabaseCall(r.log, "payment.Create", "INSERT INTO payments", "order_id", p.OrderID)
	_, err = r.db.ExecContext(ctx, query, p.ID, p.OrderID, p.InvoiceID, p.PaymentID, p.MemberID, p.Amount, p.Currency,
		p.PayCurrency, p.Purpose, p.Description, string(p.Status), p.Provider, p.InvoiceURL, p.PayAddress, metadata, p.CreatedAt)
	logger.DatabaseResult(r.log, "payment.Create", 1, err, "order_id", p.OrderID)
	return translateError(err, "payment")
}

func (r *paymentRepository) Get(ctx context.Context, key domain.LookupKey) (*domain.PaymentRecord, error) {
	clause, arg, err := keyClause(key)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE `+clause, arg))
	if err != nil {
		return nil, translateError(err, "payment")
	}
	return p, nil
}

func (r *paymentRepository) GetForUpdate(ctx context.Context, key domain.LookupKey) (*domain.PaymentRecord, error) {
	clause, arg, err := keyClause(key)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE `+clause+` FOR UPDATE`, arg))
	if err != nil {
		return nil, translateError(err, "payment")
	}
	return p, nil
}

func (r *paymentRepository) FindPendingByPurpose(ctx context.Context, memberID, purpose string) (*domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
	          WHERE member_id = $1 AND purpose = $2 AND status = 'pending'
	          ORDER BY created_at LIMIT 1 FOR UPDATE`
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, memberID, purpose))
	if err != nil {
		return nil, translateError(err, "pending payment")
	}
	return p, nil
}

func (r *paymentRepository) Update(ctx context.Context, p *domain.PaymentRecord) error {
	query := `UPDATE payments SET invoice_id=NULLIF($1, ''), payment_id=NULLIF($2, ''), status=$3, invoice_url=$4,
	          pay_address=$5, pay_amount=$6, received_amount=$7, received_currency=$8, metadata=$9, last_checked=$10,
	          last_updated=$11, entitlement_applied_at=$12, granted_tier=$13, granted_expiry=$14, revoked_at=$15,
	          pay_currency=$16
	          WHERE id=$17`
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return err
	}
	logger.DatabaseCall(r.log, "payment.Update", "UPDATE payments", "payment_record_id", p.ID, "status", p.Status)
	res, err := r.db.ExecContext(ctx, query, p.InvoiceID, p.PaymentID, string(p.Status), p.InvoiceURL, p.PayAddress,
		p.PayAmount, p.ReceivedAmount, p.ReceivedCurrency, metadata, p.LastChecked, p.LastUpdated,
		p.EntitlementAppliedAt, string(p.GrantedTier), p.GrantedExpiry, p.RevokedAt, p.PayCurrency, p.ID)
	if err != nil {
		logger.DatabaseResult(r.log, "payment.Update", 0, err, "payment_record_id", p.ID)
		return translateError(err, "payment")
	}
	return expectAffected(res, "payment")
}

func (r *paymentRepository) ListByMember(ctx context.Context, memberID string, page, pageSize int32) ([]domain.PaymentRecord, int32, error) {
	var total int32
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments WHERE member_id = $1`, memberID).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE member_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`
	payments, err := r.list(ctx, query, memberID, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

func (r *paymentRepository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
	          WHERE status = 'pending' AND created_at <= $1 AND (invoice_id IS NOT NULL OR payment_id IS NOT NULL)
	          ORDER BY created_at LIMIT $2`
	return r.list(ctx, query, olderThan, limit)
}

func (r *paymentRepository) Statistics(ctx context.Context) (*domain.PaymentStatistics, error) {
	s := &domain.PaymentStatistics{
		ByStatus:           map[domain.PaymentStatus]int64{},
		PaymentsByProvider: map[string]int64{},
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM payments`).Scan(&s.TotalPayments, &s.TotalAmount); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM payments GROUP BY status`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, err
		}
		s.ByStatus[domain.PaymentStatus(status)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.QueryContext(ctx, `SELECT provider, COUNT(*) FROM payments GROUP BY provider`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var provider string
		var n int64
		if err := rows.Scan(&provider, &n); err != nil {
			return nil, err
		}
		s.PaymentsByProvider[provider] = n
	}

	s.CompletedPayments = s.ByStatus[domain.PaymentFinished]
	s.PendingPayments = s.ByStatus[domain.PaymentPending]
	s.FailedPayments = s.ByStatus[domain.PaymentFailed]
	return s, rows.Err()
}

func (r *paymentRepository) list(ctx context.Context, query string, args ...any) ([]domain.PaymentRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}
