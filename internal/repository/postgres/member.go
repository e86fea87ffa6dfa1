package postgres

import (
	"context"
	"database/sql"
	"time"

	"teamnet-backend/internal/domain"
	"teamnet-backend/internal/repository"
)

type memberRepository struct {
	db DBTX
}

func NewMemberRepository(db DBTX) repository.MemberRepository {
	return &memberRepository{db: db}
}

const memberSelect = `SELECT m.id, m.email, m.name, m.role, m.subscription_status, m.subscription_tier,
	m.subscription_expiry, m.last_payment_date, m.created_at, m.updated_at, tm.sponsor_id
	FROM members m LEFT JOIN team_members tm ON tm.user_id = m.id`

func scanMember(row interface{ Scan(dest ...any) error }) (*domain.Member, error) {
	m := &domain.Member{}
	var expiry, lastPayment sql.NullTime
	var sponsorID sql.NullString
	var role, tier string
	err := row.Scan(&m.ID, &m.Email, &m.Name, &role, &m.Subscription.Status, &tier,
		&expiry, &lastPayment, &m.CreatedAt, &m.UpdatedAt, &sponsorID)
	if err != nil {
		return nil, err
	}
	m.Role = domain.Role(role)
	m.Subscription.Tier = domain.Tier(tier)
	m.Subscription.ExpiryDate = nullTimePtr(expiry)
	m.LastPaymentDate = nullTimePtr(lastPayment)
	m.SponsorID = nullStringPtr(sponsorID)
	return m, nil
}

func (r *memberRepository) Create(ctx context.Context, m *domain.Member) error {
	query := `INSERT INTO members (id, email, name, role, subscription_status, subscription_tier, subscription_expiry, last_payment_date, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	if m.Role == "" {
		m.Role = domain.RoleStandard
	}
	if m.Subscription.Tier == "" {
		m.Subscription.Tier = domain.TierNone
	}
	_, err := r.db.ExecContext(ctx, query, m.ID, m.Email, m.Name, string(m.Role), m.Subscription.Status,
		string(m.Subscription.Tier), m.Subscription.ExpiryDate, m.LastPaymentDate, m.CreatedAt, m.UpdatedAt)
	return translateError(err, "member")
}

func (r *memberRepository) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx, memberSelect+` WHERE m.id = $1`, id))
	if err != nil {
		return nil, translateError(err, "member")
	}
	return m, nil
}

func (r *memberRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Member, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx, memberSelect+` WHERE m.id = $1 FOR UPDATE OF m`, id))
	if err != nil {
		return nil, translateError(err, "member")
	}
	return m, nil
}

func (r *memberRepository) UpdateSubscription(ctx context.Context, m *domain.Member) error {
	query := `UPDATE members SET subscription_status=$1, subscription_tier=$2, subscription_expiry=$3, last_payment_date=$4, updated_at=$5 WHERE id=$6`
	m.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query, m.Subscription.Status, string(m.Subscription.Tier),
		m.Subscription.ExpiryDate, m.LastPaymentDate, m.UpdatedAt, m.ID)
	if err != nil {
		return translateError(err, "member")
	}
	return expectAffected(res, "member")
}

func (r *memberRepository) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]domain.Member, error) {
	query := memberSelect + ` WHERE m.subscription_status AND m.subscription_expiry > $1 AND m.subscription_expiry <= $2
	          ORDER BY m.subscription_expiry, m.id`
	return r.list(ctx, query, from, to)
}

func (r *memberRepository) ListLapsed(ctx context.Context, now time.Time, limit int) ([]domain.Member, error) {
	query := memberSelect + ` WHERE m.subscription_status AND m.subscription_expiry <= $1
	          ORDER BY m.subscription_expiry, m.id LIMIT $2`
	return r.list(ctx, query, now, limit)
}

func (r *memberRepository) list(ctx context.Context, query string, args ...any) ([]domain.Member, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}
