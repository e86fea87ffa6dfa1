package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"teamnet-backend/internal/domain"
	"teamnet-backend/internal/logger"
	"teamnet-backend/internal/repository"
)

// hierarchyLockKey identifies the transaction-scoped advisory lock serializing
// sponsor edge writes.
const hierarchyLockKey int64 = 0x7465616d

type hierarchyRepository struct {
	db  DBTX
	log logger.Logger
}

func NewHierarchyRepository(db DBTX, log logger.Logger) repository.HierarchyRepository {
	return &hierarchyRepository{db: db, log: log}
}

const teamMemberColumns = `user_id, sponsor_id, package_price, active, joined_at, updated_at`

func scanTeamMember(row interface{ Scan(dest ...any) error }) (*domain.TeamMember, error) {
	tm := &domain.TeamMember{}
	var sponsorID sql.NullString
	if err := row.Scan(&tm.UserID, &sponsorID, &tm.PackagePrice, &tm.Active, &tm.JoinedAt, &tm.UpdatedAt); err != nil {
		return nil, err
	}
	tm.SponsorID = nullStringPtr(sponsorID)
	return tm, nil
}

func (r *hierarchyRepository) LockGraph(ctx context.Context) error {
	query := `SELECT pg_advisory_xact_lock($1)`
	logger.DatabaseCall(r.log, "hierarchy.LockGraph", query)
	_, err := r.db.ExecContext(ctx, query, hierarchyLockKey)
	logger.DatabaseResult(r.log, "hierarchy.LockGraph", 0, err)
	return err
}

func (r *hierarchyRepository) Create(ctx context.Context, tm *domain.TeamMember) error {
	query := `INSERT INTO team_members (` + teamMemberColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	now := time.Now().UTC()
	if tm.JoinedAt.IsZero() {
		tm.JoinedAt = now
	}
	tm.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, query, tm.UserID, tm.SponsorID, tm.PackagePrice, tm.Active, tm.JoinedAt, tm.UpdatedAt)
	return translateError(err, "team member")
}

func (r *hierarchyRepository) GetByUserID(ctx context.Context, userID string) (*domain.TeamMember, error) {
	query := `SELECT ` + teamMemberColumns + ` FROM team_members WHERE user_id = $1`
	tm, err := scanTeamMember(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, translateError(err, "team member")
	}
	return tm, nil
}

func (r *hierarchyRepository) UpdateSponsor(ctx context.Context, userID string, sponsorID *string) error {
	query := `UPDATE team_members SET sponsor_id=$1, updated_at=$2 WHERE user_id=$3`
	logger.DatabaseCall(r.log, "hierarchy.UpdateSponsor", query, "user_id", userID)
	res, err := r.db.ExecContext(ctx, query, sponsorID, time.Now().UTC(), userID)
	if err != nil {
		logger.DatabaseResult(r.log, "hierarchy.UpdateSponsor", 0, err)
		return translateError(err, "team member")
	}
	return expectAffected(res, "team member")
}

func (r *hierarchyRepository) UpdatePackagePrice(ctx context.Context, userID string, price float64) error {
	query := `UPDATE team_members SET package_price=$1, updated_at=$2 WHERE user_id=$3`
	res, err := r.db.ExecContext(ctx, query, price, time.Now().UTC(), userID)
	if err != nil {
		return translateError(err, "team member")
	}
	return expectAffected(res, "team member")
}

func (r *hierarchyRepository) SetActive(ctx context.Context, userID string, active bool) error {
	query := `UPDATE team_members SET active=$1, updated_at=$2 WHERE user_id=$3`
	res, err := r.db.ExecContext(ctx, query, active, time.Now().UTC(), userID)
	if err != nil {
		return translateError(err, "team member")
	}
	return expectAffected(res, "team member")
}

func (r *hierarchyRepository) List(ctx context.Context, includeInactive bool) ([]domain.TeamMember, error) {
	query := `SELECT ` + teamMemberColumns + ` FROM team_members WHERE ($1 OR active) ORDER BY joined_at, user_id`
	return r.list(ctx, query, includeInactive)
}

func (r *hierarchyRepository) ListChildren(ctx context.Context, parentIDs []string) ([]domain.TeamMember, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + teamMemberColumns + ` FROM team_members WHERE sponsor_id = ANY($1) ORDER BY joined_at, user_id`
	logger.DatabaseCall(r.log, "hierarchy.ListChildren", query, "parents", len(parentIDs))
	children, err := r.list(ctx, query, pq.Array(parentIDs))
	logger.DatabaseResult(r.log, "hierarchy.ListChildren", int64(len(children)), err)
	return children, err
}

func (r *hierarchyRepository) CountChildren(ctx context.Context, parentIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(parentIDs))
	if len(parentIDs) == 0 {
		return counts, nil
	}
	query := `SELECT sponsor_id, COUNT(*) FROM team_members WHERE sponsor_id = ANY($1) GROUP BY sponsor_id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(parentIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (r *hierarchyRepository) list(ctx context.Context, query string, args ...any) ([]domain.TeamMember, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.TeamMember
	for rows.Next() {
		tm, err := scanTeamMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *tm)
	}
	return members, rows.Err()
}
