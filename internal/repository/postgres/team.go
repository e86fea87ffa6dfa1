package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"teamnet-backend/internal/domain"
	"teamnet-backend/internal/repository"
)

type teamRepository struct {
	db DBTX
}

func NewTeamRepository(db DBTX) repository.TeamRepository {
	return &teamRepository{db: db}
}

const teamColumns = `id, team_name, team_lead, tier, is_active, verified_at, created_by, created_at, updated_at`

func scanTeam(row interface{ Scan(dest ...any) error }) (*domain.Team, error) {
	t := &domain.Team{}
	var verifiedAt sql.NullTime
	if err := row.Scan(&t.ID, &t.TeamName, &t.TeamLead, &t.Tier, &t.IsActive, &verifiedAt,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.VerifiedAt = nullTimePtr(verifiedAt)
	t.Members = []string{}
	return t, nil
}

func (r *teamRepository) Create(ctx context.Context, t *domain.Team) error {
	query := `INSERT INTO teams (` + teamColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, query, t.ID, t.TeamName, t.TeamLead, t.Tier, t.IsActive, t.VerifiedAt,
		t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	return translateError(err, "team")
}

func (r *teamRepository) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`
	t, err := scanTeam(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translateError(err, "team")
	}
	members, err := r.ListMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Members = members
	return t, nil
}

func (r *teamRepository) Update(ctx context.Context, t *domain.Team) error {
	query := `UPDATE teams SET team_name=$1, team_lead=$2, tier=$3, is_active=$4, verified_at=$5, updated_at=$6 WHERE id=$7`
	t.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query, t.TeamName, t.TeamLead, t.Tier, t.IsActive, t.VerifiedAt, t.UpdatedAt, t.ID)
	if err != nil {
		return translateError(err, "team")
	}
	return expectAffected(res, "team")
}

func (r *teamRepository) List(ctx context.Context, includeInactive bool) ([]domain.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE ($1 OR is_active) ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []domain.Team
	index := make(map[string]int)
	var ids []string
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		index[t.ID] = len(teams)
		ids = append(ids, t.ID)
		teams = append(teams, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return teams, nil
	}

	rosterQuery := `SELECT team_id, member_id FROM team_roster WHERE team_id = ANY($1) ORDER BY added_at, member_id`
	roster, err := r.db.QueryContext(ctx, rosterQuery, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer roster.Close()

	for roster.Next() {
		var teamID, memberID string
		if err := roster.Scan(&teamID, &memberID); err != nil {
			return nil, err
		}
		if i, ok := index[teamID]; ok {
			teams[i].Members = append(teams[i].Members, memberID)
		}
	}
	return teams, roster.Err()
}

func (r *teamRepository) AddMember(ctx context.Context, teamID, memberID string) error {
	query := `INSERT INTO team_roster (team_id, member_id, added_at) VALUES ($1, $2, $3)
	          ON CONFLICT (team_id, member_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, teamID, memberID, time.Now().UTC())
	return translateError(err, "team member")
}

func (r *teamRepository) RemoveMember(ctx context.Context, teamID, memberID string) error {
	query := `DELETE FROM team_roster WHERE team_id = $1 AND member_id = $2`
	_, err := r.db.ExecContext(ctx, query, teamID, memberID)
	return err
}

func (r *teamRepository) ListMembers(ctx context.Context, teamID string) ([]string, error) {
	query := `SELECT member_id FROM team_roster WHERE team_id = $1 ORDER BY added_at, member_id`
	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

func (r *teamRepository) Statistics(ctx context.Context) (*domain.TeamStatistics, error) {
	query := `SELECT COUNT(*),
	                 COUNT(*) FILTER (WHERE is_active),
	                 COUNT(*) FILTER (WHERE NOT is_active),
	                 COUNT(*) FILTER (WHERE verified_at IS NOT NULL),
	                 (SELECT COUNT(*) FROM team_roster)
	          FROM teams`
	s := &domain.TeamStatistics{}
	err := r.db.QueryRowContext(ctx, query).Scan(&s.TotalTeams, &s.ActiveTeams, &s.InactiveTeams, &s.VerifiedTeams, &s.TotalMembers)
	if err != nil {
		return nil, err
	}
	return s, nil
}
