package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"teamnet-backend/internal/domain"
	"teamnet-backend/internal/logger"
	"teamnet-backend/internal/repository"
)

type teamService struct {
	store repository.Store
	log   logger.Logger
	now   Clock
}

func NewTeamService(store repository.Store, log logger.Logger) TeamService {
	return &teamService{
		store: store,
		log:   logger.Module(log, "team"),
		now:   systemClock,
	}
}

func (s *teamService) CreateTeam(ctx context.Context, in CreateTeamInput) (*domain.Team, error) {
	in.TeamName = strings.TrimSpace(in.TeamName)
	if in.TeamName == "" {
		return nil, domain.Errorf(domain.KindValidation, "teamName is required")
	}
	if in.TeamLead == "" {
		return nil, domain.Errorf(domain.KindValidation, "teamLead is required")
	}

	team := &domain.Team{
		ID:        uuid.NewString(),
		TeamName:  in.TeamName,
		TeamLead:  in.TeamLead,
		Tier:      in.Tier,
		IsActive:  true,
		CreatedBy: in.CreatedBy,
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Members.GetByID(ctx, in.TeamLead); err != nil {
			return err
		}
		if err := repos.Teams.Create(ctx, team); err != nil {
			return err
		}
		for _, memberID := range append([]string{in.TeamLead}, in.Members...) {
			if err := repos.Teams.AddMember(ctx, team.ID, memberID); err != nil {
				return err
			}
		}
		var err error
		team, err = repos.Teams.GetByID(ctx, team.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("team created", "team_id", team.ID, "team_name", team.TeamName)
	return team, nil
}

func (s *teamService) GetTeam(ctx context.Context, teamID string) (*domain.Team, error) {
	return s.store.Repositories().Teams.GetByID(ctx, teamID)
}

func (s *teamService) ListTeams(ctx context.Context, includeInactive bool) ([]domain.Team, error) {
	return s.store.Repositories().Teams.List(ctx, includeInactive)
}

// mutate loads a team, applies fn and stores it in one transaction.
func (s *teamService) mutate(ctx context.Context, teamID string, fn func(ctx context.Context, repos repository.Repositories, t *domain.Team) error) (*domain.Team, error) {
	var out *domain.Team
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		t, err := repos.Teams.GetByID(ctx, teamID)
		if err != nil {
			return err
		}
		if err := fn(ctx, repos, t); err != nil {
			return err
		}
		if err := repos.Teams.Update(ctx, t); err != nil {
			return err
		}
		out, err = repos.Teams.GetByID(ctx, teamID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *teamService) UpdateTeam(ctx context.Context, teamID string, in UpdateTeamInput) (*domain.Team, error) {
	return s.mutate(ctx, teamID, func(ctx context.Context, repos repository.Repositories, t *domain.Team) error {
		if in.TeamName != nil {
			name := strings.TrimSpace(*in.TeamName)
			if name == "" {
				return domain.Errorf(domain.KindValidation, "teamName must not be empty")
			}
			t.TeamName = name
		}
		if in.TeamLead != nil && *in.TeamLead != t.TeamLead {
			if _, err := repos.Members.GetByID(ctx, *in.TeamLead); err != nil {
				return err
			}
			t.TeamLead = *in.TeamLead
		}
		return nil
	})
}

// DeleteTeam is a soft delete.
func (s *teamService) DeleteTeam(ctx context.Context, teamID string) error {
	_, err := s.mutate(ctx, teamID, func(_ context.Context, _ repository.Repositories, t *domain.Team) error {
		t.IsActive = false
		return nil
	})
	if err == nil {
		s.log.Info("team deleted", "team_id", teamID)
	}
	return err
}

func (s *teamService) VerifyTeam(ctx context.Context, teamID string) (*domain.Team, error) {
	return s.mutate(ctx, teamID, func(_ context.Context, _ repository.Repositories, t *domain.Team) error {
		if t.VerifiedAt == nil {
			now := s.now()
			t.VerifiedAt = &now
		}
		return nil
	})
}

func (s *teamService) SuspendTeam(ctx context.Context, teamID string) (*domain.Team, error) {
	return s.mutate(ctx, teamID, func(_ context.Context, _ repository.Repositories, t *domain.Team) error {
		t.IsActive = false
		return nil
	})
}

func (s *teamService) ReactivateTeam(ctx context.Context, teamID string) (*domain.Team, error) {
	return s.mutate(ctx, teamID, func(_ context.Context, _ repository.Repositories, t *domain.Team) error {
		t.IsActive = true
		return nil
	})
}

func (s *teamService) SetTier(ctx context.Context, teamID, tier string) (*domain.Team, error) {
	tier = strings.TrimSpace(tier)
	if tier == "" {
		return nil, domain.Errorf(domain.KindValidation, "tier is required")
	}
	return s.mutate(ctx, teamID, func(_ context.Context, _ repository.Repositories, t *domain.Team) error {
		t.Tier = tier
		return nil
	})
}

// AddMember is idempotent: adding a present member changes nothing.
func (s *teamService) AddMember(ctx context.Context, teamID, memberID string) (*domain.Team, error) {
	if memberID == "" {
		return nil, domain.Errorf(domain.KindValidation, "memberId is required")
	}
	var out *domain.Team
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Teams.GetByID(ctx, teamID); err != nil {
			return err
		}
		if _, err := repos.Members.GetByID(ctx, memberID); err != nil {
			return err
		}
		if err := repos.Teams.AddMember(ctx, teamID, memberID); err != nil {
			return err
		}
		var err error
		out, err = repos.Teams.GetByID(ctx, teamID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveMember is idempotent: removing an absent member changes nothing.
func (s *teamService) RemoveMember(ctx context.Context, teamID, memberID string) (*domain.Team, error) {
	var out *domain.Team
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Teams.GetByID(ctx, teamID); err != nil {
			return err
		}
		if err := repos.Teams.RemoveMember(ctx, teamID, memberID); err != nil {
			return err
		}
		var err error
		out, err = repos.Teams.GetByID(ctx, teamID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *teamService) ListMembers(ctx context.Context, teamID string) ([]domain.Member, error) {
	repos := s.store.Repositories()
	ids, err := repos.Teams.ListMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		if _, err := repos.Teams.GetByID(ctx, teamID); err != nil {
			return nil, err
		}
	}
	members := make([]domain.Member, 0, len(ids))
	for _, id := range ids {
		m, err := repos.Members.GetByID(ctx, id)
		if err != nil {
			s.log.Warn("team roster references unknown member", "team_id", teamID, "member_id", id)
			continue
		}
		members = append(members, *m)
	}
	return members, nil
}

func (s *teamService) Statistics(ctx context.Context) (*domain.TeamStatistics, error) {
	return s.store.Repositories().Teams.Statistics(ctx)
}
