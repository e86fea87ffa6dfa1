package memory

import (
	"context"
	"sort"

	"teamnet-backend/internal/domain"
)

type teamRepository struct {
	g *guard
}

func nameTaken(st *state, name, exceptID string) bool {
	for id, t := range st.teams {
		if id != exceptID && t.TeamName == name {
			return true
		}
	}
	return false
}

func (r *teamRepository) Create(ctx context.Context, t *domain.Team) error {
	return r.g.do(func(st *state) error {
		if _, ok := st.teams[t.ID]; ok {
			return domain.Errorf(domain.KindAlreadyExists, "team already exists")
		}
		if nameTaken(st, t.TeamName, "") {
			return domain.Errorf(domain.KindAlreadyExists, "team name already exists")
		}
		now := r.g.now()
		t.CreatedAt = now
		t.UpdatedAt = now
		stored := copyTeam(*t)
		stored.Members = []string{}
		st.teams[t.ID] = stored
		return nil
	})
}

func (r *teamRepository) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	var out *domain.Team
	err := r.g.do(func(st *state) error {
		t, ok := st.teams[id]
		if !ok {
			return notFound("team")
		}
		c := copyTeam(t)
		out = &c
		return nil
	})
	return out, err
}

func (r *teamRepository) Update(ctx context.Context, t *domain.Team) error {
	return r.g.do(func(st *state) error {
		existing, ok := st.teams[t.ID]
		if !ok {
			return notFound("team")
		}
		if nameTaken(st, t.TeamName, t.ID) {
			return domain.Errorf(domain.KindAlreadyExists, "team name already exists")
		}
		t.UpdatedAt = r.g.now()
		existing.TeamName = t.TeamName
		existing.TeamLead = t.TeamLead
		existing.Tier = t.Tier
		existing.IsActive = t.IsActive
		existing.VerifiedAt = copyTime(t.VerifiedAt)
		existing.UpdatedAt = t.UpdatedAt
		st.teams[t.ID] = existing
		return nil
	})
}

func (r *teamRepository) List(ctx context.Context, includeInactive bool) ([]domain.Team, error) {
	var out []domain.Team
	err := r.g.do(func(st *state) error {
		for _, t := range st.teams {
			if includeInactive || t.IsActive {
				out = append(out, copyTeam(t))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (r *teamRepository) Statistics(ctx context.Context) (*domain.TeamStatistics, error) {
	s := &domain.TeamStatistics{}
	err := r.g.do(func(st *state) error {
		for _, t := range st.teams {
			s.TotalTeams++
			if t.IsActive {
				s.ActiveTeams++
			} else {
				s.InactiveTeams++
			}
			if t.VerifiedAt != nil {
				s.VerifiedTeams++
			}
			s.TotalMembers += int64(len(t.Members))
		}
		return nil
	})
	return s, err
}

func (r *teamRepository) AddMember(ctx context.Context, teamID, memberID string) error {
	return r.g.do(func(st *state) error {
		t, ok := st.teams[teamID]
		if !ok {
			return notFound("team")
		}
		if _, ok := st.members[memberID]; !ok {
			return notFound("member")
		}
		if t.HasMember(memberID) {
			return nil
		}
		t.Members = append(t.Members, memberID)
		st.teams[teamID] = t
		return nil
	})
}

func (r *teamRepository) RemoveMember(ctx context.Context, teamID, memberID string) error {
	return r.g.do(func(st *state) error {
		t, ok := st.teams[teamID]
		if !ok {
			return nil
		}
		kept := t.Members[:0:0]
		for _, m := range t.Members {
			if m != memberID {
				kept = append(kept, m)
			}
		}
		t.Members = kept
		st.teams[teamID] = t
		return nil
	})
}

func (r *teamRepository) ListMembers(ctx context.Context, teamID string) ([]string, error) {
	var out []string
	err := r.g.do(func(st *state) error {
		t, ok := st.teams[teamID]
		if !ok {
			out = []string{}
			return nil
		}
		out = append([]string{}, t.Members...)
		return nil
	})
	return out, err
}
