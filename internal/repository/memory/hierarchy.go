package memory

import (
	"context"

	"teamnet-backend/internal/domain"
)

type hierarchyRepository struct {
	g *guard
}

// LockGraph is a no-op; the store mutex already serializes transactions.
func (r *hierarchyRepository) LockGraph(ctx context.Context) error {
	return nil
}

func (r *hierarchyRepository) Create(ctx context.Context, tm *domain.TeamMember) error {
	return r.g.do(func(st *state) error {
		if _, ok := st.teamMembers[tm.UserID]; ok {
			return domain.Errorf(domain.KindAlreadyExists, "team member already exists")
		}
		if _, ok := st.members[tm.UserID]; !ok {
			return notFound("member")
		}
		if tm.SponsorID != nil {
			if _, ok := st.teamMembers[*tm.SponsorID]; !ok {
				return notFound("sponsor")
			}
		}
		now := r.g.now()
		if tm.JoinedAt.IsZero() {
			tm.JoinedAt = now
		}
		tm.UpdatedAt = now
		st.teamMembers[tm.UserID] = copyTeamMember(*tm)
		return nil
	})
}

func (r *hierarchyRepository) GetByUserID(ctx context.Context, userID string) (*domain.TeamMember, error) {
	var out *domain.TeamMember
	err := r.g.do(func(st *state) error {
		tm, ok := st.teamMembers[userID]
		if !ok {
			return notFound("team member")
		}
		c := copyTeamMember(tm)
		out = &c
		return nil
	})
	return out, err
}

func (r *hierarchyRepository) UpdateSponsor(ctx context.Context, userID string, sponsorID *string) error {
	return r.update(userID, func(st *state, tm *domain.TeamMember) error {
		if sponsorID != nil {
			if _, ok := st.teamMembers[*sponsorID]; !ok {
				return notFound("sponsor")
			}
		}
		tm.SponsorID = copyString(sponsorID)
		return nil
	})
}

func (r *hierarchyRepository) UpdatePackagePrice(ctx context.Context, userID string, price float64) error {
	return r.update(userID, func(_ *state, tm *domain.TeamMember) error {
		tm.PackagePrice = price
		return nil
	})
}

func (r *hierarchyRepository) SetActive(ctx context.Context, userID string, active bool) error {
	return r.update(userID, func(_ *state, tm *domain.TeamMember) error {
		tm.Active = active
		return nil
	})
}

func (r *hierarchyRepository) update(userID string, fn func(st *state, tm *domain.TeamMember) error) error {
	return r.g.do(func(st *state) error {
		tm, ok := st.teamMembers[userID]
		if !ok {
			return notFound("team member")
		}
		if err := fn(st, &tm); err != nil {
			return err
		}
		tm.UpdatedAt = r.g.now()
		st.teamMembers[userID] = tm
		return nil
	})
}

func (r *hierarchyRepository) List(ctx context.Context, includeInactive bool) ([]domain.TeamMember, error) {
	var out []domain.TeamMember
	err := r.g.do(func(st *state) error {
		for _, tm := range st.teamMembers {
			if includeInactive || tm.Active {
				out = append(out, copyTeamMember(tm))
			}
		}
		return nil
	})
	sortTeamMembers(out)
	return out, err
}

func (r *hierarchyRepository) ListChildren(ctx context.Context, parentIDs []string) ([]domain.TeamMember, error) {
	parents := make(map[string]bool, len(parentIDs))
	for _, id := range parentIDs {
		parents[id] = true
	}
	var out []domain.TeamMember
	err := r.g.do(func(st *state) error {
		for _, tm := range st.teamMembers {
			if tm.SponsorID != nil && parents[*tm.SponsorID] {
				out = append(out, copyTeamMember(tm))
			}
		}
		return nil
	})
	sortTeamMembers(out)
	return out, err
}

func (r *hierarchyRepository) CountChildren(ctx context.Context, parentIDs []string) (map[string]int, error) {
	parents := make(map[string]bool, len(parentIDs))
	for _, id := range parentIDs {
		parents[id] = true
	}
	counts := make(map[string]int, len(parentIDs))
	err := r.g.do(func(st *state) error {
		for _, tm := range st.teamMembers {
			if tm.SponsorID != nil && parents[*tm.SponsorID] {
				counts[*tm.SponsorID]++
			}
		}
		return nil
	})
	return counts, err
}

// ForceSponsor writes an edge without any validation. It exists to seed
// malformed graphs.
func (s *Store) ForceSponsor(userID string, sponsorID *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tm := s.st.teamMembers[userID]
	tm.SponsorID = copyString(sponsorID)
	s.st.teamMembers[userID] = tm
}
