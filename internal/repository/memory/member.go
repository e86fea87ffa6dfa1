package memory

import (
	"context"
	"sort"
	"time"

	"teamnet-backend/internal/domain"
)

type memberRepository struct {
	g *guard
}

func (r *memberRepository) Create(ctx context.Context, m *domain.Member) error {
	return r.g.do(func(st *state) error {
		if _, ok := st.members[m.ID]; ok {
			return domain.Errorf(domain.KindAlreadyExists, "member already exists")
		}
		for _, existing := range st.members {
			if existing.Email == m.Email {
				return domain.Errorf(domain.KindAlreadyExists, "member already exists")
			}
		}
		now := r.g.now()
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
		stored := copyMember(*m)
		stored.SponsorID = nil
		st.members[m.ID] = stored
		return nil
	})
}

func (r *memberRepository) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	var out *domain.Member
	err := r.g.do(func(st *state) error {
		m, ok := st.members[id]
		if !ok {
			return notFound("member")
		}
		c := withSponsor(st, copyMember(m))
		out = &c
		return nil
	})
	return out, err
}

func (r *memberRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Member, error) {
	return r.GetByID(ctx, id)
}

func (r *memberRepository) UpdateSubscription(ctx context.Context, m *domain.Member) error {
	return r.g.do(func(st *state) error {
		existing, ok := st.members[m.ID]
		if !ok {
			return notFound("member")
		}
		m.UpdatedAt = r.g.now()
		existing.Subscription = m.Subscription
		existing.Subscription.ExpiryDate = copyTime(m.Subscription.ExpiryDate)
		existing.LastPaymentDate = copyTime(m.LastPaymentDate)
		existing.UpdatedAt = m.UpdatedAt
		st.members[m.ID] = existing
		return nil
	})
}

func (r *memberRepository) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]domain.Member, error) {
	return r.filter(func(m domain.Member) bool {
		e := m.Subscription.ExpiryDate
		return m.Subscription.Status && e != nil && e.After(from) && !e.After(to)
	}, 0)
}

func (r *memberRepository) ListLapsed(ctx context.Context, now time.Time, limit int) ([]domain.Member, error) {
	return r.filter(func(m domain.Member) bool {
		e := m.Subscription.ExpiryDate
		return m.Subscription.Status && e != nil && !e.After(now)
	}, limit)
}

func (r *memberRepository) filter(keep func(domain.Member) bool, limit int) ([]domain.Member, error) {
	var out []domain.Member
	err := r.g.do(func(st *state) error {
		for _, m := range st.members {
			if keep(m) {
				out = append(out, withSponsor(st, copyMember(m)))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		ei, ej := out[i].Subscription.ExpiryDate, out[j].Subscription.ExpiryDate
		if !ei.Equal(*ej) {
			return ei.Before(*ej)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func withSponsor(st *state, m domain.Member) domain.Member {
	if tm, ok := st.teamMembers[m.ID]; ok {
		m.SponsorID = copyString(tm.SponsorID)
	}
	return m
}
