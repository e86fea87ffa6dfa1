// Package memory is an in-process implementation of the repositories, guarded
// by a single mutex. Transactions hold the mutex for their whole duration and
// restore a snapshot on error.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"teamnet-backend/internal/domain"
	"teamnet-backend/internal/repository"
)

type state struct {
	members     map[string]domain.Member
	teamMembers map[string]domain.TeamMember
	teams       map[string]domain.Team
	payments    map[string]domain.PaymentRecord
}

func newState() *state {
	return &state{
		members:     map[string]domain.Member{},
		teamMembers: map[string]domain.TeamMember{},
		teams:       map[string]domain.Team{},
		payments:    map[string]domain.PaymentRecord{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.members {
		c.members[k] = copyMember(v)
	}
	for k, v := range s.teamMembers {
		c.teamMembers[k] = copyTeamMember(v)
	}
	for k, v := range s.teams {
		c.teams[k] = copyTeam(v)
	}
	for k, v := range s.payments {
		c.payments[k] = copyPayment(v)
	}
	return c
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time

	txCount int
}

func NewStore() *Store {
	return &Store{st: newState(), now: func() time.Time { return time.Now().UTC() }}
}

// Repositories returns repositories that lock the store per call.
func (s *Store) Repositories() repository.Repositories {
	return s.repositories(false)
}

func (s *Store) repositories(inTx bool) repository.Repositories {
	g := &guard{store: s, inTx: inTx}
	return repository.Repositories{
		Members:   &memberRepository{g: g},
		Hierarchy: &hierarchyRepository{g: g},
		Teams:     &teamRepository{g: g},
		Payments:  &paymentRepository{g: g},
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txCount++
	snapshot := s.st.clone()
	if err := fn(ctx, s.repositories(true)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// TxCount reports how many transactions have been started.
func (s *Store) TxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

type guard struct {
	store *Store
	inTx  bool
}

func (g *guard) do(fn func(st *state) error) error {
	if !g.inTx {
		g.store.mu.Lock()
		defer g.store.mu.Unlock()
	}
	return fn(g.store.st)
}

func (g *guard) now() time.Time {
	return g.store.now()
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func copyMember(m domain.Member) domain.Member {
	m.SponsorID = copyString(m.SponsorID)
	m.Subscription.ExpiryDate = copyTime(m.Subscription.ExpiryDate)
	m.LastPaymentDate = copyTime(m.LastPaymentDate)
	return m
}

func copyTeamMember(tm domain.TeamMember) domain.TeamMember {
	tm.SponsorID = copyString(tm.SponsorID)
	return tm
}

func copyTeam(t domain.Team) domain.Team {
	t.Members = append([]string{}, t.Members...)
	t.VerifiedAt = copyTime(t.VerifiedAt)
	return t
}

func copyPayment(p domain.PaymentRecord) domain.PaymentRecord {
	p.Metadata.Events = append([]domain.StatusEvent{}, p.Metadata.Events...)
	p.Metadata.CheckoutStartedAt = copyTime(p.Metadata.CheckoutStartedAt)
	p.LastChecked = copyTime(p.LastChecked)
	p.LastUpdated = copyTime(p.LastUpdated)
	p.EntitlementAppliedAt = copyTime(p.EntitlementAppliedAt)
	p.GrantedExpiry = copyTime(p.GrantedExpiry)
	p.RevokedAt = copyTime(p.RevokedAt)
	return p
}

func sortTeamMembers(tms []domain.TeamMember) {
	sort.Slice(tms, func(i, j int) bool {
		if !tms[i].JoinedAt.Equal(tms[j].JoinedAt) {
			return tms[i].JoinedAt.Before(tms[j].JoinedAt)
		}
		return tms[i].UserID < tms[j].UserID
	})
}

func notFound(entity string) error {
	return domain.Errorf(domain.KindNotFound, "%s not found", entity)
}
