package repository

import (
	"context"
	"time"

	"teamnet-backend/internal/domain"
)

type MemberRepository interface {
	Create(ctx context.Context, member *domain.Member) error
	GetByID(ctx context.Context, id string) (*domain.Member, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Member, error)
	UpdateSubscription(ctx context.Context, member *domain.Member) error

	// Subscription lifecycle
	ListExpiringBetween(ctx context.Context, from, to time.Time) ([]domain.Member, error)
	ListLapsed(ctx context.Context, now time.Time, limit int) ([]domain.Member, error)
}

// HierarchyRepository stores sponsor edges. Writers must hold LockGraph inside
// the surrounding transaction.
type HierarchyRepository interface {
	LockGraph(ctx context.Context) error
	Create(ctx context.Context, tm *domain.TeamMember) error
	GetByUserID(ctx context.Context, userID string) (*domain.TeamMember, error)
	UpdateSponsor(ctx context.Context, userID string, sponsorID *string) error
	UpdatePackagePrice(ctx context.Context, userID string, price float64) error
	SetActive(ctx context.Context, userID string, active bool) error
	List(ctx context.Context, includeInactive bool) ([]domain.TeamMember, error)

	// Traversal, ordered by (joined_at, user_id)
	ListChildren(ctx context.Context, parentIDs []string) ([]domain.TeamMember, error)
	CountChildren(ctx context.Context, parentIDs []string) (map[string]int, error)
}

type TeamRepository interface {
	Create(ctx context.Context, team *domain.Team) error
	GetByID(ctx context.Context, id string) (*domain.Team, error)
	Update(ctx context.Context, team *domain.Team) error
	List(ctx context.Context, includeInactive bool) ([]domain.Team, error)
	Statistics(ctx context.Context) (*domain.TeamStatistics, error)

	// Roster
	AddMember(ctx context.Context, teamID, memberID string) error
	RemoveMember(ctx context.Context, teamID, memberID string) error
	ListMembers(ctx context.Context, teamID string) ([]string, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *domain.PaymentRecord) error
	Get(ctx context.Context, key domain.LookupKey) (*domain.PaymentRecord, error)
	GetForUpdate(ctx context.Context, key domain.LookupKey) (*domain.PaymentRecord, error)
	FindPendingByPurpose(ctx context.Context, memberID, purpose string) (*domain.PaymentRecord, error)
	Update(ctx context.Context, p *domain.PaymentRecord) error
	ListByMember(ctx context.Context, memberID string, page, pageSize int32) ([]domain.PaymentRecord, int32, error)
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]domain.PaymentRecord, error)
	Statistics(ctx context.Context) (*domain.PaymentStatistics, error)
}

// Repositories is the set of repositories bound to one connection or transaction.
type Repositories struct {
	Members   MemberRepository
	Hierarchy HierarchyRepository
	Teams     TeamRepository
	Payments  PaymentRepository
}

// Transactor runs fn inside a single transaction. A nil return commits; any
// error rolls back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// Store hands out repositories bound to the pool and runs transactions.
type Store interface {
	Transactor
	Repositories() Repositories
}
