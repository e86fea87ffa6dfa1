package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamnet-backend/internal/domain"
	"teamnet-backend/internal/repository"
)

func seedMembers(t *testing.T, s *Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, s.Repositories().Members.Create(context.Background(), &domain.Member{ID: id, Email: id + "@test.com"}))
	}
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedMembers(t, s, "a")

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		require.NoError(t, repos.Hierarchy.Create(ctx, &domain.TeamMember{UserID: "a", Active: true}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Repositories().Hierarchy.GetByUserID(ctx, "a")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, 1, s.TxCount())
}

func TestStore_ChildrenOrdering(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedMembers(t, s, "root", "x", "y", "z")
	repos := s.Repositories()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	root := "root"
	require.NoError(t, repos.Hierarchy.Create(ctx, &domain.TeamMember{UserID: "root", Active: true, JoinedAt: base}))
	require.NoError(t, repos.Hierarchy.Create(ctx, &domain.TeamMember{UserID: "z", SponsorID: &root, Active: true, JoinedAt: base.Add(time.Hour)}))
	require.NoError(t, repos.Hierarchy.Create(ctx, &domain.TeamMember{UserID: "y", SponsorID: &root, Active: true, JoinedAt: base.Add(time.Hour)}))
	require.NoError(t, repos.Hierarchy.Create(ctx, &domain.TeamMember{UserID: "x", SponsorID: &root, Active: true, JoinedAt: base.Add(2 * time.Hour)}))

	children, err := repos.Hierarchy.ListChildren(ctx, []string{"root"})
	require.NoError(t, err)
	var ids []string
	for _, c := range children {
		ids = append(ids, c.UserID)
	}
	assert.Equal(t, []string{"y", "z", "x"}, ids)

	counts, err := repos.Hierarchy.CountChildren(ctx, []string{"root", "x"})
	require.NoError(t, err)
	assert.Equal(t, 3, counts["root"])
	assert.Equal(t, 0, counts["x"])
}

func TestStore_PaymentUniqueness(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedMembers(t, s, "m1")
	payments := s.Repositories().Payments

	p := &domain.PaymentRecord{ID: "p1", OrderID: "o1", MemberID: "m1", Amount: 5, Purpose: "subscription:Basic", Status: domain.PaymentPending}
	require.NoError(t, payments.Create(ctx, p))

	err := payments.Create(ctx, &domain.PaymentRecord{ID: "p2", OrderID: "o1", MemberID: "m1", Amount: 5, Status: domain.PaymentPending})
	assert.True(t, errors.Is(err, domain.ErrDuplicateOrder))

	err = payments.Create(ctx, &domain.PaymentRecord{ID: "p3", OrderID: "o3", MemberID: "m1", Amount: 5, Purpose: "subscription:Basic", Status: domain.PaymentPending})
	assert.True(t, errors.Is(err, domain.ErrConflictingPendingIntent))

	got, err := payments.Get(ctx, domain.LookupKey{OrderID: "o1"})
	require.NoError(t, err)
	got.Metadata.Events = append(got.Metadata.Events, domain.StatusEvent{Status: "x"})

	again, err := payments.Get(ctx, domain.LookupKey{OrderID: "o1"})
	require.NoError(t, err)
	assert.Empty(t, again.Metadata.Events, "records are returned as copies")
}
