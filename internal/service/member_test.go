package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamnet-backend/internal/domain"
)

func TestMemberService_GetProfile(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t, "M1", "M2")
	svc := NewMemberService(f.store).(*memberService)
	svc.now = fixedClock(testNow)

	t.Run("NoSubscription", func(t *testing.T) {
		p, err := svc.GetProfile(ctx, "M2")
		require.NoError(t, err)
		assert.False(t, p.Active)
		assert.Equal(t, domain.TierNone, p.ActiveTier)
		assert.Nil(t, p.TeamMember)
	})

	t.Run("Active", func(t *testing.T) {
		f.subscribe(t, "M1", domain.TierPro, testNow.Add(36*time.Hour))
		require.NoError(t, f.store.Repositories().Hierarchy.Create(ctx, &domain.TeamMember{UserID: "M1", Active: true}))

		p, err := svc.GetProfile(ctx, "M1")
		require.NoError(t, err)
		assert.True(t, p.Active)
		assert.Equal(t, domain.TierPro, p.ActiveTier)
		assert.Equal(t, 2, p.DaysRemaining)
		require.NotNil(t, p.TeamMember)
		assert.Equal(t, "M1", p.TeamMember.UserID)
	})

	t.Run("Lapsed", func(t *testing.T) {
		f.subscribe(t, "M2", domain.TierBasic, testNow.Add(-time.Hour))
		p, err := svc.GetProfile(ctx, "M2")
		require.NoError(t, err)
		assert.False(t, p.Active)
		assert.Zero(t, p.DaysRemaining)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := svc.GetProfile(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
