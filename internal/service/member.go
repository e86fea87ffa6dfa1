package service

import (
	"context"
	"errors"
	"math"

	"teamnet-backend/internal/domain"
	"teamnet-backend/internal/repository"
)

type memberService struct {
	store repository.Store
	now   Clock
}

func NewMemberService(store repository.Store) MemberService {
	return &memberService{store: store, now: systemClock}
}

func (s *memberService) GetProfile(ctx context.Context, memberID string) (*MemberProfile, error) {
	repos := s.store.Repositories()
	member, err := repos.Members.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	profile := &MemberProfile{Member: member, ActiveTier: domain.TierNone}
	if member.Subscription.ActiveAt(now) {
		profile.Active = true
		profile.ActiveTier = member.Subscription.Tier
		remaining := member.Subscription.ExpiryDate.Sub(now)
		profile.DaysRemaining = int(math.Ceil(remaining.Hours() / 24))
	}

	tm, err := repos.Hierarchy.GetByUserID(ctx, memberID)
	switch {
	case err == nil:
		profile.TeamMember = tm
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}
	return profile, nil
}
