package service

import (
	"context"
	"fmt"
	"time"

	"teamnet-backend/internal/cache"
	"teamnet-backend/internal/domain"
	"teamnet-backend/internal/events"
	"teamnet-backend/internal/logger"
	"teamnet-backend/internal/metrics"
	"teamnet-backend/internal/notify"
	"teamnet-backend/internal/repository"
)

const (
	EntitlementGrant  = "grant"
	EntitlementRevoke = "revoke"
	EntitlementExpire = "expire"
)

type entitlementService struct {
	store     repository.Store
	publisher events.Publisher
	mailer    notify.Mailer
	cache     cache.Cache
	metrics   *metrics.Metrics
	log       logger.Logger
	now       Clock
}

func NewEntitlementService(store repository.Store, publisher events.Publisher, mailer notify.Mailer, c cache.Cache, m *metrics.Metrics, log logger.Logger) EntitlementService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if mailer == nil {
		mailer = notify.NopMailer{}
	}
	if c == nil {
		c = cache.NewMemoryCache()
	}
	return &entitlementService{
		store:     store,
		publisher: publisher,
		mailer:    mailer,
		cache:     c,
		metrics:   m,
		log:       logger.Module(log, "entitlement"),
		now:       systemClock,
	}
}

// Grant activates the tier paid for by record. A record grants at most once:
// the entitlementAppliedAt marker makes repeats a no-op.
func (s *entitlementService) Grant(ctx context.Context, repos repository.Repositories, record *domain.PaymentRecord, now time.Time) (*EntitlementChange, error) {
	logger.EnterMethod(s.log, "entitlementService.Grant", "order_id", record.OrderID, "member_id", record.MemberID)
	if record.EntitlementAppliedAt != nil {
		logger.ExitMethod(s.log, "entitlementService.Grant", "order_id", record.OrderID, "applied", false)
		return nil, nil
	}
	member, err := repos.Members.GetByIDForUpdate(ctx, record.MemberID)
	if err != nil {
		logger.ExitMethodWithError(s.log, "entitlementService.Grant", err, "order_id", record.OrderID)
		return nil, err
	}

	tier := domain.TierForAmount(record.Amount)
	base := now
	if member.Subscription.ActiveAt(now) {
		base = *member.Subscription.ExpiryDate
	}
	expiry := base.Add(domain.EntitlementPeriod)

	member.Subscription = domain.Subscription{Status: true, Tier: tier, ExpiryDate: &expiry}
	paidAt := now
	member.LastPaymentDate = &paidAt
	if err := repos.Members.UpdateSubscription(ctx, member); err != nil {
		logger.ExitMethodWithError(s.log, "entitlementService.Grant", err, "order_id", record.OrderID)
		return nil, err
	}

	applied := now
	record.EntitlementAppliedAt = &applied
	record.GrantedTier = tier
	record.GrantedExpiry = &expiry

	logger.ExitMethod(s.log, "entitlementService.Grant", "order_id", record.OrderID, "tier", tier, "expires_at", expiry)
	return &EntitlementChange{
		Action:    EntitlementGrant,
		Member:    *member,
		Tier:      tier,
		ExpiresAt: &expiry,
		OrderID:   record.OrderID,
		RecordID:  record.ID,
		At:        now,
	}, nil
}

// Revoke withdraws the entitlement a refunded record granted. Records that
// never granted, or were already revoked, change nothing.
func (s *entitlementService) Revoke(ctx context.Context, repos repository.Repositories, record *domain.PaymentRecord, now time.Time) (*EntitlementChange, error) {
	if record.EntitlementAppliedAt == nil || record.RevokedAt != nil {
		return nil, nil
	}
	member, err := repos.Members.GetByIDForUpdate(ctx, record.MemberID)
	if err != nil {
		return nil, err
	}

	member.Subscription.Status = false
	if err := repos.Members.UpdateSubscription(ctx, member); err != nil {
		return nil, err
	}

	revoked := now
	record.RevokedAt = &revoked

	return &EntitlementChange{
		Action:   EntitlementRevoke,
		Member:   *member,
		Tier:     record.GrantedTier,
		OrderID:  record.OrderID,
		RecordID: record.ID,
		At:       now,
	}, nil
}

func (s *entitlementService) Announce(ctx context.Context, changes ...*EntitlementChange) {
	for _, c := range changes {
		if c == nil {
			continue
		}
		s.metrics.ObserveEntitlement(c.Action, string(c.Tier))

		evt := events.Event{
			OccurredAt: c.At,
			MemberID:   c.Member.ID,
			PaymentID:  c.RecordID,
			OrderID:    c.OrderID,
			Tier:       string(c.Tier),
			ExpiresAt:  c.ExpiresAt,
		}
		to := notify.Recipient{Email: c.Member.Email, Name: c.Member.Name}

		var mailErr error
		switch c.Action {
		case EntitlementGrant:
			evt.Type = events.EntitlementGranted
			mailErr = s.mailer.SendSubscriptionActivated(ctx, to, string(c.Tier), *c.ExpiresAt)
		case EntitlementRevoke:
			evt.Type = events.EntitlementRevoked
			mailErr = s.mailer.SendSubscriptionRevoked(ctx, to, c.OrderID)
		case EntitlementExpire:
			evt.Type = events.EntitlementExpired
			mailErr = s.mailer.SendSubscriptionExpired(ctx, to, string(c.Tier))
		}
		if mailErr != nil {
			s.log.Warn("entitlement email failed", "member_id", c.Member.ID, "action", c.Action, "error", mailErr)
		}
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.log.Warn("entitlement event publish failed", "member_id", c.Member.ID, "action", c.Action, "error", err)
		}

		s.log.Info("entitlement changed",
			"action", c.Action, "member_id", c.Member.ID, "tier", c.Tier,
			"order_id", c.OrderID, "record_id", c.RecordID)
	}
}

// ExpireLapsed switches off subscriptions whose expiry has passed.
func (s *entitlementService) ExpireLapsed(ctx context.Context, limit int) (int, error) {
	now := s.now()
	lapsed, err := s.store.Repositories().Members.ListLapsed(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range lapsed {
		var change *EntitlementChange
		err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			member, err := repos.Members.GetByIDForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			// Renewed since it was listed.
			if !member.Subscription.Status || member.Subscription.ActiveAt(now) {
				return nil
			}
			member.Subscription.Status = false
			if err := repos.Members.UpdateSubscription(ctx, member); err != nil {
				return err
			}
			change = &EntitlementChange{
				Action:    EntitlementExpire,
				Member:    *member,
				Tier:      member.Subscription.Tier,
				ExpiresAt: member.Subscription.ExpiryDate,
				At:        now,
			}
			return nil
		})
		if err != nil {
			s.log.Error("failed to expire subscription", "member_id", candidate.ID, "error", err)
			continue
		}
		if change != nil {
			expired++
			s.Announce(ctx, change)
		}
	}
	return expired, nil
}

func reminderKey(memberID string, expiry time.Time) string {
	return fmt.Sprintf("reminder:expiry:%s:%d", memberID, expiry.Unix())
}

// SendExpiryReminders emails members whose subscription ends within window.
// Each expiry date is reminded at most once.
func (s *entitlementService) SendExpiryReminders(ctx context.Context, window time.Duration) (int, error) {
	now := s.now()
	members, err := s.store.Repositories().Members.ListExpiringBetween(ctx, now, now.Add(window))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, m := range members {
		expiry := *m.Subscription.ExpiryDate
		key := reminderKey(m.ID, expiry)
		exists, err := s.cache.Exists(ctx, key)
		if err != nil {
			s.log.Warn("reminder dedupe lookup failed", "member_id", m.ID, "error", err)
			continue
		}
		if exists {
			continue
		}

		to := notify.Recipient{Email: m.Email, Name: m.Name}
		if err := s.mailer.SendExpiryReminder(ctx, to, string(m.Subscription.Tier), expiry); err != nil {
			s.log.Warn("expiry reminder failed", "member_id", m.ID, "error", err)
			continue
		}
		if err := s.cache.Set(ctx, key, "sent", window+24*time.Hour); err != nil {
			s.log.Warn("reminder dedupe write failed", "member_id", m.ID, "error", err)
		}
		sent++
	}
	return sent, nil
}
