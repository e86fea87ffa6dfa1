package domain

import "time"

type Role string

const (
	RoleStandard Role = "STANDARD"
	RoleAdmin    Role = "ADMIN"
)

type Tier string

const (
	TierNone    Tier = "None"
	TierBasic   Tier = "Basic"
	TierPremium Tier = "Premium"
	TierPro     Tier = "Pro"
)

// EntitlementPeriod is the length of one paid subscription window.
const EntitlementPeriod = 30 * 24 * time.Hour

// Base fiat prices of the purchasable tiers.
var tierPrices = map[Tier]float64{
	TierBasic:   5,
	TierPremium: 15,
	TierPro:     30,
}

// SubscriptionPrice returns the base fiat price of a purchasable tier.
func SubscriptionPrice(tier Tier) (float64, bool) {
	p, ok := tierPrices[tier]
	return p, ok
}

// ParseTier accepts the purchasable tier names.
func ParseTier(s string) (Tier, bool) {
	t := Tier(s)
	_, ok := tierPrices[t]
	return t, ok
}

// TierForAmount selects the tier granted for a paid amount in base fiat currency.
func TierForAmount(amount float64) Tier {
	switch {
	case amount >= 30:
		return TierPro
	case amount >= 15:
		return TierPremium
	default:
		return TierBasic
	}
}

type Subscription struct {
	Status     bool       `json:"subscriptionStatus"`
	Tier       Tier       `json:"subscriptionTier"`
	ExpiryDate *time.Time `json:"subscriptionExpiryDate,omitempty"`
}

// ActiveAt reports whether the subscription is on and not yet expired at t.
func (s Subscription) ActiveAt(t time.Time) bool {
	return s.Status && s.ExpiryDate != nil && s.ExpiryDate.After(t)
}

type Member struct {
	ID              string       `json:"id"`
	Email           string       `json:"email"`
	Name            string       `json:"name"`
	Role            Role         `json:"role"`
	SponsorID       *string      `json:"sponsorId,omitempty"` // projection of the hierarchy edge
	Subscription    Subscription `json:"subscription"`
	LastPaymentDate *time.Time   `json:"lastPaymentDate,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}
