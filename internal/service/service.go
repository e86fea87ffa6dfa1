package service

import (
	"context"
	"encoding/json"
	"time"

	"teamnet-backend/internal/domain"
	"teamnet-backend/internal/gateway"
	"teamnet-backend/internal/repository"
)

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

type HierarchyService interface {
	CreateTeamMember(ctx context.Context, userID, sponsorID string, packagePrice float64) (*domain.TeamMember, error)
	GetTeamMember(ctx context.Context, userID string) (*domain.TeamMember, error)
	ListTeamMembers(ctx context.Context, includeInactive bool) ([]domain.TeamMember, error)
	SetSponsor(ctx context.Context, memberID, sponsorID string) error
	UpdatePackagePrice(ctx context.Context, userID string, price float64) (*domain.TeamMember, error)
	RemoveMember(ctx context.Context, memberID string) error
	GetDownline(ctx context.Context, rootID string, maxDepth int) (*domain.DownlineTree, error)
}

type CreateTeamInput struct {
	TeamName  string
	TeamLead  string
	Members   []string
	Tier      string
	CreatedBy string
}

type UpdateTeamInput struct {
	TeamName *string
	TeamLead *string
}

type TeamService interface {
	CreateTeam(ctx context.Context, in CreateTeamInput) (*domain.Team, error)
	GetTeam(ctx context.Context, teamID string) (*domain.Team, error)
	ListTeams(ctx context.Context, includeInactive bool) ([]domain.Team, error)
	UpdateTeam(ctx context.Context, teamID string, in UpdateTeamInput) (*domain.Team, error)
	DeleteTeam(ctx context.Context, teamID string) error
	VerifyTeam(ctx context.Context, teamID string) (*domain.Team, error)
	SuspendTeam(ctx context.Context, teamID string) (*domain.Team, error)
	ReactivateTeam(ctx context.Context, teamID string) (*domain.Team, error)
	SetTier(ctx context.Context, teamID, tier string) (*domain.Team, error)
	AddMember(ctx context.Context, teamID, memberID string) (*domain.Team, error)
	RemoveMember(ctx context.Context, teamID, memberID string) (*domain.Team, error)
	ListMembers(ctx context.Context, teamID string) ([]domain.Member, error)
	Statistics(ctx context.Context) (*domain.TeamStatistics, error)
}

type IntentInput struct {
	MemberID    string
	Amount      float64
	Currency    string
	PayCurrency string
	OrderID     string
	Purpose     string
	Description string
}

// StatusReport is one status observation from the gateway, pushed or polled.
type StatusReport struct {
	Key        domain.LookupKey
	Status     string
	Source     string
	ObservedAt time.Time
	RawPayload json.RawMessage

	ReceivedAmount   float64
	ReceivedCurrency string

	// Provider ids carried by the report, attached to the record when it has none.
	PaymentID string
	InvoiceID string
}

// StatusResult reports what RecordExternalStatus did with a report.
type StatusResult struct {
	Record      *domain.PaymentRecord
	Outcome     string
	Previous    domain.PaymentStatus
	Entitlement *EntitlementChange
}

// CheckoutInput describes an invoice or direct payment requested by a member.
type CheckoutInput struct {
	Amount      float64
	Currency    string
	PayCurrency string
	OrderID     string
	Description string

	// CustomerEmail is passed to the hosted invoice page when set.
	CustomerEmail string
}

// Checkout is the member-facing result of starting a payment.
type Checkout struct {
	Record        *domain.PaymentRecord `json:"payment"`
	InvoiceID     string                `json:"invoiceId,omitempty"`
	PaymentID     string                `json:"paymentId,omitempty"`
	OrderID       string                `json:"orderId"`
	PaymentURL    string                `json:"paymentUrl,omitempty"`
	PayAddress    string                `json:"walletAddress,omitempty"`
	PayAmount     float64               `json:"payAmount,omitempty"`
	Amount        float64               `json:"amount"`
	Currency      string                `json:"currency"`
	PayCurrency   string                `json:"payCurrency,omitempty"`
	Tier          domain.Tier           `json:"subscriptionTier,omitempty"`
	PaymentStatus string                `json:"paymentStatus,omitempty"`
}

type RefreshSummary struct {
	Checked int
	Changed int
	Failed  int
}

// PaymentGateway is the subset of the gateway client the ledger depends on.
type PaymentGateway interface {
	GetAvailableCurrencies(ctx context.Context) ([]string, error)
	GetEstimatedPrice(ctx context.Context, req gateway.EstimateRequest) (*gateway.Estimate, error)
	CreateInvoice(ctx context.Context, req gateway.InvoiceRequest) (*gateway.Invoice, error)
	CreatePayment(ctx context.Context, req gateway.PaymentRequest) (*gateway.Payment, error)
	GetInvoiceStatus(ctx context.Context, invoiceID string) (*gateway.InvoiceStatus, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (*gateway.Payment, error)
	GetMinimumAmount(ctx context.Context, from, to string) (*gateway.MinimumAmount, error)
	GetExchangeRate(ctx context.Context, from, to string) (*gateway.ExchangeRate, error)
	VerifyIPNSignature(body []byte, signature string) error
}

type PaymentService interface {
	CreateIntent(ctx context.Context, in IntentInput) (*domain.PaymentRecord, error)
	Lookup(ctx context.Context, key domain.LookupKey) (*domain.PaymentRecord, error)
	RecordExternalStatus(ctx context.Context, report StatusReport) (*StatusResult, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) (*StatusResult, error)

	CreateInvoice(ctx context.Context, memberID string, in CheckoutInput) (*Checkout, error)
	CreateOrder(ctx context.Context, memberID string, in CheckoutInput) (*Checkout, error)
	Subscribe(ctx context.Context, memberID string, tier domain.Tier, payCurrency string) (*Checkout, error)
	RefreshInvoiceStatus(ctx context.Context, invoiceID string) (*domain.PaymentRecord, error)
	RefreshPaymentStatus(ctx context.Context, paymentID string) (*domain.PaymentRecord, error)
	RefreshPending(ctx context.Context, olderThan time.Time, limit int) (RefreshSummary, error)

	ListMemberPayments(ctx context.Context, memberID string, page, limit int32) ([]domain.PaymentRecord, int32, error)
	Statistics(ctx context.Context) (*domain.PaymentStatistics, error)

	AvailableCurrencies(ctx context.Context) ([]string, error)
	Estimate(ctx context.Context, amount float64, from, to string) (*gateway.Estimate, error)
	MinimumAmount(ctx context.Context, from, to string) (*gateway.MinimumAmount, error)
	ExchangeRate(ctx context.Context, from, to string) (*gateway.ExchangeRate, error)
}

// EntitlementChange describes a subscription mutation made inside a payment
// transaction. It is announced only after the transaction commits.
type EntitlementChange struct {
	Action    string // EntitlementGrant, EntitlementRevoke or EntitlementExpire
	Member    domain.Member
	Tier      domain.Tier
	ExpiresAt *time.Time
	OrderID   string
	RecordID  string
	At        time.Time
}

type EntitlementService interface {
	// Grant and Revoke run inside the caller's transaction.
	Grant(ctx context.Context, repos repository.Repositories, record *domain.PaymentRecord, now time.Time) (*EntitlementChange, error)
	Revoke(ctx context.Context, repos repository.Repositories, record *domain.PaymentRecord, now time.Time) (*EntitlementChange, error)
	// Announce publishes committed changes. Failures are logged, never returned.
	Announce(ctx context.Context, changes ...*EntitlementChange)

	ExpireLapsed(ctx context.Context, limit int) (int, error)
	SendExpiryReminders(ctx context.Context, window time.Duration) (int, error)
}

// MemberProfile is a member with the current view of their entitlement.
type MemberProfile struct {
	Member        *domain.Member     `json:"member"`
	ActiveTier    domain.Tier        `json:"activeTier"`
	Active        bool               `json:"active"`
	TeamMember    *domain.TeamMember `json:"teamMember,omitempty"`
	DaysRemaining int                `json:"daysRemaining"`
}

type MemberService interface {
	GetProfile(ctx context.Context, memberID string) (*MemberProfile, error)
}
