package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentFinished PaymentStatus = "finished"
	PaymentFailed   PaymentStatus = "failed"
	PaymentExpired  PaymentStatus = "expired"
	PaymentRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentPending
}

const ProviderNOWPayments = "nowpayments"

// Status event sources.
const (
	SourceWebhook = "webhook"
	SourcePoll    = "poll"
)

// Outcomes recorded on each status event.
const (
	OutcomeApplied = "applied"
	OutcomeNoop    = "noop"
	OutcomeStale   = "stale"
	OutcomeIllegal = "illegal"
)

// NormalizeGatewayStatus maps a provider status onto the ledger's status set.
// In-flight provider states all collapse to pending.
func NormalizeGatewayStatus(raw string) (PaymentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "waiting", "confirming", "confirmed", "sending", "partially_paid", "new", "pending":
		return PaymentPending, true
	case "finished":
		return PaymentFinished, true
	case "failed":
		return PaymentFailed, true
	case "expired":
		return PaymentExpired, true
	case "refunded":
		return PaymentRefunded, true
	}
	return "", false
}

// Transition describes what applying a new status to a record does.
type Transition struct {
	Changed bool
	Grant   bool
	Revoke  bool
}

// NextStatus validates from -> to. Repeating the current status is a no-op.
func NextStatus(from, to PaymentStatus) (Transition, error) {
	if from == to {
		return Transition{}, nil
	}
	switch from {
	case PaymentPending:
		return Transition{Changed: true, Grant: to == PaymentFinished}, nil
	case PaymentFinished:
		if to == PaymentRefunded {
			return Transition{Changed: true, Revoke: true}, nil
		}
	}
	return Transition{}, Errorf(KindIllegalTransition, "cannot move payment from %s to %s", from, to)
}

type StatusEvent struct {
	Status     string          `json:"status"`
	Normalized PaymentStatus   `json:"normalized"`
	Source     string          `json:"source"`
	Outcome    string          `json:"outcome"`
	ObservedAt time.Time       `json:"observedAt"`
	RecordedAt time.Time       `json:"recordedAt"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// PaymentMetadata holds raw provider responses and the append-only status history.
type PaymentMetadata struct {
	InvoiceResponse json.RawMessage `json:"invoiceResponse,omitempty"`
	PaymentResponse json.RawMessage `json:"paymentResponse,omitempty"`
	Events          []StatusEvent   `json:"events"`

	// CheckoutStartedAt is set while a gateway call for the record is in flight.
	CheckoutStartedAt *time.Time `json:"checkoutStartedAt,omitempty"`
}

type PaymentRecord struct {
	ID               string          `json:"id"`
	OrderID          string          `json:"orderId"`
	InvoiceID        string          `json:"invoiceId,omitempty"`
	PaymentID        string          `json:"paymentId,omitempty"`
	MemberID         string          `json:"memberId"`
	Amount           float64         `json:"amount"`
	Currency         string          `json:"currency"`
	PayCurrency      string          `json:"payCurrency,omitempty"`
	Purpose          string          `json:"purpose,omitempty"`
	Description      string          `json:"description,omitempty"`
	Status           PaymentStatus   `json:"status"`
	Provider         string          `json:"provider"`
	InvoiceURL       string          `json:"invoiceUrl,omitempty"`
	PayAddress       string          `json:"payAddress,omitempty"`
	PayAmount        float64         `json:"payAmount,omitempty"`
	ReceivedAmount   float64         `json:"receivedAmount,omitempty"`
	ReceivedCurrency string          `json:"receivedCurrency,omitempty"`
	Metadata         PaymentMetadata `json:"metadata"`
	CreatedAt        time.Time       `json:"createdAt"`
	LastChecked      *time.Time      `json:"lastChecked,omitempty"`
	LastUpdated      *time.Time      `json:"lastUpdated,omitempty"`

	EntitlementAppliedAt *time.Time `json:"entitlementAppliedAt,omitempty"`
	GrantedTier          Tier       `json:"grantedTier,omitempty"`
	GrantedExpiry        *time.Time `json:"grantedExpiry,omitempty"`
	RevokedAt            *time.Time `json:"revokedAt,omitempty"`
}

// HasProviderRef reports whether the gateway has issued an id for this record.
func (p *PaymentRecord) HasProviderRef() bool {
	return p.InvoiceID != "" || p.PaymentID != ""
}

// SubscriptionPurpose is the purpose tag of a tier subscription intent.
func SubscriptionPurpose(tier Tier) string {
	return "subscription:" + string(tier)
}

// LookupKey identifies a payment record by exactly one of its unique keys.
type LookupKey struct {
	OrderID   string
	InvoiceID string
	PaymentID string
}

func (k LookupKey) Validate() error {
	set := 0
	for _, v := range []string{k.OrderID, k.InvoiceID, k.PaymentID} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return Errorf(KindValidation, "exactly one of orderId, invoiceId, paymentId is required")
	}
	return nil
}

func (k LookupKey) String() string {
	switch {
	case k.OrderID != "":
		return "order_id=" + k.OrderID
	case k.InvoiceID != "":
		return "invoice_id=" + k.InvoiceID
	default:
		return "payment_id=" + k.PaymentID
	}
}

type PaymentStatistics struct {
	TotalPayments      int64                   `json:"totalPayments"`
	TotalAmount        float64                 `json:"totalAmount"`
	CompletedPayments  int64                   `json:"completedPayments"`
	PendingPayments    int64                   `json:"pendingPayments"`
	FailedPayments     int64                   `json:"failedPayments"`
	ByStatus           map[PaymentStatus]int64 `json:"byStatus"`
	PaymentsByProvider map[string]int64        `json:"paymentsByProvider"`
}
