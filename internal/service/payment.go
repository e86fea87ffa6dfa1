package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	nanoid "github.com/jaevor/go-nanoid"

	"teamnet-backend/internal/domain"
	"teamnet-backend/internal/events"
	"teamnet-backend/internal/gateway"
	"teamnet-backend/internal/logger"
	"teamnet-backend/internal/metrics"
	"teamnet-backend/internal/repository"
)

const (
	defaultCurrency    = "USD"
	defaultPayCurrency = "USDT"

	defaultPageSize int32 = 10
	maxPageSize     int32 = 100

	// checkoutClaimTTL bounds how long an unfinished gateway call blocks
	// other checkouts of the same order.
	checkoutClaimTTL = 2 * time.Minute
)

// PaymentConfig holds the callback URLs handed to the gateway.
type PaymentConfig struct {
	IPNCallbackURL string
	SuccessURL     string
	CancelURL      string
}

type paymentService struct {
	store        repository.Store
	gateway      PaymentGateway
	entitlements EntitlementService
	publisher    events.Publisher
	metrics      *metrics.Metrics
	cfg          PaymentConfig
	log          logger.Logger
	now          Clock
	newSuffix    func() string
}

func NewPaymentService(
	store repository.Store,
	gw PaymentGateway,
	entitlements EntitlementService,
	publisher events.Publisher,
	m *metrics.Metrics,
	cfg PaymentConfig,
	log logger.Logger,
) (PaymentService, error) {
	suffix, err := nanoid.Standard(12)
	if err != nil {
		return nil, fmt.Errorf("failed to create order id generator: %w", err)
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &paymentService{
		store:        store,
		gateway:      gw,
		entitlements: entitlements,
		publisher:    publisher,
		metrics:      m,
		cfg:          cfg,
		log:          logger.Module(log, "payment"),
		now:          systemClock,
		newSuffix:    suffix,
	}, nil
}

// CreateIntent records a pending payment before the gateway is called. A
// retry with the same orderId by the same member returns the stored intent as
// long as the gateway never issued an id for it.
func (s *paymentService) CreateIntent(ctx context.Context, in IntentInput) (*domain.PaymentRecord, error) {
	if in.MemberID == "" {
		return nil, domain.Errorf(domain.KindValidation, "memberId is required")
	}
	if in.OrderID == "" {
		return nil, domain.Errorf(domain.KindValidation, "orderId is required")
	}
	if in.Amount <= 0 {
		return nil, domain.Errorf(domain.KindValidation, "amount must be positive")
	}
	if in.Currency == "" {
		in.Currency = defaultCurrency
	}

	var record *domain.PaymentRecord
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		existing, err := repos.Payments.GetForUpdate(ctx, domain.LookupKey{OrderID: in.OrderID})
		switch {
		case err == nil:
			if existing.MemberID == in.MemberID && existing.Status == domain.PaymentPending &&
				!existing.HasProviderRef() && sameIntent(existing, in) {
				record = existing
				return nil
			}
			return domain.Errorf(domain.KindDuplicateOrder, "order %s already exists", in.OrderID)
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		if in.Purpose != "" {
			pending, err := repos.Payments.FindPendingByPurpose(ctx, in.MemberID, in.Purpose)
			if err == nil {
				return domain.Errorf(domain.KindConflictingPendingIntent,
					"order %s is already pending for %s", pending.OrderID, in.Purpose)
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}

		if _, err := repos.Members.GetByID(ctx, in.MemberID); err != nil {
			return err
		}

		record = &domain.PaymentRecord{
			ID:          uuid.NewString(),
			OrderID:     in.OrderID,
			MemberID:    in.MemberID,
			Amount:      in.Amount,
			Currency:    strings.ToUpper(in.Currency),
			PayCurrency: strings.ToUpper(in.PayCurrency),
			Purpose:     in.Purpose,
			Description: in.Description,
			Status:      domain.PaymentPending,
			Provider:    domain.ProviderNOWPayments,
			Metadata:    domain.PaymentMetadata{Events: []domain.StatusEvent{}},
			CreatedAt:   s.now(),
		}
		return repos.Payments.Create(ctx, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// sameIntent reports whether a retry asks for what the stored intent records.
func sameIntent(rec *domain.PaymentRecord, in IntentInput) bool {
	return rec.Amount == in.Amount &&
		rec.Currency == strings.ToUpper(in.Currency) &&
		rec.Purpose == in.Purpose
}

func (s *paymentService) Lookup(ctx context.Context, key domain.LookupKey) (*domain.PaymentRecord, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return s.store.Repositories().Payments.Get(ctx, key)
}

// RecordExternalStatus applies one gateway observation to its ledger record
// and, when the record enters or leaves finished, the member's entitlement.
// Both happen in one transaction holding the record's row lock. Illegal
// transitions are still written to the event history, then reported.
func (s *paymentService) RecordExternalStatus(ctx context.Context, report StatusReport) (*StatusResult, error) {
	logger.EnterMethod(s.log, "paymentService.RecordExternalStatus", "key", report.Key.String(), "status", report.Status, "source", report.Source)
	if err := report.Key.Validate(); err != nil {
		return nil, err
	}
	normalized, ok := domain.NormalizeGatewayStatus(report.Status)
	if !ok {
		return nil, domain.Errorf(domain.KindValidation, "unknown payment status %q", report.Status)
	}
	now := s.now()
	observedAt := report.ObservedAt
	if observedAt.IsZero() {
		observedAt = now
	}
	if report.Source == "" {
		report.Source = domain.SourceWebhook
	}

	var (
		result     *StatusResult
		illegalErr error
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		rec, err := repos.Payments.GetForUpdate(ctx, report.Key)
		if err != nil {
			return err
		}
		result = &StatusResult{Record: rec, Previous: rec.Status}

		if err := s.attachProviderRefs(ctx, repos, rec, report); err != nil {
			return err
		}
		if rec.LastChecked == nil || observedAt.After(*rec.LastChecked) {
			checked := observedAt
			rec.LastChecked = &checked
		}

		// A refund reverses a finished payment whatever its report time.
		reversal := rec.Status == domain.PaymentFinished && normalized == domain.PaymentRefunded
		stale := rec.Status.IsTerminal() && normalized != rec.Status && !reversal &&
			rec.LastUpdated != nil && observedAt.Before(*rec.LastUpdated)

		switch {
		case stale:
			result.Outcome = domain.OutcomeStale
		default:
			transition, err := domain.NextStatus(rec.Status, normalized)
			if err != nil {
				result.Outcome = domain.OutcomeIllegal
				illegalErr = err
				break
			}
			if !transition.Changed {
				result.Outcome = domain.OutcomeNoop
				s.applyReceived(rec, report)
				break
			}

			result.Outcome = domain.OutcomeApplied
			rec.Status = normalized
			updated := observedAt
			rec.LastUpdated = &updated
			s.applyReceived(rec, report)

			switch {
			case transition.Grant:
				result.Entitlement, err = s.entitlements.Grant(ctx, repos, rec, now)
			case transition.Revoke:
				result.Entitlement, err = s.entitlements.Revoke(ctx, repos, rec, now)
			}
			if err != nil {
				return err
			}
		}

		rec.Metadata.Events = append(rec.Metadata.Events, domain.StatusEvent{
			Status:     report.Status,
			Normalized: normalized,
			Source:     report.Source,
			Outcome:    result.Outcome,
			ObservedAt: observedAt,
			RecordedAt: now,
			Payload:    report.RawPayload,
		})
		return repos.Payments.Update(ctx, rec)
	})
	if err != nil {
		logger.ExitMethodWithError(s.log, "paymentService.RecordExternalStatus", err,
			"key", report.Key.String(), "status", report.Status, "source", report.Source)
		return nil, err
	}

	rec := result.Record
	s.log.Info("payment status recorded",
		"order_id", rec.OrderID, "record_id", rec.ID, "from", result.Previous, "to", normalized,
		"outcome", result.Outcome, "source", report.Source)

	if result.Outcome == domain.OutcomeApplied {
		s.metrics.ObserveTransition(string(result.Previous), string(rec.Status), report.Source)
		evt := events.Event{
			Type:           events.PaymentStatusChange,
			OccurredAt:     now,
			MemberID:       rec.MemberID,
			PaymentID:      rec.ID,
			OrderID:        rec.OrderID,
			PreviousStatus: string(result.Previous),
			Status:         string(rec.Status),
			Source:         report.Source,
			Amount:         rec.Amount,
			Currency:       rec.Currency,
		}
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.log.Warn("payment event publish failed", "order_id", rec.OrderID, "error", err)
		}
	}
	s.entitlements.Announce(ctx, result.Entitlement)

	if illegalErr != nil {
		s.log.Warn("illegal payment transition recorded",
			"order_id", rec.OrderID, "record_id", rec.ID, "from", result.Previous, "to", normalized)
		return result, illegalErr
	}
	logger.ExitMethod(s.log, "paymentService.RecordExternalStatus", "order_id", rec.OrderID, "outcome", result.Outcome)
	return result, nil
}

func (s *paymentService) applyReceived(rec *domain.PaymentRecord, report StatusReport) {
	if report.ReceivedAmount > 0 {
		rec.ReceivedAmount = report.ReceivedAmount
	}
	if report.ReceivedCurrency != "" {
		rec.ReceivedCurrency = strings.ToUpper(report.ReceivedCurrency)
	}
}

// attachProviderRefs stores provider ids first learned from a status report.
// An id already owned by another record is left alone.
func (s *paymentService) attachProviderRefs(ctx context.Context, repos repository.Repositories, rec *domain.PaymentRecord, report StatusReport) error {
	attach := func(current *string, key domain.LookupKey, id string) error {
		if *current != "" || id == "" {
			return nil
		}
		owner, err := repos.Payments.Get(ctx, key)
		switch {
		case err == nil:
			if owner.ID != rec.ID {
				s.log.Warn("provider id belongs to another record", "order_id", rec.OrderID, "key", key.String())
			}
			return nil
		case errors.Is(err, domain.ErrNotFound):
			*current = id
			return nil
		default:
			return err
		}
	}
	if err := attach(&rec.PaymentID, domain.LookupKey{PaymentID: report.PaymentID}, report.PaymentID); err != nil {
		return err
	}
	return attach(&rec.InvoiceID, domain.LookupKey{InvoiceID: report.InvoiceID}, report.InvoiceID)
}

// HandleWebhook authenticates an IPN callback and records the status it carries.
func (s *paymentService) HandleWebhook(ctx context.Context, body []byte, signature string) (*StatusResult, error) {
	if err := s.gateway.VerifyIPNSignature(body, signature); err != nil {
		s.metrics.ObserveWebhook("signature_invalid")
		s.log.Warn("webhook signature rejected", "error", err, "body_bytes", len(body))
		return nil, domain.Wrap(domain.KindSignatureInvalid, err, "invalid webhook signature")
	}

	n, err := parseNotification(body)
	if err != nil {
		s.metrics.ObserveWebhook("invalid")
		return nil, err
	}
	keys := n.lookupKeys()
	if len(keys) == 0 {
		s.metrics.ObserveWebhook("invalid")
		return nil, domain.Errorf(domain.KindValidation, "webhook carries no order_id, payment_id or invoice_id")
	}

	report := StatusReport{
		Status:           n.Status,
		Source:           domain.SourceWebhook,
		ObservedAt:       n.ObservedAt,
		RawPayload:       body,
		ReceivedAmount:   n.ActuallyPaid,
		ReceivedCurrency: n.PayCurrency,
		PaymentID:        n.PaymentID,
		InvoiceID:        n.InvoiceID,
	}

	var result *StatusResult
	for i, key := range keys {
		report.Key = key
		result, err = s.RecordExternalStatus(ctx, report)
		if errors.Is(err, domain.ErrNotFound) && i < len(keys)-1 {
			continue
		}
		break
	}

	switch {
	case err == nil:
		s.metrics.ObserveWebhook(result.Outcome)
	case errors.Is(err, domain.ErrIllegalTransition):
		s.metrics.ObserveWebhook(domain.OutcomeIllegal)
	default:
		s.metrics.ObserveWebhook(strings.ToLower(string(domain.KindOf(err))))
	}
	return result, err
}

func (s *paymentService) checkoutRequest(memberID string, in CheckoutInput) (CheckoutInput, error) {
	if memberID == "" {
		return in, domain.Errorf(domain.KindValidation, "memberId is required")
	}
	if in.Amount <= 0 {
		return in, domain.Errorf(domain.KindValidation, "amount must be positive")
	}
	if in.Currency == "" {
		in.Currency = defaultCurrency
	}
	if in.OrderID == "" {
		in.OrderID = fmt.Sprintf("order_%s_%s", memberID, s.newSuffix())
	}
	return in, nil
}

// claimCheckout marks the intent as having a gateway call in flight, under the
// record's row lock. It returns false with the stored record when the gateway
// already issued a reference, and ConflictingPendingIntent while another
// caller's claim is still live.
func (s *paymentService) claimCheckout(ctx context.Context, orderID string) (*domain.PaymentRecord, bool, error) {
	var (
		out     *domain.PaymentRecord
		claimed bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		rec, err := repos.Payments.GetForUpdate(ctx, domain.LookupKey{OrderID: orderID})
		if err != nil {
			return err
		}
		out = rec
		if rec.HasProviderRef() {
			return nil
		}
		now := s.now()
		if started := rec.Metadata.CheckoutStartedAt; started != nil && now.Sub(*started) < checkoutClaimTTL {
			return domain.Errorf(domain.KindConflictingPendingIntent, "checkout for order %s is already in progress", orderID)
		}
		rec.Metadata.CheckoutStartedAt = &now
		claimed = true
		return repos.Payments.Update(ctx, rec)
	})
	if err != nil {
		return nil, false, err
	}
	return out, claimed, nil
}

// releaseCheckout drops a claim after a failed gateway call so a retry can
// proceed at once.
func (s *paymentService) releaseCheckout(ctx context.Context, orderID string) {
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		rec, err := repos.Payments.GetForUpdate(ctx, domain.LookupKey{OrderID: orderID})
		if err != nil {
			return err
		}
		if rec.Metadata.CheckoutStartedAt == nil {
			return nil
		}
		rec.Metadata.CheckoutStartedAt = nil
		return repos.Payments.Update(ctx, rec)
	})
	if err != nil {
		s.log.Warn("failed to release checkout claim", "order_id", orderID, "error", err)
	}
}

// attach stores gateway-issued references on the intent after the gateway
// call. The first reference wins: a record that already has one keeps it and
// ref is logged as orphaned.
func (s *paymentService) attach(ctx context.Context, orderID, ref string, fn func(rec *domain.PaymentRecord)) (*domain.PaymentRecord, error) {
	var out *domain.PaymentRecord
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		rec, err := repos.Payments.GetForUpdate(ctx, domain.LookupKey{OrderID: orderID})
		if err != nil {
			return err
		}
		out = rec
		if rec.HasProviderRef() {
			s.log.Warn("orphaned gateway reference, keeping the stored one",
				"order_id", orderID, "record_id", rec.ID, "orphan_ref", ref,
				"invoice_id", rec.InvoiceID, "payment_id", rec.PaymentID)
			return nil
		}
		fn(rec)
		rec.Metadata.CheckoutStartedAt = nil
		return repos.Payments.Update(ctx, rec)
	})
	return out, err
}

func checkoutFromRecord(rec *domain.PaymentRecord) *Checkout {
	return &Checkout{
		Record:        rec,
		InvoiceID:     rec.InvoiceID,
		PaymentID:     rec.PaymentID,
		OrderID:       rec.OrderID,
		PaymentURL:    rec.InvoiceURL,
		PayAddress:    rec.PayAddress,
		PayAmount:     rec.PayAmount,
		Amount:        rec.Amount,
		Currency:      rec.Currency,
		PayCurrency:   rec.PayCurrency,
		Tier:          rec.GrantedTier,
		PaymentStatus: string(rec.Status),
	}
}

func (s *paymentService) invoiceFor(ctx context.Context, rec *domain.PaymentRecord, customerEmail string) (*Checkout, error) {
	if rec.HasProviderRef() {
		return checkoutFromRecord(rec), nil
	}
	rec, claimed, err := s.claimCheckout(ctx, rec.OrderID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return checkoutFromRecord(rec), nil
	}

	inv, err := s.gateway.CreateInvoice(ctx, gateway.InvoiceRequest{
		PriceAmount:      rec.Amount,
		PriceCurrency:    strings.ToLower(rec.Currency),
		PayCurrency:      strings.ToLower(rec.PayCurrency),
		OrderID:          rec.OrderID,
		OrderDescription: rec.Description,
		IPNCallbackURL:   s.cfg.IPNCallbackURL,
		SuccessURL:       s.cfg.SuccessURL,
		CancelURL:        s.cfg.CancelURL,
		CustomerEmail:    customerEmail,
	})
	if err != nil {
		s.log.Error("invoice creation failed, intent kept for retry", "order_id", rec.OrderID, "record_id", rec.ID, "error", err)
		s.releaseCheckout(ctx, rec.OrderID)
		return nil, err
	}

	rec, err = s.attach(ctx, rec.OrderID, inv.ID.String(), func(r *domain.PaymentRecord) {
		r.InvoiceID = inv.ID.String()
		r.InvoiceURL = inv.InvoiceURL
		r.PayAddress = inv.PayAddress
		r.Metadata.InvoiceResponse = inv.Raw
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("invoice created", "order_id", rec.OrderID, "invoice_id", rec.InvoiceID)
	return checkoutFromRecord(rec), nil
}

func (s *paymentService) CreateInvoice(ctx context.Context, memberID string, in CheckoutInput) (*Checkout, error) {
	in, err := s.checkoutRequest(memberID, in)
	if err != nil {
		return nil, err
	}
	rec, err := s.CreateIntent(ctx, IntentInput{
		MemberID:    memberID,
		Amount:      in.Amount,
		Currency:    in.Currency,
		PayCurrency: in.PayCurrency,
		OrderID:     in.OrderID,
		Description: in.Description,
	})
	if err != nil {
		return nil, err
	}
	return s.invoiceFor(ctx, rec, in.CustomerEmail)
}

// CreateOrder starts a direct payment: the gateway returns a deposit address
// instead of a hosted invoice page.
func (s *paymentService) CreateOrder(ctx context.Context, memberID string, in CheckoutInput) (*Checkout, error) {
	in, err := s.checkoutRequest(memberID, in)
	if err != nil {
		return nil, err
	}
	if in.PayCurrency == "" {
		return nil, domain.Errorf(domain.KindValidation, "payCurrency is required")
	}
	rec, err := s.CreateIntent(ctx, IntentInput{
		MemberID:    memberID,
		Amount:      in.Amount,
		Currency:    in.Currency,
		PayCurrency: in.PayCurrency,
		OrderID:     in.OrderID,
		Description: in.Description,
	})
	if err != nil {
		return nil, err
	}
	if rec.HasProviderRef() {
		return checkoutFromRecord(rec), nil
	}
	rec, claimed, err := s.claimCheckout(ctx, rec.OrderID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return checkoutFromRecord(rec), nil
	}

	p, err := s.gateway.CreatePayment(ctx, gateway.PaymentRequest{
		PriceAmount:      rec.Amount,
		PriceCurrency:    strings.ToLower(rec.Currency),
		PayCurrency:      strings.ToLower(rec.PayCurrency),
		OrderID:          rec.OrderID,
		OrderDescription: rec.Description,
		IPNCallbackURL:   s.cfg.IPNCallbackURL,
	})
	if err != nil {
		s.log.Error("payment creation failed, intent kept for retry", "order_id", rec.OrderID, "record_id", rec.ID, "error", err)
		s.releaseCheckout(ctx, rec.OrderID)
		return nil, err
	}

	rec, err = s.attach(ctx, rec.OrderID, p.PaymentID.String(), func(r *domain.PaymentRecord) {
		r.PaymentID = p.PaymentID.String()
		r.InvoiceID = p.InvoiceID.String()
		r.PayAddress = p.PayAddress
		r.PayAmount = float64(p.PayAmount)
		r.Metadata.PaymentResponse = p.Raw
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("payment created", "order_id", rec.OrderID, "payment_id", rec.PaymentID)
	return checkoutFromRecord(rec), nil
}

// Subscribe starts an invoice for a tier subscription. A pending subscription
// intent the gateway never saw is reused; one with a live invoice conflicts.
func (s *paymentService) Subscribe(ctx context.Context, memberID string, tier domain.Tier, payCurrency string) (*Checkout, error) {
	if tier == "" {
		tier = domain.TierPremium
	}
	if _, ok := domain.ParseTier(string(tier)); !ok {
		return nil, domain.Errorf(domain.KindValidation, "invalid subscription tier %q", tier)
	}
	price, _ := domain.SubscriptionPrice(tier)
	if payCurrency == "" {
		payCurrency = defaultPayCurrency
	}
	purpose := domain.SubscriptionPurpose(tier)

	repos := s.store.Repositories()
	member, err := repos.Members.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	orderID := fmt.Sprintf("subscription_%s_%s_%s", memberID, tier, s.newSuffix())
	pending, err := repos.Payments.FindPendingByPurpose(ctx, memberID, purpose)
	switch {
	case err == nil && pending.HasProviderRef():
		return nil, domain.Errorf(domain.KindConflictingPendingIntent,
			"subscription order %s is still awaiting payment", pending.OrderID)
	case err == nil:
		orderID = pending.OrderID
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	rec, err := s.CreateIntent(ctx, IntentInput{
		MemberID:    memberID,
		Amount:      price,
		Currency:    defaultCurrency,
		PayCurrency: payCurrency,
		OrderID:     orderID,
		Purpose:     purpose,
		Description: fmt.Sprintf("%s subscription", tier),
	})
	if err != nil {
		return nil, err
	}

	checkout, err := s.invoiceFor(ctx, rec, member.Email)
	if err != nil {
		return nil, err
	}
	checkout.Tier = tier
	return checkout, nil
}

// pollReport asks the gateway for the current status of rec.
func (s *paymentService) pollReport(ctx context.Context, rec *domain.PaymentRecord) (StatusReport, error) {
	report := StatusReport{Source: domain.SourcePoll, ObservedAt: s.now()}
	if rec.PaymentID != "" {
		p, err := s.gateway.GetPaymentStatus(ctx, rec.PaymentID)
		if err != nil {
			return report, err
		}
		report.Key = domain.LookupKey{PaymentID: rec.PaymentID}
		report.Status = p.PaymentStatus
		report.RawPayload = p.Raw
		report.ReceivedAmount = float64(p.ActuallyPaid)
		report.ReceivedCurrency = p.PayCurrency
		report.InvoiceID = p.InvoiceID.String()
		return report, nil
	}
	if rec.InvoiceID != "" {
		st, err := s.gateway.GetInvoiceStatus(ctx, rec.InvoiceID)
		if err != nil {
			return report, err
		}
		report.Key = domain.LookupKey{InvoiceID: rec.InvoiceID}
		report.Status = st.PaymentStatus
		report.RawPayload = st.Raw
		report.ReceivedAmount = st.ActuallyPaid
		report.ReceivedCurrency = st.PayCurrency
		return report, nil
	}
	return report, domain.Errorf(domain.KindValidation, "order %s has no gateway reference yet", rec.OrderID)
}

// refresh polls the gateway for rec. Polls never surface illegal transitions;
// they are already recorded in the event history.
func (s *paymentService) refresh(ctx context.Context, rec *domain.PaymentRecord) (*StatusResult, error) {
	report, err := s.pollReport(ctx, rec)
	if err != nil {
		return nil, err
	}
	res, err := s.RecordExternalStatus(ctx, report)
	if errors.Is(err, domain.ErrIllegalTransition) {
		return res, nil
	}
	return res, err
}

func (s *paymentService) RefreshInvoiceStatus(ctx context.Context, invoiceID string) (*domain.PaymentRecord, error) {
	rec, err := s.Lookup(ctx, domain.LookupKey{InvoiceID: invoiceID})
	if err != nil {
		return nil, err
	}
	res, err := s.refresh(ctx, rec)
	if err != nil {
		return nil, err
	}
	return res.Record, nil
}

func (s *paymentService) RefreshPaymentStatus(ctx context.Context, paymentID string) (*domain.PaymentRecord, error) {
	rec, err := s.Lookup(ctx, domain.LookupKey{PaymentID: paymentID})
	if err != nil {
		return nil, err
	}
	res, err := s.refresh(ctx, rec)
	if err != nil {
		return nil, err
	}
	return res.Record, nil
}

// RefreshPending polls every pending record created before olderThan that the
// gateway knows about.
func (s *paymentService) RefreshPending(ctx context.Context, olderThan time.Time, limit int) (RefreshSummary, error) {
	var summary RefreshSummary
	pending, err := s.store.Repositories().Payments.ListPending(ctx, olderThan, limit)
	if err != nil {
		return summary, err
	}
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Checked++
		res, err := s.refresh(ctx, &pending[i])
		if err != nil {
			summary.Failed++
			s.log.Warn("pending payment refresh failed", "order_id", pending[i].OrderID, "error", err)
			continue
		}
		if res.Outcome == domain.OutcomeApplied {
			summary.Changed++
		}
	}
	return summary, nil
}

func (s *paymentService) ListMemberPayments(ctx context.Context, memberID string, page, limit int32) ([]domain.PaymentRecord, int32, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return s.store.Repositories().Payments.ListByMember(ctx, memberID, page, limit)
}

func (s *paymentService) Statistics(ctx context.Context) (*domain.PaymentStatistics, error) {
	return s.store.Repositories().Payments.Statistics(ctx)
}

func (s *paymentService) AvailableCurrencies(ctx context.Context) ([]string, error) {
	return s.gateway.GetAvailableCurrencies(ctx)
}

func (s *paymentService) Estimate(ctx context.Context, amount float64, from, to string) (*gateway.Estimate, error) {
	return s.gateway.GetEstimatedPrice(ctx, gateway.EstimateRequest{Amount: amount, CurrencyFrom: from, CurrencyTo: to})
}

func (s *paymentService) MinimumAmount(ctx context.Context, from, to string) (*gateway.MinimumAmount, error) {
	return s.gateway.GetMinimumAmount(ctx, from, to)
}

func (s *paymentService) ExchangeRate(ctx context.Context, from, to string) (*gateway.ExchangeRate, error) {
	return s.gateway.GetExchangeRate(ctx, from, to)
}
