package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"teamnet-backend/internal/cache"
	"teamnet-backend/internal/domain"
	"teamnet-backend/internal/events"
	"teamnet-backend/internal/gateway"
	"teamnet-backend/internal/logger"
	"teamnet-backend/internal/notify"
	"teamnet-backend/internal/repository/memory"
)

const testIPNSecret = "ipn-secret"

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// MockGateway is a testify mock of PaymentGateway. Signature checks use the
// real verifier with testIPNSecret.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) GetAvailableCurrencies(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGateway) GetEstimatedPrice(ctx context.Context, req gateway.EstimateRequest) (*gateway.Estimate, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Estimate), args.Error(1)
}

func (m *MockGateway) CreateInvoice(ctx context.Context, req gateway.InvoiceRequest) (*gateway.Invoice, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Invoice), args.Error(1)
}

func (m *MockGateway) CreatePayment(ctx context.Context, req gateway.PaymentRequest) (*gateway.Payment, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Payment), args.Error(1)
}

func (m *MockGateway) GetInvoiceStatus(ctx context.Context, invoiceID string) (*gateway.InvoiceStatus, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.InvoiceStatus), args.Error(1)
}

func (m *MockGateway) GetPaymentStatus(ctx context.Context, paymentID string) (*gateway.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Payment), args.Error(1)
}

func (m *MockGateway) GetMinimumAmount(ctx context.Context, from, to string) (*gateway.MinimumAmount, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.MinimumAmount), args.Error(1)
}

func (m *MockGateway) GetExchangeRate(ctx context.Context, from, to string) (*gateway.ExchangeRate, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.ExchangeRate), args.Error(1)
}

func (m *MockGateway) VerifyIPNSignature(body []byte, signature string) error {
	return gateway.VerifySignature(body, signature, testIPNSecret)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evts ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evts...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) ofType(t events.EventType) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type recordingMailer struct {
	mu        sync.Mutex
	activated []string
	revoked   []string
	expired   []string
	reminders []string
}

func (m *recordingMailer) SendSubscriptionActivated(ctx context.Context, to notify.Recipient, tier string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activated = append(m.activated, to.Email)
	return nil
}

func (m *recordingMailer) SendSubscriptionRevoked(ctx context.Context, to notify.Recipient, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked = append(m.revoked, to.Email)
	return nil
}

func (m *recordingMailer) SendSubscriptionExpired(ctx context.Context, to notify.Recipient, tier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired = append(m.expired, to.Email)
	return nil
}

func (m *recordingMailer) SendExpiryReminder(ctx context.Context, to notify.Recipient, tier string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reminders = append(m.reminders, to.Email)
	return nil
}

func seedMember(t *testing.T, store *memory.Store, id string) {
	t.Helper()
	require.NoError(t, store.Repositories().Members.Create(context.Background(), &domain.Member{
		ID:    id,
		Email: id + "@test.com",
		Name:  id,
		Role:  domain.RoleStandard,
	}))
}

type paymentFixture struct {
	store        *memory.Store
	gateway      *MockGateway
	publisher    *recordingPublisher
	mailer       *recordingMailer
	entitlements *entitlementService
	payments     *paymentService
}

func newPaymentFixture(t *testing.T, members ...string) *paymentFixture {
	t.Helper()
	store := memory.NewStore()
	for _, id := range members {
		seedMember(t, store, id)
	}
	gw := new(MockGateway)
	pub := &recordingPublisher{}
	mailer := &recordingMailer{}

	ent := NewEntitlementService(store, pub, mailer, cache.NewMemoryCache(), nil, logger.Nop()).(*entitlementService)
	ent.now = fixedClock(testNow)

	svc, err := NewPaymentService(store, gw, ent, pub, nil, PaymentConfig{
		IPNCallbackURL: "https://api.teamnet.test/api/payments/webhook",
	}, logger.Nop())
	require.NoError(t, err)
	ps := svc.(*paymentService)
	ps.now = fixedClock(testNow)

	return &paymentFixture{
		store:        store,
		gateway:      gw,
		publisher:    pub,
		mailer:       mailer,
		entitlements: ent,
		payments:     ps,
	}
}

func (f *paymentFixture) setNow(t time.Time) {
	f.payments.now = fixedClock(t)
	f.entitlements.now = fixedClock(t)
}

func (f *paymentFixture) member(t *testing.T, id string) *domain.Member {
	t.Helper()
	m, err := f.store.Repositories().Members.GetByID(context.Background(), id)
	require.NoError(t, err)
	return m
}

func (f *paymentFixture) record(t *testing.T, orderID string) *domain.PaymentRecord {
	t.Helper()
	rec, err := f.store.Repositories().Payments.Get(context.Background(), domain.LookupKey{OrderID: orderID})
	require.NoError(t, err)
	return rec
}

func signed(t *testing.T, body string) ([]byte, string) {
	t.Helper()
	sig, err := gateway.Sign([]byte(body), testIPNSecret)
	require.NoError(t, err)
	return []byte(body), sig
}
