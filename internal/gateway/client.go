// Package gateway is the NOWPayments REST client.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"teamnet-backend/internal/domain"
	"teamnet-backend/internal/logger"
)

const serviceName = "nowpayments"

const currenciesCacheKey = "nowpayments:currencies"

// Cache stores small provider responses between calls.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Observer receives the outcome of every provider call.
type Observer interface {
	ObserveGatewayCall(operation string, start time.Time, err error)
}

type Config struct {
	BaseURL          string
	APIKey           string
	IPNSecret        string
	Timeout          time.Duration
	CurrencyCacheTTL time.Duration
}

type Client struct {
	baseURL    string
	apiKey     string
	ipnSecret  string
	cacheTTL   time.Duration
	httpClient *http.Client
	cache      Cache
	observer   Observer
	log        logger.Logger
}

type Option func(*Client)

func WithCache(c Cache) Option {
	return func(cl *Client) { cl.cache = c }
}

func WithObserver(o Observer) Option {
	return func(cl *Client) { cl.observer = o }
}

func WithHTTPClient(h *http.Client) Option {
	return func(cl *Client) { cl.httpClient = h }
}

func NewClient(cfg Config, log logger.Logger, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		ipnSecret: cfg.IPNSecret,
		cacheTTL:  cfg.CurrencyCacheTTL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: logger.Module(log, "gateway"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doRequest sends a JSON request and decodes the response into out. It returns
// the raw response body.
func (c *Client) doRequest(ctx context.Context, operation, method, endpoint string, query url.Values, body, out any) (raw []byte, err error) {
	start := time.Now()
	logger.ExternalServiceCall(c.log, serviceName, operation, "method", method, "endpoint", endpoint)
	defer func() {
		logger.ExternalServiceResult(c.log, serviceName, operation, err, "duration", time.Since(start))
		if c.observer != nil {
			c.observer.ObserveGatewayCall(operation, start, err)
		}
	}()

	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.Wrap(domain.KindGatewayUnavailable, err, "payment gateway unreachable")
	}
	defer resp.Body.Close()

	raw, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.Wrap(domain.KindGatewayUnavailable, err, "failed to read gateway response")
	}

	if resp.StatusCode >= 500 {
		return nil, domain.Errorf(domain.KindGatewayUnavailable, "payment gateway returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		var apiErr errorResponse
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return nil, domain.Errorf(domain.KindValidation, "payment gateway rejected request: %s", msg)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, domain.Wrap(domain.KindGatewayUnavailable, err, "malformed gateway response")
		}
	}
	return raw, nil
}

// GetAvailableCurrencies lists the pay currencies the provider accepts. The
// list is cached when a cache is configured; cache failures fall through to
// the provider.
func (c *Client) GetAvailableCurrencies(ctx context.Context) ([]string, error) {
	if c.cache != nil && c.cacheTTL > 0 {
		cached, ok, err := c.cache.Get(ctx, currenciesCacheKey)
		if err != nil {
			c.log.Warn("currency cache read failed", "error", err)
		} else if ok {
			var list []string
			if json.Unmarshal([]byte(cached), &list) == nil {
				return list, nil
			}
		}
	}

	var resp currenciesResponse
	if _, err := c.doRequest(ctx, "GetAvailableCurrencies", http.MethodGet, "/currencies", nil, nil, &resp); err != nil {
		return nil, err
	}

	if c.cache != nil && c.cacheTTL > 0 {
		if data, err := json.Marshal(resp.Currencies); err == nil {
			if err := c.cache.Set(ctx, currenciesCacheKey, string(data), c.cacheTTL); err != nil {
				c.log.Warn("currency cache write failed", "error", err)
			}
		}
	}
	return resp.Currencies, nil
}

func (c *Client) GetEstimatedPrice(ctx context.Context, req EstimateRequest) (*Estimate, error) {
	if req.Amount <= 0 || req.CurrencyFrom == "" || req.CurrencyTo == "" {
		return nil, domain.Errorf(domain.KindValidation, "amount, currency_from and currency_to are required")
	}
	q := url.Values{}
	q.Set("amount", strconv.FormatFloat(req.Amount, 'f', -1, 64))
	q.Set("currency_from", strings.ToLower(req.CurrencyFrom))
	q.Set("currency_to", strings.ToLower(req.CurrencyTo))

	var out Estimate
	if _, err := c.doRequest(ctx, "GetEstimatedPrice", http.MethodGet, "/estimate", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	var out Invoice
	raw, err := c.doRequest(ctx, "CreateInvoice", http.MethodPost, "/invoice", nil, req, &out)
	if err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, domain.Errorf(domain.KindGatewayUnavailable, "gateway returned an invoice without id")
	}
	out.Raw = raw
	return &out, nil
}

func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error) {
	var out Payment
	raw, err := c.doRequest(ctx, "CreatePayment", http.MethodPost, "/payment", nil, req, &out)
	if err != nil {
		return nil, err
	}
	if out.PaymentID == "" {
		return nil, domain.Errorf(domain.KindGatewayUnavailable, "gateway returned a payment without id")
	}
	out.Raw = raw
	return &out, nil
}

func (c *Client) GetPaymentStatus(ctx context.Context, paymentID string) (*Payment, error) {
	if paymentID == "" {
		return nil, domain.Errorf(domain.KindValidation, "payment id is required")
	}
	var out Payment
	raw, err := c.doRequest(ctx, "GetPaymentStatus", http.MethodGet, "/payment/"+url.PathEscape(paymentID), nil, nil, &out)
	if err != nil {
		return nil, err
	}
	out.Raw = raw
	return &out, nil
}

// GetInvoiceStatus reports the most recently updated payment made against an
// invoice. An invoice nobody has paid yet is "waiting".
func (c *Client) GetInvoiceStatus(ctx context.Context, invoiceID string) (*InvoiceStatus, error) {
	if invoiceID == "" {
		return nil, domain.Errorf(domain.KindValidation, "invoice id is required")
	}
	q := url.Values{}
	q.Set("invoiceId", invoiceID)
	q.Set("limit", "1")
	q.Set("sortBy", "updated_at")
	q.Set("orderBy", "desc")

	var list paymentList
	raw, err := c.doRequest(ctx, "GetInvoiceStatus", http.MethodGet, "/payment/", q, nil, &list)
	if err != nil {
		return nil, err
	}
	status := &InvoiceStatus{InvoiceID: invoiceID, PaymentStatus: "waiting", Raw: raw}
	if len(list.Data) > 0 {
		p := list.Data[0]
		status.PaymentStatus = p.PaymentStatus
		status.ActuallyPaid = float64(p.ActuallyPaid)
		status.PayCurrency = p.PayCurrency
	}
	return status, nil
}

func (c *Client) GetMinimumAmount(ctx context.Context, from, to string) (*MinimumAmount, error) {
	q := url.Values{}
	q.Set("currency_from", strings.ToLower(from))
	q.Set("currency_to", strings.ToLower(to))

	var out MinimumAmount
	if _, err := c.doRequest(ctx, "GetMinimumAmount", http.MethodGet, "/min-amount", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetExchangeRate prices one unit of from in to.
func (c *Client) GetExchangeRate(ctx context.Context, from, to string) (*ExchangeRate, error) {
	est, err := c.GetEstimatedPrice(ctx, EstimateRequest{Amount: 1, CurrencyFrom: from, CurrencyTo: to})
	if err != nil {
		return nil, err
	}
	return &ExchangeRate{
		From: strings.ToUpper(from),
		To:   strings.ToUpper(to),
		Rate: float64(est.EstimatedAmount),
	}, nil
}

// VerifyIPNSignature checks an IPN body against its signature header using
// the configured secret.
func (c *Client) VerifyIPNSignature(body []byte, signature string) error {
	if c.ipnSecret == "" {
		return domain.Errorf(domain.KindSignatureInvalid, "ipn secret is not configured")
	}
	return VerifySignature(body, signature, c.ipnSecret)
}
