package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"teamnet-backend/internal/domain"
	"teamnet-backend/internal/service"
)

const (
	signatureHeader       = "x-nowpayments-sig"
	legacySignatureHeader = "x-signature"
)

type estimateRequest struct {
	Amount       float64 `json:"amount"`
	CurrencyFrom string  `json:"currency_from"`
	CurrencyTo   string  `json:"currency_to"`
}

type checkoutRequest struct {
	PriceAmount      float64 `json:"price_amount"`
	PriceCurrency    string  `json:"price_currency"`
	PayCurrency      string  `json:"pay_currency"`
	OrderID          string  `json:"order_id"`
	OrderDescription string  `json:"order_description"`
	CustomerEmail    string  `json:"customer_email"`
}

func (c checkoutRequest) input() service.CheckoutInput {
	return service.CheckoutInput{
		Amount:        c.PriceAmount,
		Currency:      c.PriceCurrency,
		PayCurrency:   c.PayCurrency,
		OrderID:       c.OrderID,
		Description:   c.OrderDescription,
		CustomerEmail: c.CustomerEmail,
	}
}

type subscribeRequest struct {
	SubscriptionTier string `json:"subscriptionTier"`
	PayCurrency      string `json:"pay_currency"`
}

type webhookResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Outcome string `json:"outcome"`
}

type pagination struct {
	Page  int32 `json:"page"`
	Limit int32 `json:"limit"`
	Total int32 `json:"total"`
	Pages int32 `json:"pages"`
}

type paymentsPage struct {
	Payments   []domain.PaymentRecord `json:"payments"`
	Pagination pagination             `json:"pagination"`
}

func queryOr(r *http.Request, key, fallback string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return fallback
}

func (h *handler) currencies(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Payments.AvailableCurrencies(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"currencies": list})
}

func (h *handler) estimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Amount <= 0 || req.CurrencyFrom == "" || req.CurrencyTo == "" {
		writeError(w, domain.Errorf(domain.KindValidation, "amount, currency_from and currency_to are required"))
		return
	}
	est, err := h.svc.Payments.Estimate(r.Context(), req.Amount, req.CurrencyFrom, req.CurrencyTo)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}

func (h *handler) minimumAmount(w http.ResponseWriter, r *http.Request) {
	minimum, err := h.svc.Payments.MinimumAmount(r.Context(), queryOr(r, "from", "USD"), queryOr(r, "to", "BTC"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, minimum)
}

func (h *handler) exchangeRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.svc.Payments.ExchangeRate(r.Context(), queryOr(r, "from", "USD"), queryOr(r, "to", "BTC"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

// webhook receives IPN callbacks. The raw body is passed through untouched so
// the signature is checked against exactly what the gateway sent.
func (h *handler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, domain.Wrap(domain.KindValidation, err, "failed to read webhook body"))
		return
	}
	sig := r.Header.Get(signatureHeader)
	if sig == "" {
		sig = r.Header.Get(legacySignatureHeader)
	}

	res, err := h.svc.Payments.HandleWebhook(r.Context(), body, sig)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{
		OrderID: res.Record.OrderID,
		Status:  string(res.Record.Status),
		Outcome: res.Outcome,
	})
}

func (h *handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller := CallerFromContext(r.Context())
	in := req.input()
	if in.CustomerEmail == "" {
		in.CustomerEmail = caller.Email
	}
	out, err := h.svc.Payments.CreateInvoice(r.Context(), caller.UserID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	out, err := h.svc.Payments.CreateOrder(r.Context(), CallerFromContext(r.Context()).UserID, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *handler) subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	// An empty body subscribes to the default tier.
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	out, err := h.svc.Payments.Subscribe(r.Context(), CallerFromContext(r.Context()).UserID,
		domain.Tier(req.SubscriptionTier), req.PayCurrency)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// ownedRecord loads a record visible to the caller. Records of other members
// are reported as missing.
func (h *handler) ownedRecord(r *http.Request, key domain.LookupKey) (*domain.PaymentRecord, error) {
	rec, err := h.svc.Payments.Lookup(r.Context(), key)
	if err != nil {
		return nil, err
	}
	caller := CallerFromContext(r.Context())
	if !caller.IsAdmin() && rec.MemberID != caller.UserID {
		return nil, domain.Errorf(domain.KindNotFound, "payment not found")
	}
	return rec, nil
}

// refreshed polls the gateway for rec. When the gateway is down the stored
// record is returned as is.
func (h *handler) refreshed(r *http.Request, rec *domain.PaymentRecord, poll func() (*domain.PaymentRecord, error)) (*domain.PaymentRecord, error) {
	fresh, err := poll()
	if errors.Is(err, domain.ErrGatewayUnavailable) {
		h.log.Warn("gateway poll failed, serving stored status", "order_id", rec.OrderID, "error", err)
		return rec, nil
	}
	return fresh, err
}

func (h *handler) invoiceStatus(w http.ResponseWriter, r *http.Request) {
	invoiceID := mux.Vars(r)["invoiceId"]
	rec, err := h.ownedRecord(r, domain.LookupKey{InvoiceID: invoiceID})
	if err == nil {
		rec, err = h.refreshed(r, rec, func() (*domain.PaymentRecord, error) {
			return h.svc.Payments.RefreshInvoiceStatus(r.Context(), invoiceID)
		})
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) paymentStatus(w http.ResponseWriter, r *http.Request) {
	paymentID := mux.Vars(r)["paymentId"]
	rec, err := h.ownedRecord(r, domain.LookupKey{PaymentID: paymentID})
	if err == nil {
		rec, err = h.refreshed(r, rec, func() (*domain.PaymentRecord, error) {
			return h.svc.Payments.RefreshPaymentStatus(r.Context(), paymentID)
		})
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) orderByID(w http.ResponseWriter, r *http.Request) {
	rec, err := h.ownedRecord(r, domain.LookupKey{OrderID: mux.Vars(r)["orderId"]})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) myPayments(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.ParseInt(r.URL.Query().Get("page"), 10, 32)
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 32)
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	records, total, err := h.svc.Payments.ListMemberPayments(r.Context(),
		CallerFromContext(r.Context()).UserID, int32(page), int32(limit))
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.PaymentRecord{}
	}
	pages := (total + int32(limit) - 1) / int32(limit)
	writeJSON(w, http.StatusOK, paymentsPage{
		Payments:   records,
		Pagination: pagination{Page: int32(page), Limit: int32(limit), Total: total, Pages: pages},
	})
}

func (h *handler) paymentStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Payments.Statistics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
