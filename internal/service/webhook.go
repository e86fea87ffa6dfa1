package service

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"teamnet-backend/internal/domain"
)

// notification is the part of an IPN callback the ledger reads.
type notification struct {
	OrderID      string
	PaymentID    string
	InvoiceID    string
	Status       string
	ObservedAt   time.Time
	ActuallyPaid float64
	PayCurrency  string
}

func parseNotification(body []byte) (*notification, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, domain.Wrap(domain.KindValidation, err, "webhook body is not a JSON object")
	}

	n := &notification{
		OrderID:     stringField(raw["order_id"]),
		PaymentID:   stringField(raw["payment_id"]),
		InvoiceID:   stringField(raw["invoice_id"]),
		Status:      stringField(raw["payment_status"]),
		PayCurrency: stringField(raw["pay_currency"]),
	}
	if n.Status == "" {
		return nil, domain.Errorf(domain.KindValidation, "webhook carries no payment_status")
	}
	if v, err := strconv.ParseFloat(stringField(raw["actually_paid"]), 64); err == nil {
		n.ActuallyPaid = v
	}
	for _, field := range []string{"outcome_at", "updated_at"} {
		if t, ok := timeField(raw[field]); ok {
			n.ObservedAt = t
			break
		}
	}
	return n, nil
}

// lookupKeys lists the record keys in preference order.
func (n *notification) lookupKeys() []domain.LookupKey {
	var keys []domain.LookupKey
	if n.OrderID != "" {
		keys = append(keys, domain.LookupKey{OrderID: n.OrderID})
	}
	if n.PaymentID != "" {
		keys = append(keys, domain.LookupKey{PaymentID: n.PaymentID})
	}
	if n.InvoiceID != "" {
		keys = append(keys, domain.LookupKey{InvoiceID: n.InvoiceID})
	}
	return keys
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// timeField accepts ISO-8601 strings and epoch milliseconds.
func timeField(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return time.Time{}, false
		}
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts.UTC(), true
		}
		if ms, err := strconv.ParseInt(t, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
	case json.Number:
		if ms, err := t.Int64(); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
		if f, err := t.Float64(); err == nil {
			return time.UnixMilli(int64(f)).UTC(), true
		}
	}
	return time.Time{}, false
}
