package gateway

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FlexibleID decodes provider ids that arrive either as JSON strings or numbers.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexibleID(n.String())
	return nil
}

func (f FlexibleID) String() string {
	return string(f)
}

// FlexibleFloat decodes amounts that arrive either as JSON numbers or numeric strings.
type FlexibleFloat float64

func (f *FlexibleFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" || string(data) == `""` {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = FlexibleFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FlexibleFloat(v)
	return nil
}

type currenciesResponse struct {
	Currencies []string `json:"currencies"`
}

type EstimateRequest struct {
	Amount       float64
	CurrencyFrom string
	CurrencyTo   string
}

type Estimate struct {
	CurrencyFrom    string        `json:"currency_from"`
	AmountFrom      FlexibleFloat `json:"amount_from"`
	CurrencyTo      string        `json:"currency_to"`
	EstimatedAmount FlexibleFloat `json:"estimated_amount"`
}

type MinimumAmount struct {
	CurrencyFrom string        `json:"currency_from"`
	CurrencyTo   string        `json:"currency_to"`
	MinAmount    FlexibleFloat `json:"min_amount"`
}

type ExchangeRate struct {
	From string  `json:"from"`
	To   string  `json:"to"`
	Rate float64 `json:"rate"`
}

// InvoiceRequest is the body of POST /invoice.
type InvoiceRequest struct {
	PriceAmount      float64 `json:"price_amount"`
	PriceCurrency    string  `json:"price_currency"`
	PayCurrency      string  `json:"pay_currency,omitempty"`
	OrderID          string  `json:"order_id"`
	OrderDescription string  `json:"order_description,omitempty"`
	IPNCallbackURL   string  `json:"ipn_callback_url,omitempty"`
	SuccessURL       string  `json:"success_url,omitempty"`
	CancelURL        string  `json:"cancel_url,omitempty"`
	CustomerEmail    string  `json:"customer_email,omitempty"`
}

type Invoice struct {
	ID            FlexibleID    `json:"id"`
	OrderID       string        `json:"order_id"`
	PriceAmount   FlexibleFloat `json:"price_amount"`
	PriceCurrency string        `json:"price_currency"`
	PayCurrency   string        `json:"pay_currency"`
	InvoiceURL    string        `json:"invoice_url"`
	PayAddress    string        `json:"pay_address,omitempty"`
	CreatedAt     string        `json:"created_at,omitempty"`

	// Raw is the undecoded provider response.
	Raw json.RawMessage `json:"-"`
}

// PaymentRequest is the body of POST /payment.
type PaymentRequest struct {
	PriceAmount      float64 `json:"price_amount"`
	PriceCurrency    string  `json:"price_currency"`
	PayCurrency      string  `json:"pay_currency"`
	OrderID          string  `json:"order_id"`
	OrderDescription string  `json:"order_description,omitempty"`
	IPNCallbackURL   string  `json:"ipn_callback_url,omitempty"`
}

// Payment is returned by POST /payment and GET /payment/{id}.
type Payment struct {
	PaymentID       FlexibleID    `json:"payment_id"`
	InvoiceID       FlexibleID    `json:"invoice_id"`
	PaymentStatus   string        `json:"payment_status"`
	PayAddress      string        `json:"pay_address"`
	PriceAmount     FlexibleFloat `json:"price_amount"`
	PriceCurrency   string        `json:"price_currency"`
	PayAmount       FlexibleFloat `json:"pay_amount"`
	ActuallyPaid    FlexibleFloat `json:"actually_paid"`
	PayCurrency     string        `json:"pay_currency"`
	OrderID         string        `json:"order_id"`
	OutcomeAmount   FlexibleFloat `json:"outcome_amount"`
	OutcomeCurrency string        `json:"outcome_currency"`
	UpdatedAt       string        `json:"updated_at,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// InvoiceStatus is the latest payment state observed for an invoice.
type InvoiceStatus struct {
	InvoiceID     string
	PaymentStatus string
	ActuallyPaid  float64
	PayCurrency   string

	Raw json.RawMessage
}

type paymentList struct {
	Data []Payment `json:"data"`
}

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}
