package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveWebhook("applied")
	m.ObserveWebhook("applied")
	m.ObserveWebhook("signature_invalid")
	m.ObserveEntitlement("grant", "Premium")
	m.ObserveCycleRejected()
	m.ObserveDownline(12, 2)
	m.ObserveGatewayCall("CreateInvoice", time.Now(), errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.WebhooksTotal.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhooksTotal.WithLabelValues("signature_invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntitlementsTotal.WithLabelValues("grant", "Premium")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CycleRejectionsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CycleWarningsTotal))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveWebhook("applied")
		m.ObserveTransition("pending", "finished", "webhook")
		m.ObserveJob("x", nil)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveWebhook("applied")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "teamnet_payment_webhooks_total")
}
