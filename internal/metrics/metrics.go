// Package metrics exposes Prometheus instruments for payments, entitlements
// and hierarchy traversal.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	WebhooksTotal          *prometheus.CounterVec
	StatusTransitionsTotal *prometheus.CounterVec
	EntitlementsTotal      *prometheus.CounterVec
	CycleRejectionsTotal   prometheus.Counter
	CycleWarningsTotal     prometheus.Counter
	DownlineNodes          prometheus.Histogram
	GatewayRequestDuration *prometheus.HistogramVec
	JobRunsTotal           *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		WebhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teamnet_payment_webhooks_total",
				Help: "Payment gateway callbacks by result",
			},
			[]string{"result"},
		),

		StatusTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teamnet_payment_status_transitions_total",
				Help: "Applied payment status transitions",
			},
			[]string{"from", "to", "source"},
		),

		EntitlementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teamnet_entitlements_total",
				Help: "Subscription entitlement changes",
			},
			[]string{"action", "tier"},
		),

		CycleRejectionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "teamnet_sponsor_cycle_rejections_total",
				Help: "Sponsor changes rejected because they would create a cycle",
			},
		),

		CycleWarningsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "teamnet_downline_cycle_warnings_total",
				Help: "Revisited nodes reported while traversing a downline",
			},
		),

		DownlineNodes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "teamnet_downline_nodes",
				Help:    "Number of nodes returned per downline traversal",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),

		GatewayRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "teamnet_gateway_request_duration_seconds",
				Help:    "Payment gateway request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "outcome"},
		),

		JobRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teamnet_job_runs_total",
				Help: "Scheduled job executions by result",
			},
			[]string{"job", "result"},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveWebhook(result string) {
	if m == nil {
		return
	}
	m.WebhooksTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveTransition(from, to, source string) {
	if m == nil {
		return
	}
	m.StatusTransitionsTotal.WithLabelValues(from, to, source).Inc()
}

func (m *Metrics) ObserveEntitlement(action, tier string) {
	if m == nil {
		return
	}
	m.EntitlementsTotal.WithLabelValues(action, tier).Inc()
}

func (m *Metrics) ObserveCycleRejected() {
	if m == nil {
		return
	}
	m.CycleRejectionsTotal.Inc()
}

func (m *Metrics) ObserveDownline(nodes, cycleWarnings int) {
	if m == nil {
		return
	}
	m.DownlineNodes.Observe(float64(nodes))
	if cycleWarnings > 0 {
		m.CycleWarningsTotal.Add(float64(cycleWarnings))
	}
}

func (m *Metrics) ObserveGatewayCall(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.GatewayRequestDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveJob(job string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.JobRunsTotal.WithLabelValues(job, result).Inc()
}
