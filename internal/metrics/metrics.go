// Package metrics exposes Prometheus collectors for bookings, payments and the HTTP layer.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tour_booking"

// Metrics holds the application collectors
type Metrics struct {
	BookingsCreated   prometheus.Counter
	PricingAnomalies  prometheus.Counter
	PaymentOutcomes   *prometheus.CounterVec
	GatewayRequests   *prometheus.CounterVec
	SweeperResolved   *prometheus.CounterVec
	EventsPublished   *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	GatewayLatency    *prometheus.HistogramVec
	InvoicesGenerated prometheus.Counter
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BookingsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Bookings opened with a payment session.",
		}),
		PricingAnomalies: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_anomalies_total",
			Help:      "Bookings whose guide fee exceeded the discounted amount.",
		}),
		PaymentOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_outcomes_total",
			Help:      "Reconciled payments by outcome.",
		}, []string{"outcome"}),
		GatewayRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Payment gateway calls by operation and result.",
		}, []string{"operation", "result"}),
		SweeperResolved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_resolved_total",
			Help:      "Stale payments resolved by the sweeper, by resulting status.",
		}, []string{"status"}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events handed to the publisher, by type.",
		}, []string{"type"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		GatewayLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Payment gateway latency by operation.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		InvoicesGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_generated_total",
			Help:      "Invoice documents rendered and stored.",
		}),
	}
}

func (m *Metrics) BookingCreated() { m.BookingsCreated.Inc() }

func (m *Metrics) PricingAnomaly() { m.PricingAnomalies.Inc() }

func (m *Metrics) PaymentOutcome(outcome string) { m.PaymentOutcomes.WithLabelValues(outcome).Inc() }

func (m *Metrics) InvoiceGenerated() { m.InvoicesGenerated.Inc() }

func (m *Metrics) StaleResolved(status string) { m.SweeperResolved.WithLabelValues(status).Inc() }

func (m *Metrics) EventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// GatewayCall records one gateway round trip
func (m *Metrics) GatewayCall(operation string, seconds float64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.GatewayRequests.WithLabelValues(operation, result).Inc()
	m.GatewayLatency.WithLabelValues(operation).Observe(seconds)
}

// HTTPRequest records one served request
func (m *Metrics) HTTPRequest(method, route string, status int, seconds float64) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(seconds)
}
