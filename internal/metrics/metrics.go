// Package metrics exposes Prometheus counters for generation traffic and
// metering outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Each instance carries its own
// registry so tests can build one without collisions.
type Metrics struct {
	registry *prometheus.Registry

	GenerationsTotal    *prometheus.CounterVec
	GenerationDuration  *prometheus.HistogramVec
	ProviderFailures    *prometheus.CounterVec
	CreditsConsumed     prometheus.Counter
	BillableUnits       prometheus.Counter
	AdvisoryChargesUSD  prometheus.Counter
	WebhooksTotal       *prometheus.CounterVec
	RateLimitRejections prometheus.Counter
}

// New creates a Metrics instance with all metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		GenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "generations_total",
				Help: "Total number of generation requests",
			},
			[]string{"feature", "status"}, // description|seo, ok|error
		),
		GenerationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "generation_duration_seconds",
				Help:    "End-to-end generation latency in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"feature"},
		),
		ProviderFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_failures_total",
				Help: "Total number of failed provider attempts",
			},
			[]string{"provider"},
		),
		CreditsConsumed: factory.NewCounter(prometheus.CounterOpts{
			Name: "credits_consumed_total",
			Help: "Total free credits consumed across all shops",
		}),
		BillableUnits: factory.NewCounter(prometheus.CounterOpts{
			Name: "billable_units_total",
			Help: "Total generation units past the free-credit grant",
		}),
		AdvisoryChargesUSD: factory.NewCounter(prometheus.CounterOpts{
			Name: "advisory_charges_usd_total",
			Help: "USD value of charges that would apply under direct billing",
		}),
		WebhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhooks_total",
				Help: "Total number of webhook deliveries processed",
			},
			[]string{"topic", "status"}, // status: ok|invalid|error|unhandled
		),
		RateLimitRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Total number of requests rejected by the per-shop rate limit",
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordGeneration counts one generation request and its latency.
func (m *Metrics) RecordGeneration(feature, status string, seconds float64) {
	m.GenerationsTotal.WithLabelValues(feature, status).Inc()
	m.GenerationDuration.WithLabelValues(feature).Observe(seconds)
}

// RecordProviderFailures counts failed attempts from a failover run.
func (m *Metrics) RecordProviderFailures(provider string, count int) {
	if count > 0 {
		m.ProviderFailures.WithLabelValues(provider).Add(float64(count))
	}
}

// RecordMetering counts the credit and billable split of one metered batch.
func (m *Metrics) RecordMetering(creditsUsed, billable int, chargeUSD float64) {
	m.CreditsConsumed.Add(float64(creditsUsed))
	m.BillableUnits.Add(float64(billable))
	m.AdvisoryChargesUSD.Add(chargeUSD)
}

// RecordWebhook counts one webhook delivery.
func (m *Metrics) RecordWebhook(topic, status string) {
	m.WebhooksTotal.WithLabelValues(topic, status).Inc()
}
