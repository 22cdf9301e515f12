// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atendimento-virtual/server/internal/agent/model"
)

const namespace = "chat"

const (
	UpstreamClassifier = "classifier"
	UpstreamAssistant  = "assistant"
)

// Metrics groups the collectors registered on a private registry, so tests
// can build as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	requests          *prometheus.CounterVec
	sentiments        *prometheus.CounterVec
	policyTiers       *prometheus.CounterVec
	upstreamDuration  *prometheus.HistogramVec
	upstreamErrors    *prometheus.CounterVec
	llmCost           *prometheus.CounterVec
	conversationEvict prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		sentiments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentiment_total",
			Help:      "Classified or supplied sentiment labels.",
		}, []string{"label"}),
		policyTiers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_tier_total",
			Help:      "Response policy tiers applied to assistant calls.",
		}, []string{"tier"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Latency of calls to the classifier and the assistant.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"upstream"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Failed calls to the classifier and the assistant.",
		}, []string{"upstream"}),
		llmCost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_cost_usd_total",
			Help:      "Estimated chat completion cost in USD.",
		}, []string{"model"}),
		conversationEvict: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_evicted_total",
			Help:      "Conversation histories removed after the idle TTL.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.sentiments,
		m.policyTiers,
		m.upstreamDuration,
		m.upstreamErrors,
		m.llmCost,
		m.conversationEvict,
	)
	return m
}

// Registry returns the private registry, e.g. for testutil assertions.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(route string, status int) {
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveSentiment(label model.SentimentLabel) {
	m.sentiments.WithLabelValues(string(label)).Inc()
}

func (m *Metrics) ObservePolicy(tier model.PolicyTier) {
	m.policyTiers.WithLabelValues(string(tier)).Inc()
}

// ObserveUpstream records one call's latency and, when err is non-nil, an error.
func (m *Metrics) ObserveUpstream(upstream string, started time.Time, err error) {
	m.upstreamDuration.WithLabelValues(upstream).Observe(time.Since(started).Seconds())
	if err != nil {
		m.upstreamErrors.WithLabelValues(upstream).Inc()
	}
}

// ObserveUsage is a model.UsageHook.
func (m *Metrics) ObserveUsage(cost model.UsageCost) {
	m.llmCost.WithLabelValues(cost.Model).Add(cost.TotalCost)
}

func (m *Metrics) ObserveEvicted(n int) {
	if n > 0 {
		m.conversationEvict.Add(float64(n))
	}
}
