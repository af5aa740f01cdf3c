package metrics

import "github.com/prometheus/client_golang/prometheus"

// CompletionMetrics exposes counters/histograms for completion and conversation flows.
type CompletionMetrics struct {
	requestsTotal *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	tokensTotal   *prometheus.CounterVec
	turnsTotal    *prometheus.CounterVec
	activeStreams prometheus.Gauge
}

// NewCompletionMetrics registers the collectors with reg, or with the default
// registerer when reg is nil.
func NewCompletionMetrics(reg prometheus.Registerer) *CompletionMetrics {
	m := &CompletionMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vibeproxy",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Completion requests sent to VibeProxy",
		}, []string{"model", "mode", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vibeproxy",
			Subsystem: "client",
			Name:      "latency_seconds",
			Help:      "Latency of completion requests",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 8, 10, 15, 20, 30, 60},
		}, []string{"model", "mode", "status"}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vibeproxy",
			Subsystem: "client",
			Name:      "tokens_total",
			Help:      "Tokens reported by the backend",
		}, []string{"model", "type"}), // type: prompt, completion, total
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vibeproxy",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Conversation turns by mode and outcome",
		}, []string{"mode", "status"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vibeproxy",
			Subsystem: "client",
			Name:      "active_streams",
			Help:      "Streams opened and not yet terminated",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.latency, m.tokensTotal, m.turnsTotal, m.activeStreams)
	return m
}

// ObserveRequest records one completion request outcome.
func (m *CompletionMetrics) ObserveRequest(model, mode, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(model, mode, status).Inc()
	m.latency.WithLabelValues(model, mode, status).Observe(seconds)
}

// ObserveTokens adds backend-reported token counts. Zero counts are skipped.
func (m *CompletionMetrics) ObserveTokens(model string, prompt, completion, total int) {
	if m == nil {
		return
	}
	if prompt > 0 {
		m.tokensTotal.WithLabelValues(model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		m.tokensTotal.WithLabelValues(model, "completion").Add(float64(completion))
	}
	if total > 0 {
		m.tokensTotal.WithLabelValues(model, "total").Add(float64(total))
	}
}

// ObserveTurn records a conversation turn.
func (m *CompletionMetrics) ObserveTurn(mode, status string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(mode, status).Inc()
}

// StreamOpened increments the active stream gauge.
func (m *CompletionMetrics) StreamOpened() {
	if m == nil {
		return
	}
	m.activeStreams.Inc()
}

// StreamClosed decrements the active stream gauge.
func (m *CompletionMetrics) StreamClosed() {
	if m == nil {
		return
	}
	m.activeStreams.Dec()
}
