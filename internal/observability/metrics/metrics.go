package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters/histograms for the chat turn pipeline and its
// side effects.
type ChatMetrics struct {
	turnsTotal        *prometheus.CounterVec
	turnLatency       prometheus.Histogram
	llmLatency        *prometheus.HistogramVec
	llmFallbacks      *prometheus.CounterVec
	sessionConflicts  prometheus.Counter
	sessionEvictions  prometheus.Counter
	notificationsSent *prometheus.CounterVec
	dispatchJobs      *prometheus.CounterVec
	dispatchOverflow  *prometheus.CounterVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitelead",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Chat turns handled, by classified intent and stage reached",
		}, []string{"intent", "stage"}),
		turnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sitelead",
			Subsystem: "chat",
			Name:      "turn_latency_seconds",
			Help:      "End-to-end latency of a chat turn",
			Buckets:   prometheus.DefBuckets,
		}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sitelead",
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "Latency of language model completions",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"status"}),
		llmFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitelead",
			Subsystem: "llm",
			Name:      "fallback_total",
			Help:      "Turns answered by the deterministic responder instead of the model",
		}, []string{"reason"}),
		sessionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sitelead",
			Subsystem: "session",
			Name:      "version_conflicts_total",
			Help:      "Optimistic version conflicts on session save",
		}),
		sessionEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sitelead",
			Subsystem: "session",
			Name:      "evictions_total",
			Help:      "Sessions dropped from the in-memory store",
		}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitelead",
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification deliveries by channel and status",
		}, []string{"channel", "status"}),
		dispatchJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitelead",
			Subsystem: "dispatch",
			Name:      "jobs_total",
			Help:      "Side-effect jobs processed by kind and status",
		}, []string{"kind", "status"}),
		dispatchOverflow: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitelead",
			Subsystem: "dispatch",
			Name:      "overflow_total",
			Help:      "Jobs that found the queue buffer full, spilled or dropped",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.turnsTotal,
		m.turnLatency,
		m.llmLatency,
		m.llmFallbacks,
		m.sessionConflicts,
		m.sessionEvictions,
		m.notificationsSent,
		m.dispatchJobs,
		m.dispatchOverflow,
	)
	return m
}

func (m *ChatMetrics) ObserveTurn(intent, stage string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(intent, stage).Inc()
	m.turnLatency.Observe(seconds)
}

func (m *ChatMetrics) ObserveLLM(status string, seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(status).Observe(seconds)
}

func (m *ChatMetrics) IncLLMFallback(reason string) {
	if m == nil {
		return
	}
	m.llmFallbacks.WithLabelValues(reason).Inc()
}

func (m *ChatMetrics) IncSessionConflict() {
	if m == nil {
		return
	}
	m.sessionConflicts.Inc()
}

func (m *ChatMetrics) IncSessionEviction() {
	if m == nil {
		return
	}
	m.sessionEvictions.Inc()
}

func (m *ChatMetrics) ObserveNotification(channel string, err error) {
	if m == nil {
		return
	}
	m.notificationsSent.WithLabelValues(channel, statusLabel(err)).Inc()
}

func (m *ChatMetrics) ObserveDispatch(kind string, err error) {
	if m == nil {
		return
	}
	m.dispatchJobs.WithLabelValues(kind, statusLabel(err)).Inc()
}

func (m *ChatMetrics) ObserveDispatchOverflow(outcome string) {
	if m == nil {
		return
	}
	m.dispatchOverflow.WithLabelValues(outcome).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
