package metrics

import "github.com/prometheus/client_golang/prometheus"

// SessionMetrics exposes counters/histograms for support session flows.
type SessionMetrics struct {
	sessionsStarted  *prometheus.CounterVec
	messagesTotal    *prometheus.CounterVec
	escalationsTotal *prometheus.CounterVec
	resolutionsTotal *prometheus.CounterVec
	llmLatency       *prometheus.HistogramVec
	llmTokens        *prometheus.CounterVec
	fallbackTotal    *prometheus.CounterVec
}

func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Subsystem: "session",
			Name:      "started_total",
			Help:      "Total support sessions opened",
		}, []string{"channel", "tier"}),
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Subsystem: "session",
			Name:      "messages_total",
			Help:      "Total messages appended to sessions",
		}, []string{"role"}),
		escalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Subsystem: "session",
			Name:      "escalations_total",
			Help:      "Total tier escalations",
		}, []string{"reason", "to_tier"}),
		resolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Subsystem: "session",
			Name:      "resolutions_total",
			Help:      "Total sessions closed",
		}, []string{"resolution_type", "tier"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "support",
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "Latency of model completions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model", "tier"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens consumed by model completions",
		}, []string{"model", "direction"}),
		fallbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Subsystem: "llm",
			Name:      "template_fallback_total",
			Help:      "Responses served from templates instead of a model",
		}, []string{"tier"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.sessionsStarted, m.messagesTotal, m.escalationsTotal,
		m.resolutionsTotal, m.llmLatency, m.llmTokens, m.fallbackTotal)
	return m
}

func (m *SessionMetrics) ObserveSessionStarted(channel, tier string) {
	if m == nil {
		return
	}
	m.sessionsStarted.WithLabelValues(channel, tier).Inc()
}

func (m *SessionMetrics) ObserveMessage(role string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(role).Inc()
}

func (m *SessionMetrics) ObserveEscalation(reason, toTier string) {
	if m == nil {
		return
	}
	m.escalationsTotal.WithLabelValues(reason, toTier).Inc()
}

func (m *SessionMetrics) ObserveResolution(resolutionType, tier string) {
	if m == nil {
		return
	}
	m.resolutionsTotal.WithLabelValues(resolutionType, tier).Inc()
}

func (m *SessionMetrics) ObserveLLMLatency(model, tier string, seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(model, tier).Observe(seconds)
}

func (m *SessionMetrics) ObserveLLMTokens(model string, input, output int) {
	if m == nil {
		return
	}
	m.llmTokens.WithLabelValues(model, "input").Add(float64(input))
	m.llmTokens.WithLabelValues(model, "output").Add(float64(output))
}

func (m *SessionMetrics) ObserveTemplateFallback(tier string) {
	if m == nil {
		return
	}
	m.fallbackTotal.WithLabelValues(tier).Inc()
}
