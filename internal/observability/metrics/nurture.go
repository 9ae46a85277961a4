package metrics

import "github.com/prometheus/client_golang/prometheus"

// NurtureMetrics tracks the periodic lead nurturing scan.
type NurtureMetrics struct {
	ticks         *prometheus.CounterVec
	suggestions   prometheus.Counter
	agentFailures prometheus.Counter
	tickDuration  prometheus.Histogram
}

func NewNurtureMetrics(reg prometheus.Registerer) *NurtureMetrics {
	m := &NurtureMetrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realty",
			Subsystem: "nurture",
			Name:      "ticks_total",
			Help:      "Nurture scans by result",
		}, []string{"result"}),
		suggestions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "realty",
			Subsystem: "nurture",
			Name:      "suggestions_total",
			Help:      "Follow-up suggestions surfaced to agents",
		}),
		agentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "realty",
			Subsystem: "nurture",
			Name:      "agent_failures_total",
			Help:      "Agents whose scan failed during a tick",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "realty",
			Subsystem: "nurture",
			Name:      "tick_duration_seconds",
			Help:      "Duration of a full nurture scan",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.ticks, m.suggestions, m.agentFailures, m.tickDuration)
	return m
}

func (m *NurtureMetrics) ObserveTick(result string, seconds float64) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(result).Inc()
	m.tickDuration.Observe(seconds)
}

func (m *NurtureMetrics) AddSuggestions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.suggestions.Add(float64(n))
}

func (m *NurtureMetrics) IncAgentFailure() {
	if m == nil {
		return
	}
	m.agentFailures.Inc()
}
