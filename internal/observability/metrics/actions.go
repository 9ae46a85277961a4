package metrics

import "github.com/prometheus/client_golang/prometheus"

// ActionMetrics exposes counters/histograms for the conversational action engine.
type ActionMetrics struct {
	classifications *prometheus.CounterVec
	plans           *prometheus.CounterVec
	confirmations   *prometheus.CounterVec
	executions      *prometheus.CounterVec
	executeLatency  *prometheus.HistogramVec
}

func NewActionMetrics(reg prometheus.Registerer) *ActionMetrics {
	m := &ActionMetrics{
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realty",
			Subsystem: "actions",
			Name:      "classifications_total",
			Help:      "Utterances classified, by intent and classifier source",
		}, []string{"intent", "source"}),
		plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realty",
			Subsystem: "actions",
			Name:      "plans_total",
			Help:      "Planning attempts by intent and outcome",
		}, []string{"intent", "outcome"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realty",
			Subsystem: "actions",
			Name:      "confirmations_total",
			Help:      "Pending plan resolutions by outcome",
		}, []string{"outcome"}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realty",
			Subsystem: "actions",
			Name:      "executions_total",
			Help:      "Executed plans by intent and status",
		}, []string{"intent", "status"}),
		executeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "realty",
			Subsystem: "actions",
			Name:      "execution_latency_seconds",
			Help:      "Latency of plan execution transactions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"intent"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.classifications, m.plans, m.confirmations, m.executions, m.executeLatency)
	return m
}

func (m *ActionMetrics) ObserveClassification(intent, source string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(intent, source).Inc()
}

func (m *ActionMetrics) ObservePlan(intent, outcome string) {
	if m == nil {
		return
	}
	m.plans.WithLabelValues(intent, outcome).Inc()
}

func (m *ActionMetrics) ObserveConfirmation(outcome string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(outcome).Inc()
}

func (m *ActionMetrics) ObserveExecution(intent, status string, seconds float64) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(intent, status).Inc()
	m.executeLatency.WithLabelValues(intent).Observe(seconds)
}
