package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// RiskEngineMetrics bundles the Prometheus collectors exposed at GET /metrics,
// covering decision outcomes, pipeline latency, rule evaluation volume, WAL
// health, and policy reload health.
type RiskEngineMetrics struct {
	decisions      *prometheus.CounterVec
	latency        prometheus.Histogram
	ruleEvals      *prometheus.CounterVec
	walWrites      prometheus.Counter
	walErrors      prometheus.Counter
	policyReloads  *prometheus.CounterVec
	actorsLive     prometheus.Gauge
	snapshotErrors prometheus.Counter
}

var (
	riskMetricsOnce sync.Once
	riskMetrics     *RiskEngineMetrics
)

// RiskEngine returns the lazily initialised metrics registry for the decision engine.
func RiskEngine() *RiskEngineMetrics {
	riskMetricsOnce.Do(func() {
		riskMetrics = &RiskEngineMetrics{
			decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "risk",
				Subsystem: "decision",
				Name:      "count_total",
				Help:      "Count of decisions returned, segmented by outcome.",
			}, []string{"outcome"}),
			latency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "risk",
				Subsystem: "decision",
				Name:      "latency_ms",
				Help:      "End-to-end decision pipeline latency in milliseconds.",
				Buckets:   []float64{1, 5, 10, 50, 100},
			}),
			ruleEvals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "risk",
				Subsystem: "rules",
				Name:      "evaluations_total",
				Help:      "Count of rule evaluations, segmented by phase.",
			}, []string{"phase"}),
			walWrites: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "risk",
				Subsystem: "wal",
				Name:      "writes_total",
				Help:      "Count of WAL append attempts that succeeded.",
			}),
			walErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "risk",
				Subsystem: "wal",
				Name:      "errors_total",
				Help:      "Count of WAL append failures.",
			}),
			policyReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "risk",
				Subsystem: "policy",
				Name:      "reloads_total",
				Help:      "Count of policy reload attempts, segmented by result.",
			}, []string{"result"}),
			actorsLive: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "risk",
				Subsystem: "actorpool",
				Name:      "actors_live",
				Help:      "Current count of live per-subject actors across all shards.",
			}),
			snapshotErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "risk",
				Subsystem: "snapshot",
				Name:      "errors_total",
				Help:      "Count of snapshot write failures.",
			}),
		}
		prometheus.MustRegister(
			riskMetrics.decisions,
			riskMetrics.latency,
			riskMetrics.ruleEvals,
			riskMetrics.walWrites,
			riskMetrics.walErrors,
			riskMetrics.policyReloads,
			riskMetrics.actorsLive,
			riskMetrics.snapshotErrors,
		)
	})
	return riskMetrics
}

// ObserveDecision increments the decision counter for the given outcome name.
func (m *RiskEngineMetrics) ObserveDecision(outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveLatency records the pipeline's end-to-end latency in milliseconds.
func (m *RiskEngineMetrics) ObserveLatency(ms float64) {
	if m == nil {
		return
	}
	m.latency.Observe(ms)
}

// ObserveRuleEval increments the rule evaluation counter for a pipeline phase
// ("inline" or "streaming").
func (m *RiskEngineMetrics) ObserveRuleEval(phase string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.ruleEvals.WithLabelValues(normalizeLabel(phase)).Add(float64(count))
}

// RecordWALWrite increments the successful WAL append counter.
func (m *RiskEngineMetrics) RecordWALWrite() {
	if m == nil {
		return
	}
	m.walWrites.Inc()
}

// RecordWALError increments the WAL error counter.
func (m *RiskEngineMetrics) RecordWALError() {
	if m == nil {
		return
	}
	m.walErrors.Inc()
}

// RecordPolicyReload increments the policy reload counter for the given result
// ("ok" or "error").
func (m *RiskEngineMetrics) RecordPolicyReload(result string) {
	if m == nil {
		return
	}
	m.policyReloads.WithLabelValues(normalizeLabel(result)).Inc()
}

// SetActorsLive updates the live actor gauge.
func (m *RiskEngineMetrics) SetActorsLive(n int) {
	if m == nil {
		return
	}
	m.actorsLive.Set(float64(n))
}

// RecordSnapshotError increments the snapshot error counter.
func (m *RiskEngineMetrics) RecordSnapshotError() {
	if m == nil {
		return
	}
	m.snapshotErrors.Inc()
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
