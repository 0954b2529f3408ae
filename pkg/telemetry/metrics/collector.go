package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns the Prometheus metrics for the decision engine.
// All record methods are nil-safe so components can treat metrics as
// optional.
//
// Metrics:
//   - beacon_decisions_total: decisions by branch and outcome
//   - beacon_rules_fired_total: rule fires by rule name
//   - beacon_decision_duration_seconds: decision latency
//   - beacon_scoring_errors_total: failed external scorer calls
//   - beacon_state_store_degraded: 1 while the state store runs on its fallback
type Collector struct {
	registry *prometheus.Registry

	decisionsTotal   *prometheus.CounterVec
	rulesFiredTotal  *prometheus.CounterVec
	decisionDuration prometheus.Histogram
	scoringErrors    prometheus.Counter
	storeDegraded    prometheus.Gauge
}

// NewCollector creates and registers the decision metrics. If registry is
// nil a fresh registry is created; namespace defaults to "beacon".
func NewCollector(namespace string, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = "beacon"
	}

	c := &Collector{
		registry: registry,

		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Total escalation decisions by deciding branch and outcome",
			},
			[]string{"where", "escalate"},
		),

		rulesFiredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rules_fired_total",
				Help:      "Total pattern rule fires by rule name",
			},
			[]string{"rule"},
		),

		decisionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "decision_duration_seconds",
				Help:      "Duration of a full decision call in seconds",
				// Rule/guard decisions are microseconds; model decisions
				// include the scorer call.
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
			},
		),

		scoringErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scoring_errors_total",
				Help:      "Total decisions failed because the external scorer was unavailable or returned malformed output",
			},
		),

		storeDegraded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "state_store_degraded",
				Help:      "1 while the conversation state store is running on its in-memory fallback",
			},
		),
	}

	registry.MustRegister(
		c.decisionsTotal,
		c.rulesFiredTotal,
		c.decisionDuration,
		c.scoringErrors,
		c.storeDegraded,
	)

	return c
}

// Registry returns the underlying Prometheus registry, for the /metrics
// endpoint.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordDecision records a completed decision.
func (c *Collector) RecordDecision(where string, escalate bool, firedRules []string, duration time.Duration) {
	if c == nil {
		return
	}

	c.decisionsTotal.WithLabelValues(where, boolLabel(escalate)).Inc()
	c.decisionDuration.Observe(duration.Seconds())

	for _, rule := range firedRules {
		c.rulesFiredTotal.WithLabelValues(rule).Inc()
	}
}

// RecordScoringError records a decision that failed at the scorer.
func (c *Collector) RecordScoringError() {
	if c == nil {
		return
	}
	c.scoringErrors.Inc()
}

// SetStoreDegraded updates the state-store degraded gauge.
func (c *Collector) SetStoreDegraded(degraded bool) {
	if c == nil {
		return
	}
	if degraded {
		c.storeDegraded.Set(1)
	} else {
		c.storeDegraded.Set(0)
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
