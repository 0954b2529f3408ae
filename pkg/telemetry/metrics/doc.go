// Package metrics provides Prometheus metrics for the escalation decision
// engine: decision counts by branch and outcome, fired-rule counts,
// decision latency, scoring failures, and the state-store degraded gauge.
package metrics
