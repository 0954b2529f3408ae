// Package telemetry groups the observability concerns of the Beacon
// service: structured logging, Prometheus metrics, and health checking.
//
// Each concern lives in its own subpackage so that callers depend only on
// what they use:
//
//   - logging: slog-based structured logging with configurable level,
//     format, and source annotation
//   - metrics: Prometheus collectors for decision outcomes, rule fires,
//     scoring errors, and store degradation
//   - health: liveness and readiness probes with pluggable named checks
package telemetry
