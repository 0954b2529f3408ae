// Package health aggregates component health checks behind liveness and
// readiness probes. Components register named CheckFuncs; readiness runs
// them all with a per-check timeout and reports degraded if any fail.
package health
