// Package server provides the HTTP surface of the Beacon service: the
// scoring endpoint, decision history queries, health and readiness probes,
// and the Prometheus metrics endpoint.
package server
