// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry setup, health probes, and graceful shutdown for the Stelae
// permission service.
package observability
