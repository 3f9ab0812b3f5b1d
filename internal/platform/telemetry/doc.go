// Package telemetry groups the operational observability of twinworks.
//
// Domain events (the per-thing journal) are not telemetry: they live in the
// things storage layer and drive replay. Operational metrics (telemetry/metrics)
// capture command throughput, validation outcomes and replication health, and
// traces are configured by platform/otel.
package telemetry
