// Package metrics provides operational metrics collection.
//
// # Metric Categories
//
//   - Commands: count and latency by command type and result kind
//   - Validation: structural validation outcomes (passed, failed, warned, skipped)
//   - Replication: replicated-store writes by key, consistency and outcome
//
// Metrics are registered on a caller-supplied prometheus.Registerer so tests
// can use isolated registries; Serve exposes the default gatherer over HTTP.
package metrics
