// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// Request caps the time a caller waits for a command result before it is
// answered as unavailable.
const Request = 10 * time.Second

// Validation caps a single external structural validation call.
const Validation = 5 * time.Second

// ReplicatorWrite caps how long a replicated write waits for acknowledgements.
const ReplicatorWrite = 3 * time.Second

// ReadHeader limits how long the metrics HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight work during graceful
// shutdown.
const Shutdown = 5 * time.Second
