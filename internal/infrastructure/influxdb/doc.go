// Package influxdb records commit telemetry for the voice manager.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes, and health monitoring. The
// integration is optional: when disabled in config the manager runs
// without it and Connect returns ErrDisabled.
//
// Recorded measurements:
//   - commits: per-profile pipeline runs (entity counts, duration, outcome)
//   - safety_violations: blocked artifact writes
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via
// the SetOnError callback. Connection and health check errors are
// returned directly.
package influxdb
