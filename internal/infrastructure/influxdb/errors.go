package influxdb

import "errors"

// Sentinel errors for the telemetry client, checked with errors.Is().
var (
	// ErrNotConnected indicates the client has not been connected yet.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled indicates telemetry is disabled in the configuration.
	// Commit pipelines treat this as "no telemetry", never as a failure.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
