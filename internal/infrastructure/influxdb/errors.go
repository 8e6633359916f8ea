package influxdb

import "errors"

// Sentinel errors for the telemetry client. Telemetry is optional, so
// callers usually log these and carry on:
//
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without pulse telemetry
//	}
var (
	// ErrNotConnected is returned by HealthCheck on a client without a server.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed wraps the error from the initial ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
