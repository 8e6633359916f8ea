// Package logging provides structured logging for the KlickKlack agent.
//
// It wraps Go's standard log/slog package so every component logs with the
// same handler, level and default fields (service, version).
//
// Configuration comes from the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	schedLog := logger.Component("scheduler")
//	schedLog.Warn("job failed", "job_id", id, "error", err)
//
// Never log broker passwords or the InfluxDB token.
package logging
