package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/klickklack/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "klickklack"

// redacted replaces the value of any attribute whose key names a secret.
const redacted = "***REDACTED***"

// secretKeys are matched case-insensitively against the end of an
// attribute key, so "password", "mqtt_password" and "influx_token" are all
// redacted.
var secretKeys = []string{"password", "token", "secret"}

// Logger wraps slog.Logger with agent-wide defaults.
//
// Every entry carries service and version. Attributes whose key names a
// secret are redacted by the handler.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to stdout, or stderr when cfg.Output says so.
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Application version for default field
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		output = os.Stderr
	}
	return NewWithWriter(cfg, version, output)
}

// NewWithWriter creates a Logger writing to output. cfg.Output is ignored.
func NewWithWriter(cfg config.LoggingConfig, version string, output io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: redactSecrets,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	return &Logger{
		Logger: slog.New(handler).With(
			slog.String("service", serviceName),
			slog.String("version", version),
		),
	}
}

// parseLevel maps debug, info, warn(ing) and error onto slog levels.
// Anything else is info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// redactSecrets is the handler's ReplaceAttr hook.
func redactSecrets(_ []string, a slog.Attr) slog.Attr {
	if isSecretKey(a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.HasSuffix(key, s) {
			return true
		}
	}
	return false
}

// With returns a child Logger with additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component returns a child logger tagged with component=name.
//
// Example:
//
//	mqttLogger := logger.Component("mqtt")
//	mqttLogger.Info("connected") // Includes component=mqtt
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Default creates a JSON, info-level stdout logger for use before
// configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}
