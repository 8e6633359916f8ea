package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the KlickKlack agent.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Agent    AgentConfig    `yaml:"agent"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AgentConfig contains the pulse agent's topic layout, job intervals and
// built-in switch defaults.
type AgentConfig struct {
	// BaseTopic prefixes every topic the agent owns (set, heartbeat, config...).
	BaseTopic string `yaml:"base_topic"`

	// CadenceMS is how often the driver steps the scheduler (milliseconds).
	// It bounds timing precision of every job.
	CadenceMS int `yaml:"cadence_ms"`

	// PollIntervalMS is how often buffered MQTT messages are dispatched.
	PollIntervalMS int `yaml:"poll_interval_ms"`

	// ConfigIntervalMS is how often pending switch config updates are applied.
	ConfigIntervalMS int `yaml:"config_interval_ms"`

	// HeartbeatIntervalMS is how often liveness and subscriptions are published.
	HeartbeatIntervalMS int `yaml:"heartbeat_interval_ms"`

	// SwitchesFile is an optional local mapping file, reloaded when it changes.
	SwitchesFile string `yaml:"switches_file"`

	// Switches is the built-in mapping used when nothing has been persisted yet.
	Switches map[string]SwitchDefault `yaml:"switches"`
}

// SwitchDefault is one built-in relay entry.
type SwitchDefault struct {
	On           string `yaml:"on"`
	Off          string `yaml:"off"`
	SwitchTimeMS int    `yaml:"switch_time_ms"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// InboxSize bounds the number of received messages buffered between polls.
	InboxSize int `yaml:"inbox_size"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: KLICKKLACK_SECTION_KEY
// For example: KLICKKLACK_DATABASE_PATH, KLICKKLACK_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// yaml.v3 merges into non-nil maps, so the built-in mapping is only
	// filled in when the file does not provide one of its own.
	if cfg.Agent.Switches == nil {
		cfg.Agent.Switches = defaultSwitches()
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// The intervals mirror the field-proven values of the Shelly relay setup:
// broker polled every 500ms, config refreshed every minute, heartbeat every 10s.
func defaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			BaseTopic:           "/house/agents/ShellyKlickKlack",
			CadenceMS:           250,
			PollIntervalMS:      500,
			ConfigIntervalMS:    60000,
			HeartbeatIntervalMS: 10000,
		},
		Database: DatabaseConfig{
			Path:        "./data/klickklack.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ShellyKlickKlack",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			InboxSize: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// defaultSwitches returns the built-in relay mapping.
func defaultSwitches() map[string]SwitchDefault {
	return map[string]SwitchDefault{
		"shellies/house/garage/test/relay/0/command": {
			On:           "on",
			Off:          "off",
			SwitchTimeMS: 1000,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: KLICKKLACK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KLICKKLACK_BASE_TOPIC"); v != "" {
		cfg.Agent.BaseTopic = v
	}

	if v := os.Getenv("KLICKKLACK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("KLICKKLACK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("KLICKKLACK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("KLICKKLACK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("KLICKKLACK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Agent.BaseTopic) == "" {
		errs = append(errs, "agent.base_topic is required")
	}
	if c.Agent.CadenceMS <= 0 {
		errs = append(errs, "agent.cadence_ms must be positive")
	}
	if c.Agent.PollIntervalMS <= 0 {
		errs = append(errs, "agent.poll_interval_ms must be positive")
	}
	if c.Agent.ConfigIntervalMS <= 0 {
		errs = append(errs, "agent.config_interval_ms must be positive")
	}
	if c.Agent.HeartbeatIntervalMS <= 0 {
		errs = append(errs, "agent.heartbeat_interval_ms must be positive")
	}
	for topic, sw := range c.Agent.Switches {
		if sw.SwitchTimeMS <= 0 {
			errs = append(errs, fmt.Sprintf("agent.switches[%q].switch_time_ms must be positive", topic))
		}
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Cadence returns the driver step period as a Duration.
func (a AgentConfig) Cadence() time.Duration {
	return time.Duration(a.CadenceMS) * time.Millisecond
}

// PollInterval returns the MQTT dispatch interval as a Duration.
func (a AgentConfig) PollInterval() time.Duration {
	return time.Duration(a.PollIntervalMS) * time.Millisecond
}

// ConfigInterval returns the switch config refresh interval as a Duration.
func (a AgentConfig) ConfigInterval() time.Duration {
	return time.Duration(a.ConfigIntervalMS) * time.Millisecond
}

// HeartbeatInterval returns the heartbeat interval as a Duration.
func (a AgentConfig) HeartbeatInterval() time.Duration {
	return time.Duration(a.HeartbeatIntervalMS) * time.Millisecond
}
