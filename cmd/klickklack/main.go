// KlickKlack - MQTT relay pulse agent
//
// KlickKlack turns a momentary trigger into a timed relay pulse. A message on
// <base>/set naming a relay command topic makes the agent publish the
// configured "on" command to that topic, then the "off" command
// switchTimeMs later. Typical use is a garage door or gate opener driven by
// a Shelly relay.
//
// The switch mapping can be updated at runtime over <base>/config or a local
// file, and is persisted in SQLite so it survives restarts.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nerrad567/klickklack/internal/actuator"
	"github.com/nerrad567/klickklack/internal/agent"
	"github.com/nerrad567/klickklack/internal/infrastructure/config"
	"github.com/nerrad567/klickklack/internal/infrastructure/database"
	"github.com/nerrad567/klickklack/internal/infrastructure/influxdb"
	"github.com/nerrad567/klickklack/internal/infrastructure/logging"
	"github.com/nerrad567/klickklack/internal/infrastructure/mqtt"
	"github.com/nerrad567/klickklack/internal/switchconfig"
	"github.com/nerrad567/klickklack/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	defaultEnvFile    = ".env"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting KlickKlack",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	if err := loadEnvFile(defaultEnvFile); err != nil {
		return fmt.Errorf("loading %s: %w", defaultEnvFile, err)
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	topics := mqtt.NewTopics(cfg.Agent.BaseTopic)
	mqttClient, err := mqtt.Connect(cfg.MQTT, topics)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"base_topic", topics.Base(),
	)

	// InfluxDB is optional. A nil *influxdb.Client must not reach the agent
	// as a non-nil Recorder.
	var recorder actuator.Recorder
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, topics.Base())
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		recorder = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	a := agent.New(agent.Deps{
		Config:     cfg,
		Transport:  mqttClient,
		Repository: switchconfig.NewSQLiteRepository(db),
		Recorder:   recorder,
		Logger:     log,
	})
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			log.Error("error closing agent", "error", closeErr)
		}
	}()

	if err := a.Setup(ctx); err != nil {
		return fmt.Errorf("setting up agent: %w", err)
	}

	if err := a.Run(ctx); err != nil {
		return fmt.Errorf("running agent: %w", err)
	}

	log.Info("shutdown signal received, cleaning up",
		"mqtt_dropped", mqttClient.Dropped(),
	)

	// Deferred Close() calls run in reverse order:
	// agent watcher, InfluxDB (if enabled), MQTT, database.

	log.Info("KlickKlack stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses KLICKKLACK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("KLICKKLACK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadEnvFile loads variables from path into the environment. Variables
// already set win. A missing file is not an error.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
