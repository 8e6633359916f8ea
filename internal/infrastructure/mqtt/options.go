package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/klickklack/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout bounds how long a publish, subscribe or
	// unsubscribe may block the scheduler step.
	defaultPublishTimeout = 2 * time.Second

	defaultDisconnectQuiesce = 1000 // milliseconds
	defaultKeepAlive         = 60 * time.Second

	maxQoS = 2

	// statusQoS is used for the retained status message and the LWT.
	statusQoS = 1
)

// Status values published on <base>/status.
const (
	statusOnline  = "online"
	statusOffline = "offline"

	reasonUnexpected = "unexpected_disconnect"
	reasonShutdown   = "graceful_shutdown"
)

// buildClientOptions maps the mqtt config section onto paho options:
// broker URL (ssl:// when TLS is on), client ID, optional credentials,
// clean session, and reconnect backoff between the configured delays.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(defaultKeepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	return opts
}

// configureLWT makes the broker publish a retained offline status if the
// agent vanishes without calling Close.
func configureLWT(opts *pahomqtt.ClientOptions, topic, clientID string) {
	will := buildStatusPayload(clientID, statusOffline, reasonUnexpected)
	opts.SetBinaryWill(topic, will, statusQoS, true)
}

// statusMessage is the JSON body of <base>/status.
type statusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// buildStatusPayload encodes a status message stamped with the current UTC
// time. reason is omitted when empty.
func buildStatusPayload(clientID, status, reason string) []byte {
	payload, err := json.Marshal(statusMessage{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		// Only strings are encoded; Marshal cannot fail here.
		return []byte(`{"status":"` + status + `"}`)
	}
	return payload
}
