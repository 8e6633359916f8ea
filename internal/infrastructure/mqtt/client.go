package mqtt

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/klickklack/internal/infrastructure/config"
)

// defaultInboxSize is used when the config does not set mqtt.inbox_size.
const defaultInboxSize = 256

// Client wraps paho.mqtt.golang for a cooperatively scheduled agent.
//
// paho invokes message callbacks on its own goroutines. Client never runs
// subscriber handlers there: received messages are queued in a bounded inbox
// and handed to their handlers by Loop, which the agent calls from its
// scheduler. Every handler therefore runs on the scheduler's goroutine.
//
// Thread Safety:
//   - Publish, Subscribe and the connection methods are safe for concurrent use.
//   - Loop must only be called from one goroutine at a time.
//   - Subscriptions are automatically restored on reconnection.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig
	topics  Topics

	// subscriptions tracks active subscriptions for re-subscription on reconnect
	// and for handler lookup when the inbox is drained.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	inbox   chan inboundMessage
	dropped atomic.Uint64

	connected bool
	connMu    sync.RWMutex

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription holds subscription details for re-subscription on reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked synchronously from Loop, one message at a time, in
// arrival order. A returned error is logged and does not affect delivery of
// the remaining messages.
type MessageHandler func(topic string, payload []byte) error

// Connect establishes a connection to the MQTT broker.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Configures Last Will and Testament on the agent status topic
//  3. Sets up auto-reconnect with exponential backoff
//  4. Attempts initial connection with timeout
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//   - topics: Agent topic layout (used for the status/LWT topic)
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If initial connection fails within timeout
func Connect(cfg config.MQTTConfig, topics Topics) (*Client, error) {
	opts := buildClientOptions(cfg)
	configureLWT(opts, topics.Status(), cfg.Broker.ClientID)

	c := newClient(cfg, topics)
	c.options = opts

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnectHandler runs asynchronously and may not have executed
	// yet, so mark the client connected here as well.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return c, nil
}

// newClient builds an unconnected Client with an empty inbox.
func newClient(cfg config.MQTTConfig, topics Topics) *Client {
	size := cfg.InboxSize
	if size <= 0 {
		size = defaultInboxSize
	}
	return &Client{
		cfg:           cfg,
		topics:        topics,
		subscriptions: make(map[string]subscription),
		inbox:         make(chan inboundMessage, size),
	}
}

// handleConnect is called when the connection is established.
func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.restoreSubscriptions()
	c.publishOnlineStatus()

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called when the connection is lost.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions re-subscribes to all tracked topics after reconnect.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		// Errors during reconnection are ignored; paho retries on the next connect.
		c.client.Subscribe(sub.topic, sub.qos, c.enqueueHandler(sub.topic))
	}
}

// publishOnlineStatus publishes the agent's retained online status.
func (c *Client) publishOnlineStatus() {
	payload := buildStatusPayload(c.cfg.Broker.ClientID, statusOnline, "")
	c.client.Publish(c.topics.Status(), statusQoS, true, payload)
}

// Close gracefully disconnects from the MQTT broker.
//
// A retained "graceful_shutdown" status replaces the LWT message so other
// agents can tell a planned stop from a crash. Messages still waiting in the
// inbox are discarded.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		payload := buildStatusPayload(c.cfg.Broker.ClientID, statusOffline, reasonShutdown)
		token := c.client.Publish(c.topics.Status(), statusQoS, true, payload)
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// SetOnConnect sets a callback to be invoked when connection is established.
// This is called on initial connect and on every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback to be invoked when connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for handler errors, panics and inbox overflow.
// If not set, these are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// SubscriptionCatalog returns the sorted list of subscribed topic filters.
//
// This is the set the agent heartbeat reports, so it reflects the tracked
// subscriptions at call time.
func (c *Client) SubscriptionCatalog() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	catalog := make([]string, 0, len(c.subscriptions))
	for topic := range c.subscriptions {
		catalog = append(catalog, topic)
	}
	sort.Strings(catalog)
	return catalog
}
