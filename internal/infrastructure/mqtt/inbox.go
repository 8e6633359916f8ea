package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// inboundMessage is a received message waiting for Loop.
type inboundMessage struct {
	filter  string // subscription the broker matched
	topic   string
	payload []byte
}

// enqueueHandler returns the paho callback for a subscription filter.
// It copies the message into the inbox and returns immediately.
func (c *Client) enqueueHandler(filter string) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.deliver(filter, msg.Topic(), msg.Payload())
	}
}

// deliver queues a message without blocking the caller. When the inbox is
// full the message is dropped and counted.
func (c *Client) deliver(filter, topic string, payload []byte) {
	buf := make([]byte, len(payload))
	copy(buf, payload)

	select {
	case c.inbox <- inboundMessage{filter: filter, topic: topic, payload: buf}:
	default:
		dropped := c.dropped.Add(1)
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT inbox full, message dropped",
				"topic", topic,
				"capacity", cap(c.inbox),
				"dropped_total", dropped,
			)
		}
	}
}

// Loop dispatches buffered messages to their handlers synchronously.
//
// Only the messages queued when Loop starts are handled; anything arriving
// meanwhile waits for the next call, so one Loop never runs unbounded.
// Messages whose filter is no longer tracked (a failed Subscribe) are skipped.
//
// Returns:
//   - int: Number of messages handed to a handler
func (c *Client) Loop() int {
	pending := len(c.inbox)
	dispatched := 0

	for i := 0; i < pending; i++ {
		var msg inboundMessage
		select {
		case msg = <-c.inbox:
		default:
			return dispatched
		}

		c.subMu.RLock()
		sub, ok := c.subscriptions[msg.filter]
		c.subMu.RUnlock()
		if !ok {
			continue
		}

		c.dispatch(sub.handler, msg)
		dispatched++
	}

	return dispatched
}

// Pending returns the number of messages waiting in the inbox.
func (c *Client) Pending() int {
	return len(c.inbox)
}

// Dropped returns how many messages were discarded because the inbox was full.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

// dispatch runs one handler with panic recovery and error logging.
func (c *Client) dispatch(handler MessageHandler, msg inboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("MQTT handler panic recovered",
					"topic", msg.topic,
					"panic", fmt.Sprint(r),
				)
			}
		}
	}()

	if err := handler(msg.topic, msg.payload); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT handler returned error",
				"topic", msg.topic,
				"error", err,
			)
		}
	}
}
