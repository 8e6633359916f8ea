package mqtt

import (
	"fmt"
	"strings"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// maxPayloadSize caps outgoing payloads (1MB). Relay commands and the
// subscription catalog are far below it.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits for the broker acknowledgement.
//
// The wait is bounded by defaultPublishTimeout, so a scheduler job calling
// Publish never stalls the step for long when the broker is slow.
//
// Parameters:
//   - topic: Concrete topic, no wildcards (e.g. "shellies/garage/relay/0/command")
//   - payload: Message body, at most 1MB
//   - qos: 0, 1 or 2
//   - retained: Relay commands must not be retained; only the status topic is
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrPayloadTooLarge,
//     ErrNotConnected, or ErrPublishFailed wrapping the broker error
//
// Example:
//
//	err := client.Publish("shellies/garage/relay/0/command", []byte("on"), 1, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validatePublishTopic(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	return await(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed)
}

func validatePublishTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcard in publish topic %q", ErrInvalidTopic, topic)
	}
	return nil
}

// await waits for a paho token, mapping a timeout or a broker error onto
// the given sentinel.
func await(token pahomqtt.Token, sentinel error) error {
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", sentinel, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
