package mqtt

import "errors"

// Sentinel errors returned by the Client. Failures reported by the broker
// or by paho are wrapped in the matching sentinel:
//
//	if errors.Is(err, mqtt.ErrNotConnected) {
//	    // broker unreachable; the caller decides whether to drop or retry
//	}
var (
	ErrNotConnected     = errors.New("mqtt: client not connected")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrSubscribeFailed  = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS is returned for a QoS level above 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned for an empty topic, or a publish topic
	// containing the + or # wildcard. Relay topics arrive in trigger
	// payloads, so this is reachable from the network.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrPayloadTooLarge is returned when a payload exceeds maxPayloadSize.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")
)
