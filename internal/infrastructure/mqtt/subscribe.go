package mqtt

import "fmt"

// Subscribe registers handler for a topic filter.
//
// Wildcards (+ and #) are passed to the broker unchanged. Matching messages
// are queued in the inbox; handler runs later, from Loop. The subscription
// is remembered and restored after a reconnect, and it is what
// SubscriptionCatalog reports.
//
// Parameters:
//   - topic: Topic filter
//   - qos: Maximum QoS for received messages (0, 1 or 2)
//   - handler: Callback invoked from Loop for each message
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, or
//     ErrSubscribeFailed; on failure the subscription is not tracked
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	switch {
	case topic == "":
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	case qos > maxQoS:
		return ErrInvalidQoS
	case handler == nil:
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, topic)
	case !c.IsConnected():
		return ErrNotConnected
	}

	// Tracked before the broker round trip so a message arriving right after
	// the SUBACK already finds its handler in Loop.
	c.track(subscription{topic: topic, qos: qos, handler: handler})

	if err := await(c.client.Subscribe(topic, qos, c.enqueueHandler(topic)), ErrSubscribeFailed); err != nil {
		c.untrack(topic)
		return err
	}
	return nil
}

func (c *Client) track(sub subscription) {
	c.subMu.Lock()
	c.subscriptions[sub.topic] = sub
	c.subMu.Unlock()
}

func (c *Client) untrack(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}
