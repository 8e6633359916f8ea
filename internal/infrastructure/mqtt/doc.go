// Package mqtt provides the MQTT transport for the KlickKlack agent.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Bounded-latency publishing of relay commands and agent status
//   - Topic subscriptions, restored after reconnect
//   - Last Will and Testament on the agent status topic
//   - A bounded inbox that defers handler execution to Loop
//
// # Delivery model
//
// The agent runs every piece of logic from a single cooperative scheduler.
// paho delivers messages on its own goroutines, so the client only queues
// them; the scheduler calls Loop periodically and handlers run there,
// synchronously and in arrival order. When the inbox is full new messages
// are dropped and counted rather than blocking paho.
//
// # Usage
//
//	topics := mqtt.NewTopics(cfg.Agent.BaseTopic)
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(topics.Set(), 1, func(topic string, payload []byte) error {
//	    return actuator.OnTrigger(string(payload))
//	})
//
//	// from the scheduler
//	client.Loop()
package mqtt
