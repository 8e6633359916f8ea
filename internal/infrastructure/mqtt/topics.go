package mqtt

import "strings"

// Topic suffixes below the agent base topic.
const (
	suffixSet           = "set"
	suffixHeartbeat     = "heartbeat"
	suffixSubscriptions = "subscriptions"
	suffixConfig        = "config"
	suffixStatus        = "status"
)

// Topics builds the topics owned by one agent instance.
//
// Relay command topics are not built here: they come verbatim from the
// trigger payload and the switch configuration.
//
//	topics := mqtt.NewTopics("/house/agents/ShellyKlickKlack")
//	topics.Set() // "/house/agents/ShellyKlickKlack/set"
type Topics struct {
	base string
}

// NewTopics returns a topic builder rooted at base. A trailing slash is ignored.
func NewTopics(base string) Topics {
	return Topics{base: strings.TrimRight(base, "/")}
}

// Base returns the agent base topic.
func (t Topics) Base() string {
	return t.base
}

// Set returns the trigger topic. Its payload names the relay topic to pulse.
//
// Example: /house/agents/ShellyKlickKlack/set
func (t Topics) Set() string {
	return t.join(suffixSet)
}

// Heartbeat returns the liveness timestamp topic.
//
// Example: /house/agents/ShellyKlickKlack/heartbeat
func (t Topics) Heartbeat() string {
	return t.join(suffixHeartbeat)
}

// Subscriptions returns the topic carrying the subscribed topic list.
//
// Example: /house/agents/ShellyKlickKlack/subscriptions
func (t Topics) Subscriptions() string {
	return t.join(suffixSubscriptions)
}

// Config returns the remote switch configuration topic.
//
// Example: /house/agents/ShellyKlickKlack/config
func (t Topics) Config() string {
	return t.join(suffixConfig)
}

// Status returns the retained online/offline status topic (also the LWT topic).
//
// Example: /house/agents/ShellyKlickKlack/status
func (t Topics) Status() string {
	return t.join(suffixStatus)
}

func (t Topics) join(suffix string) string {
	return t.base + "/" + suffix
}
