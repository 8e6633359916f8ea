package actuator

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Heartbeat is a repeating task that shows the agent is alive.
type Heartbeat struct {
	a *Actuator
}

// Heartbeat returns the heartbeat task for this actuator.
func (a *Actuator) Heartbeat() *Heartbeat {
	return &Heartbeat{a: a}
}

// Run publishes the current time to <base>/heartbeat and the sorted list of
// subscribed topics, as a JSON array, to <base>/subscriptions.
func (h *Heartbeat) Run() error {
	a := h.a
	catalog := a.transport.SubscriptionCatalog()
	if catalog == nil {
		catalog = []string{}
	}

	payload, err := json.Marshal(catalog)
	if err != nil {
		return fmt.Errorf("encoding subscription catalog: %w", err)
	}

	var errs []error
	stamp := a.now().Format(time.RFC3339)
	if err := a.transport.Publish(a.topics.Heartbeat(), []byte(stamp), a.qos, false); err != nil {
		errs = append(errs, fmt.Errorf("%w: publishing heartbeat: %w", ErrTransport, err))
	}
	if err := a.transport.Publish(a.topics.Subscriptions(), payload, a.qos, false); err != nil {
		errs = append(errs, fmt.Errorf("%w: publishing subscriptions: %w", ErrTransport, err))
	}

	a.recorder.RecordHeartbeat(len(catalog), a.scheduler.Len())
	return errors.Join(errs...)
}

// String identifies the task in scheduler logs.
func (h *Heartbeat) String() string {
	return "heartbeat"
}
