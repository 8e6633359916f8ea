package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementPulse     = "relay_pulse"
	measurementHeartbeat = "agent_heartbeat"
)

// Pulse phases, stored in the "phase" tag.
const (
	PhaseStart = "start"
	PhaseEnd   = "end"
)

// RecordPulseStart records that the on command was published to topic.
//
// Example:
//
//	client.RecordPulseStart("shellies/garage/relay/0/command", 1000)
func (c *Client) RecordPulseStart(topic string, switchTimeMs int) {
	c.writePoint(measurementPulse,
		map[string]string{"topic": topic, "phase": PhaseStart},
		map[string]interface{}{"switch_time_ms": switchTimeMs},
	)
}

// RecordPulseEnd records that the off command was published to topic.
func (c *Client) RecordPulseEnd(topic string) {
	c.writePoint(measurementPulse,
		map[string]string{"topic": topic, "phase": PhaseEnd},
		map[string]interface{}{"released": true},
	)
}

// RecordHeartbeat records the agent's liveness and a few counters.
//
// Parameters:
//   - subscriptions: Number of subscribed topics
//   - pendingJobs: Jobs waiting in the scheduler (includes pending releases)
func (c *Client) RecordHeartbeat(subscriptions, pendingJobs int) {
	c.writePoint(measurementHeartbeat,
		nil,
		map[string]interface{}{
			"subscriptions": subscriptions,
			"pending_jobs":  pendingJobs,
		},
	)
}

// WritePoint writes a custom point stamped with the current time. The agent
// tag is added to tags.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.writePoint(measurement, tags, fields)
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() || c.writer == nil {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, c.withAgent(tags), fields, timestamp))
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, c.now())
}

// withAgent returns a copy of tags including the agent tag.
func (c *Client) withAgent(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		out[k] = v
	}
	if c.agent != "" {
		out["agent"] = c.agent
	}
	return out
}
