// Package influxdb records KlickKlack telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Two measurements are
// written, both tagged with the agent's base topic:
//   - relay_pulse: one point when a pulse starts (phase=start,
//     switch_time_ms) and one when it is released (phase=end)
//   - agent_heartbeat: subscriptions and pending_jobs on every heartbeat
//
// InfluxDB is optional. When it is disabled in config the agent simply runs
// without a recorder.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Agent.BaseTopic)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.RecordPulseStart("shellies/garage/relay/0/command", 1000)
//
// # Error Handling
//
// Writes are non-blocking and batched; failures are delivered to the
// SetOnError callback. Connection and health check errors are returned.
package influxdb
