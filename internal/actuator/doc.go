// Package actuator converts momentary triggers into timed relay pulses.
//
// A trigger arrives on <base>/set with the relay command topic as payload.
// The actuator looks the topic up in the current switch mapping, publishes
// the on command immediately and schedules a one-shot release job that
// publishes the off command switchTimeMs later:
//
//	<base>/set  "shellies/garage/relay/0/command"
//	  -> shellies/garage/relay/0/command  "on"   (now)
//	  -> shellies/garage/relay/0/command  "off"  (now + switchTimeMs)
//
// The off command is captured in the ReleaseTask when the pulse starts, so a
// mapping change in the middle of a pulse does not alter it. Repeated
// triggers are not coalesced; each one gets its own release.
//
// Unknown or malformed topics produce a *ConfigLookupError and publish
// nothing.
//
// The package also provides the Heartbeat task, which publishes a timestamp
// and the subscription catalog at a fixed interval.
package actuator
