// Package agent is the application context of the KlickKlack relay-pulse
// agent.
//
// An Agent owns every runtime component: the Scheduler, the switch
// configuration Store and the Actuator. It is built from explicit
// dependencies (transport, repository, recorder, logger), so there are no
// package-level globals and tests can substitute fakes for the broker and the
// database.
//
// Lifecycle:
//
//	a := agent.New(agent.Deps{...})
//	if err := a.Setup(ctx); err != nil { ... }
//	defer a.Close()
//	err := a.Run(ctx) // steps the scheduler every cadence until ctx is done
//
// Setup registers the repeating jobs:
//
//	mqtt inbox drain   every poll_interval_ms       (default 500ms)
//	switch config loop every config_interval_ms     (default 60s)
//	heartbeat          every heartbeat_interval_ms  (default 10s)
//
// Relay releases are one-shot jobs added by the Actuator at trigger time.
package agent
