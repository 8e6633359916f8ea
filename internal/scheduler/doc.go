// Package scheduler provides the cooperative timer engine that drives the
// KlickKlack agent.
//
// A Scheduler holds two kinds of jobs:
//   - Repeating jobs, registered with ScheduleEach, which re-arm after every
//     firing (MQTT inbox drain, config refresh, heartbeat).
//   - One-shot jobs, registered with ScheduleOnce, which fire exactly once
//     and are then discarded (relay release).
//
// Nothing happens in the background. Time only advances when an external
// driver calls Step, and every due job runs synchronously inside that call,
// one after another. Timing precision is therefore bounded by the driver
// cadence (the agent steps every 250ms by default).
//
// # Error boundary
//
// Each job runs inside its own boundary: a returned error or a panic is
// logged, counted in Stats, and the remaining due jobs of the same step
// still run. A job can never stop the driver loop.
//
// # Ordering
//
// Jobs due in the same step run in (NextFireAt, registration order), so jobs
// due at the same instant fire in insertion order. There is no priority and
// no cancellation.
//
// # Usage
//
//	sched := scheduler.New(scheduler.WithLogger(log))
//	sched.ScheduleEach(scheduler.TaskFunc(heartbeat), 10*time.Second)
//	sched.ScheduleOnce(release, time.Second)
//
//	for {
//	    sched.Step()
//	    time.Sleep(250 * time.Millisecond)
//	}
package scheduler
