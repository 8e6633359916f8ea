package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/klickklack/internal/actuator"
	"github.com/nerrad567/klickklack/internal/infrastructure/config"
	"github.com/nerrad567/klickklack/internal/infrastructure/logging"
	"github.com/nerrad567/klickklack/internal/infrastructure/mqtt"
	"github.com/nerrad567/klickklack/internal/scheduler"
	"github.com/nerrad567/klickklack/internal/switchconfig"
)

// Logger is the logging interface used by the agent and its components.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Transport is the message bus the agent runs on. *mqtt.Client satisfies it.
type Transport interface {
	actuator.Transport

	// Loop dispatches buffered inbound messages and returns how many ran.
	Loop() int

	// Pending and Dropped report the inbound backlog and the total number of
	// messages discarded because it was full.
	Pending() int
	Dropped() uint64
}

// Deps are the external dependencies of an Agent. Config and Transport are
// required.
type Deps struct {
	Config    *config.Config
	Transport Transport

	// Repository persists the switch mapping. Nil disables persistence.
	Repository switchconfig.Repository

	// Recorder receives pulse telemetry. Nil disables it.
	Recorder actuator.Recorder

	// Logger is split into one component logger per part. Nil discards logs.
	Logger *logging.Logger

	// Clock drives the scheduler. Defaults to the wall clock.
	Clock scheduler.Clock
}

// Agent wires the scheduler, the switch config store and the actuator.
type Agent struct {
	cfg       *config.Config
	transport Transport
	topics    mqtt.Topics
	logger    Logger

	scheduler *scheduler.Scheduler
	store     *switchconfig.Store
	actuator  *actuator.Actuator

	// lastDropped is the Dropped total seen by the previous poll.
	lastDropped uint64
}

// New builds an Agent and its components. Nothing is registered or
// subscribed until Setup.
func New(deps Deps) *Agent {
	logger := componentLogger(deps.Logger, "agent")

	schedOpts := []scheduler.Option{scheduler.WithLogger(componentLogger(deps.Logger, "scheduler"))}
	now := time.Now
	if deps.Clock != nil {
		schedOpts = append(schedOpts, scheduler.WithClock(deps.Clock))
		now = deps.Clock.Now
	}
	sched := scheduler.New(schedOpts...)

	cfg := deps.Config
	topics := mqtt.NewTopics(cfg.Agent.BaseTopic)
	qos := byte(cfg.MQTT.QoS)

	store := switchconfig.NewStore(switchconfig.StoreOptions{
		Defaults:    switchconfig.FromDefaults(cfg.Agent.Switches),
		Repository:  deps.Repository,
		Transport:   deps.Transport,
		ConfigTopic: topics.Config(),
		QoS:         qos,
		LocalFile:   cfg.Agent.SwitchesFile,
		Logger:      componentLogger(deps.Logger, "switchconfig"),
	})

	act := actuator.New(actuator.Options{
		Transport: deps.Transport,
		Scheduler: sched,
		Topics:    topics,
		QoS:       qos,
		Recorder:  deps.Recorder,
		Logger:    componentLogger(deps.Logger, "actuator"),
		Now:       now,
	})

	return &Agent{
		cfg:       cfg,
		transport: deps.Transport,
		topics:    topics,
		logger:    logger,
		scheduler: sched,
		store:     store,
		actuator:  act,
	}
}

// Setup registers the repeating jobs, loads the switch mapping and
// subscribes to the trigger topic.
//
// The actuator is subscribed to config changes before the store loads, so it
// receives the initial mapping from Store.Setup.
//
// Parameters:
//   - ctx: Context for the snapshot read
//
// Returns:
//   - error: If a job cannot be registered, the store fails to set up, or a
//     subscription fails
func (a *Agent) Setup(ctx context.Context) error {
	if _, err := a.scheduler.ScheduleEach(scheduler.TaskFunc(a.pollTransport), a.cfg.Agent.PollInterval()); err != nil {
		return fmt.Errorf("registering mqtt poll: %w", err)
	}
	if _, err := a.scheduler.ScheduleEach(scheduler.TaskFunc(a.store.Loop), a.cfg.Agent.ConfigInterval()); err != nil {
		return fmt.Errorf("registering config refresh: %w", err)
	}

	a.store.SubscribeToConfigChange(a.actuator.OnConfigChange)
	if err := a.store.Setup(ctx); err != nil {
		return fmt.Errorf("setting up switch config: %w", err)
	}

	if err := a.actuator.Subscribe(); err != nil {
		return fmt.Errorf("subscribing actuator: %w", err)
	}

	if _, err := a.scheduler.ScheduleEach(a.actuator.Heartbeat(), a.cfg.Agent.HeartbeatInterval()); err != nil {
		return fmt.Errorf("registering heartbeat: %w", err)
	}

	a.logger.Info("agent ready",
		"base_topic", a.topics.Base(),
		"cadence", a.cfg.Agent.Cadence().String(),
		"switches", len(a.store.Current()),
		"jobs", a.scheduler.Len(),
	)
	return nil
}

// Run is the driver loop: it steps the scheduler, then waits one cadence,
// until ctx is done. It returns nil on cancellation.
func (a *Agent) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Agent.Cadence())
	defer ticker.Stop()

	a.logger.Info("driver loop started")
	for {
		a.Step()

		select {
		case <-ctx.Done():
			a.logger.Info("driver loop stopped", "jobs_fired", a.scheduler.Stats().Fired)
			return nil
		case <-ticker.C:
		}
	}
}

// Step runs one scheduler step. Run calls it every cadence.
func (a *Agent) Step() scheduler.StepResult {
	return a.scheduler.Step()
}

// Close stops the switch config watcher. The transport, repository and
// recorder belong to the caller.
func (a *Agent) Close() error {
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("closing switch config: %w", err)
	}
	return nil
}

// Scheduler exposes the scheduler for inspection.
func (a *Agent) Scheduler() *scheduler.Scheduler { return a.scheduler }

// Actuator exposes the actuator so callers can trigger pulses directly.
func (a *Agent) Actuator() *actuator.Actuator { return a.actuator }

// Mapping returns a copy of the current switch mapping.
func (a *Agent) Mapping() switchconfig.Mapping { return a.store.Current() }

func (a *Agent) pollTransport() error {
	if n := a.transport.Loop(); n > 0 {
		a.logger.Debug("mqtt messages dispatched", "count", n)
	}

	if dropped := a.transport.Dropped(); dropped > a.lastDropped {
		a.logger.Warn("mqtt inbox overflowed since last poll",
			"dropped", dropped-a.lastDropped,
			"dropped_total", dropped,
			"pending", a.transport.Pending(),
		)
		a.lastDropped = dropped
	}
	return nil
}

func componentLogger(l *logging.Logger, name string) Logger {
	if l == nil {
		return noopLogger{}
	}
	return l.Component(name)
}
