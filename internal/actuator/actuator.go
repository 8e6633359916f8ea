package actuator

import (
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/klickklack/internal/infrastructure/mqtt"
	"github.com/nerrad567/klickklack/internal/scheduler"
	"github.com/nerrad567/klickklack/internal/switchconfig"
)

// Logger is the logging interface used by the actuator.
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

// Transport is the subset of the MQTT client the actuator needs.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	SubscriptionCatalog() []string
}

// Scheduler registers delayed work. *scheduler.Scheduler satisfies it.
type Scheduler interface {
	ScheduleOnce(task scheduler.Task, delay time.Duration) (string, error)
	Len() int
}

// Recorder receives pulse and heartbeat telemetry. *influxdb.Client
// satisfies it. Recording is optional.
type Recorder interface {
	RecordPulseStart(topic string, switchTimeMs int)
	RecordPulseEnd(topic string)
	RecordHeartbeat(subscriptions, pendingJobs int)
}

type noopRecorder struct{}

func (noopRecorder) RecordPulseStart(string, int) {}
func (noopRecorder) RecordPulseEnd(string)        {}
func (noopRecorder) RecordHeartbeat(int, int)     {}

// Options configures an Actuator. Transport, Scheduler and Topics are required.
type Options struct {
	Transport Transport
	Scheduler Scheduler
	Topics    mqtt.Topics
	QoS       byte
	Recorder  Recorder
	Logger    Logger

	// Now stamps heartbeats. Defaults to time.Now.
	Now func() time.Time
}

// Actuator turns triggers into timed relay pulses.
//
// Per relay topic the state is implicit: Idle, or Pulsing while a release job
// is pending in the scheduler. The only state held here is the current
// mapping, replaced wholesale by OnConfigChange.
//
// Thread Safety: all methods may be called concurrently, although in the
// agent they all run on the scheduler goroutine.
type Actuator struct {
	transport Transport
	scheduler Scheduler
	topics    mqtt.Topics
	qos       byte
	recorder  Recorder
	logger    Logger
	now       func() time.Time

	mu      sync.RWMutex
	mapping switchconfig.Mapping
}

// New creates an Actuator with an empty mapping.
func New(opts Options) *Actuator {
	a := &Actuator{
		transport: opts.Transport,
		scheduler: opts.Scheduler,
		topics:    opts.Topics,
		qos:       opts.QoS,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
		now:       opts.Now,
		mapping:   switchconfig.Mapping{},
	}
	if a.recorder == nil {
		a.recorder = noopRecorder{}
	}
	if a.logger == nil {
		a.logger = noopLogger{}
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Subscribe registers HandleSet on the trigger topic.
func (a *Actuator) Subscribe() error {
	if err := a.transport.Subscribe(a.topics.Set(), a.qos, a.HandleSet); err != nil {
		return fmt.Errorf("subscribing to %s: %w", a.topics.Set(), err)
	}
	return nil
}

// OnConfigChange replaces the current mapping. Pending releases keep the off
// command captured when they were triggered.
func (a *Actuator) OnConfigChange(m switchconfig.Mapping) {
	if m == nil {
		m = switchconfig.Mapping{}
	}
	a.mu.Lock()
	a.mapping = m
	a.mu.Unlock()

	a.logger.Debug("switch mapping replaced", "switches", len(m))
}

// HandleSet is the MQTT handler for the trigger topic. The payload, byte for
// byte, is the relay topic to pulse: "garageDoor\n" is not "garageDoor".
// Errors are logged and swallowed so one bad trigger never disturbs the loop.
func (a *Actuator) HandleSet(_ string, payload []byte) error {
	topic := string(payload)
	if err := a.OnTrigger(topic); err != nil {
		a.logger.Warn("trigger dropped", "topic", topic, "error", err)
	}
	return nil
}

// OnTrigger starts a pulse on topic: the on command is published now and a
// release job publishing the off command is scheduled switchTimeMs later.
//
// Overlapping triggers on the same topic are independent: each one publishes
// its own on command and schedules its own release.
//
// Returns:
//   - error: *ConfigLookupError if topic has no valid entry (nothing is
//     published), ErrTransport if the on command fails (no release is
//     scheduled), or the scheduler's registration error
func (a *Actuator) OnTrigger(topic string) error {
	sc, err := a.lookup(topic)
	if err != nil {
		return err
	}

	if err := a.transport.Publish(sc.Topic, []byte(sc.OnCommand), a.qos, false); err != nil {
		return fmt.Errorf("%w: publishing on command to %s: %w", ErrTransport, sc.Topic, err)
	}

	release := &ReleaseTask{
		Topic:     sc.Topic,
		Payload:   sc.OffCommand,
		transport: a.transport,
		qos:       a.qos,
		recorder:  a.recorder,
	}
	delay := time.Duration(sc.SwitchTimeMs) * time.Millisecond
	jobID, err := a.scheduler.ScheduleOnce(release, delay)
	if err != nil {
		return fmt.Errorf("scheduling release of %s: %w", sc.Topic, err)
	}

	a.recorder.RecordPulseStart(sc.Topic, sc.SwitchTimeMs)
	a.logger.Info("pulse started",
		"topic", sc.Topic,
		"switch_time_ms", sc.SwitchTimeMs,
		"release_job", jobID,
	)
	return nil
}

func (a *Actuator) lookup(topic string) (switchconfig.SwitchConfig, error) {
	if topic == "" {
		return switchconfig.SwitchConfig{}, &ConfigLookupError{Topic: topic, Reason: "empty topic"}
	}

	a.mu.RLock()
	entry, ok := a.mapping[topic]
	a.mu.RUnlock()

	if !ok {
		return switchconfig.SwitchConfig{}, &ConfigLookupError{Topic: topic, Reason: "not configured"}
	}

	sc, err := entry.Resolve(topic)
	if err != nil {
		return switchconfig.SwitchConfig{}, &ConfigLookupError{Topic: topic, Reason: err.Error()}
	}
	return sc, nil
}

// ReleaseTask publishes the off command of one pulse. Topic and Payload are
// fixed when the pulse starts, so later config changes do not affect it.
type ReleaseTask struct {
	Topic   string
	Payload string

	transport Transport
	qos       byte
	recorder  Recorder
}

// Run publishes the off command.
func (r *ReleaseTask) Run() error {
	if err := r.transport.Publish(r.Topic, []byte(r.Payload), r.qos, false); err != nil {
		return fmt.Errorf("%w: publishing off command to %s: %w", ErrTransport, r.Topic, err)
	}
	if r.recorder != nil {
		r.recorder.RecordPulseEnd(r.Topic)
	}
	return nil
}

// String identifies the task in scheduler logs.
func (r *ReleaseTask) String() string {
	return "release " + r.Topic
}
