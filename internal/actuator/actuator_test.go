package actuator

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/klickklack/internal/infrastructure/mqtt"
	"github.com/nerrad567/klickklack/internal/scheduler"
	"github.com/nerrad567/klickklack/internal/switchconfig"
)

// ─── Fakes ──────────────────────────────────────────────────────────────────

type publishedMessage struct {
	Topic    string
	Payload  string
	QoS      byte
	Retained bool
	At       time.Time
}

// mockMQTT records published messages and subscriptions.
type mockMQTT struct {
	mu         sync.Mutex
	clock      *scheduler.ManualClock
	published  []publishedMessage
	handlers   map[string]mqtt.MessageHandler
	publishErr error
}

func newMockMQTT(clock *scheduler.ManualClock) *mockMQTT {
	return &mockMQTT{clock: clock, handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockMQTT) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, publishedMessage{
		Topic:    topic,
		Payload:  string(payload),
		QoS:      qos,
		Retained: retained,
		At:       m.clock.Now(),
	})
	return nil
}

func (m *mockMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTT) SubscriptionCatalog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.handlers))
	for topic := range m.handlers {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

func (m *mockMQTT) messages() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publishedMessage(nil), m.published...)
}

func (m *mockMQTT) failWith(err error) {
	m.mu.Lock()
	m.publishErr = err
	m.mu.Unlock()
}

type pulseEvent struct {
	phase string
	topic string
}

type fakeRecorder struct {
	pulses     []pulseEvent
	heartbeats int
	lastSubs   int
	lastJobs   int
}

func (r *fakeRecorder) RecordPulseStart(topic string, _ int) {
	r.pulses = append(r.pulses, pulseEvent{"start", topic})
}

func (r *fakeRecorder) RecordPulseEnd(topic string) {
	r.pulses = append(r.pulses, pulseEvent{"end", topic})
}

func (r *fakeRecorder) RecordHeartbeat(subs, jobs int) {
	r.heartbeats++
	r.lastSubs, r.lastJobs = subs, jobs
}

// ─── Fixture ────────────────────────────────────────────────────────────────

const (
	baseTopic = "/house/agents/ShellyKlickKlack"
	cadence   = 250 * time.Millisecond
)

var epoch = time.Date(2026, 1, 18, 12, 0, 0, 0, time.UTC)

type fixture struct {
	clock     *scheduler.ManualClock
	sched     *scheduler.Scheduler
	transport *mockMQTT
	recorder  *fakeRecorder
	actuator  *Actuator
}

func newFixture(t *testing.T, mapping switchconfig.Mapping) *fixture {
	t.Helper()

	clock := scheduler.NewManualClock(epoch)
	sched := scheduler.New(scheduler.WithClock(clock))
	transport := newMockMQTT(clock)
	recorder := &fakeRecorder{}

	a := New(Options{
		Transport: transport,
		Scheduler: sched,
		Topics:    mqtt.NewTopics(baseTopic),
		QoS:       1,
		Recorder:  recorder,
		Now:       clock.Now,
	})
	a.OnConfigChange(mapping)

	return &fixture{clock: clock, sched: sched, transport: transport, recorder: recorder, actuator: a}
}

// advance steps the scheduler every cadence for d.
func (f *fixture) advance(d time.Duration) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += cadence {
		f.clock.Advance(cadence)
		f.sched.Step()
	}
}

var garageMapping = switchconfig.Mapping{
	"garageDoor": switchconfig.NewEntry("on", "off", 1000),
}

// ─── OnTrigger ──────────────────────────────────────────────────────────────

func TestOnTrigger_GarageDoorPulse(t *testing.T) {
	f := newFixture(t, garageMapping)

	if err := f.actuator.OnTrigger("garageDoor"); err != nil {
		t.Fatalf("OnTrigger() error = %v", err)
	}

	msgs := f.transport.messages()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages immediately, want 1", len(msgs))
	}
	if msgs[0].Topic != "garageDoor" || msgs[0].Payload != "on" {
		t.Errorf("immediate message = %s %q, want garageDoor \"on\"", msgs[0].Topic, msgs[0].Payload)
	}
	if msgs[0].Retained {
		t.Error("on command published retained")
	}

	f.advance(3 * time.Second)

	msgs = f.transport.messages()
	if len(msgs) != 2 {
		t.Fatalf("published %d messages in total, want 2", len(msgs))
	}
	off := msgs[1]
	if off.Topic != "garageDoor" || off.Payload != "off" {
		t.Errorf("release message = %s %q, want garageDoor \"off\"", off.Topic, off.Payload)
	}

	elapsed := off.At.Sub(epoch)
	if elapsed < time.Second || elapsed > time.Second+cadence {
		t.Errorf("off published after %v, want within [1s, 1s+cadence]", elapsed)
	}

	if f.sched.Len() != 0 {
		t.Errorf("scheduler still holds %d jobs after release", f.sched.Len())
	}

	want := []pulseEvent{{"start", "garageDoor"}, {"end", "garageDoor"}}
	if len(f.recorder.pulses) != 2 || f.recorder.pulses[0] != want[0] || f.recorder.pulses[1] != want[1] {
		t.Errorf("recorded pulses = %v, want %v", f.recorder.pulses, want)
	}
}

func TestOnTrigger_LookupFailures(t *testing.T) {
	mapping := switchconfig.Mapping{
		"garageDoor": switchconfig.NewEntry("on", "off", 1000),
		"noOff":      {On: strPtr("on"), SwitchTimeMs: intPtr(1000)},
		"zeroTime":   switchconfig.NewEntry("on", "off", 0),
		"noTime":     {On: strPtr("on"), Off: strPtr("off")},
	}

	tests := []struct {
		name  string
		topic string
	}{
		{"unknown channel", "unknownChannel"},
		{"missing off", "noOff"},
		{"zero switch time", "zeroTime"},
		{"missing switch time", "noTime"},
		{"empty topic", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, mapping)

			err := f.actuator.OnTrigger(tt.topic)

			var lookupErr *ConfigLookupError
			if !errors.As(err, &lookupErr) {
				t.Fatalf("OnTrigger() error = %v, want *ConfigLookupError", err)
			}
			if !errors.Is(err, ErrConfigLookup) {
				t.Error("errors.Is(err, ErrConfigLookup) = false")
			}
			if lookupErr.Topic != tt.topic {
				t.Errorf("ConfigLookupError.Topic = %q, want %q", lookupErr.Topic, tt.topic)
			}

			f.advance(3 * time.Second)

			if msgs := f.transport.messages(); len(msgs) != 0 {
				t.Errorf("published %d messages, want 0", len(msgs))
			}
			if f.sched.Len() != 0 {
				t.Errorf("scheduled %d jobs, want 0", f.sched.Len())
			}
		})
	}
}

func TestOnTrigger_ConfigChangeMidPulseKeepsOffPayload(t *testing.T) {
	f := newFixture(t, garageMapping)

	if err := f.actuator.OnTrigger("garageDoor"); err != nil {
		t.Fatalf("OnTrigger() error = %v", err)
	}

	f.advance(500 * time.Millisecond)
	f.actuator.OnConfigChange(switchconfig.Mapping{
		"garageDoor": switchconfig.NewEntry("ON", "STOP", 5000),
	})
	f.advance(2 * time.Second)

	msgs := f.transport.messages()
	if len(msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(msgs))
	}
	if msgs[1].Payload != "off" {
		t.Errorf("release payload = %q, want \"off\" captured at trigger time", msgs[1].Payload)
	}
}

func TestOnTrigger_ConfigRemovalMidPulseStillReleases(t *testing.T) {
	f := newFixture(t, garageMapping)

	if err := f.actuator.OnTrigger("garageDoor"); err != nil {
		t.Fatalf("OnTrigger() error = %v", err)
	}
	f.actuator.OnConfigChange(switchconfig.Mapping{})
	f.advance(2 * time.Second)

	msgs := f.transport.messages()
	if len(msgs) != 2 || msgs[1].Payload != "off" {
		t.Errorf("messages = %+v, want on then off", msgs)
	}
}

func TestOnTrigger_OverlappingTriggersReleaseTwice(t *testing.T) {
	f := newFixture(t, garageMapping)

	if err := f.actuator.OnTrigger("garageDoor"); err != nil {
		t.Fatalf("first OnTrigger() error = %v", err)
	}
	f.advance(500 * time.Millisecond)
	if err := f.actuator.OnTrigger("garageDoor"); err != nil {
		t.Fatalf("second OnTrigger() error = %v", err)
	}

	if f.sched.Count(scheduler.OneShot) != 2 {
		t.Errorf("pending releases = %d, want 2", f.sched.Count(scheduler.OneShot))
	}

	f.advance(3 * time.Second)

	var ons, offs []time.Time
	for _, m := range f.transport.messages() {
		switch m.Payload {
		case "on":
			ons = append(ons, m.At)
		case "off":
			offs = append(offs, m.At)
		}
	}

	if len(ons) != 2 || len(offs) != 2 {
		t.Fatalf("ons = %d, offs = %d, want 2 and 2", len(ons), len(offs))
	}
	for i := range offs {
		if d := offs[i].Sub(ons[i]); d < time.Second || d > time.Second+cadence {
			t.Errorf("pulse %d lasted %v, want within [1s, 1s+cadence]", i, d)
		}
	}
}

func TestOnTrigger_PublishFailure(t *testing.T) {
	f := newFixture(t, garageMapping)
	f.transport.failWith(mqtt.ErrNotConnected)

	err := f.actuator.OnTrigger("garageDoor")

	if !errors.Is(err, ErrTransport) {
		t.Errorf("OnTrigger() error = %v, want ErrTransport", err)
	}
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("OnTrigger() error = %v, want wrapped ErrNotConnected", err)
	}
	if f.sched.Len() != 0 {
		t.Errorf("release scheduled after failed on command")
	}
	if len(f.recorder.pulses) != 0 {
		t.Errorf("pulse recorded after failed on command")
	}
}

func TestRelease_PublishFailureIsReportedToScheduler(t *testing.T) {
	f := newFixture(t, garageMapping)

	if err := f.actuator.OnTrigger("garageDoor"); err != nil {
		t.Fatalf("OnTrigger() error = %v", err)
	}
	f.transport.failWith(mqtt.ErrPublishFailed)
	f.advance(2 * time.Second)

	stats := f.sched.Stats()
	if stats.Failed != 1 {
		t.Errorf("scheduler Failed = %d, want 1", stats.Failed)
	}
	if f.sched.Len() != 0 {
		t.Errorf("failed release kept in scheduler")
	}
}

// ─── HandleSet ──────────────────────────────────────────────────────────────

func TestHandleSet(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantPulse bool
	}{
		{"exact topic", "garageDoor", true},
		{"trailing newline", "garageDoor\n", false},
		{"leading space", " garageDoor", false},
		{"unknown topic", "unknownChannel", false},
		{"empty payload", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, garageMapping)

			if err := f.actuator.HandleSet(baseTopic+"/set", []byte(tt.payload)); err != nil {
				t.Errorf("HandleSet() error = %v, want nil", err)
			}

			got := len(f.transport.messages()) == 1
			if got != tt.wantPulse {
				t.Errorf("pulse started = %v, want %v", got, tt.wantPulse)
			}
		})
	}
}

func TestHandleSet_MatchesKeyByteForByte(t *testing.T) {
	padded := " garageDoor "
	f := newFixture(t, switchconfig.Mapping{padded: switchconfig.NewEntry("on", "off", 1000)})

	if err := f.actuator.HandleSet(baseTopic+"/set", []byte(padded)); err != nil {
		t.Fatalf("HandleSet() error = %v", err)
	}

	msgs := f.transport.messages()
	if len(msgs) != 1 || msgs[0].Topic != padded {
		t.Errorf("published %+v, want one message on %q", msgs, padded)
	}
}

func TestSubscribe_RegistersSetTopic(t *testing.T) {
	f := newFixture(t, garageMapping)

	if err := f.actuator.Subscribe(); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	handler, ok := f.transport.handlers[baseTopic+"/set"]
	if !ok {
		t.Fatalf("no handler for %s/set", baseTopic)
	}
	if err := handler(baseTopic+"/set", []byte("garageDoor")); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if len(f.transport.messages()) != 1 {
		t.Error("trigger through subscription did not publish")
	}
}

// ─── Heartbeat ──────────────────────────────────────────────────────────────

func TestHeartbeat_PublishesTimestampAndCatalog(t *testing.T) {
	f := newFixture(t, garageMapping)
	noop := func(string, []byte) error { return nil }
	_ = f.transport.Subscribe("zeta/topic", 1, noop)
	if err := f.actuator.Subscribe(); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := f.actuator.Heartbeat().Run(); err != nil {
		t.Fatalf("Heartbeat.Run() error = %v", err)
	}

	msgs := f.transport.messages()
	if len(msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(msgs))
	}

	if msgs[0].Topic != baseTopic+"/heartbeat" {
		t.Errorf("first topic = %s, want heartbeat", msgs[0].Topic)
	}
	if msgs[0].Payload != "2026-01-18T12:00:00Z" {
		t.Errorf("heartbeat payload = %q, want RFC3339 now", msgs[0].Payload)
	}

	if msgs[1].Topic != baseTopic+"/subscriptions" {
		t.Errorf("second topic = %s, want subscriptions", msgs[1].Topic)
	}
	var catalog []string
	if err := json.Unmarshal([]byte(msgs[1].Payload), &catalog); err != nil {
		t.Fatalf("subscriptions payload %q is not a JSON array: %v", msgs[1].Payload, err)
	}
	want := f.transport.SubscriptionCatalog()
	if len(catalog) != len(want) {
		t.Fatalf("catalog = %v, want %v", catalog, want)
	}
	for i := range want {
		if catalog[i] != want[i] {
			t.Errorf("catalog[%d] = %q, want %q", i, catalog[i], want[i])
		}
	}

	if f.recorder.heartbeats != 1 || f.recorder.lastSubs != 2 {
		t.Errorf("recorded heartbeats = %d subs = %d, want 1 and 2", f.recorder.heartbeats, f.recorder.lastSubs)
	}
}

func TestHeartbeat_EmptyCatalog(t *testing.T) {
	f := newFixture(t, garageMapping)

	if err := f.actuator.Heartbeat().Run(); err != nil {
		t.Fatalf("Heartbeat.Run() error = %v", err)
	}

	msgs := f.transport.messages()
	if len(msgs) != 2 || msgs[1].Payload != "[]" {
		t.Errorf("subscriptions payload = %+v, want []", msgs)
	}
}

func TestHeartbeat_PublishFailure(t *testing.T) {
	f := newFixture(t, garageMapping)
	f.transport.failWith(mqtt.ErrNotConnected)

	err := f.actuator.Heartbeat().Run()
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Heartbeat.Run() error = %v, want ErrTransport", err)
	}
}

func TestHeartbeat_RepeatsOnSchedule(t *testing.T) {
	f := newFixture(t, garageMapping)
	if _, err := f.sched.ScheduleEach(f.actuator.Heartbeat(), 10*time.Second); err != nil {
		t.Fatalf("ScheduleEach() error = %v", err)
	}

	f.advance(60 * time.Second)

	beats := 0
	for _, m := range f.transport.messages() {
		if m.Topic == baseTopic+"/heartbeat" {
			beats++
		}
	}
	if beats != 6 {
		t.Errorf("heartbeats = %d, want 6", beats)
	}
}

// ─── Misc ───────────────────────────────────────────────────────────────────

func TestConfigLookupError_Message(t *testing.T) {
	err := &ConfigLookupError{Topic: "garageDoor", Reason: "not configured"}
	want := `actuator: no usable switch config for "garageDoor": not configured`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestReleaseTask_String(t *testing.T) {
	r := &ReleaseTask{Topic: "garageDoor", Payload: "off"}
	if r.String() != "release garageDoor" {
		t.Errorf("String() = %q", r.String())
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
