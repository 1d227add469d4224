package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amberhub/amber-core/internal/bus"
	"github.com/amberhub/amber-core/internal/infrastructure/mqtt"
	"github.com/amberhub/amber-core/internal/state"
)

// ─── Test Fixtures ───────────────────────────────────────────────────────────

// fireRecorder collects trigger activations.
type fireRecorder struct {
	mu    sync.Mutex
	fires []map[string]any
}

func (f *fireRecorder) callback(_ context.Context, vars map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fires = append(f.fires, vars)
}

func (f *fireRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fires)
}

func (f *fireRecorder) last() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.fires) == 0 {
		return nil
	}
	return f.fires[len(f.fires)-1]
}

// mockMQTT records subscriptions without a broker.
type mockMQTT struct {
	mu       sync.Mutex
	handlers map[string]mqtt.MessageHandler
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTT) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	return nil
}

func (m *mockMQTT) deliver(topic string, payload []byte) {
	m.mu.Lock()
	handler := m.handlers[topic]
	m.mu.Unlock()
	if handler != nil {
		handler(topic, payload) //nolint:errcheck // Test delivery
	}
}

// mockResolver implements DeviceResolver.
type mockResolver struct {
	validateErr error
	attached    int
	fire        func(ctx context.Context, vars map[string]any)
}

func (m *mockResolver) ValidateTrigger(_ map[string]any) error { return m.validateErr }

func (m *mockResolver) AttachTrigger(_ context.Context, _ map[string]any, fire func(ctx context.Context, vars map[string]any)) (func(), error) {
	m.attached++
	m.fire = fire
	return func() { m.attached-- }, nil
}

func testEnv(t *testing.T) (Environment, *bus.Bus, *state.Machine) {
	t.Helper()
	b := bus.New(nil)
	m := state.NewMachine(b, nil, nil)
	return Environment{Bus: b, States: m}, b, m
}

// ─── Event Platform ──────────────────────────────────────────────────────────

func TestEventTrigger(t *testing.T) {
	env, b, _ := testEnv(t)
	rec := &fireRecorder{}
	ctx := context.Background()

	detach, err := NewRegistry().Attach(ctx, env, Config{
		"platform":   "event",
		"event_type": "custom_event",
		"event_data": map[string]any{"source": "test"},
	}, rec.callback)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer detach()

	b.Fire(ctx, "custom_event", map[string]any{"source": "test", "extra": 1})
	b.Fire(ctx, "custom_event", map[string]any{"source": "other"})
	b.Fire(ctx, "unrelated_event", map[string]any{"source": "test"})

	if rec.count() != 1 {
		t.Fatalf("expected 1 fire, got %d", rec.count())
	}
	if rec.last()["event_type"] != "custom_event" {
		t.Errorf("vars = %v", rec.last())
	}
}

func TestEventTriggerNestedEventData(t *testing.T) {
	env, b, _ := testEnv(t)
	rec := &fireRecorder{}
	ctx := context.Background()

	detach, err := NewRegistry().Attach(ctx, env, Config{
		"platform":   "event",
		"event_type": "zone_report",
		"event_data": map[string]any{
			"zone": map[string]any{"floor": "ground", "name": "hall"},
		},
	}, rec.callback)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer detach()

	// Map-valued event data must match by content, not identity.
	b.Fire(ctx, "zone_report", map[string]any{
		"zone": map[string]any{"floor": "ground", "name": "hall"},
	})
	b.Fire(ctx, "zone_report", map[string]any{
		"zone": map[string]any{"floor": "first", "name": "landing"},
	})

	if rec.count() != 1 {
		t.Fatalf("expected 1 fire, got %d", rec.count())
	}
}

func TestEventTriggerValidation(t *testing.T) {
	r := NewRegistry()

	if err := r.Validate(Config{"platform": "event"}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("missing event_type: error = %v, want ErrInvalidConfig", err)
	}
	if err := r.Validate(Config{"platform": "bogus"}); !errors.Is(err, ErrUnknownPlatform) {
		t.Errorf("unknown platform: error = %v, want ErrUnknownPlatform", err)
	}
	if err := r.Validate(Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("missing platform: error = %v, want ErrInvalidConfig", err)
	}
}

// ─── State Platform ──────────────────────────────────────────────────────────

func TestStateTriggerFromTo(t *testing.T) {
	env, _, machine := testEnv(t)
	rec := &fireRecorder{}
	ctx := context.Background()

	detach, err := NewRegistry().Attach(ctx, env, Config{
		"platform":  "state",
		"entity_id": "light.living_room",
		"from":      "off",
		"to":        "on",
	}, rec.callback)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer detach()

	machine.Set(ctx, "light.living_room", "off", nil)
	machine.Set(ctx, "light.living_room", "on", nil) // off -> on: fires
	machine.Set(ctx, "light.living_room", "off", nil)
	machine.Set(ctx, "other.entity", "on", nil) // not watched

	if rec.count() != 1 {
		t.Fatalf("expected 1 fire, got %d", rec.count())
	}
	vars := rec.last()
	if vars["from_state"] != "off" || vars["to_state"] != "on" {
		t.Errorf("vars = %v", vars)
	}
}

func TestStateTriggerAnyChange(t *testing.T) {
	env, _, machine := testEnv(t)
	rec := &fireRecorder{}
	ctx := context.Background()

	detach, err := NewRegistry().Attach(ctx, env, Config{
		"platform":  "state",
		"entity_id": "cover.garage",
	}, rec.callback)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer detach()

	machine.Set(ctx, "cover.garage", "opening", nil)
	machine.Set(ctx, "cover.garage", "open", nil)

	if rec.count() != 2 {
		t.Errorf("expected 2 fires, got %d", rec.count())
	}
}

func TestStateTriggerNotTo(t *testing.T) {
	env, _, machine := testEnv(t)
	rec := &fireRecorder{}
	ctx := context.Background()

	detach, err := NewRegistry().Attach(ctx, env, Config{
		"platform":  "state",
		"entity_id": "sensor.link",
		"not_to":    []any{"unknown", "unavailable"},
	}, rec.callback)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer detach()

	machine.Set(ctx, "sensor.link", "up", nil)          // fires
	machine.Set(ctx, "sensor.link", "unavailable", nil) // excluded
	machine.Set(ctx, "sensor.link", "down", nil)        // fires

	if rec.count() != 2 {
		t.Errorf("expected 2 fires, got %d", rec.count())
	}
}

func TestStateTriggerAttribute(t *testing.T) {
	env, _, machine := testEnv(t)
	rec := &fireRecorder{}
	ctx := context.Background()

	detach, err := NewRegistry().Attach(ctx, env, Config{
		"platform":  "state",
		"entity_id": "light.living_room",
		"attribute": "brightness",
	}, rec.callback)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer detach()

	machine.Set(ctx, "light.living_room", "on", map[string]any{"brightness": 100})
	machine.Set(ctx, "light.living_room", "on", map[string]any{"brightness": 200})
	machine.Set(ctx, "light.living_room", "off", map[string]any{"brightness": 200}) // attribute unchanged

	if rec.count() != 2 {
		t.Errorf("expected 2 fires, got %d", rec.count())
	}
}

func TestStateTriggerFor(t *testing.T) {
	env, _, machine := testEnv(t)
	rec := &fireRecorder{}
	ctx := context.Background()

	detach, err := NewRegistry().Attach(ctx, env, Config{
		"platform":  "state",
		"entity_id": "binary_sensor.door",
		"to":        "on",
		"for":       "50ms",
	}, rec.callback)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer detach()

	machine.Set(ctx, "binary_sensor.door", "on", nil)
	if rec.count() != 0 {
		t.Fatal("fired before sustain duration elapsed")
	}

	time.Sleep(120 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("expected 1 fire after sustain, got %d", rec.count())
	}

	// A change during the hold window cancels the pending fire.
	machine.Set(ctx, "binary_sensor.door", "off", nil)
	machine.Set(ctx, "binary_sensor.door", "on", nil)
	machine.Set(ctx, "binary_sensor.door", "off", nil) // cancels
	time.Sleep(120 * time.Millisecond)
	if rec.count() != 1 {
		t.Errorf("cancelled hold still fired, count = %d", rec.count())
	}
}

func TestStateTriggerValidation(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing entity_id", Config{"platform": "state"}},
		{"bad entity_id", Config{"platform": "state", "entity_id": "nodot"}},
		{"from and not_from", Config{
			"platform": "state", "entity_id": "a.b",
			"from": "x", "not_from": "y",
		}},
		{"bad for", Config{
			"platform": "state", "entity_id": "a.b", "for": "not-a-duration",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Validate(tt.cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

// ─── Numeric State Platform ──────────────────────────────────────────────────

func TestNumericStateTriggerCrossing(t *testing.T) {
	env, _, machine := testEnv(t)
	rec := &fireRecorder{}
	ctx := context.Background()

	detach, err := NewRegistry().Attach(ctx, env, Config{
		"platform":  "numeric_state",
		"entity_id": "sensor.office_temperature",
		"above":     25,
	}, rec.callback)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer detach()

	machine.Set(ctx, "sensor.office_temperature", "24.5", nil) // below
	machine.Set(ctx, "sensor.office_temperature", "26.0", nil) // crossing: fires
	machine.Set(ctx, "sensor.office_temperature", "27.0", nil) // still above: no re-fire
	machine.Set(ctx, "sensor.office_temperature", "20.0", nil) // back below
	machine.Set(ctx, "sensor.office_temperature", "25.5", nil) // crossing again: fires

	if rec.count() != 2 {
		t.Fatalf("expected 2 fires, got %d", rec.count())
	}
	if rec.last()["value"] != 25.5 {
		t.Errorf("value = %v, want 25.5", rec.last()["value"])
	}
}

func TestNumericStateTriggerBand(t *testing.T) {
	env, _, machine := testEnv(t)
	rec := &fireRecorder{}
	ctx := context.Background()

	detach, err := NewRegistry().Attach(ctx, env, Config{
		"platform":  "numeric_state",
		"entity_id": "sensor.humidity",
		"above":     40,
		"below":     60,
	}, rec.callback)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	defer detach()

	machine.Set(ctx, "sensor.humidity", "65", nil) // above band
	machine.Set(ctx, "sensor.humidity", "50", nil) // enters band: fires
	machine.Set(ctx, "sensor.humidity", "45", nil) // stays in band

	if rec.count() != 1 {
		t.Errorf("expected 1 fire, got %d", rec.count())
	}
}

func TestNumericStateTriggerValidation(t *testing.T) {
	r := NewRegistry()

	err := r.Validate(Config{"platform": "numeric_state", "entity_id": "sensor.x"})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("missing above/below: error = %v, want ErrInvalidConfig", err)
	}
}

// ─── MQTT Platform ───────────────────────────────────────────────────────────

func TestMQTTTrigger(t *testing.T) {
	env, _, _ := testEnv(t)
	client := newMockMQTT()
	env.MQTT = client
	rec := &fireRecorder{}
	ctx := context.Background()

	detach, err := NewRegistry().Attach(ctx, env, Config{
		"platform": "mqtt",
		"topic":    "shellies/shelly1-kitchen/input_event/0",
		"payload":  `{"event":"S"}`,
	}, rec.callback)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}

	client.deliver("shellies/shelly1-kitchen/input_event/0", []byte(`{"event":"S"}`))
	client.deliver("shellies/shelly1-kitchen/input_event/0", []byte(`{"event":"L"}`)) // payload mismatch

	if rec.count() != 1 {
		t.Fatalf("expected 1 fire, got %d", rec.count())
	}
	if rec.last()["payload"] != `{"event":"S"}` {
		t.Errorf("vars = %v", rec.last())
	}

	detach()
	if len(client.handlers) != 0 {
		t.Error("detach should unsubscribe")
	}
}

func TestMQTTTriggerWithoutClient(t *testing.T) {
	env, _, _ := testEnv(t)
	rec := &fireRecorder{}

	_, err := NewRegistry().Attach(context.Background(), env, Config{
		"platform": "mqtt",
		"topic":    "some/topic",
	}, rec.callback)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Attach() without MQTT error = %v, want ErrInvalidConfig", err)
	}
}

// ─── Time Platform ───────────────────────────────────────────────────────────

func TestTimeTriggerValidation(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid at", Config{"platform": "time", "at": "07:30:00"}, false},
		{"valid every", Config{"platform": "time", "every": "15m"}, false},
		{"neither", Config{"platform": "time"}, true},
		{"both", Config{"platform": "time", "at": "07:30:00", "every": "15m"}, true},
		{"bad at format", Config{"platform": "time", "at": "7:30"}, true},
		{"zero every", Config{"platform": "time", "every": "not-a-duration"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Validate(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimeTriggerInterval(t *testing.T) {
	env, _, _ := testEnv(t)
	rec := &fireRecorder{}
	ctx := context.Background()

	detach, err := NewRegistry().Attach(ctx, env, Config{
		"platform": "time",
		"every":    "30ms",
	}, rec.callback)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	detach()
	fired := rec.count()
	if fired < 2 {
		t.Errorf("expected at least 2 interval fires, got %d", fired)
	}

	time.Sleep(80 * time.Millisecond)
	if rec.count() != fired {
		t.Error("interval kept firing after detach")
	}
}

// ─── Device Platform ─────────────────────────────────────────────────────────

func TestDeviceTriggerDelegates(t *testing.T) {
	env, _, _ := testEnv(t)
	resolver := &mockResolver{}
	env.Devices = resolver
	rec := &fireRecorder{}
	ctx := context.Background()

	cfg := Config{
		"platform":  "device",
		"device_id": "dev-1",
		"domain":    "shelly",
		"type":      "double_push",
	}

	detach, err := NewRegistry().Attach(ctx, env, cfg, rec.callback)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if resolver.attached != 1 {
		t.Fatalf("resolver.attached = %d, want 1", resolver.attached)
	}

	resolver.fire(ctx, map[string]any{"platform": "device", "type": "double_push"})
	if rec.count() != 1 {
		t.Errorf("expected delegated fire to reach callback, got %d", rec.count())
	}

	detach()
	if resolver.attached != 0 {
		t.Errorf("resolver.attached after detach = %d, want 0", resolver.attached)
	}
}

func TestDeviceTriggerValidationFailure(t *testing.T) {
	env, _, _ := testEnv(t)
	env.Devices = &mockResolver{validateErr: errors.New("no such trigger type")}
	rec := &fireRecorder{}

	_, err := NewRegistry().Attach(context.Background(), env, Config{
		"platform":  "device",
		"device_id": "dev-1",
		"domain":    "shelly",
		"type":      "bogus",
	}, rec.callback)
	if err == nil {
		t.Error("Attach() should fail when the resolver rejects the config")
	}
}

// ─── AttachAll ───────────────────────────────────────────────────────────────

func TestAttachAllRollsBackOnError(t *testing.T) {
	env, b, _ := testEnv(t)
	rec := &fireRecorder{}
	ctx := context.Background()

	cfgs := []Config{
		{"platform": "event", "event_type": "first"},
		{"platform": "bogus"},
	}

	_, err := NewRegistry().AttachAll(ctx, env, cfgs, rec.callback)
	if !errors.Is(err, ErrUnknownPlatform) {
		t.Fatalf("AttachAll() error = %v, want ErrUnknownPlatform", err)
	}

	// The first trigger must have been detached during rollback.
	b.Fire(ctx, "first", nil)
	if rec.count() != 0 {
		t.Error("rolled-back trigger still fired")
	}
}

func TestAttachAllDetachesAll(t *testing.T) {
	env, b, _ := testEnv(t)
	rec := &fireRecorder{}
	ctx := context.Background()

	detach, err := NewRegistry().AttachAll(ctx, env, []Config{
		{"platform": "event", "event_type": "one"},
		{"platform": "event", "event_type": "two"},
	}, rec.callback)
	if err != nil {
		t.Fatalf("AttachAll() error = %v", err)
	}

	b.Fire(ctx, "one", nil)
	b.Fire(ctx, "two", nil)
	if rec.count() != 2 {
		t.Fatalf("expected 2 fires, got %d", rec.count())
	}

	detach()
	b.Fire(ctx, "one", nil)
	b.Fire(ctx, "two", nil)
	if rec.count() != 2 {
		t.Error("triggers still firing after detach")
	}
}
