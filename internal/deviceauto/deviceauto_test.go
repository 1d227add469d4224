package deviceauto

import (
	"context"
	"errors"
	"testing"

	"github.com/amberhub/amber-core/internal/device"
)

// ─── Test Fixtures ───────────────────────────────────────────────────────────

type mockDevices struct {
	devices map[string]*device.Device
}

func (m *mockDevices) Get(_ context.Context, id string) (*device.Device, error) {
	d, ok := m.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d, nil
}

type mockProvider struct {
	triggerCaps   []Capability
	validateErr   error
	attached      int
	detached      int
	ranActions    []map[string]any
	conditionPass bool
}

func (m *mockProvider) DeviceTriggers(_ context.Context, _ *device.Device) []Capability {
	return m.triggerCaps
}

func (m *mockProvider) ValidateTrigger(_ map[string]any) error { return m.validateErr }

func (m *mockProvider) AttachTrigger(_ context.Context, _ map[string]any, _ func(context.Context, map[string]any)) (func(), error) {
	if m.validateErr != nil {
		return nil, m.validateErr
	}
	m.attached++
	return func() { m.detached++ }, nil
}

func (m *mockProvider) DeviceConditions(_ context.Context, _ *device.Device) []Capability {
	return nil
}

func (m *mockProvider) ValidateCondition(_ map[string]any) error { return m.validateErr }

func (m *mockProvider) BuildCondition(_ map[string]any) (func(context.Context) bool, error) {
	if m.validateErr != nil {
		return nil, m.validateErr
	}
	return func(context.Context) bool { return m.conditionPass }, nil
}

func (m *mockProvider) DeviceActions(_ context.Context, _ *device.Device) []Capability {
	return nil
}

func (m *mockProvider) ValidateAction(_ map[string]any) error { return m.validateErr }

func (m *mockProvider) RunAction(_ context.Context, cfg map[string]any) error {
	m.ranActions = append(m.ranActions, cfg)
	return nil
}

func setupRegistry(t *testing.T) (*Registry, *mockProvider) {
	t.Helper()
	devices := &mockDevices{devices: map[string]*device.Device{
		"shelly-1": {ID: "shelly-1", Integration: "shelly"},
	}}
	reg := NewRegistry(devices)
	provider := &mockProvider{
		triggerCaps: []Capability{
			{"device_id": "shelly-1", "domain": "shelly", "type": "single_push", "subtype": "button_1"},
		},
	}
	reg.RegisterTriggerProvider("shelly", provider)
	reg.RegisterConditionProvider("shelly", provider)
	reg.RegisterActionProvider("shelly", provider)
	return reg, provider
}

func shellyCfg() map[string]any {
	return map[string]any{"device_id": "shelly-1", "domain": "shelly", "type": "single_push"}
}

// ─── Listing ─────────────────────────────────────────────────────────────────

func TestListDeviceTriggers(t *testing.T) {
	reg, _ := setupRegistry(t)

	caps, err := reg.ListDeviceTriggers(context.Background(), "shelly-1")
	if err != nil {
		t.Fatalf("ListDeviceTriggers() error = %v", err)
	}
	if len(caps) != 1 || caps[0]["type"] != "single_push" {
		t.Errorf("caps = %v", caps)
	}
}

func TestListUnknownDevice(t *testing.T) {
	reg, _ := setupRegistry(t)

	_, err := reg.ListDeviceTriggers(context.Background(), "ghost")
	if !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("error = %v, want ErrDeviceNotFound", err)
	}
}

// ─── Trigger routing ─────────────────────────────────────────────────────────

func TestAttachTriggerRoutesToProvider(t *testing.T) {
	reg, provider := setupRegistry(t)

	detach, err := reg.AttachTrigger(context.Background(), shellyCfg(), func(context.Context, map[string]any) {})
	if err != nil {
		t.Fatalf("AttachTrigger() error = %v", err)
	}
	if provider.attached != 1 {
		t.Errorf("attached = %d, want 1", provider.attached)
	}

	detach()
	if provider.detached != 1 {
		t.Errorf("detached = %d, want 1", provider.detached)
	}
}

func TestValidateTriggerWrapsVendorError(t *testing.T) {
	reg, provider := setupRegistry(t)
	provider.validateErr = errors.New("no such button")

	err := reg.ValidateTrigger(shellyCfg())
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestUnknownDomain(t *testing.T) {
	reg, _ := setupRegistry(t)

	cfg := map[string]any{"device_id": "x", "domain": "toaster", "type": "pop"}
	if err := reg.ValidateTrigger(cfg); !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("trigger error = %v, want ErrUnknownDomain", err)
	}
	if err := reg.ValidateCondition(cfg); !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("condition error = %v, want ErrUnknownDomain", err)
	}
	if err := reg.ValidateAction(cfg); !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("action error = %v, want ErrUnknownDomain", err)
	}
}

func TestMissingDomain(t *testing.T) {
	reg, _ := setupRegistry(t)

	err := reg.ValidateTrigger(map[string]any{"device_id": "x"})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

// ─── Condition and action routing ────────────────────────────────────────────

func TestBuildCondition(t *testing.T) {
	reg, provider := setupRegistry(t)
	provider.conditionPass = true

	check, err := reg.BuildCondition(shellyCfg())
	if err != nil {
		t.Fatalf("BuildCondition() error = %v", err)
	}
	if !check(context.Background()) {
		t.Error("condition should pass")
	}
}

func TestRunAction(t *testing.T) {
	reg, provider := setupRegistry(t)

	if err := reg.RunAction(context.Background(), shellyCfg()); err != nil {
		t.Fatalf("RunAction() error = %v", err)
	}
	if len(provider.ranActions) != 1 {
		t.Errorf("actions run = %d, want 1", len(provider.ranActions))
	}
}
