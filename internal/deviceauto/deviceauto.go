package deviceauto

import (
	"context"
	"fmt"
	"sync"

	"github.com/amberhub/amber-core/internal/device"
)

// Capability describes one device trigger, condition or action a device
// supports, in the same map shape the automation editor stores. A
// trigger capability looks like:
//
//	{"device_id": "abc", "domain": "shelly", "type": "single_push", "subtype": "button_1"}
type Capability map[string]any

// TriggerProvider is implemented by integrations that expose device
// triggers. AttachTrigger reshapes the device config into the
// integration's underlying events and invokes fire when they occur.
type TriggerProvider interface {
	DeviceTriggers(ctx context.Context, dev *device.Device) []Capability
	ValidateTrigger(cfg map[string]any) error
	AttachTrigger(ctx context.Context, cfg map[string]any, fire func(ctx context.Context, vars map[string]any)) (func(), error)
}

// ConditionProvider is implemented by integrations that expose device
// conditions.
type ConditionProvider interface {
	DeviceConditions(ctx context.Context, dev *device.Device) []Capability
	ValidateCondition(cfg map[string]any) error
	BuildCondition(cfg map[string]any) (func(ctx context.Context) bool, error)
}

// ActionProvider is implemented by integrations that expose device
// actions.
type ActionProvider interface {
	DeviceActions(ctx context.Context, dev *device.Device) []Capability
	ValidateAction(cfg map[string]any) error
	RunAction(ctx context.Context, cfg map[string]any) error
}

// DeviceStore resolves device IDs for capability listing.
type DeviceStore interface {
	Get(ctx context.Context, id string) (*device.Device, error)
}

// Registry routes device automation configs to the integration that
// owns them, keyed by the config's domain. It satisfies the
// DeviceResolver interfaces of the trigger, condition and script
// packages, so those packages never import vendor code.
//
// All methods are safe for concurrent use; providers register during
// integration setup.
type Registry struct {
	mu         sync.RWMutex
	triggers   map[string]TriggerProvider
	conditions map[string]ConditionProvider
	actions    map[string]ActionProvider

	devices DeviceStore
}

// NewRegistry creates a device automation registry over the device
// store.
func NewRegistry(devices DeviceStore) *Registry {
	return &Registry{
		triggers:   make(map[string]TriggerProvider),
		conditions: make(map[string]ConditionProvider),
		actions:    make(map[string]ActionProvider),
		devices:    devices,
	}
}

// RegisterTriggerProvider installs a trigger provider for a domain.
func (r *Registry) RegisterTriggerProvider(domain string, p TriggerProvider) {
	r.mu.Lock()
	r.triggers[domain] = p
	r.mu.Unlock()
}

// RegisterConditionProvider installs a condition provider for a domain.
func (r *Registry) RegisterConditionProvider(domain string, p ConditionProvider) {
	r.mu.Lock()
	r.conditions[domain] = p
	r.mu.Unlock()
}

// RegisterActionProvider installs an action provider for a domain.
func (r *Registry) RegisterActionProvider(domain string, p ActionProvider) {
	r.mu.Lock()
	r.actions[domain] = p
	r.mu.Unlock()
}

// ─── Capability listing ──────────────────────────────────────────────────────

// ListDeviceTriggers returns the device triggers every registered
// provider offers for the device.
func (r *Registry) ListDeviceTriggers(ctx context.Context, deviceID string) ([]Capability, error) {
	dev, err := r.devices.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var caps []Capability
	for _, p := range r.triggers {
		caps = append(caps, p.DeviceTriggers(ctx, dev)...)
	}
	return caps, nil
}

// ListDeviceConditions returns the device conditions available for the
// device.
func (r *Registry) ListDeviceConditions(ctx context.Context, deviceID string) ([]Capability, error) {
	dev, err := r.devices.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var caps []Capability
	for _, p := range r.conditions {
		caps = append(caps, p.DeviceConditions(ctx, dev)...)
	}
	return caps, nil
}

// ListDeviceActions returns the device actions available for the
// device.
func (r *Registry) ListDeviceActions(ctx context.Context, deviceID string) ([]Capability, error) {
	dev, err := r.devices.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var caps []Capability
	for _, p := range r.actions {
		caps = append(caps, p.DeviceActions(ctx, dev)...)
	}
	return caps, nil
}

// ─── trigger.DeviceResolver ──────────────────────────────────────────────────

// ValidateTrigger routes a device trigger config to its provider.
func (r *Registry) ValidateTrigger(cfg map[string]any) error {
	p, err := r.triggerProvider(cfg)
	if err != nil {
		return err
	}
	if err := p.ValidateTrigger(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// AttachTrigger routes a device trigger config to its provider, which
// reshapes it onto the integration's events.
func (r *Registry) AttachTrigger(ctx context.Context, cfg map[string]any, fire func(ctx context.Context, vars map[string]any)) (func(), error) {
	p, err := r.triggerProvider(cfg)
	if err != nil {
		return nil, err
	}
	detach, err := p.AttachTrigger(ctx, cfg, fire)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return detach, nil
}

// ─── condition.DeviceResolver ────────────────────────────────────────────────

// ValidateCondition routes a device condition config to its provider.
func (r *Registry) ValidateCondition(cfg map[string]any) error {
	p, err := r.conditionProvider(cfg)
	if err != nil {
		return err
	}
	if err := p.ValidateCondition(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// BuildCondition routes a device condition config to its provider.
func (r *Registry) BuildCondition(cfg map[string]any) (func(ctx context.Context) bool, error) {
	p, err := r.conditionProvider(cfg)
	if err != nil {
		return nil, err
	}
	check, err := p.BuildCondition(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return check, nil
}

// ─── script.DeviceResolver ───────────────────────────────────────────────────

// ValidateAction routes a device action config to its provider.
func (r *Registry) ValidateAction(cfg map[string]any) error {
	p, err := r.actionProvider(cfg)
	if err != nil {
		return err
	}
	if err := p.ValidateAction(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// RunAction routes a device action config to its provider.
func (r *Registry) RunAction(ctx context.Context, cfg map[string]any) error {
	p, err := r.actionProvider(cfg)
	if err != nil {
		return err
	}
	return p.RunAction(ctx, cfg)
}

// ─── Routing ─────────────────────────────────────────────────────────────────

func configDomain(cfg map[string]any) (string, error) {
	domain, _ := cfg["domain"].(string)
	if domain == "" {
		return "", fmt.Errorf("%w: domain is required", ErrInvalidConfig)
	}
	return domain, nil
}

func (r *Registry) triggerProvider(cfg map[string]any) (TriggerProvider, error) {
	domain, err := configDomain(cfg)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.triggers[domain]
	if !ok {
		return nil, fmt.Errorf("%w: no trigger provider for %q", ErrUnknownDomain, domain)
	}
	return p, nil
}

func (r *Registry) conditionProvider(cfg map[string]any) (ConditionProvider, error) {
	domain, err := configDomain(cfg)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.conditions[domain]
	if !ok {
		return nil, fmt.Errorf("%w: no condition provider for %q", ErrUnknownDomain, domain)
	}
	return p, nil
}

func (r *Registry) actionProvider(cfg map[string]any) (ActionProvider, error) {
	domain, err := configDomain(cfg)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.actions[domain]
	if !ok {
		return nil, fmt.Errorf("%w: no action provider for %q", ErrUnknownDomain, domain)
	}
	return p, nil
}
