package trigger

import (
	"context"
	"fmt"

	"github.com/amberhub/amber-core/internal/bus"
	"github.com/amberhub/amber-core/internal/infrastructure/mqtt"
	"github.com/amberhub/amber-core/internal/state"
)

// Config is a raw trigger configuration. The "platform" key selects the
// trigger platform; remaining keys are platform-specific.
type Config map[string]any

// Platform returns the value of the "platform" key, or "".
func (c Config) Platform() string {
	p, _ := c["platform"].(string)
	return p
}

// Callback is invoked when an attached trigger fires.
//
// vars describes the firing: every platform sets "platform" and
// "description", plus platform-specific fields (entity_id, from_state,
// to_state, topic, payload, event).
type Callback func(ctx context.Context, vars map[string]any)

// DetachFunc tears down an attachment. Safe to call more than once.
type DetachFunc func()

// MQTTClient is the subset of the MQTT client trigger platforms need.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// DeviceResolver resolves device trigger configs against the owning
// integration. Implemented by the deviceauto registry.
type DeviceResolver interface {
	ValidateTrigger(cfg map[string]any) error
	AttachTrigger(ctx context.Context, cfg map[string]any, fire func(ctx context.Context, vars map[string]any)) (func(), error)
}

// Environment provides the runtime surfaces platforms attach to.
// Fields a platform does not use may be nil; Validate never touches
// the environment.
type Environment struct {
	Bus     *bus.Bus
	States  *state.Machine
	MQTT    MQTTClient
	Devices DeviceResolver
}

// Platform implements one trigger platform (event, state, mqtt, ...).
type Platform interface {
	// Validate checks a config for structural problems without
	// attaching anything.
	Validate(cfg Config) error

	// Attach wires the trigger into the environment and returns a
	// detach function. fire is called on every trigger activation
	// until detached. ctx bounds the attachment's background work
	// (timers, schedules).
	Attach(ctx context.Context, env Environment, cfg Config, fire Callback) (DetachFunc, error)
}

// Registry maps platform names to implementations.
type Registry struct {
	platforms map[string]Platform
}

// NewRegistry creates a registry with all built-in platforms registered.
func NewRegistry() *Registry {
	r := &Registry{platforms: make(map[string]Platform)}
	r.Register("event", EventPlatform{})
	r.Register("state", StatePlatform{})
	r.Register("numeric_state", NumericStatePlatform{})
	r.Register("mqtt", MQTTPlatform{})
	r.Register("time", TimePlatform{})
	r.Register("device", DevicePlatform{})
	return r
}

// Register adds or replaces a platform.
func (r *Registry) Register(name string, p Platform) {
	r.platforms[name] = p
}

// Validate checks a single trigger config.
func (r *Registry) Validate(cfg Config) error {
	platform := cfg.Platform()
	if platform == "" {
		return fmt.Errorf("%w: missing platform", ErrInvalidConfig)
	}
	p, ok := r.platforms[platform]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}
	return p.Validate(cfg)
}

// Attach wires a single trigger config into the environment.
func (r *Registry) Attach(ctx context.Context, env Environment, cfg Config, fire Callback) (DetachFunc, error) {
	platform := cfg.Platform()
	p, ok := r.platforms[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}
	return p.Attach(ctx, env, cfg, fire)
}

// AttachAll attaches a list of trigger configs and returns one detach
// function covering them all. On any attachment error the already
// attached triggers are detached before returning.
func (r *Registry) AttachAll(ctx context.Context, env Environment, cfgs []Config, fire Callback) (DetachFunc, error) {
	detaches := make([]DetachFunc, 0, len(cfgs))

	detachAll := func() {
		for _, d := range detaches {
			d()
		}
	}

	for i, cfg := range cfgs {
		detach, err := r.Attach(ctx, env, cfg, fire)
		if err != nil {
			detachAll()
			return nil, fmt.Errorf("attaching trigger %d (%s): %w", i, cfg.Platform(), err)
		}
		detaches = append(detaches, detach)
	}

	return detachAll, nil
}
