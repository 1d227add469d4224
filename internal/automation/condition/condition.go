package condition

import (
	"context"
	"fmt"

	"github.com/amberhub/amber-core/internal/state"
)

// Config is a raw condition configuration. The "condition" key selects
// the condition type; remaining keys are type-specific.
type Config map[string]any

// Type returns the value of the "condition" key, or "".
func (c Config) Type() string {
	t, _ := c["condition"].(string)
	return t
}

// Checker evaluates a built condition against the current hub state.
type Checker func(ctx context.Context) bool

// DeviceResolver resolves device condition configs against the owning
// integration. Implemented by the deviceauto registry.
type DeviceResolver interface {
	ValidateCondition(cfg map[string]any) error
	BuildCondition(cfg map[string]any) (func(ctx context.Context) bool, error)
}

// Environment provides the state surfaces conditions read from.
type Environment struct {
	States  *state.Machine
	Devices DeviceResolver
}

// Builder implements one condition type.
type Builder interface {
	// Validate checks a config for structural problems.
	Validate(cfg Config) error

	// Build compiles the config into a Checker.
	Build(env Environment, cfg Config) (Checker, error)
}

// Registry maps condition type names to builders.
type Registry struct {
	builders map[string]Builder
}

// NewRegistry creates a registry with all built-in condition types.
func NewRegistry() *Registry {
	r := &Registry{builders: make(map[string]Builder)}
	r.Register("state", StateCondition{})
	r.Register("numeric_state", NumericStateCondition{})
	r.Register("time", TimeCondition{})
	r.Register("device", DeviceCondition{})
	r.Register("and", LogicCondition{op: opAnd, registry: r})
	r.Register("or", LogicCondition{op: opOr, registry: r})
	r.Register("not", LogicCondition{op: opNot, registry: r})
	return r
}

// Register adds or replaces a builder.
func (r *Registry) Register(name string, b Builder) {
	r.builders[name] = b
}

// Validate checks a single condition config.
func (r *Registry) Validate(cfg Config) error {
	condType := cfg.Type()
	if condType == "" {
		return fmt.Errorf("%w: missing condition type", ErrInvalidConfig)
	}
	b, ok := r.builders[condType]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCondition, condType)
	}
	return b.Validate(cfg)
}

// Build compiles a single condition config into a Checker.
func (r *Registry) Build(env Environment, cfg Config) (Checker, error) {
	condType := cfg.Type()
	b, ok := r.builders[condType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCondition, condType)
	}
	return b.Build(env, cfg)
}

// BuildAll compiles a condition list into a single Checker that is the
// logical AND of all members. An empty list always passes.
func (r *Registry) BuildAll(env Environment, cfgs []Config) (Checker, error) {
	checkers := make([]Checker, 0, len(cfgs))
	for i, cfg := range cfgs {
		c, err := r.Build(env, cfg)
		if err != nil {
			return nil, fmt.Errorf("building condition %d (%s): %w", i, cfg.Type(), err)
		}
		checkers = append(checkers, c)
	}

	return func(ctx context.Context) bool {
		for _, c := range checkers {
			if !c(ctx) {
				return false
			}
		}
		return true
	}, nil
}
