package trigger

import (
	"context"
	"fmt"
)

// DevicePlatform delegates to the device automation registry, which
// resolves the config against the integration owning the device.
//
// Config:
//
//	platform: device
//	device_id: 6f3a…                # required
//	domain: shelly                  # required, owning integration
//	type: double_push               # required, integration-specific
//
// Further keys (subtype, channel) are passed through untouched.
type DevicePlatform struct{}

// Validate implements Platform.
//
// Structural validation only; the integration-specific check happens at
// attach time when the resolver is available. The automation registry
// validates through the resolver separately before persisting.
func (DevicePlatform) Validate(cfg Config) error {
	for _, key := range []string{"device_id", "domain", "type"} {
		if _, err := reqString(cfg, key); err != nil {
			return err
		}
	}
	return nil
}

// Attach implements Platform.
func (p DevicePlatform) Attach(ctx context.Context, env Environment, cfg Config, fire Callback) (DetachFunc, error) {
	if err := p.Validate(cfg); err != nil {
		return nil, err
	}
	if env.Devices == nil {
		return nil, fmt.Errorf("%w: device automations are not available", ErrInvalidConfig)
	}

	if err := env.Devices.ValidateTrigger(cfg); err != nil {
		return nil, err
	}

	detach, err := env.Devices.AttachTrigger(ctx, cfg, fire)
	if err != nil {
		return nil, err
	}
	return detach, nil
}
