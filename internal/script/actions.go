package script

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amberhub/amber-core/internal/automation/condition"
	"github.com/amberhub/amber-core/internal/bus"
)

// ActionConfig is a single action entry from an automation's action
// list. The action kind is inferred from which keys are present:
//
//	service:   call a registered service
//	delay:     pause the run
//	event:     fire an event on the bus
//	wait_for:  block until a condition passes or a timeout elapses
//	stop:      end the run early (not a failure)
//	device_id: run a device action via the integration's resolver
type ActionConfig map[string]any

// step is one compiled action, executed in order by a Script run.
type step func(ctx context.Context) error

// compileStep validates a single action config and returns its
// executable form.
func compileStep(env Environment, cfg ActionConfig) (step, error) {
	switch {
	case cfg["service"] != nil:
		return compileService(env, cfg)
	case cfg["delay"] != nil:
		return compileDelay(cfg)
	case cfg["event"] != nil:
		return compileEvent(env, cfg)
	case cfg["wait_for"] != nil:
		return compileWait(env, cfg)
	case cfg["stop"] != nil:
		return compileStop(cfg)
	case cfg["device_id"] != nil:
		return compileDevice(env, cfg)
	default:
		return nil, fmt.Errorf("%w: unrecognised action %v", ErrInvalidAction, cfg)
	}
}

func compileService(env Environment, cfg ActionConfig) (step, error) {
	ref, err := reqString(cfg, "service")
	if err != nil {
		return nil, err
	}
	domain, name, ok := strings.Cut(ref, ".")
	if !ok || domain == "" || name == "" {
		return nil, fmt.Errorf("%w: service must be domain.name, got %q", ErrInvalidAction, ref)
	}
	if env.Services == nil {
		return nil, fmt.Errorf("%w: no service caller available", ErrInvalidAction)
	}

	data := optMap(cfg, "data")
	target := stringList(cfg, "entity_id")

	return func(ctx context.Context) error {
		return env.Services.Call(ctx, domain, name, data, target)
	}, nil
}

func compileDelay(cfg ActionConfig) (step, error) {
	d, err := reqDuration(cfg, "delay")
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, nil
}

func compileEvent(env Environment, cfg ActionConfig) (step, error) {
	eventType, err := reqString(cfg, "event")
	if err != nil {
		return nil, err
	}
	if env.Bus == nil {
		return nil, fmt.Errorf("%w: no event bus available", ErrInvalidAction)
	}

	data := optMap(cfg, "event_data")

	return func(ctx context.Context) error {
		env.Bus.Fire(ctx, eventType, data)
		return nil
	}, nil
}

// compileWait builds a step that blocks until the nested condition
// passes. The condition is re-evaluated on every state change. An
// optional timeout aborts the run with ErrWaitTimeout unless
// continue_on_timeout is set.
func compileWait(env Environment, cfg ActionConfig) (step, error) {
	raw := optMap(cfg, "wait_for")
	if raw == nil {
		return nil, fmt.Errorf("%w: wait_for must be a condition config", ErrInvalidAction)
	}
	if env.Conditions == nil || env.Bus == nil {
		return nil, fmt.Errorf("%w: wait_for requires a condition registry and event bus", ErrInvalidAction)
	}

	check, err := env.Conditions.Build(env.conditionEnv(), condition.Config(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: wait_for: %v", ErrInvalidAction, err)
	}

	timeout, err := optDuration(cfg, "timeout")
	if err != nil {
		return nil, err
	}
	continueOnTimeout, _ := cfg["continue_on_timeout"].(bool)

	return func(ctx context.Context) error {
		if check(ctx) {
			return nil
		}

		passed := make(chan struct{}, 1)
		detach := env.Bus.Listen(bus.EventStateChanged, func(ctx context.Context, _ bus.Event) {
			if check(ctx) {
				select {
				case passed <- struct{}{}:
				default:
				}
			}
		})
		defer detach()

		var expired <-chan time.Time
		if timeout > 0 {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			expired = timer.C
		}

		select {
		case <-passed:
			return nil
		case <-expired:
			if continueOnTimeout {
				return nil
			}
			return ErrWaitTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}, nil
}

func compileStop(cfg ActionConfig) (step, error) {
	reason := optString(cfg, "stop")

	return func(_ context.Context) error {
		return fmt.Errorf("%w: %s", errStopped, reason)
	}, nil
}

func compileDevice(env Environment, cfg ActionConfig) (step, error) {
	for _, key := range []string{"device_id", "domain", "type"} {
		if _, err := reqString(cfg, key); err != nil {
			return nil, err
		}
	}
	if env.Devices == nil {
		return nil, fmt.Errorf("%w: device actions are not available", ErrInvalidAction)
	}
	if err := env.Devices.ValidateAction(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}

	return func(ctx context.Context) error {
		return env.Devices.RunAction(ctx, cfg)
	}, nil
}
