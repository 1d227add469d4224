package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/amberhub/amber-core/internal/device"
	"github.com/amberhub/amber-core/internal/infrastructure/mqtt"
	"github.com/amberhub/amber-core/internal/state"
)

// AutomationController is the slice of the automation engine the hub
// services need.
type AutomationController interface {
	Enable(ctx context.Context, id string) error
	Disable(ctx context.Context, id string) error
	Trigger(ctx context.Context, id string, vars map[string]any, skipCondition bool) error
}

// DeviceStore resolves devices for command routing.
type DeviceStore interface {
	Get(ctx context.Context, id string) (*device.Device, error)
}

// Publisher publishes MQTT messages.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// RegisterHubServices installs the built-in hub.* services:
//
//	hub.turn_on       enable the targeted automations
//	hub.turn_off      disable the targeted automations
//	hub.toggle        flip the targeted automations
//	hub.trigger       run the targeted automations now
//	hub.set_state     write an entity state directly
//	hub.remove_state  drop an entity from the state machine
func RegisterHubServices(reg *Registry, ctrl AutomationController, states *state.Machine) {
	reg.Register("hub", "turn_on", func(ctx context.Context, call Call) error {
		return forEachAutomation(call, func(id string) error {
			return ctrl.Enable(ctx, id)
		})
	})

	reg.Register("hub", "turn_off", func(ctx context.Context, call Call) error {
		return forEachAutomation(call, func(id string) error {
			return ctrl.Disable(ctx, id)
		})
	})

	reg.Register("hub", "toggle", func(ctx context.Context, call Call) error {
		return forEachAutomation(call, func(id string) error {
			s, err := states.Get("automation." + id)
			if err != nil {
				return err
			}
			if s.State == state.StateOn {
				return ctrl.Disable(ctx, id)
			}
			return ctrl.Enable(ctx, id)
		})
	})

	reg.Register("hub", "trigger", func(ctx context.Context, call Call) error {
		skip, _ := call.Data["skip_condition"].(bool)
		vars, _ := call.Data["vars"].(map[string]any)
		return forEachAutomation(call, func(id string) error {
			return ctrl.Trigger(ctx, id, vars, skip)
		})
	})

	// Direct state manipulation, for scripts and virtual entities the
	// hub owns itself (no integration ever publishes them).
	reg.Register("hub", "set_state", func(ctx context.Context, call Call) error {
		entityID, _ := call.Data["entity_id"].(string)
		newState, _ := call.Data["state"].(string)
		if entityID == "" || newState == "" {
			return fmt.Errorf("%w: hub.set_state requires entity_id and state", ErrInvalidCall)
		}
		attrs, _ := call.Data["attributes"].(map[string]any)
		return states.Set(ctx, entityID, newState, attrs)
	})

	reg.Register("hub", "remove_state", func(ctx context.Context, call Call) error {
		entityID, _ := call.Data["entity_id"].(string)
		if entityID == "" {
			return fmt.Errorf("%w: hub.remove_state requires entity_id", ErrInvalidCall)
		}
		return states.Remove(ctx, entityID)
	})
}

// forEachAutomation applies fn to every automation entity in the call's
// target list. Non-automation entities are rejected so a bad target
// surfaces instead of being silently skipped.
func forEachAutomation(call Call, fn func(id string) error) error {
	if len(call.Target) == 0 {
		return fmt.Errorf("%w: %s requires automation targets", ErrInvalidCall, call.Name())
	}
	for _, entityID := range call.Target {
		id, ok := strings.CutPrefix(entityID, "automation.")
		if !ok || id == "" {
			return fmt.Errorf("%w: %q is not an automation entity", ErrInvalidCall, entityID)
		}
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}

// DeviceCommander publishes device commands over MQTT. Routing prefers
// the device's explicit command topic and falls back to the hub's
// amber/command/{integration}/{device} scheme.
type DeviceCommander struct {
	devices DeviceStore
	mqtt    Publisher
	topics  mqtt.Topics
}

// NewDeviceCommander creates a commander over the device registry and
// MQTT client.
func NewDeviceCommander(devices DeviceStore, publisher Publisher) *DeviceCommander {
	return &DeviceCommander{devices: devices, mqtt: publisher}
}

// Send publishes a command to a device's command topic. The payload
// carries a fresh command ID so bridges can acknowledge or deduplicate.
func (c *DeviceCommander) Send(ctx context.Context, deviceID, command string, params map[string]any) error {
	if deviceID == "" || command == "" {
		return fmt.Errorf("%w: device_id and command are required", ErrInvalidCall)
	}

	dev, err := c.devices.Get(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("device %q: %w", deviceID, err)
	}

	if params == nil {
		params = make(map[string]any)
	}
	payload, err := json.Marshal(map[string]any{
		"id":         uuid.NewString(),
		"device_id":  deviceID,
		"command":    command,
		"parameters": params,
	})
	if err != nil {
		return fmt.Errorf("marshalling command: %w", err)
	}

	topic := dev.CommandTopic
	if topic == "" {
		topic = c.topics.Command(dev.Integration, dev.ID)
	}

	if err := c.mqtt.Publish(topic, payload, 1, false); err != nil {
		return fmt.Errorf("publishing to %q: %w", topic, err)
	}
	return nil
}

// RegisterDeviceServices installs the generic device.send_command
// service on top of the commander.
func RegisterDeviceServices(reg *Registry, commander *DeviceCommander) {
	reg.Register("device", "send_command", func(ctx context.Context, call Call) error {
		deviceID, _ := call.Data["device_id"].(string)
		command, _ := call.Data["command"].(string)
		params, _ := call.Data["parameters"].(map[string]any)
		return commander.Send(ctx, deviceID, command, params)
	})
}
