// Package cover adapts motorised covers (blinds, garage doors, awnings)
// to the hub.
//
// Unlike the button-style adapters, cover device automations are
// entity-based: the integration mirrors vendor state reports onto
// cover.* entities and its providers watch those entities rather than a
// vendor event stream. Commands go out through the device commander as
// MQTT command messages.
package cover

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/amberhub/amber-core/internal/bus"
	"github.com/amberhub/amber-core/internal/device"
	"github.com/amberhub/amber-core/internal/deviceauto"
	"github.com/amberhub/amber-core/internal/integrations"
	"github.com/amberhub/amber-core/internal/service"
	"github.com/amberhub/amber-core/internal/state"
)

// Cover entity states, shared with the state machine's constants.
const (
	StateOpen    = state.StateOpen
	StateClosed  = state.StateClosed
	StateOpening = state.StateOpening
	StateClosing = state.StateClosing
)

// Device trigger types.
const (
	TriggerOpened   = "opened"
	TriggerClosed   = "closed"
	TriggerOpening  = "opening"
	TriggerClosing  = "closing"
	TriggerPosition = "position"
)

// Device condition types.
const (
	ConditionIsOpen     = "is_open"
	ConditionIsClosed   = "is_closed"
	ConditionIsPosition = "is_position"
)

// Device action types and the commands they publish.
const (
	ActionOpen        = "open"
	ActionClose       = "close"
	ActionStop        = "stop"
	ActionSetPosition = "set_position"
)

var coverStates = map[string]struct{}{
	StateOpen:    {},
	StateClosed:  {},
	StateOpening: {},
	StateClosing: {},
}

// triggerStates maps trigger types onto the entity state they watch
// for. Position triggers are handled separately.
var triggerStates = map[string]string{
	TriggerOpened:  StateOpen,
	TriggerClosed:  StateClosed,
	TriggerOpening: StateOpening,
	TriggerClosing: StateClosing,
}

// Integration is the cover adapter.
type Integration struct {
	hub    *integrations.Hub
	topics []string
}

// New creates the cover integration.
func New() *Integration {
	return &Integration{}
}

// Name implements integrations.Integration.
func (i *Integration) Name() string { return "cover" }

// Setup subscribes to cover state reports, registers the device
// automation providers and installs the cover.* services.
func (i *Integration) Setup(_ context.Context, hub *integrations.Hub) error {
	if hub.MQTT == nil {
		return fmt.Errorf("cover: mqtt client required")
	}
	i.hub = hub

	const topic = "covers/+/state"
	if err := hub.MQTT.Subscribe(topic, 0, i.handleState); err != nil {
		return fmt.Errorf("subscribing %s: %w", topic, err)
	}
	i.topics = append(i.topics, topic)

	if hub.DeviceAutomations != nil {
		p := &provider{bus: hub.Bus, states: hub.States, commander: hub.Commander}
		hub.DeviceAutomations.RegisterTriggerProvider("cover", p)
		hub.DeviceAutomations.RegisterConditionProvider("cover", p)
		hub.DeviceAutomations.RegisterActionProvider("cover", p)
	}
	if hub.Services != nil && hub.Commander != nil {
		registerServices(hub.Services, hub.Commander)
	}
	return nil
}

// Close drops the MQTT subscriptions.
func (i *Integration) Close() error {
	for _, topic := range i.topics {
		i.hub.MQTT.Unsubscribe(topic) //nolint:errcheck // shutting down
	}
	i.topics = nil
	return nil
}

// EntityID returns the cover entity for a device.
func EntityID(deviceID string) string {
	return "cover." + deviceID
}

// handleState mirrors covers/{id}/state reports onto cover entities.
// Payload: {"state":"opening","position":45}.
func (i *Integration) handleState(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "covers" || parts[2] != "state" {
		return fmt.Errorf("unexpected topic %q", topic)
	}

	var report struct {
		State    string `json:"state"`
		Position *int   `json:"position"`
	}
	if err := json.Unmarshal(payload, &report); err != nil {
		return fmt.Errorf("decoding state report: %w", err)
	}
	if _, ok := coverStates[report.State]; !ok {
		return fmt.Errorf("unknown cover state %q", report.State)
	}

	dev := i.resolveDevice(parts[1])
	if dev == nil || i.hub.States == nil {
		return nil
	}

	attrs := map[string]any{"device_id": dev.ID}
	if report.Position != nil {
		attrs["position"] = *report.Position
	}
	return i.hub.States.Set(context.Background(), EntityID(dev.ID), report.State, attrs)
}

// resolveDevice maps a vendor cover ID onto a registered device via the
// cover_id metadata field, falling back to the device ID itself.
func (i *Integration) resolveDevice(vendorID string) *device.Device {
	if i.hub.Devices == nil {
		return nil
	}
	ctx := context.Background()

	if dev, err := i.hub.Devices.Get(ctx, vendorID); err == nil {
		return dev
	}
	devices, err := i.hub.Devices.ListByIntegration(ctx, "cover")
	if err != nil {
		return nil
	}
	for idx := range devices {
		if devices[idx].Metadata["cover_id"] == vendorID {
			return &devices[idx]
		}
	}
	return nil
}

// ─── Services ────────────────────────────────────────────────────────────────

// registerServices installs cover.open_cover, cover.close_cover,
// cover.stop_cover and cover.set_cover_position. Targets are cover
// entity IDs.
func registerServices(reg *service.Registry, commander *service.DeviceCommander) {
	send := func(command string, params func(call service.Call) (map[string]any, error)) service.Handler {
		return func(ctx context.Context, call service.Call) error {
			if len(call.Target) == 0 {
				return fmt.Errorf("%w: %s requires a target", service.ErrInvalidCall, call.Name())
			}
			for _, target := range call.Target {
				deviceID, ok := strings.CutPrefix(target, "cover.")
				if !ok {
					return fmt.Errorf("%w: %q is not a cover entity", service.ErrInvalidCall, target)
				}
				var p map[string]any
				if params != nil {
					var err error
					if p, err = params(call); err != nil {
						return err
					}
				}
				if err := commander.Send(ctx, deviceID, command, p); err != nil {
					return err
				}
			}
			return nil
		}
	}

	reg.Register("cover", "open_cover", send(ActionOpen, nil))
	reg.Register("cover", "close_cover", send(ActionClose, nil))
	reg.Register("cover", "stop_cover", send(ActionStop, nil))
	reg.Register("cover", "set_cover_position", send(ActionSetPosition, func(call service.Call) (map[string]any, error) {
		pos, err := positionOf(call.Data["position"])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", service.ErrInvalidCall, err)
		}
		return map[string]any{"position": pos}, nil
	}))
}

// positionOf normalises a position value (JSON float, YAML int or
// string) into an integer percentage.
func positionOf(v any) (int, error) {
	var pos int
	switch n := v.(type) {
	case int:
		pos = n
	case float64:
		pos = int(n)
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("position %q is not a number", n)
		}
		pos = parsed
	default:
		return 0, fmt.Errorf("position is required")
	}
	if pos < 0 || pos > 100 {
		return 0, fmt.Errorf("position %d out of range 0-100", pos)
	}
	return pos, nil
}

// ─── Device automation provider ──────────────────────────────────────────────

// provider implements the trigger, condition and action provider
// interfaces for covers.
type provider struct {
	bus       *bus.Bus
	states    *state.Machine
	commander *service.DeviceCommander
}

func (p *provider) DeviceTriggers(_ context.Context, dev *device.Device) []deviceauto.Capability {
	if dev.Integration != "cover" {
		return nil
	}
	caps := make([]deviceauto.Capability, 0, 5)
	for _, t := range []string{
		TriggerOpened, TriggerClosed, TriggerOpening, TriggerClosing, TriggerPosition,
	} {
		caps = append(caps, deviceauto.Capability{
			"device_id": dev.ID,
			"domain":    "cover",
			"type":      t,
		})
	}
	return caps
}

func (p *provider) ValidateTrigger(cfg map[string]any) error {
	deviceID, _ := cfg["device_id"].(string)
	triggerType, _ := cfg["type"].(string)
	if deviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	if triggerType == TriggerPosition {
		_, hasAbove := cfg["above"]
		_, hasBelow := cfg["below"]
		if !hasAbove && !hasBelow {
			return fmt.Errorf("position trigger requires above or below")
		}
		return nil
	}
	if _, ok := triggerStates[triggerType]; !ok {
		return fmt.Errorf("unknown trigger type %q", triggerType)
	}
	return nil
}

// AttachTrigger watches state_changed events for the device's cover
// entity. State triggers fire on entering the target state; position
// triggers fire when the position crosses into the configured band.
func (p *provider) AttachTrigger(_ context.Context, cfg map[string]any, fire func(ctx context.Context, vars map[string]any)) (func(), error) {
	if err := p.ValidateTrigger(cfg); err != nil {
		return nil, err
	}
	deviceID, _ := cfg["device_id"].(string)
	triggerType, _ := cfg["type"].(string)
	entityID := EntityID(deviceID)

	detach := p.bus.Listen(bus.EventStateChanged, func(ctx context.Context, e bus.Event) {
		if e.Data["entity_id"] != entityID {
			return
		}
		newState, _ := e.Data["new_state"].(*state.EntityState)
		oldState, _ := e.Data["old_state"].(*state.EntityState)
		if newState == nil {
			return
		}

		if triggerType == TriggerPosition {
			if !positionEntered(cfg, oldState, newState) {
				return
			}
			fire(ctx, map[string]any{
				"platform":  "device",
				"device_id": deviceID,
				"type":      triggerType,
				"position":  newState.Attributes["position"],
			})
			return
		}

		want := triggerStates[triggerType]
		if newState.State != want || (oldState != nil && oldState.State == want) {
			return
		}
		fire(ctx, map[string]any{
			"platform":  "device",
			"device_id": deviceID,
			"type":      triggerType,
			"state":     newState.State,
		})
	})
	return detach, nil
}

// positionEntered reports whether the new state sits inside the
// above/below band and the old state did not.
func positionEntered(cfg map[string]any, oldState, newState *state.EntityState) bool {
	newPos, ok := entityPosition(newState)
	if !ok || !positionMatches(cfg, newPos) {
		return false
	}
	if oldPos, ok := entityPosition(oldState); ok && positionMatches(cfg, oldPos) {
		return false
	}
	return true
}

func positionMatches(cfg map[string]any, pos float64) bool {
	if above, ok := numberOf(cfg["above"]); ok && pos <= above {
		return false
	}
	if below, ok := numberOf(cfg["below"]); ok && pos >= below {
		return false
	}
	return true
}

func entityPosition(s *state.EntityState) (float64, bool) {
	if s == nil {
		return 0, false
	}
	return numberOf(s.Attributes["position"])
}

func numberOf(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func (p *provider) DeviceConditions(_ context.Context, dev *device.Device) []deviceauto.Capability {
	if dev.Integration != "cover" {
		return nil
	}
	caps := make([]deviceauto.Capability, 0, 3)
	for _, t := range []string{ConditionIsOpen, ConditionIsClosed, ConditionIsPosition} {
		caps = append(caps, deviceauto.Capability{
			"device_id": dev.ID,
			"domain":    "cover",
			"type":      t,
		})
	}
	return caps
}

func (p *provider) ValidateCondition(cfg map[string]any) error {
	deviceID, _ := cfg["device_id"].(string)
	conditionType, _ := cfg["type"].(string)
	if deviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	switch conditionType {
	case ConditionIsOpen, ConditionIsClosed:
		return nil
	case ConditionIsPosition:
		_, hasAbove := cfg["above"]
		_, hasBelow := cfg["below"]
		if !hasAbove && !hasBelow {
			return fmt.Errorf("position condition requires above or below")
		}
		return nil
	default:
		return fmt.Errorf("unknown condition type %q", conditionType)
	}
}

func (p *provider) BuildCondition(cfg map[string]any) (func(ctx context.Context) bool, error) {
	if err := p.ValidateCondition(cfg); err != nil {
		return nil, err
	}
	deviceID, _ := cfg["device_id"].(string)
	conditionType, _ := cfg["type"].(string)
	entityID := EntityID(deviceID)

	return func(context.Context) bool {
		s, err := p.states.Get(entityID)
		if err != nil {
			return false
		}
		switch conditionType {
		case ConditionIsOpen:
			return s.State == StateOpen
		case ConditionIsClosed:
			return s.State == StateClosed
		default:
			pos, ok := entityPosition(s)
			return ok && positionMatches(cfg, pos)
		}
	}, nil
}

func (p *provider) DeviceActions(_ context.Context, dev *device.Device) []deviceauto.Capability {
	if dev.Integration != "cover" {
		return nil
	}
	caps := make([]deviceauto.Capability, 0, 4)
	for _, t := range []string{ActionOpen, ActionClose, ActionStop, ActionSetPosition} {
		caps = append(caps, deviceauto.Capability{
			"device_id": dev.ID,
			"domain":    "cover",
			"type":      t,
		})
	}
	return caps
}

func (p *provider) ValidateAction(cfg map[string]any) error {
	deviceID, _ := cfg["device_id"].(string)
	actionType, _ := cfg["type"].(string)
	if deviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	switch actionType {
	case ActionOpen, ActionClose, ActionStop:
		return nil
	case ActionSetPosition:
		if _, err := positionOf(cfg["position"]); err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unknown action type %q", actionType)
	}
}

func (p *provider) RunAction(ctx context.Context, cfg map[string]any) error {
	if err := p.ValidateAction(cfg); err != nil {
		return err
	}
	deviceID, _ := cfg["device_id"].(string)
	actionType, _ := cfg["type"].(string)

	var params map[string]any
	if actionType == ActionSetPosition {
		pos, err := positionOf(cfg["position"])
		if err != nil {
			return err
		}
		params = map[string]any{"position": pos}
	}
	return p.commander.Send(ctx, deviceID, actionType, params)
}
