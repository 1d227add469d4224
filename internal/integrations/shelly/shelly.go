// Package shelly adapts Shelly relays and buttons to the hub. It
// follows the stock Shelly MQTT topic scheme (shellies/{id}/...) and
// translates input events into device triggers.
package shelly

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/amberhub/amber-core/internal/bus"
	"github.com/amberhub/amber-core/internal/device"
	"github.com/amberhub/amber-core/internal/deviceauto"
	"github.com/amberhub/amber-core/internal/integrations"
	"github.com/amberhub/amber-core/internal/state"
)

// EventButton is the bus event fired for every decoded button press.
// Data: device_id, type, subtype.
const EventButton = "shelly_button"

// Device trigger types.
const (
	TriggerSinglePush = "single_push"
	TriggerDoublePush = "double_push"
	TriggerTriplePush = "triple_push"
	TriggerLongPush   = "long_push"
	TriggerButtonDown = "btn_down"
	TriggerButtonUp   = "btn_up"
)

// buttonEvents maps Shelly input_event codes to trigger types.
var buttonEvents = map[string]string{
	"S":   TriggerSinglePush,
	"SS":  TriggerDoublePush,
	"SSS": TriggerTriplePush,
	"L":   TriggerLongPush,
}

var triggerTypes = map[string]struct{}{
	TriggerSinglePush: {},
	TriggerDoublePush: {},
	TriggerTriplePush: {},
	TriggerLongPush:   {},
	TriggerButtonDown: {},
	TriggerButtonUp:   {},
}

// DefaultTopicPrefix is the stock Shelly announce namespace.
const DefaultTopicPrefix = "shellies"

// Config holds the adapter settings.
type Config struct {
	// TopicPrefix is the announce namespace configured on the
	// devices. Empty uses the stock "shellies" prefix.
	TopicPrefix string
}

// Integration is the Shelly adapter.
type Integration struct {
	prefix string
	hub    *integrations.Hub
	topics []string
}

// New creates the Shelly integration.
func New(cfg Config) *Integration {
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &Integration{prefix: prefix}
}

// Name implements integrations.Integration.
func (i *Integration) Name() string { return "shelly" }

// Setup subscribes to the Shelly announcement topics and registers the
// device trigger provider.
func (i *Integration) Setup(_ context.Context, hub *integrations.Hub) error {
	if hub.MQTT == nil {
		return fmt.Errorf("shelly: mqtt client required")
	}
	i.hub = hub

	subs := map[string]func(topic string, payload []byte) error{
		i.prefix + "/+/input_event/+": i.handleInputEvent,
		i.prefix + "/+/input/+":       i.handleInput,
		i.prefix + "/+/relay/+":       i.handleRelay,
	}
	for topic, handler := range subs {
		if err := hub.MQTT.Subscribe(topic, 0, handler); err != nil {
			return fmt.Errorf("subscribing %s: %w", topic, err)
		}
		i.topics = append(i.topics, topic)
	}

	if hub.DeviceAutomations != nil {
		hub.DeviceAutomations.RegisterTriggerProvider("shelly", &triggerProvider{
			bus:     hub.Bus,
			devices: hub.Devices,
		})
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

// handleInputEvent decodes shellies/{id}/input_event/{n} payloads like
// {"event":"S","event_cnt":4} into button bus events.
func (i *Integration) handleInputEvent(topic string, payload []byte) error {
	vendorID, input, ok := i.splitTopic(topic, "input_event")
	if !ok {
		return nil
	}

	var msg struct {
		Event    string `json:"event"`
		EventCnt int    `json:"event_cnt"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding input_event: %w", err)
	}
	triggerType, known := buttonEvents[msg.Event]
	if !known {
		// "" means the input settled with no gesture.
		return nil
	}

	i.fireButton(vendorID, input, triggerType)
	return nil
}

// handleInput tracks raw input level changes, firing btn_down/btn_up
// and mirroring the input as a binary_sensor entity.
func (i *Integration) handleInput(topic string, payload []byte) error {
	vendorID, input, ok := i.splitTopic(topic, "input")
	if !ok {
		return nil
	}

	var triggerType, entityValue string
	switch strings.TrimSpace(string(payload)) {
	case "1":
		triggerType, entityValue = TriggerButtonDown, state.StateOn
	case "0":
		triggerType, entityValue = TriggerButtonUp, state.StateOff
	default:
		return nil
	}

	i.fireButton(vendorID, input, triggerType)

	dev := i.resolveDevice(vendorID)
	if dev == nil || i.hub.States == nil {
		return nil
	}
	entityID := fmt.Sprintf("binary_sensor.%s_input_%s", dev.ID, input)
	return i.hub.States.Set(context.Background(), entityID, entityValue, map[string]any{
		"device_id":   dev.ID,
		"integration": "shelly",
	})
}

// handleRelay mirrors shellies/{id}/relay/{n} on/off payloads as
// switch entities.
func (i *Integration) handleRelay(topic string, payload []byte) error {
	vendorID, relay, ok := i.splitTopic(topic, "relay")
	if !ok {
		return nil
	}

	value := strings.TrimSpace(string(payload))
	if value != state.StateOn && value != state.StateOff {
		return nil
	}

	dev := i.resolveDevice(vendorID)
	if dev == nil || i.hub.States == nil {
		return nil
	}
	entityID := fmt.Sprintf("switch.%s_relay_%s", dev.ID, relay)
	return i.hub.States.Set(context.Background(), entityID, value, map[string]any{
		"device_id":   dev.ID,
		"integration": "shelly",
	})
}

func (i *Integration) fireButton(vendorID, input, triggerType string) {
	dev := i.resolveDevice(vendorID)
	if dev == nil || i.hub.Bus == nil {
		return
	}
	i.hub.Bus.Fire(context.Background(), EventButton, map[string]any{
		"device_id": dev.ID,
		"type":      triggerType,
		"subtype":   "button_" + input,
	})
}

// resolveDevice maps a Shelly vendor ID onto a registered device. The
// device ID itself is tried first; otherwise the shelly_id metadata
// field decides.
func (i *Integration) resolveDevice(vendorID string) *device.Device {
	if i.hub.Devices == nil {
		return nil
	}
	ctx := context.Background()

	if dev, err := i.hub.Devices.Get(ctx, vendorID); err == nil {
		return dev
	}
	devices, err := i.hub.Devices.ListByIntegration(ctx, "shelly")
	if err != nil {
		return nil
	}
	for idx := range devices {
		if devices[idx].Metadata["shelly_id"] == vendorID {
			return &devices[idx]
		}
	}
	return nil
}

// splitTopic extracts the vendor ID and channel index from
// {prefix}/{id}/{kind}/{n}.
func (i *Integration) splitTopic(topic, kind string) (vendorID, index string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != i.prefix || parts[2] != kind {
		return "", "", false
	}
	return parts[1], parts[3], true
}

// ─── Device trigger provider ─────────────────────────────────────────────────

// triggerProvider exposes Shelly button gestures as device triggers.
type triggerProvider struct {
	bus     *bus.Bus
	devices *device.Registry
}

func (p *triggerProvider) DeviceTriggers(_ context.Context, dev *device.Device) []deviceauto.Capability {
	if dev.Integration != "shelly" {
		return nil
	}
	buttons := 1
	if n, ok := dev.Metadata["buttons"].(float64); ok && n > 0 {
		buttons = int(n)
	}

	caps := make([]deviceauto.Capability, 0, buttons*len(triggerTypes))
	for b := 0; b < buttons; b++ {
		subtype := fmt.Sprintf("button_%d", b)
		for _, t := range []string{
			TriggerSinglePush, TriggerDoublePush, TriggerTriplePush,
			TriggerLongPush, TriggerButtonDown, TriggerButtonUp,
		} {
			caps = append(caps, deviceauto.Capability{
				"device_id": dev.ID,
				"domain":    "shelly",
				"type":      t,
				"subtype":   subtype,
			})
		}
	}
	return caps
}

func (p *triggerProvider) ValidateTrigger(cfg map[string]any) error {
	deviceID, _ := cfg["device_id"].(string)
	triggerType, _ := cfg["type"].(string)
	if deviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	if _, ok := triggerTypes[triggerType]; !ok {
		return fmt.Errorf("unknown trigger type %q", triggerType)
	}
	return nil
}

func (p *triggerProvider) AttachTrigger(_ context.Context, cfg map[string]any, fire func(ctx context.Context, vars map[string]any)) (func(), error) {
	if err := p.ValidateTrigger(cfg); err != nil {
		return nil, err
	}
	deviceID, _ := cfg["device_id"].(string)
	triggerType, _ := cfg["type"].(string)
	subtype, _ := cfg["subtype"].(string)

	detach := p.bus.Listen(EventButton, func(ctx context.Context, e bus.Event) {
		if e.Data["device_id"] != deviceID || e.Data["type"] != triggerType {
			return
		}
		if subtype != "" && e.Data["subtype"] != subtype {
			return
		}
		fire(ctx, map[string]any{
			"platform":  "device",
			"device_id": deviceID,
			"type":      triggerType,
			"subtype":   e.Data["subtype"],
		})
	})
	return detach, nil
}
