// Package zwave bridges Z-Wave central-scene controllers published over
// MQTT into hub device triggers.
//
// The integration expects a zwavejs-style MQTT layout:
//
//	zwave/{node}/central_scene/{scene}   scene notification values
//	zwave/{node}/battery                 battery level percentage
//
// Central-scene notifications become zwave_scene bus events which the
// trigger provider exposes as device triggers (key_pressed,
// key_pressed_2x and so on, keyed by scene number). Battery levels are
// mirrored as sensor entities.
package zwave

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
)

// EventScene is the bus event type fired for central-scene notifications.
const EventScene = "zwave_scene"

// Device trigger types, one per central-scene value.
const (
	TriggerKeyPressed   = "key_pressed"
	TriggerKeyPressed2x = "key_pressed_2x"
	TriggerKeyPressed3x = "key_pressed_3x"
	TriggerKeyHeldDown  = "key_held_down"
	TriggerKeyReleased  = "key_released"
)

// sceneValues maps the wire values reported by the Z-Wave gateway onto
// trigger types.
var sceneValues = map[string]string{
	"KeyPressed":   TriggerKeyPressed,
	"KeyPressed2x": TriggerKeyPressed2x,
	"KeyPressed3x": TriggerKeyPressed3x,
	"KeyHeldDown":  TriggerKeyHeldDown,
	"KeyReleased":  TriggerKeyReleased,
}

var triggerTypes = map[string]struct{}{
	TriggerKeyPressed:   {},
	TriggerKeyPressed2x: {},
	TriggerKeyPressed3x: {},
	TriggerKeyHeldDown:  {},
	TriggerKeyReleased:  {},
}

// DefaultTopicPrefix is the stock gateway topic namespace.
const DefaultTopicPrefix = "zwave"

// Config holds the adapter settings.
type Config struct {
	// TopicPrefix is the namespace the gateway publishes under.
	// Empty uses the stock "zwave" prefix.
	TopicPrefix string
}

// Integration is the Z-Wave MQTT adapter.
type Integration struct {
	prefix string
	hub    *integrations.Hub
	topics []string
}

// New creates an unstarted Z-Wave integration.
func New(cfg Config) *Integration {
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &Integration{prefix: prefix}
}

// Name returns the integration key.
func (i *Integration) Name() string { return "zwave" }

// Setup subscribes to the gateway topics and registers the device
// trigger provider.
func (i *Integration) Setup(_ context.Context, hub *integrations.Hub) error {
	if hub.MQTT == nil {
		return fmt.Errorf("zwave: mqtt client required")
	}
	i.hub = hub

	subs := map[string]func(topic string, payload []byte) error{
		i.prefix + "/+/central_scene/+": i.handleScene,
		i.prefix + "/+/battery":         i.handleBattery,
	}
	for topic, handler := range subs {
		if err := hub.MQTT.Subscribe(topic, 0, handler); err != nil {
			return fmt.Errorf("subscribing %s: %w", topic, err)
		}
		i.topics = append(i.topics, topic)
	}

	if hub.DeviceAutomations != nil {
		hub.DeviceAutomations.RegisterTriggerProvider("zwave", &triggerProvider{
			bus:     hub.Bus,
			devices: hub.Devices,
		})
	}
	return nil
}

// Close unsubscribes from the gateway topics.
func (i *Integration) Close() error {
	for _, topic := range i.topics {
		i.hub.MQTT.Unsubscribe(topic) //nolint:errcheck // shutting down
	}
	i.topics = nil
	return nil
}

// ─── Message handlers ────────────────────────────────────────────────────────

// handleScene turns zwave/{node}/central_scene/{scene} notifications
// into zwave_scene bus events.
func (i *Integration) handleScene(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != i.prefix || parts[2] != "central_scene" {
		return fmt.Errorf("unexpected topic %q", topic)
	}
	node, scene := parts[1], parts[3]

	value := sceneValue(payload)
	triggerType, ok := sceneValues[value]
	if !ok {
		// Gateways report values outside the central-scene table
		// (notifications, config echoes). Not an error.
		return nil
	}

	dev := i.resolveDevice(node)
	if dev == nil || i.hub.Bus == nil {
		return nil
	}
	i.hub.Bus.Fire(context.Background(), EventScene, map[string]any{
		"device_id": dev.ID,
		"scene":     scene,
		"type":      triggerType,
	})
	return nil
}

// handleBattery mirrors zwave/{node}/battery percentages as sensor
// entities.
func (i *Integration) handleBattery(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != i.prefix || parts[2] != "battery" {
		return fmt.Errorf("unexpected topic %q", topic)
	}

	level := sceneValue(payload)
	if _, err := strconv.ParseFloat(level, 64); err != nil {
		return fmt.Errorf("battery level %q: %w", level, err)
	}

	dev := i.resolveDevice(parts[1])
	if dev == nil || i.hub.States == nil {
		return nil
	}
	entityID := "sensor." + dev.ID + "_battery"
	return i.hub.States.Set(context.Background(), entityID, level, map[string]any{
		"device_id":           dev.ID,
		"unit_of_measurement": "%",
	})
}

// sceneValue extracts the value from a payload that is either a JSON
// object with a "value" field or a bare string.
func sceneValue(payload []byte) string {
	var wrapped struct {
		Value any `json:"value"`
	}
	if err := json.Unmarshal(payload, &wrapped); err == nil && wrapped.Value != nil {
		return fmt.Sprintf("%v", wrapped.Value)
	}
	return strings.Trim(strings.TrimSpace(string(payload)), `"`)
}

// resolveDevice maps a gateway node ID onto a registered device via the
// zwave_node metadata field, falling back to the device ID itself.
func (i *Integration) resolveDevice(node string) *device.Device {
	if i.hub.Devices == nil {
		return nil
	}
	ctx := context.Background()

	devices, err := i.hub.Devices.ListByIntegration(ctx, "zwave")
	if err == nil {
		for idx := range devices {
			if fmt.Sprintf("%v", devices[idx].Metadata["zwave_node"]) == node {
				return &devices[idx]
			}
		}
	}
	if dev, err := i.hub.Devices.Get(ctx, node); err == nil {
		return dev
	}
	return nil
}

// ─── Device trigger provider ─────────────────────────────────────────────────

// triggerProvider exposes central-scene notifications as device
// triggers keyed by scene number.
type triggerProvider struct {
	bus     *bus.Bus
	devices *device.Registry
}

func (p *triggerProvider) DeviceTriggers(_ context.Context, dev *device.Device) []deviceauto.Capability {
	if dev.Integration != "zwave" {
		return nil
	}
	scenes := 1
	if n, ok := dev.Metadata["scenes"].(float64); ok && n > 0 {
		scenes = int(n)
	}

	caps := make([]deviceauto.Capability, 0, scenes*len(triggerTypes))
	for s := 1; s <= scenes; s++ {
		scene := strconv.Itoa(s)
		for _, t := range []string{
			TriggerKeyPressed, TriggerKeyPressed2x, TriggerKeyPressed3x,
			TriggerKeyHeldDown, TriggerKeyReleased,
		} {
			caps = append(caps, deviceauto.Capability{
				"device_id": dev.ID,
				"domain":    "zwave",
				"type":      t,
				"scene":     scene,
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
	scene := configScene(cfg["scene"])

	detach := p.bus.Listen(EventScene, func(ctx context.Context, e bus.Event) {
		if e.Data["device_id"] != deviceID || e.Data["type"] != triggerType {
			return
		}
		if scene != "" && e.Data["scene"] != scene {
			return
		}
		fire(ctx, map[string]any{
			"platform":  "device",
			"device_id": deviceID,
			"type":      triggerType,
			"scene":     e.Data["scene"],
		})
	})
	return detach, nil
}

// configScene normalises the scene filter, which arrives as a string
// from the API and as a number from YAML automations.
func configScene(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", s)
	}
}
