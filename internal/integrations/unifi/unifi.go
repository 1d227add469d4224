// Package unifi connects the hub to a UniFi Protect style NVR.
//
// A Coordinator holds the websocket subscription to the NVR event feed
// and fans out per-device updates. The integration layers hub semantics
// on top: camera and motion entities, motion/ring bus events and the
// device trigger provider.
package unifi

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/amberhub/amber-core/internal/bus"
	"github.com/amberhub/amber-core/internal/device"
	"github.com/amberhub/amber-core/internal/deviceauto"
	"github.com/amberhub/amber-core/internal/integrations"
	"github.com/amberhub/amber-core/internal/state"
)

// Bus event types fired from NVR updates.
const (
	EventMotion = "unifi_motion"
	EventRing   = "unifi_ring"
)

// Device trigger types.
const (
	TriggerMotion = "motion"
	TriggerRing   = "ring"
)

var triggerTypes = map[string]struct{}{
	TriggerMotion: {},
	TriggerRing:   {},
}

// Camera entity states.
const (
	StateIdle      = "idle"
	StateRecording = "recording"
)

// Config holds the NVR connection settings.
type Config struct {
	// URL is the websocket endpoint of the NVR event feed,
	// e.g. wss://nvr.local/proxy/protect/ws/updates.
	URL string

	// APIKey is sent as the X-API-KEY header on the dial. Empty
	// disables authentication, for NVRs on a trusted network.
	APIKey string

	// InsecureSkipVerify disables certificate checks for NVRs with
	// self-signed certificates. Local-network use only.
	InsecureSkipVerify bool
}

// Integration is the UniFi Protect adapter.
type Integration struct {
	cfg         Config
	hub         *integrations.Hub
	coordinator *Coordinator
	unsubscribe func()
	cancel      context.CancelFunc
}

// New creates the UniFi integration.
func New(cfg Config) *Integration {
	return &Integration{cfg: cfg}
}

// Name implements integrations.Integration.
func (i *Integration) Name() string { return "unifi" }

// Coordinator exposes the update coordinator, for availability checks.
// Nil before Setup.
func (i *Integration) Coordinator() *Coordinator { return i.coordinator }

// Setup starts the NVR coordinator and registers the trigger provider.
func (i *Integration) Setup(ctx context.Context, hub *integrations.Hub) error {
	if i.cfg.URL == "" {
		return fmt.Errorf("unifi: nvr url required")
	}
	i.hub = hub
	i.coordinator = NewCoordinator(i.cfg.URL, hub.Logger)
	if i.cfg.APIKey != "" {
		i.coordinator.SetRequestHeader(http.Header{"X-API-KEY": []string{i.cfg.APIKey}})
	}
	if i.cfg.InsecureSkipVerify {
		i.coordinator.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // operator opt-in for self-signed NVRs
	}
	i.coordinator.SetConnectionListener(i.handleConnection)
	i.unsubscribe = i.coordinator.SubscribeAll(i.handleUpdate)

	if hub.DeviceAutomations != nil {
		hub.DeviceAutomations.RegisterTriggerProvider("unifi", &triggerProvider{
			bus:     hub.Bus,
			devices: hub.Devices,
		})
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	i.cancel = cancel
	i.coordinator.Start(runCtx)
	return nil
}

// Close stops the coordinator and waits for its goroutine to exit.
func (i *Integration) Close() error {
	if i.unsubscribe != nil {
		i.unsubscribe()
	}
	if i.cancel != nil {
		i.cancel()
		<-i.coordinator.Done()
	}
	return nil
}

// handleConnection flips camera entities to unavailable while the NVR
// feed is down.
func (i *Integration) handleConnection(connected bool) {
	if connected || i.hub.States == nil || i.hub.Devices == nil {
		return
	}
	ctx := context.Background()
	devices, err := i.hub.Devices.ListByIntegration(ctx, "unifi")
	if err != nil {
		return
	}
	for idx := range devices {
		entityID := "camera." + devices[idx].ID
		if _, err := i.hub.States.Get(entityID); err != nil {
			continue
		}
		i.hub.States.Set(ctx, entityID, state.StateUnavailable, nil) //nolint:errcheck // best effort
	}
}

// handleUpdate translates one NVR device update into entities and bus
// events. Runs on the coordinator's read goroutine.
func (i *Integration) handleUpdate(nvrID string, changed []string, deviceState map[string]any) {
	dev := i.resolveDevice(nvrID)
	if dev == nil {
		return
	}
	ctx := context.Background()

	for _, field := range changed {
		switch field {
		case "motion":
			i.setMotion(ctx, dev, deviceState)
		case "ring":
			if on, _ := deviceState["ring"].(bool); on && i.hub.Bus != nil {
				i.hub.Bus.Fire(ctx, EventRing, map[string]any{"device_id": dev.ID})
			}
		case "recording", "online":
			i.setCamera(ctx, dev, deviceState)
		}
	}
}

func (i *Integration) setMotion(ctx context.Context, dev *device.Device, deviceState map[string]any) {
	on, _ := deviceState["motion"].(bool)
	if on && i.hub.Bus != nil {
		i.hub.Bus.Fire(ctx, EventMotion, map[string]any{"device_id": dev.ID})
	}
	if i.hub.States == nil {
		return
	}
	value := state.StateOff
	if on {
		value = state.StateOn
	}
	entityID := "binary_sensor." + dev.ID + "_motion"
	i.hub.States.Set(ctx, entityID, value, map[string]any{"device_id": dev.ID}) //nolint:errcheck // best effort
}

func (i *Integration) setCamera(ctx context.Context, dev *device.Device, deviceState map[string]any) {
	if i.hub.States == nil {
		return
	}
	value := StateIdle
	if online, ok := deviceState["online"].(bool); ok && !online {
		value = state.StateUnavailable
	} else if rec, _ := deviceState["recording"].(bool); rec {
		value = StateRecording
	}
	i.hub.States.Set(ctx, "camera."+dev.ID, value, map[string]any{ //nolint:errcheck // best effort
		"device_id": dev.ID,
	})
}

// resolveDevice maps an NVR device ID onto a registered device via the
// unifi_id metadata field, falling back to the device ID itself.
func (i *Integration) resolveDevice(nvrID string) *device.Device {
	if i.hub.Devices == nil {
		return nil
	}
	ctx := context.Background()

	if dev, err := i.hub.Devices.Get(ctx, nvrID); err == nil {
		return dev
	}
	devices, err := i.hub.Devices.ListByIntegration(ctx, "unifi")
	if err != nil {
		return nil
	}
	for idx := range devices {
		if devices[idx].Metadata["unifi_id"] == nvrID {
			return &devices[idx]
		}
	}
	return nil
}

// ─── Device trigger provider ─────────────────────────────────────────────────

// triggerProvider exposes camera motion and doorbell ring as device
// triggers.
type triggerProvider struct {
	bus     *bus.Bus
	devices *device.Registry
}

func (p *triggerProvider) DeviceTriggers(_ context.Context, dev *device.Device) []deviceauto.Capability {
	if dev.Integration != "unifi" {
		return nil
	}
	caps := []deviceauto.Capability{{
		"device_id": dev.ID,
		"domain":    "unifi",
		"type":      TriggerMotion,
	}}
	if doorbell, _ := dev.Metadata["doorbell"].(bool); doorbell {
		caps = append(caps, deviceauto.Capability{
			"device_id": dev.ID,
			"domain":    "unifi",
			"type":      TriggerRing,
		})
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

	eventType := EventMotion
	if triggerType == TriggerRing {
		eventType = EventRing
	}
	detach := p.bus.Listen(eventType, func(ctx context.Context, e bus.Event) {
		if e.Data["device_id"] != deviceID {
			return
		}
		fire(ctx, map[string]any{
			"platform":  "device",
			"device_id": deviceID,
			"type":      triggerType,
		})
	})
	return detach, nil
}
