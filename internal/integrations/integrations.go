package integrations

import (
	"context"
	"fmt"

	"github.com/amberhub/amber-core/internal/bus"
	"github.com/amberhub/amber-core/internal/device"
	"github.com/amberhub/amber-core/internal/deviceauto"
	"github.com/amberhub/amber-core/internal/infrastructure/mqtt"
	"github.com/amberhub/amber-core/internal/service"
	"github.com/amberhub/amber-core/internal/state"
)

// Logger defines the logging interface integrations use.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MQTTBroker is the slice of the MQTT client integrations use.
// Satisfied by *mqtt.Client; tests substitute a fake.
type MQTTBroker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Hub bundles the core collaborators an integration wires itself into.
type Hub struct {
	Bus               *bus.Bus
	States            *state.Machine
	Devices           *device.Registry
	MQTT              MQTTBroker
	Services          *service.Registry
	DeviceAutomations *deviceauto.Registry
	Commander         *service.DeviceCommander
	Logger            Logger
}

// Integration is a vendor adapter. Setup subscribes to the vendor's
// transport, registers services and device automation providers, and
// creates entities; Close releases those resources.
type Integration interface {
	Name() string
	Setup(ctx context.Context, hub *Hub) error
	Close() error
}

// Loader holds the configured integrations and manages their
// lifecycle.
type Loader struct {
	integrations []Integration
	active       []Integration
	logger       Logger
}

// NewLoader creates an integration loader.
func NewLoader(logger Logger) *Loader {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Loader{logger: logger}
}

// Register adds an integration. Call before SetupAll.
func (l *Loader) Register(i Integration) {
	l.integrations = append(l.integrations, i)
}

// SetupAll starts every registered integration. A failing integration
// is logged and skipped; one broken vendor must not take the hub down.
func (l *Loader) SetupAll(ctx context.Context, hub *Hub) {
	if hub.Logger == nil {
		hub.Logger = l.logger
	}
	for _, i := range l.integrations {
		if err := i.Setup(ctx, hub); err != nil {
			l.logger.Error("integration setup failed", "integration", i.Name(), "error", err)
			continue
		}
		l.active = append(l.active, i)
		l.logger.Info("integration ready", "integration", i.Name())
	}
}

// CloseAll stops the active integrations in reverse setup order.
func (l *Loader) CloseAll() error {
	var firstErr error
	for i := len(l.active) - 1; i >= 0; i-- {
		in := l.active[i]
		if err := in.Close(); err != nil {
			l.logger.Warn("integration close failed", "integration", in.Name(), "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("closing %s: %w", in.Name(), err)
			}
		}
	}
	l.active = nil
	return firstErr
}

// Active returns the names of successfully started integrations.
func (l *Loader) Active() []string {
	names := make([]string, 0, len(l.active))
	for _, i := range l.active {
		names = append(names, i.Name())
	}
	return names
}
