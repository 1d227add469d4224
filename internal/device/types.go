package device

import (
	"time"

	"github.com/google/uuid"
)

// Device is a physical or virtual device known to the hub.
//
// An integration registers one Device per piece of hardware it manages
// and exposes the device's capabilities as entities in the state
// machine. Device automations (triggers, conditions, actions) are
// resolved against the owning integration via the Integration field.
type Device struct {
	// ID uniquely identifies the device. Generated if empty on create.
	ID string `json:"id"`

	// Name is the human-readable device name.
	Name string `json:"name"`

	// Integration is the owning integration key ("shelly", "zwave",
	// "cover", "unifi").
	Integration string `json:"integration"`

	// Model and Manufacturer describe the hardware, when known.
	Model        string `json:"model,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`

	// Area is a free-form location label ("kitchen", "garage").
	Area string `json:"area,omitempty"`

	// CommandTopic is the MQTT topic commands for this device are
	// published to. Empty for devices that are not MQTT-controlled.
	CommandTopic string `json:"command_topic,omitempty"`

	// Metadata carries integration-specific fields (Z-Wave node ID,
	// UniFi camera MAC). May be nil.
	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy returns an independent copy of the device.
// The registry hands out copies so cached entries cannot be mutated
// behind its back.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cp := *d
	if d.Metadata != nil {
		cp.Metadata = make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// GenerateID creates a new unique device ID.
func GenerateID() string {
	return uuid.NewString()
}

// Validate checks the device for required fields.
func Validate(d *Device) error {
	if d.ID == "" {
		return ErrInvalidDevice
	}
	if d.Name == "" {
		return ErrInvalidDevice
	}
	if d.Integration == "" {
		return ErrInvalidDevice
	}
	return nil
}
