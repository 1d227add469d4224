package mqtt

import "fmt"

// Topic prefixes for the Amber Hub MQTT namespace.
//
// Hub-owned topics live under amber/. Vendor integrations additionally
// subscribe to their own device namespaces (shellies/#, zwave/#) which
// are configured per integration, not built here.
const (
	// TopicPrefixHub is the base for all hub topics.
	TopicPrefixHub = "amber"

	// TopicPrefixSystem is the base for system status topics.
	TopicPrefixSystem = "amber/system"
)

// Topics provides builders for Amber Hub MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.EntityState("light.living_room")
//	// Returns: "amber/state/light.living_room"
type Topics struct{}

// EntityState returns the topic for canonical entity state published by
// the hub after processing.
//
// Example: amber/state/light.living_room
func (Topics) EntityState(entityID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefixHub, entityID)
}

// Command returns the topic for outgoing device commands.
//
// Example: amber/command/shelly/shelly1-kitchen
func (Topics) Command(integration, deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefixHub, integration, deviceID)
}

// Event returns the topic for hub events mirrored onto MQTT.
//
// Example: amber/event/automation_triggered
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixHub, eventType)
}

// AutomationFired returns the topic announcing an automation run.
//
// Example: amber/automation/morning_lights/fired
func (Topics) AutomationFired(automationID string) string {
	return fmt.Sprintf("%s/automation/%s/fired", TopicPrefixHub, automationID)
}

// IntegrationHealth returns the health topic for an integration.
//
// Example: amber/health/unifi
func (Topics) IntegrationHealth(integration string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefixHub, integration)
}

// SystemStatus returns the hub status topic used for LWT and
// online/offline announcements.
//
// Example: amber/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllCommands returns a pattern matching all outgoing device commands.
//
// Pattern: amber/command/+/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+/+", TopicPrefixHub)
}

// AllEntityStates returns a pattern matching all canonical entity states.
//
// Pattern: amber/state/+
func (Topics) AllEntityStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefixHub)
}

// AllEvents returns a pattern matching all mirrored hub events.
//
// Pattern: amber/event/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefixHub)
}

// AllTopics returns a pattern matching the entire hub namespace.
// Use with caution, this receives ALL hub traffic.
//
// Pattern: amber/#
func (Topics) AllTopics() string {
	return "amber/#"
}
