package bus

// Well-known event types fired by the hub.
const (
	// EventStateChanged fires when an entity's state or attributes change.
	// Data: entity_id, old_state (*state.EntityState or nil), new_state.
	EventStateChanged = "state_changed"

	// EventAutomationTriggered fires when an automation begins running.
	// Data: automation_id, alias, source (trigger description).
	EventAutomationTriggered = "automation_triggered"

	// EventAutomationReloaded fires after the automation registry reloads
	// from storage.
	EventAutomationReloaded = "automation_reloaded"

	// EventServiceCalled fires for every service invocation.
	// Data: domain, service, data.
	EventServiceCalled = "service_called"

	// EventHubStarted fires once startup wiring is complete.
	EventHubStarted = "hub_started"

	// EventHubStopped fires at the start of graceful shutdown.
	EventHubStopped = "hub_stopped"
)
