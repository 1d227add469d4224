// Package bus implements the in-process event bus connecting the hub's
// subsystems.
//
// Integrations publish device activity as events, the state machine
// fires state_changed on every entity update, and the automation engine
// listens for whatever its triggers subscribe to. Nothing holds a
// direct reference to anything else; the bus is the only coupling
// point.
//
//	Integrations ──► Bus ──► Trigger attachments
//	State machine ──► Bus ──► WebSocket hub, history recorder
//
// Handlers run synchronously on the firing goroutine. This keeps event
// ordering deterministic (a state trigger always sees state changes in
// the order they happened) at the cost of requiring handlers to stay
// fast. Anything slow hands off to its own goroutine.
package bus
