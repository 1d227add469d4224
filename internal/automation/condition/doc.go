// Package condition implements automation condition types.
//
// Conditions gate automation runs: after a trigger fires, every
// condition in the automation's list must pass before actions run.
// A condition config is a plain mapping whose "condition" key selects
// the type:
//
//	state          entity state/attribute equality, optional hold time
//	numeric_state  numeric range checks (above/below)
//	time           daily wall-clock windows and weekday filters
//	and, or, not   nested combinators
//	device         integration-defined device conditions, resolved
//	               through the deviceauto registry
//
// Configs compile once into Checker closures; evaluation at trigger
// time is a plain function call against the state machine.
package condition
