// Package automation implements the hub's rule engine: persisted
// trigger/condition/action definitions brought to life against the
// event bus and state machine.
//
// # Architecture
//
//	┌────────────┐    CRUD     ┌────────────┐   reload events   ┌────────┐
//	│  REST API  │───────────▶│  Registry  │──────────────────▶│ Engine │
//	└────────────┘             │  (cache)   │                   └───┬────┘
//	                           └─────┬──────┘                       │
//	                                 │                    attach / compile
//	                           ┌─────▼──────┐                       │
//	                           │ Repository │              ┌────────▼────────┐
//	                           │  (SQLite)  │              │ trigger/condition│
//	                           └────────────┘              │ script packages  │
//	                                                       └─────────────────┘
//
// The Registry caches automations over a SQLite repository and fires an
// automation_reloaded event on every mutation. The Engine listens for
// those events and (re)attaches triggers, compiles conditions into
// checkers and actions into a script, and mirrors each automation as an
// automation.{id} entity whose state is on, off or unavailable.
//
// When a trigger fires, the engine evaluates the automation's
// conditions (ANDed), records last_triggered, fires an
// automation_triggered event, and runs the action script under the
// automation's run mode.
package automation
