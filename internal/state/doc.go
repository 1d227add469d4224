// Package state tracks the current state of every entity on the hub.
//
// An entity is anything with observable state: a light, a cover, a
// motion sensor, an automation. Each write to the Machine fires
// state_changed on the event bus, which is what state and
// numeric_state triggers listen for.
//
// States survive restarts through the SQLite-backed Repository. At
// startup the machine restores the last known snapshot silently (no
// events fire), so automations do not re-trigger on values that merely
// carried over a reboot.
//
// The machine hands out copies, never its cached pointers. Mutating a
// returned EntityState has no effect on the hub.
package state
