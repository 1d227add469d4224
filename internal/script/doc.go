// Package script compiles automation action lists into runnable
// sequences and executes them under a configurable run mode.
//
// Actions are plain config maps; the kind is inferred from the keys
// present (service, delay, event, wait_for, stop, device_id). Each
// action is validated and compiled into a closure when the Script is
// built, so a malformed action surfaces as an error at automation load
// time rather than mid-run.
//
// Overlapping runs are governed by the run mode:
//
//   - single:   a new run is dropped while one is in progress
//   - restart:  the current run is cancelled and the new one starts
//   - queued:   runs execute one after another, up to the run limit
//   - parallel: runs execute concurrently, up to the run limit
//
// A stop action ends the current run early without marking it failed.
// Cancellation via the run context is honoured between steps and inside
// delay and wait_for steps.
package script
