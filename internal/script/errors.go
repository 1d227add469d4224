package script

import "errors"

var (
	// ErrInvalidAction is returned when an action configuration is
	// malformed or names an unrecognised action kind.
	ErrInvalidAction = errors.New("script: invalid action")

	// ErrAlreadyRunning is returned in single mode when a run is
	// requested while a previous run is still in progress.
	ErrAlreadyRunning = errors.New("script: already running")

	// ErrMaxRunsExceeded is returned in queued and parallel modes when
	// the configured run limit has been reached.
	ErrMaxRunsExceeded = errors.New("script: maximum runs exceeded")

	// ErrWaitTimeout is returned when a wait_for action's timeout
	// elapses before its condition passes.
	ErrWaitTimeout = errors.New("script: wait timed out")
)

// errStopped aborts the remaining steps of a run without treating the
// run as failed. Never returned to callers.
var errStopped = errors.New("script: stopped")
