package automation

import "errors"

var (
	// ErrAutomationNotFound is returned when an automation ID does not
	// exist in the registry or repository.
	ErrAutomationNotFound = errors.New("automation: not found")

	// ErrAutomationExists is returned when creating an automation whose
	// ID already exists.
	ErrAutomationExists = errors.New("automation: already exists")

	// ErrAutomationDisabled is returned when triggering an automation
	// that is currently disabled.
	ErrAutomationDisabled = errors.New("automation: disabled")

	// ErrInvalidAutomation is returned for structurally invalid
	// automation definitions (missing alias, no triggers, bad mode).
	ErrInvalidAutomation = errors.New("automation: invalid definition")

	// ErrNoTriggers is returned when an automation defines no triggers.
	ErrNoTriggers = errors.New("automation: no triggers defined")

	// ErrNoActions is returned when an automation defines no actions.
	ErrNoActions = errors.New("automation: no actions defined")
)
