package automation

import (
	"fmt"
	"strings"

	"github.com/amberhub/amber-core/internal/script"
)

// Validation constants.
const (
	maxAliasLength    = 100
	maxDescriptionLen = 500
	maxTriggers       = 50
	maxConditions     = 50
	maxActions        = 100
	maxRunLimit       = 100
)

// Validate performs structural validation on an automation definition.
// Trigger platforms, condition types and action kinds are validated
// separately by the engine when the automation is enabled, because
// those checks need the live registries.
func Validate(a *Automation) error {
	if a == nil {
		return ErrInvalidAutomation
	}

	if strings.TrimSpace(a.Alias) == "" {
		return fmt.Errorf("%w: alias cannot be empty", ErrInvalidAutomation)
	}
	if len(a.Alias) > maxAliasLength {
		return fmt.Errorf("%w: alias exceeds %d characters", ErrInvalidAutomation, maxAliasLength)
	}
	if len(a.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidAutomation, maxDescriptionLen)
	}

	switch a.Mode {
	case "", script.ModeSingle, script.ModeRestart, script.ModeQueued, script.ModeParallel:
	default:
		return fmt.Errorf("%w: unknown run mode %q", ErrInvalidAutomation, a.Mode)
	}
	if a.MaxRuns < 0 || a.MaxRuns > maxRunLimit {
		return fmt.Errorf("%w: max_runs must be 0-%d", ErrInvalidAutomation, maxRunLimit)
	}

	if len(a.Triggers) == 0 {
		return ErrNoTriggers
	}
	if len(a.Triggers) > maxTriggers {
		return fmt.Errorf("%w: exceeds maximum of %d triggers", ErrInvalidAutomation, maxTriggers)
	}
	if len(a.Conditions) > maxConditions {
		return fmt.Errorf("%w: exceeds maximum of %d conditions", ErrInvalidAutomation, maxConditions)
	}
	if len(a.Actions) == 0 {
		return ErrNoActions
	}
	if len(a.Actions) > maxActions {
		return fmt.Errorf("%w: exceeds maximum of %d actions", ErrInvalidAutomation, maxActions)
	}

	return nil
}
