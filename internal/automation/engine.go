package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amberhub/amber-core/internal/automation/condition"
	"github.com/amberhub/amber-core/internal/automation/trigger"
	"github.com/amberhub/amber-core/internal/bus"
	"github.com/amberhub/amber-core/internal/script"
	"github.com/amberhub/amber-core/internal/state"
)

// Engine brings automations to life. For every enabled automation it
// attaches the configured triggers, compiles the condition checkers and
// the action script, and represents the automation as an entity in the
// state machine:
//
//	on          enabled, triggers attached
//	off         disabled
//	unavailable failed validation or compilation
//
// The engine watches automation_reloaded events from the registry so
// CRUD operations take effect without a restart.
//
// Thread Safety: all public methods are safe for concurrent use.
type Engine struct {
	registry   *Registry
	triggers   *trigger.Registry
	conditions *condition.Registry
	triggerEnv trigger.Environment
	scriptEnv  script.Environment
	logger     Logger

	mu   sync.Mutex
	live map[string]*liveAutomation

	runCtx       context.Context
	cancelRuns   context.CancelFunc
	detachReload bus.DetachFunc
}

// liveAutomation is an enabled automation with its runtime artefacts.
type liveAutomation struct {
	auto   *Automation
	detach trigger.DetachFunc
	script *script.Script
	check  condition.Checker
}

// NewEngine creates an automation engine. The trigger and script
// environments carry the collaborators (event bus, state machine, MQTT,
// service caller, device-automation resolvers) that compiled triggers
// and actions execute against.
func NewEngine(
	registry *Registry,
	triggers *trigger.Registry,
	conditions *condition.Registry,
	triggerEnv trigger.Environment,
	scriptEnv script.Environment,
	logger Logger,
) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		registry:   registry,
		triggers:   triggers,
		conditions: conditions,
		triggerEnv: triggerEnv,
		scriptEnv:  scriptEnv,
		logger:     logger,
		live:       make(map[string]*liveAutomation),
	}
}

// Start loads every automation from the registry and attaches the
// enabled ones. Individual automations that fail to compile are marked
// unavailable and logged; they do not abort startup.
func (e *Engine) Start(ctx context.Context) error {
	e.runCtx, e.cancelRuns = context.WithCancel(context.Background())

	if e.triggerEnv.Bus != nil {
		e.detachReload = e.triggerEnv.Bus.Listen(bus.EventAutomationReloaded, e.handleReload)
	}

	automations, err := e.registry.List(ctx)
	if err != nil {
		return fmt.Errorf("listing automations: %w", err)
	}

	attached := 0
	for i := range automations {
		a := automations[i]
		if syncErr := e.sync(ctx, &a); syncErr != nil {
			e.logger.Error("automation failed to load",
				"id", a.ID, "alias", a.Alias, "error", syncErr)
			continue
		}
		if a.Enabled {
			attached++
		}
	}

	e.logger.Info("automation engine started",
		"total", len(automations), "enabled", attached)
	return nil
}

// Stop detaches all triggers and cancels in-flight script runs.
func (e *Engine) Stop() {
	if e.detachReload != nil {
		e.detachReload()
	}

	e.mu.Lock()
	for id, la := range e.live {
		la.detach()
		delete(e.live, id)
	}
	e.mu.Unlock()

	if e.cancelRuns != nil {
		e.cancelRuns()
	}
	e.logger.Info("automation engine stopped")
}

// Enable turns an automation on, persisting the change and attaching
// its triggers via the reload event.
func (e *Engine) Enable(ctx context.Context, id string) error {
	return e.registry.SetEnabled(ctx, id, true)
}

// Disable turns an automation off. Attached triggers are detached via
// the reload event; runs already in flight are allowed to finish.
func (e *Engine) Disable(ctx context.Context, id string) error {
	return e.registry.SetEnabled(ctx, id, false)
}

// Trigger runs an automation immediately, as if one of its triggers had
// fired. When skipCondition is true the condition checkers are
// bypassed. Blocks until the run completes.
func (e *Engine) Trigger(ctx context.Context, id string, vars map[string]any, skipCondition bool) error {
	e.mu.Lock()
	la, ok := e.live[id]
	e.mu.Unlock()

	if !ok {
		if _, err := e.registry.Get(ctx, id); err != nil {
			return err
		}
		return ErrAutomationDisabled
	}
	return e.run(ctx, la, vars, skipCondition)
}

// Running reports the number of in-flight runs for an automation, or 0
// when it is not live.
func (e *Engine) Running(id string) int {
	e.mu.Lock()
	la, ok := e.live[id]
	e.mu.Unlock()
	if !ok {
		return 0
	}
	return la.script.Running()
}

// handleReload reacts to registry CRUD by re-syncing the affected
// automation.
func (e *Engine) handleReload(ctx context.Context, event bus.Event) {
	id, _ := event.Data["automation_id"].(string)
	change, _ := event.Data["change"].(string)
	if id == "" {
		return
	}

	if change == ChangeDeleted {
		e.teardown(id)
		if e.triggerEnv.States != nil {
			if err := e.triggerEnv.States.Remove(ctx, "automation."+id); err != nil && !errors.Is(err, state.ErrEntityNotFound) {
				e.logger.Warn("removing automation entity", "id", id, "error", err)
			}
		}
		return
	}

	a, err := e.registry.Get(ctx, id)
	if err != nil {
		e.logger.Warn("reload for unknown automation", "id", id, "error", err)
		return
	}
	if err := e.sync(ctx, a); err != nil {
		e.logger.Error("automation failed to reload",
			"id", a.ID, "alias", a.Alias, "error", err)
	}
}

// sync makes the live set match the automation's definition. Existing
// triggers are detached first so edits never double-attach.
func (e *Engine) sync(ctx context.Context, a *Automation) error {
	e.teardown(a.ID)

	if !a.Enabled {
		e.setEntity(ctx, a, state.StateOff, 0)
		return nil
	}

	for _, t := range a.Triggers {
		if err := e.triggers.Validate(t); err != nil {
			e.setEntity(ctx, a, state.StateUnavailable, 0)
			return fmt.Errorf("trigger: %w", err)
		}
	}
	check, err := e.conditions.BuildAll(e.conditionEnv(), a.Conditions)
	if err != nil {
		e.setEntity(ctx, a, state.StateUnavailable, 0)
		return fmt.Errorf("condition: %w", err)
	}
	scr, err := script.New(a.Alias, a.Mode, a.MaxRuns, a.Actions, e.scriptEnv, e.logger)
	if err != nil {
		e.setEntity(ctx, a, state.StateUnavailable, 0)
		return fmt.Errorf("action: %w", err)
	}

	la := &liveAutomation{auto: a, script: scr, check: check}

	scr.SetChangeListener(func(running int) {
		e.setEntity(context.Background(), la.auto, state.StateOn, running)
	})

	detach, err := e.triggers.AttachAll(e.runCtx, e.triggerEnv, a.Triggers, func(_ context.Context, vars map[string]any) {
		// Bus delivery is synchronous; never block the firing
		// goroutine on a script run.
		go func() {
			//nolint:errcheck // run failures are logged inside run
			e.run(e.runCtx, la, vars, false)
		}()
	})
	if err != nil {
		e.setEntity(ctx, a, state.StateUnavailable, 0)
		return fmt.Errorf("attaching triggers: %w", err)
	}
	la.detach = detach

	e.mu.Lock()
	e.live[a.ID] = la
	e.mu.Unlock()

	e.setEntity(ctx, a, state.StateOn, 0)
	e.logger.Debug("automation attached", "id", a.ID, "alias", a.Alias,
		"triggers", len(a.Triggers))
	return nil
}

// run executes one automation pass: condition gate, bookkeeping,
// automation_triggered event, then the action script.
func (e *Engine) run(ctx context.Context, la *liveAutomation, vars map[string]any, skipCondition bool) error {
	a := la.auto

	if !skipCondition && la.check != nil && !la.check(ctx) {
		e.logger.Debug("conditions not met", "id", a.ID, "alias", a.Alias)
		return nil
	}

	now := time.Now().UTC()
	if err := e.registry.SetLastTriggered(ctx, a.ID, now); err != nil {
		e.logger.Warn("recording last_triggered", "id", a.ID, "error", err)
	}
	a.LastTriggered = &now

	if e.triggerEnv.Bus != nil {
		e.triggerEnv.Bus.Fire(ctx, bus.EventAutomationTriggered, map[string]any{
			"automation_id": a.ID,
			"alias":         a.Alias,
			"vars":          vars,
		})
	}

	e.logger.Info("automation triggered", "id", a.ID, "alias", a.Alias)

	err := la.script.Run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, script.ErrAlreadyRunning), errors.Is(err, script.ErrMaxRunsExceeded):
		e.logger.Warn("automation run skipped", "id", a.ID, "alias", a.Alias, "reason", err)
	case errors.Is(err, context.Canceled):
		e.logger.Debug("automation run cancelled", "id", a.ID, "alias", a.Alias)
	default:
		e.logger.Error("automation run failed", "id", a.ID, "alias", a.Alias, "error", err)
	}
	return err
}

// teardown detaches an automation's triggers and drops it from the
// live set.
func (e *Engine) teardown(id string) {
	e.mu.Lock()
	la, ok := e.live[id]
	if ok {
		delete(e.live, id)
	}
	e.mu.Unlock()

	if ok {
		la.detach()
	}
}

// setEntity mirrors the automation onto its state-machine entity.
func (e *Engine) setEntity(ctx context.Context, a *Automation, value string, running int) {
	if e.triggerEnv.States == nil {
		return
	}

	attrs := map[string]any{
		"friendly_name": a.Alias,
		"mode":          a.Mode,
		"current":       running,
	}
	if a.LastTriggered != nil {
		attrs["last_triggered"] = a.LastTriggered.UTC().Format(time.RFC3339Nano)
	}

	if err := e.triggerEnv.States.Set(ctx, a.EntityID(), value, attrs); err != nil {
		e.logger.Warn("updating automation entity", "id", a.ID, "error", err)
	}
}

func (e *Engine) conditionEnv() condition.Environment {
	return condition.Environment{
		States:  e.scriptEnv.States,
		Devices: e.scriptEnv.ConditionDevices,
	}
}
