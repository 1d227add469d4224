package script

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/amberhub/amber-core/internal/automation/condition"
	"github.com/amberhub/amber-core/internal/bus"
	"github.com/amberhub/amber-core/internal/state"
)

// Run modes control what happens when a run is requested while a
// previous run is still in progress.
const (
	ModeSingle   = "single"   // drop the new run
	ModeRestart  = "restart"  // cancel the current run, start the new one
	ModeQueued   = "queued"   // run after the current run finishes
	ModeParallel = "parallel" // run concurrently
)

// DefaultMaxRuns caps queued and parallel runs when no explicit limit
// is configured.
const DefaultMaxRuns = 10

// ServiceCaller dispatches service calls produced by service actions.
type ServiceCaller interface {
	Call(ctx context.Context, domain, service string, data map[string]any, target []string) error
}

// DeviceResolver validates and executes device actions on behalf of the
// integration that owns the device.
type DeviceResolver interface {
	ValidateAction(cfg map[string]any) error
	RunAction(ctx context.Context, cfg map[string]any) error
}

// Logger is the minimal logging interface the script runner needs.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Environment provides the collaborators actions execute against.
type Environment struct {
	Bus              *bus.Bus
	States           *state.Machine
	Services         ServiceCaller
	Devices          DeviceResolver
	Conditions       *condition.Registry
	ConditionDevices condition.DeviceResolver
}

func (e Environment) conditionEnv() condition.Environment {
	return condition.Environment{States: e.States, Devices: e.ConditionDevices}
}

// Script is a compiled, runnable action sequence. A Script is built
// once from its action configs and may be run many times; the run mode
// decides how overlapping runs interact.
type Script struct {
	alias   string
	mode    string
	maxRuns int
	steps   []step
	logger  Logger

	mu       sync.Mutex
	running  int
	waiting  int
	cancel   context.CancelFunc // current run, restart mode only
	onChange func(running int)

	execMu sync.Mutex // serialises queued runs
}

// New compiles the action list into a Script. Every action is validated
// up front; a config error here means the owning automation cannot be
// enabled.
func New(alias, mode string, maxRuns int, actions []ActionConfig, env Environment, logger Logger) (*Script, error) {
	if mode == "" {
		mode = ModeSingle
	}
	switch mode {
	case ModeSingle, ModeRestart, ModeQueued, ModeParallel:
	default:
		return nil, fmt.Errorf("%w: unknown run mode %q", ErrInvalidAction, mode)
	}
	if maxRuns <= 0 {
		maxRuns = DefaultMaxRuns
	}

	steps := make([]step, 0, len(actions))
	for i, cfg := range actions {
		s, err := compileStep(env, cfg)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		steps = append(steps, s)
	}

	if logger == nil {
		logger = noopLogger{}
	}

	return &Script{
		alias:   alias,
		mode:    mode,
		maxRuns: maxRuns,
		steps:   steps,
		logger:  logger,
	}, nil
}

// SetChangeListener registers a callback invoked whenever the number of
// in-flight runs changes. Used by the automation engine to reflect run
// state on the automation's entity.
func (s *Script) SetChangeListener(fn func(running int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Running reports the number of in-flight runs.
func (s *Script) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Run executes the script's steps in order. It blocks until the run
// finishes, is cancelled, or is rejected by the run mode. A stop action
// ends the run early without error.
func (s *Script) Run(ctx context.Context) error {
	switch s.mode {
	case ModeSingle:
		return s.runSingle(ctx)
	case ModeRestart:
		return s.runRestart(ctx)
	case ModeQueued:
		return s.runQueued(ctx)
	default:
		return s.runParallel(ctx)
	}
}

func (s *Script) runSingle(ctx context.Context) error {
	s.mu.Lock()
	if s.running > 0 {
		s.mu.Unlock()
		s.logger.Warn("script already running, run dropped", "alias", s.alias)
		return ErrAlreadyRunning
	}
	s.startLocked()
	s.mu.Unlock()
	s.notifyChange()
	defer s.finish()

	return s.execute(ctx)
}

func (s *Script) runRestart(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.startLocked()
	s.mu.Unlock()
	s.notifyChange()
	defer s.finish()

	return s.execute(runCtx)
}

func (s *Script) runQueued(ctx context.Context) error {
	s.mu.Lock()
	if s.running+s.waiting >= s.maxRuns {
		s.mu.Unlock()
		s.logger.Warn("script queue full, run dropped", "alias", s.alias, "max_runs", s.maxRuns)
		return ErrMaxRunsExceeded
	}
	s.waiting++
	s.mu.Unlock()

	s.execMu.Lock()
	defer s.execMu.Unlock()

	s.mu.Lock()
	s.waiting--
	s.startLocked()
	s.mu.Unlock()
	s.notifyChange()
	defer s.finish()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return s.execute(ctx)
}

func (s *Script) runParallel(ctx context.Context) error {
	s.mu.Lock()
	if s.running >= s.maxRuns {
		s.mu.Unlock()
		s.logger.Warn("script run limit reached, run dropped", "alias", s.alias, "max_runs", s.maxRuns)
		return ErrMaxRunsExceeded
	}
	s.startLocked()
	s.mu.Unlock()
	s.notifyChange()
	defer s.finish()

	return s.execute(ctx)
}

func (s *Script) execute(ctx context.Context) error {
	for _, step := range s.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step(ctx); err != nil {
			if errors.Is(err, errStopped) {
				return nil
			}
			return err
		}
	}
	return nil
}

// startLocked must be called with s.mu held.
func (s *Script) startLocked() {
	s.running++
}

func (s *Script) finish() {
	s.mu.Lock()
	s.running--
	s.mu.Unlock()
	s.notifyChange()
}

// notifyChange invokes the change listener outside the lock so the
// callback may query the script freely.
func (s *Script) notifyChange() {
	s.mu.Lock()
	fn := s.onChange
	n := s.running
	s.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}
