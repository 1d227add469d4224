package automation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/amberhub/amber-core/internal/bus"
	"github.com/amberhub/amber-core/internal/script"
)

// Logger defines the logging interface used by the Registry and Engine.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Change kinds carried in automation_reloaded events.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// Registry provides automation management with caching and thread
// safety. It wraps a Repository and adds an in-memory cache for fast
// lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-invalidating CRUD operations. Every mutation fires an
// automation_reloaded event so the engine can re-attach triggers.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	bus     *bus.Bus
	cache   map[string]*Automation
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new automation registry. The event bus may be
// nil, in which case no reload events are fired.
func NewRegistry(repo Repository, eventBus *bus.Bus) *Registry {
	return &Registry{
		repo:   repo,
		bus:    eventBus,
		cache:  make(map[string]*Automation),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all automations from the repository into the
// cache. This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	automations, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading automations: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Automation, len(automations))
	for i := range automations {
		a := automations[i]
		r.cache[a.ID] = a.DeepCopy()
	}

	r.logger.Info("automation cache refreshed", "count", len(automations))
	return nil
}

// Get retrieves an automation by ID.
// The returned automation is a deep copy; callers can safely modify it.
func (r *Registry) Get(_ context.Context, id string) (*Automation, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}
	return nil, ErrAutomationNotFound
}

// List retrieves all automations from the cache.
// Returns deep copies sorted by alias then ID for deterministic ordering.
func (r *Registry) List(_ context.Context) ([]Automation, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	automations := make([]Automation, 0, len(r.cache))
	for _, a := range r.cache {
		automations = append(automations, *a.DeepCopy())
	}
	sort.Slice(automations, func(i, j int) bool {
		if automations[i].Alias != automations[j].Alias {
			return automations[i].Alias < automations[j].Alias
		}
		return automations[i].ID < automations[j].ID
	})
	return automations, nil
}

// Create validates, persists, and caches a new automation.
func (r *Registry) Create(ctx context.Context, a *Automation) error {
	if a.ID == "" {
		a.ID = GenerateID()
	}
	if a.Mode == "" {
		a.Mode = script.ModeSingle
	}
	if a.MaxRuns == 0 {
		a.MaxRuns = script.DefaultMaxRuns
	}

	if err := Validate(a); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, a); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[a.ID] = a.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("automation created", "id", a.ID, "alias", a.Alias)
	r.fireReloaded(ctx, a.ID, ChangeCreated)
	return nil
}

// Update validates, persists, and updates the cached automation.
func (r *Registry) Update(ctx context.Context, a *Automation) error {
	if err := Validate(a); err != nil {
		return err
	}

	if err := r.repo.Update(ctx, a); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[a.ID] = a.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("automation updated", "id", a.ID, "alias", a.Alias)
	r.fireReloaded(ctx, a.ID, ChangeUpdated)
	return nil
}

// SetEnabled flips the enabled flag and persists the change.
func (r *Registry) SetEnabled(ctx context.Context, id string, enabled bool) error {
	a, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.Enabled == enabled {
		return nil
	}

	a.Enabled = enabled
	return r.Update(ctx, a)
}

// SetLastTriggered records a trigger timestamp in both the cache and
// the repository. Does not fire a reload event; the automation's
// behaviour has not changed.
func (r *Registry) SetLastTriggered(ctx context.Context, id string, t time.Time) error {
	if err := r.repo.SetLastTriggered(ctx, id, t); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		ts := t.UTC()
		cached.LastTriggered = &ts
	}
	r.cacheMu.Unlock()
	return nil
}

// Delete removes an automation from persistence and cache.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("automation deleted", "id", id)
	r.fireReloaded(ctx, id, ChangeDeleted)
	return nil
}

// Count returns the number of cached automations.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

func (r *Registry) fireReloaded(ctx context.Context, id, change string) {
	if r.bus == nil {
		return
	}
	r.bus.Fire(ctx, bus.EventAutomationReloaded, map[string]any{
		"automation_id": id,
		"change":        change,
	})
}
