package state

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/amberhub/amber-core/internal/bus"
)

// Store persists entity states across restarts.
// Implemented by the SQLite-backed Repository in this package.
type Store interface {
	Save(ctx context.Context, s *EntityState) error
	LoadAll(ctx context.Context) ([]*EntityState, error)
	Delete(ctx context.Context, entityID string) error
}

// Logger is the minimal logging surface the machine needs.
type Logger interface {
	Warn(msg string, args ...any)
}

// Machine holds the current state of every entity on the hub.
//
// Reads come from an in-memory map; writes update the map, persist
// through the optional Store, and fire bus.EventStateChanged. All
// methods are safe for concurrent use and callers always receive
// copies.
type Machine struct {
	mu     sync.RWMutex
	states map[string]*EntityState

	bus    *bus.Bus
	store  Store
	logger Logger
}

// NewMachine creates a state machine.
// store and logger may be nil; events always fire on eventBus.
func NewMachine(eventBus *bus.Bus, store Store, logger Logger) *Machine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Machine{
		states: make(map[string]*EntityState),
		bus:    eventBus,
		store:  store,
		logger: logger,
	}
}

// Restore loads persisted states into the machine without firing
// state_changed events. Called once at startup before integrations run.
func (m *Machine) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	states, err := m.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range states {
		m.states[s.EntityID] = s.Copy()
	}
	return nil
}

// Get returns a copy of the current state for an entity.
func (m *Machine) Get(entityID string) (*EntityState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.states[entityID]
	if !ok {
		return nil, ErrEntityNotFound
	}
	return s.Copy(), nil
}

// All returns copies of every entity state, in no particular order.
func (m *Machine) All() []*EntityState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*EntityState, 0, len(m.states))
	for _, s := range m.states {
		out = append(out, s.Copy())
	}
	return out
}

// Set records a new state for an entity and fires state_changed.
//
// LastChanged only advances when the state value differs from the
// previous one; attribute-only writes advance LastUpdated alone. A
// write that changes neither state nor attributes is dropped without
// firing an event.
func (m *Machine) Set(ctx context.Context, entityID, newState string, attributes map[string]any) error {
	if !ValidEntityID(entityID) {
		return ErrInvalidEntityID
	}

	now := time.Now().UTC()

	m.mu.Lock()
	old := m.states[entityID]

	if old != nil && old.State == newState && reflect.DeepEqual(old.Attributes, attributes) {
		m.mu.Unlock()
		return nil
	}

	entry := &EntityState{
		EntityID:    entityID,
		State:       newState,
		Attributes:  attributes,
		LastChanged: now,
		LastUpdated: now,
	}
	if old != nil && old.State == newState {
		entry.LastChanged = old.LastChanged
	}

	m.states[entityID] = entry
	oldCopy := old.Copy()
	newCopy := entry.Copy()
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Save(ctx, newCopy); err != nil {
			m.logger.Warn("failed to persist entity state",
				"entity_id", entityID,
				"error", err,
			)
		}
	}

	m.bus.Fire(ctx, bus.EventStateChanged, map[string]any{
		"entity_id": entityID,
		"old_state": oldCopy,
		"new_state": newCopy,
	})

	return nil
}

// Remove deletes an entity from the machine and fires a final
// state_changed with a nil new_state.
func (m *Machine) Remove(ctx context.Context, entityID string) error {
	m.mu.Lock()
	old, ok := m.states[entityID]
	if !ok {
		m.mu.Unlock()
		return ErrEntityNotFound
	}
	delete(m.states, entityID)
	oldCopy := old.Copy()
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Delete(ctx, entityID); err != nil {
			m.logger.Warn("failed to delete persisted entity state",
				"entity_id", entityID,
				"error", err,
			)
		}
	}

	m.bus.Fire(ctx, bus.EventStateChanged, map[string]any{
		"entity_id": entityID,
		"old_state": oldCopy,
		"new_state": (*EntityState)(nil),
	})

	return nil
}

// Count returns the number of tracked entities.
func (m *Machine) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}
