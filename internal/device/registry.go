package device

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by the CRUD methods. All public methods are thread-safe and return
// deep copies.
type Registry struct {
	repo   Repository
	cache  map[string]*Device
	mu     sync.RWMutex
	logger Logger
}

// NewRegistry creates a new device registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// Called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// Get retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *Registry) Get(ctx context.Context, id string) (*Device, error) {
	r.mu.RLock()
	cached, ok := r.cache[id]
	r.mu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	// Might be a device created by another path and not yet cached.
	d, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[id] = d.DeepCopy()
	r.mu.Unlock()

	return d, nil
}

// List retrieves all devices.
func (r *Registry) List(ctx context.Context) ([]Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.cache) > 0 {
		devices := make([]Device, 0, len(r.cache))
		for _, d := range r.cache {
			devices = append(devices, *d.DeepCopy())
		}
		return devices, nil
	}

	return r.repo.List(ctx)
}

// ListByIntegration retrieves all devices owned by an integration.
func (r *Registry) ListByIntegration(ctx context.Context, integration string) ([]Device, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	var devices []Device
	for i := range all {
		if all[i].Integration == integration {
			devices = append(devices, all[i])
		}
	}
	return devices, nil
}

// ListByArea retrieves all devices in an area.
func (r *Registry) ListByArea(ctx context.Context, area string) ([]Device, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	var devices []Device
	for i := range all {
		if all[i].Area == area {
			devices = append(devices, all[i])
		}
	}
	return devices, nil
}

// Create validates and persists a new device.
// An empty ID is filled with a generated one.
func (r *Registry) Create(ctx context.Context, d *Device) error {
	if d.ID == "" {
		d.ID = GenerateID()
	}

	if err := Validate(d); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, d); err != nil {
		return err
	}

	r.mu.Lock()
	r.cache[d.ID] = d.DeepCopy()
	r.mu.Unlock()

	r.logger.Info("device created", "id", d.ID, "name", d.Name, "integration", d.Integration)
	return nil
}

// Update validates and persists changes to an existing device.
func (r *Registry) Update(ctx context.Context, d *Device) error {
	if err := Validate(d); err != nil {
		return err
	}

	if err := r.repo.Update(ctx, d); err != nil {
		return err
	}

	r.mu.Lock()
	r.cache[d.ID] = d.DeepCopy()
	r.mu.Unlock()

	r.logger.Info("device updated", "id", d.ID)
	return nil
}

// Delete removes a device.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// Count returns the number of cached devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
