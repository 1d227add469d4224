package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/amberhub/amber-core/internal/bus"
)

// Call carries the parameters of a single service invocation.
type Call struct {
	Domain  string
	Service string
	Data    map[string]any
	Target  []string // entity IDs the call applies to
}

// Name returns the canonical domain.service form.
func (c Call) Name() string {
	return c.Domain + "." + c.Service
}

// Handler executes a service call.
type Handler func(ctx context.Context, call Call) error

// Logger is the minimal logging interface the registry needs.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Error(string, ...any) {}

// Registry maps domain.service names to handlers. Integrations register
// their services at setup; automations and the API invoke them through
// Call. Every successful dispatch fires a service_called event on the
// bus.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler

	bus    *bus.Bus
	logger Logger
}

// NewRegistry creates a service registry. The event bus may be nil, in
// which case no service_called events are fired.
func NewRegistry(eventBus *bus.Bus, logger Logger) *Registry {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Registry{
		handlers: make(map[string]Handler),
		bus:      eventBus,
		logger:   logger,
	}
}

// Register adds a service handler. Registering an existing name
// replaces the previous handler, which lets an integration re-register
// on reload.
func (r *Registry) Register(domain, service string, handler Handler) {
	r.mu.Lock()
	r.handlers[domain+"."+service] = handler
	r.mu.Unlock()
	r.logger.Debug("service registered", "service", domain+"."+service)
}

// Unregister removes a service handler. Absent names are a no-op.
func (r *Registry) Unregister(domain, service string) {
	r.mu.Lock()
	delete(r.handlers, domain+"."+service)
	r.mu.Unlock()
}

// Has reports whether a service is registered.
func (r *Registry) Has(domain, service string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[domain+"."+service]
	return ok
}

// List returns all registered service names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Call dispatches a service invocation. Unknown services return
// ErrServiceNotFound; handler panics are recovered and returned as
// errors so a broken integration cannot take down the caller.
func (r *Registry) Call(ctx context.Context, domain, service string, data map[string]any, target []string) (err error) {
	if domain == "" || service == "" {
		return fmt.Errorf("%w: domain and service are required", ErrInvalidCall)
	}

	call := Call{Domain: domain, Service: service, Data: data, Target: target}

	r.mu.RLock()
	handler, ok := r.handlers[call.Name()]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrServiceNotFound, call.Name())
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("service handler panicked",
				"service", call.Name(), "panic", rec)
			err = fmt.Errorf("service %s panicked: %v", call.Name(), rec)
		}
	}()

	if err := handler(ctx, call); err != nil {
		return fmt.Errorf("service %s: %w", call.Name(), err)
	}

	if r.bus != nil {
		r.bus.Fire(ctx, bus.EventServiceCalled, map[string]any{
			"domain":  domain,
			"service": service,
			"data":    data,
			"target":  target,
		})
	}
	r.logger.Debug("service called", "service", call.Name(), "target", target)
	return nil
}
