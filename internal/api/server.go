// Package api provides the HTTP REST API and WebSocket server for Amber Hub.
//
// It exposes entity states, the device registry, automations, service
// calls and user management to dashboards and mobile apps.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/amberhub/amber-core/internal/auth"
	"github.com/amberhub/amber-core/internal/automation"
	"github.com/amberhub/amber-core/internal/bus"
	"github.com/amberhub/amber-core/internal/device"
	"github.com/amberhub/amber-core/internal/deviceauto"
	"github.com/amberhub/amber-core/internal/infrastructure/config"
	"github.com/amberhub/amber-core/internal/infrastructure/logging"
	"github.com/amberhub/amber-core/internal/service"
	"github.com/amberhub/amber-core/internal/state"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Security    config.SecurityConfig
	Logger      *logging.Logger
	Bus         *bus.Bus
	States      *state.Machine
	Devices     *device.Registry
	Automations *automation.Registry
	Engine      *automation.Engine
	Services    *service.Registry
	DeviceAuto  *deviceauto.Registry
	Users       auth.UserRepository
	Tokens      auth.TokenRepository
	Version     string
}

// Server is the HTTP API server for Amber Hub.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	bus         *bus.Bus
	states      *state.Machine
	devices     *device.Registry
	automations *automation.Registry
	engine      *automation.Engine
	services    *service.Registry
	deviceAuto  *deviceauto.Registry
	users       auth.UserRepository
	tokens      auth.TokenRepository
	version     string
	server      *http.Server
	hub         *Hub
	tickets     *ticketStore
	detachBus   []bus.DetachFunc
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	if deps.States == nil {
		return nil, fmt.Errorf("state machine is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Users == nil || deps.Tokens == nil {
		return nil, fmt.Errorf("auth repositories are required")
	}

	return &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		secCfg:      deps.Security,
		logger:      deps.Logger,
		bus:         deps.Bus,
		states:      deps.States,
		devices:     deps.Devices,
		automations: deps.Automations,
		engine:      deps.Engine,
		services:    deps.Services,
		deviceAuto:  deps.DeviceAuto,
		users:       deps.Users,
		tokens:      deps.Tokens,
		version:     deps.Version,
		tickets:     newTicketStore(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, attaches to the event
// bus for real-time WebSocket broadcast, and launches the HTTP listener
// in a background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	// Periodic ticket cleanup to prevent memory leaks
	go s.cleanTicketsLoop(srvCtx)

	s.attachEventBroadcast()

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// attachEventBroadcast relays hub events to WebSocket clients. The
// channel name matches the bus event type, so clients subscribe to
// "state_changed", "automation_triggered" and so on.
func (s *Server) attachEventBroadcast() {
	relay := func(eventType string) {
		detach := s.bus.Listen(eventType, func(_ context.Context, e bus.Event) {
			s.hub.Broadcast(eventType, e.Data)
		})
		s.detachBus = append(s.detachBus, detach)
	}

	relay(bus.EventStateChanged)
	relay(bus.EventAutomationTriggered)
	relay(bus.EventServiceCalled)
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	for _, detach := range s.detachBus {
		detach()
	}
	s.detachBus = nil

	// Cancel background goroutines (hub, ticket cleanup)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
