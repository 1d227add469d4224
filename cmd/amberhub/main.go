// Amber Hub - Home Automation Core
//
// This is the main entry point for the Amber Hub application.
// Amber Hub is a local-first home automation hub designed for:
//   - Offline-first operation (no cloud dependency)
//   - Open protocols (MQTT-based device integrations)
//   - A generic automation engine (trigger, condition, action)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/amberhub/amber-core/migrations"

	"github.com/amberhub/amber-core/internal/api"
	"github.com/amberhub/amber-core/internal/auth"
	"github.com/amberhub/amber-core/internal/automation"
	"github.com/amberhub/amber-core/internal/automation/condition"
	"github.com/amberhub/amber-core/internal/automation/trigger"
	"github.com/amberhub/amber-core/internal/bus"
	"github.com/amberhub/amber-core/internal/device"
	"github.com/amberhub/amber-core/internal/deviceauto"
	"github.com/amberhub/amber-core/internal/history"
	"github.com/amberhub/amber-core/internal/infrastructure/config"
	"github.com/amberhub/amber-core/internal/infrastructure/database"
	"github.com/amberhub/amber-core/internal/infrastructure/logging"
	"github.com/amberhub/amber-core/internal/infrastructure/mqtt"
	"github.com/amberhub/amber-core/internal/integrations"
	"github.com/amberhub/amber-core/internal/integrations/cover"
	"github.com/amberhub/amber-core/internal/integrations/shelly"
	"github.com/amberhub/amber-core/internal/integrations/unifi"
	"github.com/amberhub/amber-core/internal/integrations/zwave"
	"github.com/amberhub/amber-core/internal/script"
	"github.com/amberhub/amber-core/internal/service"
	"github.com/amberhub/amber-core/internal/state"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Amber Hub",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Event bus is the spine everything else hangs off
	eventBus := bus.New(log)

	// State machine, restored from the last persisted snapshot
	states := state.NewMachine(eventBus, state.NewRepository(db.DB), log)
	if restoreErr := states.Restore(ctx); restoreErr != nil {
		return fmt.Errorf("restoring entity states: %w", restoreErr)
	}
	log.Info("entity states restored", "entities", states.Count())

	// Device registry
	devices := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	devices.SetLogger(log)
	if refreshErr := devices.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", devices.Count())

	// Auth repositories; seed the first admin account on a fresh install
	users := auth.NewUserRepository(db.DB)
	tokens := auth.NewTokenRepository(db.DB)
	if _, seedErr := auth.SeedAdmin(ctx, users, log); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Service registry and device command routing
	services := service.NewRegistry(eventBus, log)
	commander := service.NewDeviceCommander(devices, mqttClient)
	service.RegisterDeviceServices(services, commander)

	// Device automation registry; integrations register their
	// providers during Setup
	deviceAuto := deviceauto.NewRegistry(devices)

	// Automation engine
	automations := automation.NewRegistry(automation.NewSQLiteRepository(db.DB), eventBus)
	if refreshErr := automations.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading automations: %w", refreshErr)
	}
	conditions := condition.NewRegistry()
	engine := automation.NewEngine(
		automations,
		trigger.NewRegistry(),
		conditions,
		trigger.Environment{
			Bus:     eventBus,
			States:  states,
			MQTT:    mqttClient,
			Devices: deviceAuto,
		},
		script.Environment{
			Bus:              eventBus,
			States:           states,
			Services:         services,
			Devices:          deviceAuto,
			Conditions:       conditions,
			ConditionDevices: deviceAuto,
		},
		log,
	)
	// hub.* services need the engine for enable/disable/trigger
	service.RegisterHubServices(services, engine, states)

	// Device integrations. These must come up before the engine so
	// device triggers resolve against registered providers.
	loader := integrations.NewLoader(log)
	registerIntegrations(loader, cfg)
	loader.SetupAll(ctx, &integrations.Hub{
		Bus:               eventBus,
		States:            states,
		Devices:           devices,
		MQTT:              mqttClient,
		Services:          services,
		DeviceAutomations: deviceAuto,
		Commander:         commander,
		Logger:            log,
	})
	defer func() {
		log.Info("closing integrations")
		if closeErr := loader.CloseAll(); closeErr != nil {
			log.Error("error closing integrations", "error", closeErr)
		}
	}()
	log.Info("integrations active", "names", loader.Active())

	if startErr := engine.Start(ctx); startErr != nil {
		return fmt.Errorf("starting automation engine: %w", startErr)
	}
	defer func() {
		log.Info("stopping automation engine")
		engine.Stop()
	}()

	// History recorder (optional)
	historyClient, recorder, err := startHistory(cfg, eventBus, log)
	if err != nil {
		return fmt.Errorf("starting history recorder: %w", err)
	}
	if historyClient != nil {
		defer func() {
			log.Info("closing history connection")
			recorder.Stop()
			if closeErr := historyClient.Close(); closeErr != nil {
				log.Error("error closing history", "error", closeErr)
			}
		}()
	}

	// REST API and WebSocket server
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Bus:         eventBus,
		States:      states,
		Devices:     devices,
		Automations: automations,
		Engine:      engine,
		Services:    services,
		DeviceAuto:  deviceAuto,
		Users:       users,
		Tokens:      tokens,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"host", cfg.API.Host,
		"port", cfg.API.Port,
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, historyClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	eventBus.Fire(ctx, bus.EventHubStarted, map[string]any{
		"version": version,
	})
	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	eventBus.Fire(context.WithoutCancel(ctx), bus.EventHubStopped, nil)

	// Deferred Close() calls run in reverse order:
	// API server, history, integrations, engine, MQTT, database

	log.Info("Amber Hub stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses AMBER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("AMBER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// registerIntegrations adds each enabled integration to the loader.
// SetupAll logs and skips integrations that fail to start, so one bad
// adapter cannot take the hub down.
func registerIntegrations(loader *integrations.Loader, cfg *config.Config) {
	if cfg.Integrations.Shelly.Enabled {
		loader.Register(shelly.New(shelly.Config{
			TopicPrefix: cfg.Integrations.Shelly.TopicPrefix,
		}))
	}
	if cfg.Integrations.ZWave.Enabled {
		loader.Register(zwave.New(zwave.Config{
			TopicPrefix: cfg.Integrations.ZWave.TopicPrefix,
		}))
	}
	if cfg.Integrations.Cover.Enabled {
		loader.Register(cover.New())
	}
	if cfg.Integrations.UniFi.Enabled {
		loader.Register(unifi.New(unifi.Config{
			URL:                nvrURL(cfg.Integrations.UniFi),
			APIKey:             cfg.Integrations.UniFi.APIKey,
			InsecureSkipVerify: cfg.Integrations.UniFi.InsecureSkipVerify,
		}))
	}
}

// nvrURL builds the NVR websocket endpoint from the host settings.
func nvrURL(cfg config.UniFiConfig) string {
	scheme := "ws"
	if cfg.TLS {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/proxy/protect/ws/updates", scheme, cfg.Host, cfg.Port)
}

// startHistory connects the time-series client and starts the state
// recorder. Returns nils without error when history is disabled.
func startHistory(cfg *config.Config, eventBus *bus.Bus, log *logging.Logger) (*history.Client, *history.Recorder, error) {
	if !cfg.History.Enabled {
		log.Info("history recording disabled")
		return nil, nil, nil
	}

	client, err := history.Connect(cfg.History)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to history store: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("history write error", "error", err)
	})

	recorder := history.NewRecorder(client, eventBus, log)
	recorder.Start()

	log.Info("history recording started",
		"url", cfg.History.URL,
		"bucket", cfg.History.Bucket,
	)
	return client, recorder, nil
}

// healthCheck verifies all infrastructure connections are healthy.
// historyClient may be nil when history is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, historyClient *history.Client, apiServer *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if historyClient != nil {
		if err := historyClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("history: %w", err)
		}
	}
	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
