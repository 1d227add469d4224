package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// validJWTSecret meets the 32-character minimum requirement.
const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
hub:
  id: "test-hub"
  name: "Test Hub"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8123
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hub.ID != "test-hub" {
		t.Errorf("Hub.ID = %q, want %q", cfg.Hub.ID, "test-hub")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	// Defaults fill unspecified sections
	if cfg.WebSocket.Path != "/ws" {
		t.Errorf("WebSocket.Path = %q, want default %q", cfg.WebSocket.Path, "/ws")
	}
	if cfg.Integrations.Shelly.TopicPrefix != "shellies" {
		t.Errorf("Shelly.TopicPrefix = %q, want default %q", cfg.Integrations.Shelly.TopicPrefix, "shellies")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
hub:
  id: "test-hub"
database:
  path: "/tmp/test.db"
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	t.Setenv("AMBER_MQTT_HOST", "broker.example.com")
	t.Setenv("AMBER_DATABASE_PATH", "/tmp/override.db")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "broker.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want env override", cfg.MQTT.Broker.Host)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:    "valid",
			modify:  func(_ *Config) {},
			wantErr: "",
		},
		{
			name:    "missing hub id",
			modify:  func(c *Config) { c.Hub.ID = "" },
			wantErr: "hub.id",
		},
		{
			name:    "missing database path",
			modify:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "invalid qos",
			modify:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "invalid api port",
			modify:  func(c *Config) { c.API.Port = 0 },
			wantErr: "api.port",
		},
		{
			name:    "missing jwt secret",
			modify:  func(c *Config) { c.Security.JWT.Secret = "" },
			wantErr: "security.jwt.secret",
		},
		{
			name:    "short jwt secret",
			modify:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: "at least 32 characters",
		},
		{
			name: "unifi enabled without host",
			modify: func(c *Config) {
				c.Integrations.UniFi.Enabled = true
				c.Integrations.UniFi.APIKey = "key"
			},
			wantErr: "integrations.unifi.host",
		},
		{
			name: "unifi enabled without api key",
			modify: func(c *Config) {
				c.Integrations.UniFi.Enabled = true
				c.Integrations.UniFi.Host = "nvr.local"
			},
			wantErr: "integrations.unifi.api_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.JWT.Secret = validJWTSecret
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestTimeoutHelpers(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %vs, want 30s", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 30 {
		t.Errorf("GetWriteTimeout() = %vs, want 30s", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %vs, want 60s", got)
	}
}
