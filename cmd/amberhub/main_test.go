package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amberhub/amber-core/internal/infrastructure/config"
)

// TestRun_InvalidConfigPath verifies run fails when the config file
// does not exist.
func TestRun_InvalidConfigPath(t *testing.T) {
	t.Setenv("AMBER_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingJWTSecret verifies run refuses to start without a
// configured JWT secret.
func TestRun_MissingJWTSecret(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
hub:
  id: test-hub

database:
  path: ` + filepath.Join(tmpDir, "amber.db") + `

logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("AMBER_CONFIG", configPath)
	t.Setenv("AMBER_JWT_SECRET", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail without a JWT secret")
	}
	if !strings.Contains(err.Error(), "jwt") {
		t.Errorf("error should mention the JWT secret, got: %v", err)
	}
}

// TestGetConfigPath verifies the environment override and default.
func TestGetConfigPath(t *testing.T) {
	t.Setenv("AMBER_CONFIG", "/etc/amber/config.yaml")
	if got := getConfigPath(); got != "/etc/amber/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env override", got)
	}

	t.Setenv("AMBER_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
}

// TestNVRURL verifies websocket URL construction for the NVR feed.
func TestNVRURL(t *testing.T) {
	tests := []struct {
		name string
		tls  bool
		want string
	}{
		{"plain", false, "ws://nvr.local:7443/proxy/protect/ws/updates"},
		{"tls", true, "wss://nvr.local:7443/proxy/protect/ws/updates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.UniFiConfig{Host: "nvr.local", Port: 7443, TLS: tt.tls}
			if got := nvrURL(cfg); got != tt.want {
				t.Errorf("nvrURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
