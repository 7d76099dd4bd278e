package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("MUSICCAST_CONFIG")
	defer os.Setenv("MUSICCAST_CONFIG", originalEnv)

	os.Setenv("MUSICCAST_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_InvalidYAML verifies run fails on a malformed config file.
func TestRun_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("engine: [not a mapping"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	originalEnv := os.Getenv("MUSICCAST_CONFIG")
	defer os.Setenv("MUSICCAST_CONFIG", originalEnv)
	os.Setenv("MUSICCAST_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with malformed YAML")
	}
}

// TestRun_MinimalConfig starts the daemon with MQTT and InfluxDB disabled,
// then shuts it down via context cancellation.
func TestRun_MinimalConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
engine:
  listen_addr: "127.0.0.1:0"
  poll_interval: 30
  failure_threshold: 3

api:
  host: "127.0.0.1"
  port: 18085

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	originalEnv := os.Getenv("MUSICCAST_CONFIG")
	defer os.Setenv("MUSICCAST_CONFIG", originalEnv)
	os.Setenv("MUSICCAST_CONFIG", configPath)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()

	// Let startup complete, then request shutdown.
	time.Sleep(500 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() error on clean shutdown: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not shut down after context cancellation")
	}
}

// TestGetConfigPath verifies the environment override.
func TestGetConfigPath(t *testing.T) {
	originalEnv := os.Getenv("MUSICCAST_CONFIG")
	defer os.Setenv("MUSICCAST_CONFIG", originalEnv)

	os.Setenv("MUSICCAST_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	os.Setenv("MUSICCAST_CONFIG", "/etc/musiccastd/config.yaml")
	if got := getConfigPath(); got != "/etc/musiccastd/config.yaml" {
		t.Errorf("getConfigPath() = %q, want /etc/musiccastd/config.yaml", got)
	}
}
