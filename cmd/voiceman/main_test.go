package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("VOICEMAN_CONFIG")
	defer os.Setenv("VOICEMAN_CONFIG", originalEnv)

	os.Setenv("VOICEMAN_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
database:
  path: ""
  wal_mode: true
  busy_timeout: 5

platform:
  config_root: /config
  base_url: "http://127.0.0.1:8123"

bridge:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 8095
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("VOICEMAN_CONFIG")
	defer os.Setenv("VOICEMAN_CONFIG", originalEnv)
	os.Setenv("VOICEMAN_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestGetConfigPath verifies environment variable override.
func TestGetConfigPath(t *testing.T) {
	originalEnv := os.Getenv("VOICEMAN_CONFIG")
	defer os.Setenv("VOICEMAN_CONFIG", originalEnv)

	os.Setenv("VOICEMAN_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	os.Setenv("VOICEMAN_CONFIG", "/tmp/custom.yaml")
	if got := getConfigPath(); got != "/tmp/custom.yaml" {
		t.Errorf("getConfigPath() = %q, want /tmp/custom.yaml", got)
	}
}

// TestRun_StartsAndShutsDown verifies a full startup against a throwaway
// database with the optional integrations disabled, followed by a clean
// context-cancel shutdown.
func TestRun_StartsAndShutsDown(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database:
  path: "` + filepath.Join(tmpDir, "voiceman.db") + `"
  wal_mode: true
  busy_timeout: 5

platform:
  config_root: "` + tmpDir + `"
  base_url: "http://127.0.0.1:8123"

bridge:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 38095
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("VOICEMAN_CONFIG")
	defer os.Setenv("VOICEMAN_CONFIG", originalEnv)
	os.Setenv("VOICEMAN_CONFIG", configPath)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx)
	}()

	// Give startup a moment, then signal shutdown.
	time.Sleep(500 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not shut down after context cancellation")
	}
}
