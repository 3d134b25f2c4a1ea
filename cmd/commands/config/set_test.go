package config

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"nathanbeddoewebdev/vmstate/internal/config"
	"nathanbeddoewebdev/vmstate/internal/domain"
	"nathanbeddoewebdev/vmstate/internal/providers"
)

// setupTestConfig points the config package at a temp file and returns its path.
func setupTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	config.SetPath(path)
	t.Cleanup(config.ResetPath)
	return path
}

// registerTestProvider registers a stub backend in the global registry.
func registerTestProvider(t *testing.T, name string) {
	t.Helper()
	providers.Reset()
	t.Cleanup(func() { providers.Reset() })
	providers.Register(name, func(providers.Options) (domain.Backend, error) {
		return nil, nil
	}, providers.Defaults{})
}

// execConfig creates the config command, wires up output buffers, runs with the
// given args, and returns what was written to stdout and stderr.
func execConfig(t *testing.T, args ...string) (stdout, stderr string) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	cmd.Execute()
	return outBuf.String(), errBuf.String()
}

func TestSet_DefaultProvider(t *testing.T) {
	setupTestConfig(t)
	registerTestProvider(t, "bytemark")

	stdout, stderr := execConfig(t, "set", "default-provider", "Bytemark")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	if !strings.Contains(stdout, `"bytemark"`) {
		t.Errorf("expected confirmation with provider name, got: %s", stdout)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.DefaultProvider != "bytemark" {
		t.Errorf("expected DefaultProvider %q, got %q", "bytemark", cfg.DefaultProvider)
	}
}

func TestSet_DefaultProvider_UnknownProvider(t *testing.T) {
	setupTestConfig(t)
	registerTestProvider(t, "bytemark")

	_, stderr := execConfig(t, "set", "default-provider", "nonexistent")

	if !strings.Contains(stderr, "unknown provider") {
		t.Errorf("expected 'unknown provider' error, got: %s", stderr)
	}
}

func TestSet_EndpointKeepsCase(t *testing.T) {
	setupTestConfig(t)

	if _, stderr := execConfig(t, "set", "endpoint", "https://API.example.com/V1"); stderr != "" {
		t.Fatalf("unexpected stderr: %s", stderr)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Endpoint != "https://API.example.com/V1" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
}

func TestSet_PollAttemptsRejectsGarbage(t *testing.T) {
	path := setupTestConfig(t)

	_, stderr := execConfig(t, "set", "poll-attempts", "lots")
	if !strings.Contains(stderr, "positive integer") {
		t.Errorf("expected validation error, got: %s", stderr)
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.PollAttempts != 0 {
		t.Errorf("expected nothing persisted, got %d", cfg.PollAttempts)
	}
}

func TestSet_EmptyValueClears(t *testing.T) {
	path := setupTestConfig(t)
	if err := (&config.Config{DefaultZone: "york"}).SaveTo(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	stdout, _ := execConfig(t, "set", "default-zone", "")
	if !strings.Contains(stdout, "default-zone cleared") {
		t.Errorf("expected clear confirmation, got: %s", stdout)
	}
}

func TestSet_UnknownKey(t *testing.T) {
	setupTestConfig(t)

	_, stderr := execConfig(t, "set", "bogus", "x")
	if !strings.Contains(stderr, "unknown configuration key") {
		t.Errorf("expected unknown key error, got: %s", stderr)
	}
}
