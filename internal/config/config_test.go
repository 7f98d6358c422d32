package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"workspace": "/tmp/mikopo-test",
		"tools": {"credit": {"command": "/usr/local/bin/mikopo", "args": ["serve"], "call_timeout_seconds": 3}},
		"gateway": {"listen_addr": ":9090"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Workspace != "/tmp/mikopo-test" {
		t.Errorf("workspace = %q", cfg.Workspace)
	}
	if cfg.Tools.Credit.Command != "/usr/local/bin/mikopo" {
		t.Errorf("credit command = %q", cfg.Tools.Credit.Command)
	}
	if got := cfg.Tools.Credit.CallTimeout(); got != 3*time.Second {
		t.Errorf("call timeout = %v, want 3s", got)
	}
	if cfg.Gateway.Addr() != ":9090" {
		t.Errorf("gateway addr = %q, want :9090", cfg.Gateway.Addr())
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
workspace: /tmp/mikopo-yaml
fleet:
  startup_timeout_seconds: 20
  workers:
    document:
      port: 11001
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Workspace != "/tmp/mikopo-yaml" {
		t.Errorf("workspace = %q", cfg.Workspace)
	}
	if got := cfg.Fleet.StartupTimeout(); got != 20*time.Second {
		t.Errorf("startup timeout = %v, want 20s", got)
	}
	if cfg.Fleet.Workers["document"].Port != 11001 {
		t.Errorf("document port = %d, want 11001", cfg.Fleet.Workers["document"].Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config")
	}
	if cfg.Gateway.Addr() != ":8080" {
		t.Errorf("default gateway addr = %q, want :8080", cfg.Gateway.Addr())
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MIKOPO_WORKSPACE", "/env/workspace")
	t.Setenv("MIKOPO_GATEWAY_ADDR", ":7070")

	path := writeConfig(t, "config.json", `{"workspace": "/file/workspace", "gateway": {"listen_addr": ":9090"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Workspace != "/env/workspace" {
		t.Errorf("workspace = %q, env must win", cfg.Workspace)
	}
	if cfg.Gateway.ListenAddr != ":7070" {
		t.Errorf("gateway addr = %q, env must win", cfg.Gateway.ListenAddr)
	}
}

func TestValidateRejectsNegativeTimeout(t *testing.T) {
	path := writeConfig(t, "config.json", `{"tools": {"credit": {"call_timeout_seconds": -1}}}`)
	if _, err := Load(path); err == nil {
		t.Error("expected validation error for negative timeout")
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	path := writeConfig(t, "config.json", `{"fleet": {"workers": {"document": {"port": 70000}}}}`)
	if _, err := Load(path); err == nil {
		t.Error("expected validation error for out-of-range port")
	}
}

func TestDefaults(t *testing.T) {
	var credit *CreditToolConfig
	if got := credit.CallTimeout(); got != 5*time.Second {
		t.Errorf("nil credit timeout = %v, want 5s", got)
	}

	var fleet *FleetConfig
	if got := fleet.StartupTimeout(); got != 10*time.Second {
		t.Errorf("nil fleet startup timeout = %v, want 10s", got)
	}
	if got := fleet.GracePeriod(); got != 10*time.Second {
		t.Errorf("nil fleet grace period = %v, want 10s", got)
	}

	var metrics *MetricsConfig
	if got := metrics.MetricsPath(); got != "/metrics" {
		t.Errorf("nil metrics path = %q, want /metrics", got)
	}
}
