package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromBytesAppliesDefaults(t *testing.T) {
	data := []byte(`
transport:
  interfaces:
    - eth
logging:
  level: debug
`)
	cfg, err := LoadFromBytes(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Transport.Interfaces) != 1 || cfg.Transport.Interfaces[0] != "eth" {
		t.Fatalf("unexpected interfaces %v", cfg.Transport.Interfaces)
	}
	if cfg.Transport.SysfsRoot != "/sys" {
		t.Fatalf("expected default sysfs root, got %q", cfg.Transport.SysfsRoot)
	}
	if cfg.Transport.DefaultSpeedMbps != 10000 {
		t.Fatalf("expected default speed, got %d", cfg.Transport.DefaultSpeedMbps)
	}
	if cfg.Transport.MaxComms != 65536 {
		t.Fatalf("expected default max comms, got %d", cfg.Transport.MaxComms)
	}
	if !cfg.Transport.BindConnect {
		t.Fatalf("expected bind_connect to default to true")
	}
	if cfg.Metrics.Address != ":9090" {
		t.Fatalf("expected default metrics address, got %q", cfg.Metrics.Address)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Fatalf("expected default metrics path, got %q", cfg.Metrics.Path)
	}
	if cfg.MetricsExport.IntervalSeconds != 10 {
		t.Fatalf("expected default export interval, got %d", cfg.MetricsExport.IntervalSeconds)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected logging level debug, got %q", cfg.Logging.Level)
	}
	if cfg.Observability.EventHistory != 500 || cfg.Observability.AlertIntervalSeconds != 10 {
		t.Fatalf("unexpected observability defaults %+v", cfg.Observability)
	}
	if cfg.Observability.ErrorsThreshold != 0 {
		t.Fatalf("expected alerting disabled by default")
	}
}

func TestLoadFromBytesObservability(t *testing.T) {
	data := []byte(`
observability:
  event_history: 20
  errors_threshold: 5
`)
	cfg, err := LoadFromBytes(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Observability.EventHistory != 20 || cfg.Observability.ErrorsThreshold != 5 {
		t.Fatalf("unexpected observability config %+v", cfg.Observability)
	}
	if _, err := LoadFromBytes([]byte("observability:\n  alert_history: -1\n")); err == nil {
		t.Fatalf("expected error for negative history")
	}
}

func TestLoadFromBytesBindConnectOverride(t *testing.T) {
	cfg, err := LoadFromBytes([]byte("transport:\n  bind_connect: false\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Transport.BindConnect {
		t.Fatalf("expected bind_connect false")
	}
}

func TestLoadFromBytesRejectsEmptyInterface(t *testing.T) {
	data := []byte(`
transport:
  interfaces:
    - "^"
`)
	if _, err := LoadFromBytes(data); err == nil {
		t.Fatalf("expected error for empty interface entry")
	}
}

func TestLoadFromBytesRequiresRemoteWriteURL(t *testing.T) {
	data := []byte(`
metrics_export:
  enabled: true
`)
	if _, err := LoadFromBytes(data); err == nil {
		t.Fatalf("expected error for missing remote_write_url")
	}
}

func TestLoadFromBytesRejectsUnknownLevel(t *testing.T) {
	if _, err := LoadFromBytes([]byte("logging:\n  level: loud\n")); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BAGUA_NET_TRANSPORT_INTERFACES", "ib,^docker")
	t.Setenv("BAGUA_NET_TRANSPORT_DEFAULT_SPEED_MBPS", "25000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Transport.Interfaces) != 2 || cfg.Transport.Interfaces[1] != "^docker" {
		t.Fatalf("unexpected interfaces %v", cfg.Transport.Interfaces)
	}
	if cfg.Transport.DefaultSpeedMbps != 25000 {
		t.Fatalf("expected speed override, got %d", cfg.Transport.DefaultSpeedMbps)
	}
}

func TestValidateWrapper(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	data := []byte(`
transport:
  sysfs_root: /tmp/sys
api:
  enabled: true
  address: 127.0.0.1:0
`)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Transport.SysfsRoot != "/tmp/sys" {
		t.Fatalf("unexpected sysfs root %q", cfg.Transport.SysfsRoot)
	}
	if !cfg.API.Enabled {
		t.Fatalf("expected api enabled")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
