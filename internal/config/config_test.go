package config

import (
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("http addr = %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != filepath.Join("data", "mission-control.db") {
		t.Fatalf("db path = %q", cfg.DBPath)
	}
	if cfg.SystemAgent != "OpenClaw" {
		t.Fatalf("system agent = %q", cfg.SystemAgent)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MC_HTTP_ADDR", ":9999")
	t.Setenv("MC_DB_PATH", "/tmp/custom.db")
	t.Setenv("MC_SYSTEM_AGENT", "Atlas")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" || cfg.DBPath != "/tmp/custom.db" || cfg.SystemAgent != "Atlas" {
		t.Fatalf("overrides ignored: %+v", cfg)
	}
}
