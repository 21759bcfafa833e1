package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != 3001 {
		t.Errorf("ServerPort = %d, want default 3001", cfg.ServerPort)
	}
	if cfg.TelemetryDBPath == "" {
		t.Error("TelemetryDBPath should have a default")
	}
}

func TestLoad_FileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
telemetry_db_path: /tmp/tel.db
server_port: 9000
cors_origin: http://example.com
tools_dir: /tmp/tools
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TelemetryDBPath != "/tmp/tel.db" {
		t.Errorf("TelemetryDBPath = %q, want %q", cfg.TelemetryDBPath, "/tmp/tel.db")
	}
	if cfg.ServerPort != 9000 {
		t.Errorf("ServerPort = %d, want 9000", cfg.ServerPort)
	}
	if cfg.CORSOrigin != "http://example.com" {
		t.Errorf("CORSOrigin = %q, want %q", cfg.CORSOrigin, "http://example.com")
	}
	if cfg.ToolsDir != "/tmp/tools" {
		t.Errorf("ToolsDir = %q, want %q", cfg.ToolsDir, "/tmp/tools")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server_port: 9000\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("SERVER_PORT", "4000")
	t.Setenv("TELEMETRY_DB_PATH", "/env/tel.db")
	t.Setenv("CORS_ORIGIN", "http://env.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != 4000 {
		t.Errorf("ServerPort = %d, want env override 4000", cfg.ServerPort)
	}
	if cfg.TelemetryDBPath != "/env/tel.db" {
		t.Errorf("TelemetryDBPath = %q, want %q", cfg.TelemetryDBPath, "/env/tel.db")
	}
	if cfg.CORSOrigin != "http://env.example" {
		t.Errorf("CORSOrigin = %q, want %q", cfg.CORSOrigin, "http://env.example")
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server_port: 99999\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for out-of-range port")
	}
	if !strings.Contains(err.Error(), "out of range") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "out of range")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server_port: [not a port\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
