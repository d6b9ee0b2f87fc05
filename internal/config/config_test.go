package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPERATOR_ID", "op1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Socket.URL != "ws://localhost:5000/socket" {
		t.Errorf("unexpected default socket url: %s", cfg.Socket.URL)
	}
	if cfg.TypingIdle != 2*time.Second {
		t.Errorf("unexpected default typing idle: %v", cfg.TypingIdle)
	}
	if cfg.Operator.Role != "COUNSELLOR" {
		t.Errorf("unexpected default role: %s", cfg.Operator.Role)
	}
	if cfg.Redis.Addr != "" || cfg.NATS.URL != "" || cfg.Postgres.DSN != "" {
		t.Error("optional integrations should be disabled by default")
	}
}

func TestLoadRequiresOperatorID(t *testing.T) {
	t.Setenv("OPERATOR_ID", "")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for missing operator id")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	t.Setenv("OPERATOR_ID", "op1")

	path := filepath.Join(t.TempDir(), "console.yaml")
	data := `
socket:
  url: wss://crm.example.edu/socket
  reconnect_wait: 5s
operator:
  name: Priya
http:
  listen_addr: ":9000"
  allowed_origins:
    - https://desk.example.edu
redis:
  addr: redis:6379
typing_idle: 1s
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Socket.URL != "wss://crm.example.edu/socket" {
		t.Errorf("yaml socket url not applied: %s", cfg.Socket.URL)
	}
	if cfg.Socket.ReconnectWait != 5*time.Second {
		t.Errorf("yaml reconnect wait not applied: %v", cfg.Socket.ReconnectWait)
	}
	if cfg.HTTP.ListenAddr != ":9000" {
		t.Errorf("yaml listen addr not applied: %s", cfg.HTTP.ListenAddr)
	}
	if len(cfg.HTTP.AllowedOrigins) != 1 || cfg.HTTP.AllowedOrigins[0] != "https://desk.example.edu" {
		t.Errorf("yaml origins not applied: %v", cfg.HTTP.AllowedOrigins)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("yaml redis addr not applied: %s", cfg.Redis.Addr)
	}
	// Defaults survive where the file is silent.
	if cfg.API.BaseURL != "http://localhost:5000/api" {
		t.Errorf("default api url lost: %s", cfg.API.BaseURL)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("OPERATOR_ID", "op1")
	t.Setenv("SOCKET_URL", "wss://env.example.edu/socket")
	t.Setenv("TYPING_IDLE", "500ms")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.edu, https://b.example.edu")

	path := filepath.Join(t.TempDir(), "console.yaml")
	if err := os.WriteFile(path, []byte("socket:\n  url: wss://file.example.edu\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Socket.URL != "wss://env.example.edu/socket" {
		t.Errorf("env should beat yaml, got %s", cfg.Socket.URL)
	}
	if cfg.TypingIdle != 500*time.Millisecond {
		t.Errorf("env typing idle not applied: %v", cfg.TypingIdle)
	}
	if len(cfg.HTTP.AllowedOrigins) != 2 {
		t.Errorf("csv origins not split: %v", cfg.HTTP.AllowedOrigins)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("OPERATOR_ID", "op1")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.HTTP.ListenAddr != ":8090" {
		t.Errorf("defaults not applied: %s", cfg.HTTP.ListenAddr)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	t.Setenv("OPERATOR_ID", "op1")
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("socket: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
