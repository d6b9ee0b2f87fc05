// Package config loads the console daemon configuration.
// Precedence: environment variables > YAML file > defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SocketConfig controls the realtime connection to the CRM backend.
type SocketConfig struct {
	URL           string        `yaml:"url"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// OperatorConfig is the identity bound to every outbound frame.
type OperatorConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Role string `yaml:"role"`
}

// APIConfig points at the CRM REST endpoints used for history and close.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	HistoryTimeout time.Duration `yaml:"history_timeout"`
}

// HTTPConfig is the console's own listener for the dashboard frontend.
type HTTPConfig struct {
	ListenAddr     string   `yaml:"listen_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RedisConfig enables the roster warm-start snapshot. Empty Addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NATSConfig enables desk-wide chat notifications. Empty URL disables it.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// PostgresConfig enables transcript archiving on close. Empty DSN disables it.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type Config struct {
	Socket     SocketConfig   `yaml:"socket"`
	Operator   OperatorConfig `yaml:"operator"`
	API        APIConfig      `yaml:"api"`
	HTTP       HTTPConfig     `yaml:"http"`
	Redis      RedisConfig    `yaml:"redis"`
	NATS       NATSConfig     `yaml:"nats"`
	Postgres   PostgresConfig `yaml:"postgres"`
	TypingIdle time.Duration  `yaml:"typing_idle"`
}

func defaults() Config {
	return Config{
		Socket: SocketConfig{
			URL:         "ws://localhost:5000/socket",
			DialTimeout: 10 * time.Second,
			// Zero disables automatic redial.
			ReconnectWait: 3 * time.Second,
		},
		Operator: OperatorConfig{Role: "COUNSELLOR"},
		API: APIConfig{
			BaseURL:        "http://localhost:5000/api",
			HistoryTimeout: 10 * time.Second,
		},
		HTTP: HTTPConfig{
			ListenAddr:     ":8090",
			AllowedOrigins: []string{"*"},
		},
		TypingIdle: 2 * time.Second,
	}
}

// Load reads the YAML file at path (skipped when path is empty or missing)
// and applies environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing file is fine, env-only deployments are common.
		case err != nil:
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if cfg.Operator.ID == "" {
		return cfg, fmt.Errorf("config: operator id is required (OPERATOR_ID)")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Socket.URL = envStr("SOCKET_URL", cfg.Socket.URL)
	cfg.Socket.DialTimeout = envDuration("SOCKET_DIAL_TIMEOUT", cfg.Socket.DialTimeout)
	cfg.Socket.ReconnectWait = envDuration("SOCKET_RECONNECT_WAIT", cfg.Socket.ReconnectWait)

	cfg.Operator.ID = envStr("OPERATOR_ID", cfg.Operator.ID)
	cfg.Operator.Name = envStr("OPERATOR_NAME", cfg.Operator.Name)
	cfg.Operator.Role = envStr("OPERATOR_ROLE", cfg.Operator.Role)

	cfg.API.BaseURL = envStr("CHAT_API_URL", cfg.API.BaseURL)
	cfg.API.HistoryTimeout = envDuration("HISTORY_TIMEOUT", cfg.API.HistoryTimeout)

	cfg.HTTP.ListenAddr = envStr("LISTEN_ADDR", cfg.HTTP.ListenAddr)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitCSV(v)
	}

	cfg.Redis.Addr = envStr("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envStr("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.NATS.URL = envStr("NATS_URL", cfg.NATS.URL)
	cfg.Postgres.DSN = envStr("POSTGRES_DSN", cfg.Postgres.DSN)

	cfg.TypingIdle = envDuration("TYPING_IDLE", cfg.TypingIdle)
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
