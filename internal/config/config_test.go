package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected default driver sqlite, got %q", cfg.Database.Driver)
	}
	if cfg.Loop.WaveDelay != 2*time.Second {
		t.Errorf("expected default wave delay 2s, got %v", cfg.Loop.WaveDelay)
	}
	if cfg.Loop.DailyResetInterval != 24*time.Hour {
		t.Errorf("expected daily reset 24h, got %v", cfg.Loop.DailyResetInterval)
	}
	if cfg.Redis.Enabled {
		t.Error("redis should be disabled by default")
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("unexpected addr %q", cfg.Addr())
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("TICK_INTERVAL", "250ms")
	t.Setenv("WAVE_DELAY", "0s")
	t.Setenv("REWARD_SEED", "42")
	t.Setenv("API_KEYS", "ops:adminkey123:admin, game:playerkey456:player")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Loop.TickInterval != 250*time.Millisecond {
		t.Errorf("expected tick 250ms, got %v", cfg.Loop.TickInterval)
	}
	if cfg.Loop.RewardSeed != 42 {
		t.Errorf("expected seed 42, got %d", cfg.Loop.RewardSeed)
	}

	clients, err := cfg.ApiClients()
	if err != nil {
		t.Fatalf("ApiClients failed: %v", err)
	}
	if len(clients) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(clients))
	}
	if clients[1].Name != "game" || !clients[1].HasPermission("dungeons:write") {
		t.Errorf("unexpected player client %+v", clients[1])
	}

	level, err := cfg.SlogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("expected debug level, got %v (%v)", level, err)
	}
}

func TestAuthClients(t *testing.T) {
	cfg := &Config{}
	if _, err := cfg.AuthClients(); err == nil {
		t.Fatal("expected an error without API keys")
	}

	cfg.Auth.Disabled = true
	clients, err := cfg.AuthClients()
	if err != nil {
		t.Fatalf("AuthClients failed: %v", err)
	}
	if len(clients) != 0 {
		t.Errorf("expected no clients with auth disabled, got %d", len(clients))
	}

	cfg.Auth = AuthConfig{APIKeys: []string{"ops:adminkey123:admin"}}
	clients, err = cfg.AuthClients()
	if err != nil {
		t.Fatalf("AuthClients failed: %v", err)
	}
	if len(clients) != 1 || clients[0].Role != "admin" {
		t.Errorf("unexpected clients %+v", clients)
	}
}

func TestLoadAuthDisabled(t *testing.T) {
	t.Setenv("AUTH_DISABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Auth.Disabled {
		t.Error("expected auth to be disabled")
	}
}

func TestLoadInvalidValue(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "parse env") {
		t.Fatalf("expected parse env error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Host: "localhost", Port: 8080},
			Database: DatabaseConfig{Driver: "sqlite", DSN: "runs.db"},
			Catalog:  CatalogConfig{Dir: "templates"},
			Loop:     LoopConfig{TickInterval: time.Second, WaveDelay: time.Second},
			Log:      LogConfig{Level: "info"},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }},
		{"redis without address", func(c *Config) { c.Redis = RedisConfig{Enabled: true} }},
		{"missing catalog dir", func(c *Config) { c.Catalog.Dir = "" }},
		{"zero tick", func(c *Config) { c.Loop.TickInterval = 0 }},
		{"negative wave delay", func(c *Config) { c.Loop.WaveDelay = -time.Second }},
		{"malformed api key", func(c *Config) { c.Auth.APIKeys = []string{"onlyname"} }},
		{"unknown role", func(c *Config) { c.Auth.APIKeys = []string{"a:key:root"} }},
		{"duplicate key", func(c *Config) { c.Auth.APIKeys = []string{"a:key:admin", "b:key:viewer"} }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
