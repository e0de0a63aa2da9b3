package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/terra-clan/dungeon-engine/internal/models"
)

// Config holds all configuration for dungeon-engine
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Catalog  CatalogConfig
	Loop     LoopConfig
	Auth     AuthConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envDefault:"8080"`
}

// DatabaseConfig selects the run history backend
type DatabaseConfig struct {
	Driver        string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DSN           string `env:"DATABASE_DSN" envDefault:"./data/dungeon-engine.db"`
	MigrationsDir string `env:"DATABASE_MIGRATIONS_DIR" envDefault:"./migrations"`
}

// RedisConfig holds Redis event publishing configuration
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	Address  string `env:"REDIS_ADDRESS" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	Channel  string `env:"REDIS_CHANNEL" envDefault:"dungeon-engine:events"`
}

// CatalogConfig holds dungeon template configuration
type CatalogConfig struct {
	Dir string `env:"CATALOG_DIR" envDefault:"./templates"`
}

// LoopConfig holds game loop timing
type LoopConfig struct {
	TickInterval       time.Duration `env:"TICK_INTERVAL" envDefault:"100ms"`
	WaveDelay          time.Duration `env:"WAVE_DELAY" envDefault:"2s"`
	DailyResetInterval time.Duration `env:"DAILY_RESET_INTERVAL" envDefault:"24h"`
	RewardSeed         int64         `env:"REWARD_SEED" envDefault:"0"`
}

// AuthConfig holds static API keys in name:key:role form.
// Serving without keys requires Disabled.
type AuthConfig struct {
	APIKeys  []string `env:"API_KEYS" envSeparator:","`
	Disabled bool     `env:"AUTH_DISABLED" envDefault:"false"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "memory":
	case "postgres", "sqlite":
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for driver %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}

	if c.Redis.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("redis address is required when redis is enabled")
	}

	if c.Catalog.Dir == "" {
		return fmt.Errorf("catalog dir is required")
	}

	if c.Loop.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive: %s", c.Loop.TickInterval)
	}
	if c.Loop.WaveDelay < 0 {
		return fmt.Errorf("wave delay must not be negative: %s", c.Loop.WaveDelay)
	}
	if c.Loop.DailyResetInterval < 0 {
		return fmt.Errorf("daily reset interval must not be negative: %s", c.Loop.DailyResetInterval)
	}

	if _, err := c.ApiClients(); err != nil {
		return err
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// Addr returns the listen address of the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ApiClients parses the configured API keys
func (c *Config) ApiClients() ([]*models.ApiClient, error) {
	clients := make([]*models.ApiClient, 0, len(c.Auth.APIKeys))
	seen := make(map[string]bool)

	for _, entry := range c.Auth.APIKeys {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, ":")
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid API key entry %q: want name:key:role", entry)
		}
		if !models.IsValidRole(parts[2]) {
			return nil, fmt.Errorf("invalid role %q for API client %s", parts[2], parts[0])
		}
		if seen[parts[1]] {
			return nil, fmt.Errorf("duplicate API key for client %s", parts[0])
		}
		seen[parts[1]] = true

		clients = append(clients, models.NewApiClient(parts[0], parts[1], parts[2]))
	}

	return clients, nil
}

// AuthClients returns the API clients the server authenticates against.
// It fails when no keys are configured unless authentication is explicitly
// disabled, in which case it returns no clients.
func (c *Config) AuthClients() ([]*models.ApiClient, error) {
	if c.Auth.Disabled {
		return nil, nil
	}

	clients, err := c.ApiClients()
	if err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("no API keys configured: set API_KEYS or AUTH_DISABLED=true")
	}
	return clients, nil
}

// SlogLevel converts the configured log level
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return level, nil
}
