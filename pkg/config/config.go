package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig  `yaml:"server"`
	Auth      AuthConfig    `yaml:"auth"`
	Store     StoreConfig   `yaml:"store"`
	Session   SessionConfig `yaml:"session"`
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	FrontendDir string `yaml:"frontend_dir"`
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	CookieName    string        `yaml:"cookie_name"`
	SecureCookie  bool          `yaml:"secure_cookie"`
	BcryptCost    int           `yaml:"bcrypt_cost"`
}

// StoreConfig selects the account document store
type StoreConfig struct {
	Driver string `yaml:"driver"` // bolt or pebble
	Path   string `yaml:"path"`
}

// SessionConfig selects where server-side sessions live
type SessionConfig struct {
	Driver string      `yaml:"driver"` // memory or redis
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig represents the redis connection used by the redis session driver
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

const (
	StoreBolt   = "bolt"
	StorePebble = "pebble"

	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8000,
			FrontendDir: "./frontend/dist",
		},
		Auth: AuthConfig{
			SessionSecret: "bedmatch-session-secret-change-me",
			SessionTTL:    time.Hour,
			CookieName:    "sid",
			BcryptCost:    10,
		},
		Store: StoreConfig{
			Driver: StoreBolt,
			Path:   "./data/bedmatch.db",
		},
		Session: SessionConfig{
			Driver: SessionMemory,
			Redis: RedisConfig{
				Addr: "127.0.0.1:6379",
			},
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// Override with environment variables
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overrides configuration with environment variables
func applyEnvOverrides(cfg *Config) error {
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.Server.Port = p
	}
	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		cfg.Auth.SessionSecret = secret
	}
	if driver := os.Getenv("STORE_DRIVER"); driver != "" {
		cfg.Store.Driver = driver
	}
	if path := os.Getenv("STORE_PATH"); path != "" {
		cfg.Store.Path = path
	}
	if driver := os.Getenv("SESSION_DRIVER"); driver != "" {
		cfg.Session.Driver = driver
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Session.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Session.Redis.Password = password
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB %q: %w", db, err)
		}
		cfg.Session.Redis.DB = n
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	return nil
}

// Validate reports the first configuration value the server cannot start with
func (c *Config) Validate() error {
	if c.Auth.SessionSecret == "" {
		return errors.New("auth.session_secret must not be empty")
	}
	if c.Auth.SessionTTL <= 0 {
		return errors.New("auth.session_ttl must be positive")
	}
	if c.Auth.CookieName == "" {
		return errors.New("auth.cookie_name must not be empty")
	}
	switch c.Store.Driver {
	case StoreBolt, StorePebble:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Session.Driver {
	case SessionMemory, SessionRedis:
	default:
		return fmt.Errorf("unknown session driver %q", c.Session.Driver)
	}
	return nil
}
