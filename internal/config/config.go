package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// API holds settings for the driver API gateway client.
type API struct {
	BaseURL string
	Timeout time.Duration
}

// Store holds settings for the local credential store.
type Store struct {
	Path   string
	Secret string
}

// MockAPI holds settings for the local development backend.
type MockAPI struct {
	Port       int
	DBPath     string
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Config stores driver client settings.
type Config struct {
	API      API
	Store    Store
	LogLevel string
	MockAPI  MockAPI
}

// Load reads configuration in order: .env (if present) → environment → flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := &Config{
		API:      DefaultAPI(),
		Store:    DefaultStore(),
		LogLevel: DefaultLogLevel(),
		MockAPI:  DefaultMockAPI(),
	}

	if v := os.Getenv("LIYT_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("LIYT_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.API.Timeout = d
		}
	}
	if v := os.Getenv("LIYT_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("LIYT_STORE_SECRET"); v != "" {
		cfg.Store.Secret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MOCKAPI_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.MockAPI.Port = p
		}
	}
	if v := os.Getenv("MOCKAPI_DB"); v != "" {
		cfg.MockAPI.DBPath = v
	}
	if v := os.Getenv("MOCKAPI_JWT_SECRET"); v != "" {
		cfg.MockAPI.JWTSecret = v
	}
	if v := os.Getenv("MOCKAPI_ACCESS_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MockAPI.AccessTTL = d
		}
	}
	if v := os.Getenv("MOCKAPI_REFRESH_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MockAPI.RefreshTTL = d
		}
	}

	pflag.StringVar(&cfg.API.BaseURL, "base-url", cfg.API.BaseURL, "driver API base URL")
	pflag.DurationVar(&cfg.API.Timeout, "timeout", cfg.API.Timeout, "HTTP request timeout")
	pflag.StringVar(&cfg.Store.Path, "store", cfg.Store.Path, "credential store path")
	pflag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug|info|warn|error")
	pflag.IntVarP(&cfg.MockAPI.Port, "port", "p", cfg.MockAPI.Port, "mockapi port to listen on")
	pflag.Parse()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base URL must not be empty")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("invalid http timeout: %s", c.API.Timeout)
	}
	if c.MockAPI.Port <= 0 || c.MockAPI.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.MockAPI.Port)
	}
	return nil
}
