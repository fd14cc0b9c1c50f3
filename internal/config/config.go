package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/david325345/stremio-titulky.com-docker/pkg/icron"
	"github.com/david325345/stremio-titulky.com-docker/pkg/log"
)

// Config holds all application configuration.
//
// Values are resolved in this order, later winning: built-in defaults, the
// TOML file named by CONFIG_FILE (or the --config flag), then environment
// variables. A .env file in the working directory is loaded into the
// environment first if present.
//
// Environment Variables:
// Titulky:
// - TITULKY_BASE_URL: site root (default: https://premium.titulky.com)
// - TITULKY_USERNAME, TITULKY_PASSWORD: account credentials (required)
// - TITULKY_TIMEOUT: request timeout in seconds (default: 30)
// - TITULKY_RPS: outbound requests per second (default: 2)
// - TITULKY_RETRY_ATTEMPTS: attempts per page fetch (default: 2)
// - TITULKY_MAX_WAIT: cap on the download countdown in seconds (default: 30)
//
// Cache:
// - CACHE_TTL_MINUTES: local tier lifetime (default: 60)
// - CACHE_BACKEND: sqlite or fs (default: sqlite)
// - DATA_DIR: durable tier location (default: /app/data)
// - CACHE_SYNC_CRON: index resync schedule, six fields (default: hourly)
//
// HTTP:
// - HTTP_ADDR: listen address (default: :7000)
//
// Log:
// - LOG_LEVEL: debug, info, warn or error (default: info)
// - LOG_FILE: rotated log file, stderr when empty
type Config struct {
	Titulky TitulkyConfig `toml:"titulky"`
	Cache   CacheConfig   `toml:"cache"`
	HTTP    HTTPConfig    `toml:"http"`
	Log     LogConfig     `toml:"log"`
}

type TitulkyConfig struct {
	BaseURL           string  `toml:"base_url"`
	Username          string  `toml:"username"`
	Password          string  `toml:"password"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	RetryAttempts     int     `toml:"retry_attempts"`
	MaxWaitSeconds    int     `toml:"max_wait_seconds"`
}

func (c TitulkyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c TitulkyConfig) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitSeconds) * time.Second
}

type CacheConfig struct {
	LocalTTLMinutes int    `toml:"local_ttl_minutes"`
	Backend         string `toml:"backend"`
	DataDir         string `toml:"data_dir"`
	IndexSyncCron   string `toml:"index_sync_cron"`
}

func (c CacheConfig) LocalTTL() time.Duration {
	return time.Duration(c.LocalTTLMinutes) * time.Minute
}

type HTTPConfig struct {
	Addr string `toml:"addr"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Option is a function type for configuring Config
type Option func(*Config)

func Default() Config {
	return Config{
		Titulky: TitulkyConfig{
			BaseURL:           "https://premium.titulky.com",
			TimeoutSeconds:    30,
			RequestsPerSecond: 2,
			RetryAttempts:     2,
			MaxWaitSeconds:    30,
		},
		Cache: CacheConfig{
			LocalTTLMinutes: 60,
			Backend:         "sqlite",
			DataDir:         "/app/data",
			IndexSyncCron:   "0 0 * * * *",
		},
		HTTP: HTTPConfig{Addr: ":7000"},
		Log:  LogConfig{Level: "info"},
	}
}

// NewFromEnv builds the configuration, reading the TOML file named by
// CONFIG_FILE when it is set.
func NewFromEnv(opts ...Option) (*Config, error) {
	loadDotEnv()
	return Load(os.Getenv("CONFIG_FILE"), opts...)
}

// Load builds the configuration from path (skipped when empty) and the
// environment.
func Load(path string, opts ...Option) (*Config, error) {
	loadDotEnv()

	config := Default()
	if path != "" {
		if err := decodeFile(path, &config); err != nil {
			return nil, err
		}
	}
	config.applyEnv()

	for _, opt := range opts {
		opt(&config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	log.Debug("Config: %s", config)
	return &config, nil
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to load .env: %v", err)
	}
}

func decodeFile(path string, config *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Titulky.BaseURL = getEnvString("TITULKY_BASE_URL", c.Titulky.BaseURL)
	c.Titulky.Username = getEnvString("TITULKY_USERNAME", c.Titulky.Username)
	c.Titulky.Password = getEnvString("TITULKY_PASSWORD", c.Titulky.Password)
	c.Titulky.TimeoutSeconds = getEnvInt("TITULKY_TIMEOUT", c.Titulky.TimeoutSeconds)
	c.Titulky.RequestsPerSecond = getEnvFloat("TITULKY_RPS", c.Titulky.RequestsPerSecond)
	c.Titulky.RetryAttempts = getEnvInt("TITULKY_RETRY_ATTEMPTS", c.Titulky.RetryAttempts)
	c.Titulky.MaxWaitSeconds = getEnvInt("TITULKY_MAX_WAIT", c.Titulky.MaxWaitSeconds)

	c.Cache.LocalTTLMinutes = getEnvInt("CACHE_TTL_MINUTES", c.Cache.LocalTTLMinutes)
	c.Cache.Backend = getEnvString("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.DataDir = getEnvString("DATA_DIR", c.Cache.DataDir)
	c.Cache.IndexSyncCron = getEnvString("CACHE_SYNC_CRON", c.Cache.IndexSyncCron)

	c.HTTP.Addr = getEnvString("HTTP_ADDR", c.HTTP.Addr)

	c.Log.Level = getEnvString("LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnvString("LOG_FILE", c.Log.File)
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if strings.TrimSpace(c.Titulky.Username) == "" || c.Titulky.Password == "" {
		return fmt.Errorf("TITULKY_USERNAME and TITULKY_PASSWORD are required")
	}
	u, err := url.Parse(c.Titulky.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid titulky base url %q", c.Titulky.BaseURL)
	}
	switch c.Cache.Backend {
	case "sqlite", "fs":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if err := icron.Validate(c.Cache.IndexSyncCron); err != nil {
		return err
	}
	return nil
}

// String renders the config with the password masked.
func (c Config) String() string {
	masked := c
	if masked.Titulky.Password != "" {
		masked.Titulky.Password = "***"
	}
	return fmt.Sprintf("%+v", struct {
		Titulky TitulkyConfig
		Cache   CacheConfig
		HTTP    HTTPConfig
		Log     LogConfig
	}(masked))
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
