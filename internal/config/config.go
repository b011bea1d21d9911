// Package config handles external configuration loading from JSON and environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"adwatch/internal/watch"
)

// Database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Debug    bool     `json:"debug"`
	Server   Server   `json:"server"`
	Database Database `json:"database"`
	Redis    Redis    `json:"redis"`
	JWT      JWT      `json:"jwt"`
	Log      Log      `json:"log"`
	CORS     CORS     `json:"cors"`
	Watch    Watch    `json:"watch"`
	Admin    Admin    `json:"admin"`
}

// Server holds HTTP server configuration
type Server struct {
	Port         int    `json:"port"`
	Host         string `json:"host"`
	ReadTimeout  int    `json:"readTimeout"`
	WriteTimeout int    `json:"writeTimeout"`
}

// Database holds database configuration. Path is used by sqlite, URL by postgres.
type Database struct {
	Driver string `json:"driver"`
	Path   string `json:"path"`
	URL    string `json:"url"`
}

// Redis holds the code ledger connection. An empty Addr selects the in-memory ledger.
type Redis struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// JWT holds JWT configuration
type JWT struct {
	Secret          string `json:"secret"`
	ExpirationHours int    `json:"expirationHours"`
}

// Log holds logger configuration
type Log struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// CORS holds the origins allowed to call the JSON API
type CORS struct {
	AllowedOrigins []string `json:"allowedOrigins"`
}

// Watch holds the viewing workflow thresholds
type Watch struct {
	RevealThresholdSeconds float64 `json:"revealThresholdSeconds"`
	MinWatchSeconds        float64 `json:"minWatchSeconds"`
	RequiredViews          int     `json:"requiredViews"`
	SessionTTLMinutes      int     `json:"sessionTTLMinutes"`
}

// Admin holds the account created on first start
type Admin struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Load reads configuration from the specified JSON file and overrides with environment variables
func Load(configPath string) (*Config, error) {
	var cfg Config

	// a missing file is fine, env and defaults fill in
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides overrides config values with environment variables if set
func (c *Config) applyEnvOverrides() {
	// Debug mode
	if debug := os.Getenv("DEBUG"); debug != "" {
		c.Debug = debug == "true" || debug == "1"
	}

	// Server port
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// Server host
	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}

	// Database
	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		c.Database.Path = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		c.Database.URL = dbURL
	}

	// Redis
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		c.Redis.Password = pw
	}

	// JWT
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}

	// Logging
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		c.CORS.AllowedOrigins = splitList(origins)
	}

	// Viewing quota
	if views := os.Getenv("REQUIRED_VIEWS"); views != "" {
		if n, err := strconv.Atoi(views); err == nil {
			c.Watch.RequiredViews = n
		}
	}

	if email := os.Getenv("ADMIN_EMAIL"); email != "" {
		c.Admin.Email = email
	}
	if pw := os.Getenv("ADMIN_PASSWORD"); pw != "" {
		c.Admin.Password = pw
	}
}

// applyDefaults fills values left unset by file and environment
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		c.Database.Path = "data/adwatch.db"
	}
	if c.JWT.ExpirationHours == 0 {
		c.JWT.ExpirationHours = 24
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
		if c.Debug {
			c.Log.Format = "console"
		}
	}
	if c.Watch.RevealThresholdSeconds == 0 {
		c.Watch.RevealThresholdSeconds = watch.DefaultRevealThreshold.Seconds()
	}
	if c.Watch.MinWatchSeconds == 0 {
		c.Watch.MinWatchSeconds = watch.DefaultMinWatchTime.Seconds()
	}
	if c.Watch.RequiredViews == 0 {
		c.Watch.RequiredViews = watch.DefaultRequiredViews
	}
	if c.Watch.SessionTTLMinutes == 0 {
		c.Watch.SessionTTLMinutes = int(watch.DefaultSessionTTL / time.Minute)
	}
	if c.Admin.Email == "" {
		c.Admin.Email = "admin@adwatch.local"
	}
}

// validate checks that all required configuration values are present
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case DriverSQLite:
		cleanDBPath := filepath.Clean(c.Database.Path)
		if !filepath.IsLocal(cleanDBPath) && !filepath.IsAbs(cleanDBPath) {
			return fmt.Errorf("invalid database path: potential path traversal detected")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database url is required for postgres")
		}
	default:
		return fmt.Errorf("unknown database driver: %q", c.Database.Driver)
	}

	if c.JWT.Secret == "" || c.JWT.Secret == "CHANGE_THIS_SECRET_IN_PRODUCTION" {
		if !c.Debug {
			return fmt.Errorf("JWT secret must be changed for production")
		}
	}

	if c.JWT.ExpirationHours <= 0 {
		return fmt.Errorf("invalid jwt expiration: %d hours", c.JWT.ExpirationHours)
	}

	if c.Watch.SessionTTLMinutes <= 0 {
		return fmt.Errorf("invalid session ttl: %d minutes", c.Watch.SessionTTLMinutes)
	}

	if err := c.WatchConfig().Validate(); err != nil {
		return fmt.Errorf("invalid watch config: %w", err)
	}

	return nil
}

// Address returns the full server address (host:port)
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetDatabasePath returns the cleaned and validated database path
func (c *Config) GetDatabasePath() string {
	return filepath.Clean(c.Database.Path)
}

// WatchConfig converts the watch section to the viewing workflow config
func (c *Config) WatchConfig() watch.Config {
	return watch.Config{
		RevealThreshold: seconds(c.Watch.RevealThresholdSeconds),
		MinWatchTime:    seconds(c.Watch.MinWatchSeconds),
		RequiredViews:   c.Watch.RequiredViews,
	}
}

// SessionTTL returns the idle lifetime of a viewing session
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Watch.SessionTTLMinutes) * time.Minute
}

// TokenTTL returns the lifetime of issued auth tokens
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWT.ExpirationHours) * time.Hour
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
