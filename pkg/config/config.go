package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fleray/Flight-Simulator/pkg/trajectory"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Auth     AuthConfig     `json:"auth"`
	Playback PlaybackConfig `json:"playback"`
	Source   SourceConfig   `json:"source"`
	Cache    CacheConfig    `json:"cache"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host"`

	// TLSEnabled determines if HTTPS should be used
	TLSEnabled bool `json:"tls_enabled"`

	// TLSCertFile is the path to the TLS certificate
	TLSCertFile string `json:"tls_cert_file"`

	// TLSKeyFile is the path to the TLS private key
	TLSKeyFile string `json:"tls_key_file"`

	// AllowedOrigins lists the origins allowed by CORS
	AllowedOrigins []string `json:"allowed_origins"`

	// MaxUploadBytes caps the size of an uploaded trace document
	MaxUploadBytes int64 `json:"max_upload_bytes"`
}

// DatabaseConfig contains database connection settings.
// The database only stores user accounts for the web API.
type DatabaseConfig struct {
	// Enabled selects database-backed accounts. When false the web server
	// authenticates the single admin account from AuthConfig.
	Enabled bool `json:"enabled"`

	// Driver is the database driver (postgres)
	Driver string `json:"driver"`

	// Host is the database server hostname
	Host string `json:"host"`

	// Port is the database server port
	Port int `json:"port"`

	// Database is the database name
	Database string `json:"database"`

	// Username for database authentication
	Username string `json:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns"`
}

// AuthConfig contains web API authentication settings.
type AuthConfig struct {
	// JWTSecret signs API tokens (should be loaded from environment)
	JWTSecret string `json:"jwt_secret"`

	// TokenHours is how long an issued token stays valid
	TokenHours int `json:"token_hours"`

	// AdminUsername and AdminPasswordHash define the account used when the
	// database is disabled. The hash is a bcrypt hash.
	AdminUsername     string `json:"admin_username"`
	AdminPasswordHash string `json:"admin_password_hash"`
}

// PlaybackConfig contains time cursor settings.
type PlaybackConfig struct {
	// TickMillis is the playback update interval (default: 100, about 10 Hz)
	TickMillis int `json:"tick_ms"`

	// Speed is the default playback rate in trace seconds per second
	Speed float64 `json:"speed"`

	// Loop restarts playback at the end instead of stopping
	Loop bool `json:"loop"`

	// BearingMode is "linear" (default) or "shortest". Linear interpolation
	// sweeps the long way round between headings either side of north.
	BearingMode string `json:"bearing_mode"`

	// PathMode is "linear" (default) or "great_circle"
	PathMode string `json:"path_mode"`
}

// SourceConfig contains remote trace archive settings.
type SourceConfig struct {
	// BaseURL is the archive URL; traces are fetched from {base_url}/{icao}.json
	BaseURL string `json:"base_url"`

	// Dir is the local directory of {icao}.json trace files
	Dir string `json:"dir"`

	// RequestsPerSecond limits requests to the archive
	RequestsPerSecond float64 `json:"requests_per_second"`

	// MaxRetries is the number of retries for failed requests
	MaxRetries int `json:"max_retries"`

	// TimeoutSeconds is the per-request timeout
	TimeoutSeconds int `json:"timeout_seconds"`
}

// CacheConfig contains trajectory cache settings.
type CacheConfig struct {
	// MaxEntries is the number of built trajectories kept in memory
	MaxEntries int `json:"max_entries"`
}

// Load reads configuration from a JSON file.
// If the file doesn't exist, returns a default configuration.
// Values missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.applyEnvironmentOverrides()
		return cfg, nil
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to JSON with indentation
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			Host:           "0.0.0.0",
			TLSEnabled:     false,
			AllowedOrigins: []string{"*"},
			MaxUploadBytes: 10 << 20,
		},
		Database: DatabaseConfig{
			Enabled:      false,
			Driver:       "postgres",
			Host:         "localhost",
			Port:         5432,
			Database:     "flightsim",
			Username:     "flightsim",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Auth: AuthConfig{
			TokenHours:    24,
			AdminUsername: "admin",
		},
		Playback: PlaybackConfig{
			TickMillis:  100,
			Speed:       1.0,
			Loop:        false,
			BearingMode: "linear",
			PathMode:    "linear",
		},
		Source: SourceConfig{
			BaseURL:           "",
			Dir:               "traces",
			RequestsPerSecond: 1.0,
			MaxRetries:        3,
			TimeoutSeconds:    10,
		},
		Cache: CacheConfig{
			MaxEntries: trajectory.DefaultCacheSize,
		},
	}
}

// Validate checks values that cannot be defaulted silently.
func (c *Config) Validate() error {
	if _, err := trajectory.ParseBearingMode(c.Playback.BearingMode); err != nil {
		return fmt.Errorf("invalid playback config: %w", err)
	}
	if _, err := trajectory.ParsePathMode(c.Playback.PathMode); err != nil {
		return fmt.Errorf("invalid playback config: %w", err)
	}
	if c.Playback.Speed < 0 {
		return fmt.Errorf("invalid playback config: speed %v is negative", c.Playback.Speed)
	}
	return nil
}

// Interpolator returns the interpolation settings described by the config.
// Invalid modes fall back to linear; call Validate to report them.
func (cfg *PlaybackConfig) Interpolator() trajectory.Interpolator {
	bearing, _ := trajectory.ParseBearingMode(cfg.BearingMode)
	path, _ := trajectory.ParsePathMode(cfg.PathMode)
	return trajectory.Interpolator{Bearing: bearing, Path: path}
}

// TickInterval returns the playback tick as a duration (default: 100ms).
func (cfg *PlaybackConfig) TickInterval() time.Duration {
	if cfg.TickMillis <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(cfg.TickMillis) * time.Millisecond
}

// Timeout returns the per-request timeout as a duration.
func (cfg *SourceConfig) Timeout() time.Duration {
	return time.Duration(cfg.TimeoutSeconds) * time.Second
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows sensitive data like passwords to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if port := os.Getenv("FLIGHTSIM_PORT"); port != "" {
		c.Server.Port = port
	}
	if dbPassword := os.Getenv("FLIGHTSIM_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if secret := os.Getenv("FLIGHTSIM_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if baseURL := os.Getenv("FLIGHTSIM_TRACE_BASE_URL"); baseURL != "" {
		c.Source.BaseURL = baseURL
	}
	if enabled := os.Getenv("FLIGHTSIM_DB_ENABLED"); enabled != "" {
		if v, err := strconv.ParseBool(enabled); err == nil {
			c.Database.Enabled = v
		}
	}
}
