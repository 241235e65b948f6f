// ABOUTME: Configuration loading and parsing for the keygate server
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete keygate configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	// JWTSecret signs developer management tokens
	JWTSecret string `yaml:"jwt_secret"`

	// TimestampWindow bounds accepted clock skew on signed requests
	TimestampWindow time.Duration `yaml:"-"`
	// SessionTTL is the lifetime of issued user sessions
	SessionTTL time.Duration `yaml:"-"`
	// DeveloperTokenTTL is the lifetime of developer JWTs
	DeveloperTokenTTL time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	TimestampWindowRaw   string `yaml:"timestamp_window"`
	SessionTTLRaw        string `yaml:"session_ttl"`
	DeveloperTokenTTLRaw string `yaml:"developer_token_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when the config file leaves a setting empty.
const (
	DefaultTimestampWindow   = 5 * time.Minute
	DefaultSessionTTL        = 24 * time.Hour
	DefaultDeveloperTokenTTL = 24 * time.Hour
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c.Auth.TimestampWindow < 0 || c.Auth.SessionTTL < 0 || c.Auth.DeveloperTokenTTL < 0 {
		return fmt.Errorf("auth durations must be positive")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.TimestampWindowRaw != "" {
		cfg.Auth.TimestampWindow, err = time.ParseDuration(cfg.Auth.TimestampWindowRaw)
		if err != nil {
			return fmt.Errorf("parsing timestamp_window %q: %w", cfg.Auth.TimestampWindowRaw, err)
		}
	}

	if cfg.Auth.SessionTTLRaw != "" {
		cfg.Auth.SessionTTL, err = time.ParseDuration(cfg.Auth.SessionTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing session_ttl %q: %w", cfg.Auth.SessionTTLRaw, err)
		}
	}

	if cfg.Auth.DeveloperTokenTTLRaw != "" {
		cfg.Auth.DeveloperTokenTTL, err = time.ParseDuration(cfg.Auth.DeveloperTokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing developer_token_ttl %q: %w", cfg.Auth.DeveloperTokenTTLRaw, err)
		}
	}

	return nil
}

// applyDefaults fills in defaults for optional settings.
func applyDefaults(cfg *Config) {
	if cfg.Auth.TimestampWindow == 0 {
		cfg.Auth.TimestampWindow = DefaultTimestampWindow
	}
	if cfg.Auth.SessionTTL == 0 {
		cfg.Auth.SessionTTL = DefaultSessionTTL
	}
	if cfg.Auth.DeveloperTokenTTL == 0 {
		cfg.Auth.DeveloperTokenTTL = DefaultDeveloperTokenTTL
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
