// ABOUTME: Configuration loading and parsing for the wallboard server
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete wallboard server configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Sessions SessionsConfig `yaml:"sessions"`
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

// SessionsConfig holds session timing and duplicate-login configuration
type SessionsConfig struct {
	HeartbeatInterval time.Duration `yaml:"-"`
	HeartbeatTimeout  time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	HeartbeatIntervalRaw string `yaml:"heartbeat_interval"`
	HeartbeatTimeoutRaw  string `yaml:"heartbeat_timeout"`

	// DuplicatePolicy is what happens when an agent logs in while it
	// already has a live session: "supersede" (default) closes the old
	// session, "reject" refuses the new one.
	DuplicatePolicy string `yaml:"duplicate_policy"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults mirror the browser client's expectations: the server must ping
// more often than the client's liveness window.
const (
	DefaultHTTPAddr          = "0.0.0.0:3001"
	DefaultHeartbeatInterval = 25 * time.Second
	DefaultHeartbeatTimeout  = 60 * time.Second
	DefaultDuplicatePolicy   = "supersede"
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

	cfg.applyDefaults()

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a Config with every field at its default value.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Sessions.HeartbeatInterval = DefaultHeartbeatInterval
	cfg.Sessions.HeartbeatTimeout = DefaultHeartbeatTimeout
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Database.Path == "" {
		c.Database.Path = "./wallboard.db"
	}
	if c.Sessions.DuplicatePolicy == "" {
		c.Sessions.DuplicatePolicy = DefaultDuplicatePolicy
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
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

	switch c.Sessions.DuplicatePolicy {
	case "supersede", "reject":
	default:
		return fmt.Errorf("sessions.duplicate_policy must be %q or %q, got %q",
			"supersede", "reject", c.Sessions.DuplicatePolicy)
	}

	if c.Sessions.HeartbeatInterval >= c.Sessions.HeartbeatTimeout &&
		c.Sessions.HeartbeatInterval != 0 && c.Sessions.HeartbeatTimeout != 0 {
		return fmt.Errorf("sessions.heartbeat_interval must be shorter than sessions.heartbeat_timeout")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Sessions.HeartbeatIntervalRaw != "" {
		cfg.Sessions.HeartbeatInterval, err = time.ParseDuration(cfg.Sessions.HeartbeatIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing heartbeat_interval %q: %w", cfg.Sessions.HeartbeatIntervalRaw, err)
		}
	} else {
		cfg.Sessions.HeartbeatInterval = DefaultHeartbeatInterval
	}

	if cfg.Sessions.HeartbeatTimeoutRaw != "" {
		cfg.Sessions.HeartbeatTimeout, err = time.ParseDuration(cfg.Sessions.HeartbeatTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing heartbeat_timeout %q: %w", cfg.Sessions.HeartbeatTimeoutRaw, err)
		}
	} else {
		cfg.Sessions.HeartbeatTimeout = DefaultHeartbeatTimeout
	}

	return nil
}
