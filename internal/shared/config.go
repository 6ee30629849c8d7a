package shared

import (
	_ "embed"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed config.example.toml
var exampleConf []byte

// Counter scopes accepted by [SessionConfig.CounterScope].
const (
	CounterScopeSession = "session"
	CounterScopeGlobal  = "global"
)

// Config represents the application configuration loaded from a TOML or YAML file.
type Config struct {
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Session  SessionConfig  `toml:"session" yaml:"session"`
	Database DatabaseConfig `toml:"database" yaml:"database"`
	Log      LogConfig      `toml:"log" yaml:"log"`
}

// ServerConfig contains HTTP server and transport settings.
type ServerConfig struct {
	Host            string        `toml:"host" yaml:"host"`
	Port            int           `toml:"port" yaml:"port"`
	CORSAllowOrigin string        `toml:"cors_allow_origin" yaml:"cors_allow_origin"`
	Keepalive       time.Duration `toml:"keepalive" yaml:"keepalive"`
	Buffer          int           `toml:"buffer" yaml:"buffer"`
	RateLimit       float64       `toml:"rate_limit" yaml:"rate_limit"`
	RateBurst       int           `toml:"rate_burst" yaml:"rate_burst"`
}

// SessionConfig controls how each streaming session emits values.
type SessionConfig struct {
	Interval     time.Duration `toml:"interval" yaml:"interval"`
	FailEvery    int64         `toml:"fail_every" yaml:"fail_every"`
	MaxTicks     int64         `toml:"max_ticks" yaml:"max_ticks"`
	MaxDuration  time.Duration `toml:"max_duration" yaml:"max_duration"`
	CounterScope string        `toml:"counter_scope" yaml:"counter_scope"`
}

// DatabaseConfig contains session journal settings.
type DatabaseConfig struct {
	Enabled      bool   `toml:"enabled" yaml:"enabled"`
	Path         string `toml:"path" yaml:"path"`
	MaxOpenConns int    `toml:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns" yaml:"max_idle_conns"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// LoadConfig reads a configuration file from path and layers it over [DefaultConfig].
//
// Files ending in .yaml or .yml are parsed as YAML; anything else is TOML.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = toml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate reports the first setting that cannot be used to start the server.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	case c.Server.Keepalive < 0:
		return fmt.Errorf("%w: server.keepalive must not be negative", ErrInvalidConfig)
	case c.Server.Buffer < 1:
		return fmt.Errorf("%w: server.buffer must be at least 1", ErrInvalidConfig)
	case c.Server.RateLimit < 0:
		return fmt.Errorf("%w: server.rate_limit must not be negative", ErrInvalidConfig)
	case c.Server.RateLimit > 0 && c.Server.RateBurst < 1:
		return fmt.Errorf("%w: server.rate_burst must be at least 1 when rate_limit is set", ErrInvalidConfig)
	case c.Session.Interval <= 0:
		return fmt.Errorf("%w: session.interval must be positive", ErrInvalidConfig)
	case c.Session.FailEvery < 0:
		return fmt.Errorf("%w: session.fail_every must not be negative", ErrInvalidConfig)
	case c.Session.MaxTicks < 0:
		return fmt.Errorf("%w: session.max_ticks must not be negative", ErrInvalidConfig)
	case c.Session.MaxDuration < 0:
		return fmt.Errorf("%w: session.max_duration must not be negative", ErrInvalidConfig)
	case c.Session.CounterScope != CounterScopeSession && c.Session.CounterScope != CounterScopeGlobal:
		return fmt.Errorf("%w: session.counter_scope %q", ErrInvalidConfig, c.Session.CounterScope)
	case c.Database.Enabled && c.Database.Path == "":
		return fmt.Errorf("%w: database.path is required when the journal is enabled", ErrInvalidConfig)
	}

	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Address returns the host:port the HTTP server listens on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
