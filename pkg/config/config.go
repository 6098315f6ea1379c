// Package config loads the zoneremote configuration file.
//
// The file is YAML. Every field is optional; missing fields keep the
// values of Default. Durations use Go syntax ("30s", "1m").
//
//	listen: ":3000"
//	core:
//	  address: "192.168.1.20:9330"
//	  request_timeout: 30s
//	  state_file: state.json
//	browse:
//	  default_item_key: "1"
//	history:
//	  path: zoneremote.db
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zoneremote/zoneremote-go/pkg/connection"
	"github.com/zoneremote/zoneremote-go/pkg/transport"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete zoneremote configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	Core    CoreConfig    `yaml:"core"`
	Browse  BrowseConfig  `yaml:"browse"`
	History HistoryConfig `yaml:"history"`
	Log     LogConfig     `yaml:"log"`
}

// CoreConfig configures the session with the core.
type CoreConfig struct {
	// Address is host:port of the core. Empty means discover it via mDNS.
	Address string `yaml:"address"`

	// StateFile remembers the paired core across restarts. Empty disables
	// it.
	StateFile string `yaml:"state_file"`

	// DiscoveryTimeout bounds each mDNS lookup.
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout"`

	// RequestTimeout bounds each request to the core.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// TLS enables TLS to the core when set.
	TLS *transport.TLSOptions `yaml:"tls"`

	KeepAlive transport.KeepAliveConfig `yaml:"keepalive"`
	Reconnect connection.BackoffConfig  `yaml:"reconnect"`
}

// BrowseConfig configures browse chains.
type BrowseConfig struct {
	Hierarchy      string `yaml:"hierarchy"`
	PageSize       int    `yaml:"page_size"`
	DefaultItemKey string `yaml:"default_item_key"`
}

// HistoryConfig configures the command journal.
type HistoryConfig struct {
	// Path of the SQLite database. Empty disables the journal.
	Path string `yaml:"path"`

	// Retention prunes entries older than this at startup. Zero keeps
	// everything.
	Retention time.Duration `yaml:"retention"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// ProtocolLog is the path of a protocol capture file (.zlog).
	ProtocolLog string `yaml:"protocol_log"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Listen: ":3000",
		Core: CoreConfig{
			DiscoveryTimeout: 10 * time.Second,
			RequestTimeout:   30 * time.Second,
			KeepAlive:        transport.DefaultKeepAliveConfig(),
			Reconnect: connection.BackoffConfig{
				Initial:    connection.InitialBackoff,
				Max:        connection.MaxBackoff,
				Multiplier: connection.BackoffMultiplier,
				Jitter:     connection.JitterFactor,
			},
		},
		Browse: BrowseConfig{
			Hierarchy:      "browse",
			PageSize:       100,
			DefaultItemKey: "1",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Parse parses YAML data on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks the configuration for values the remote cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if c.Listen == "" {
		problems = append(problems, "listen address is empty")
	}
	if c.Core.RequestTimeout <= 0 {
		problems = append(problems, "core.request_timeout must be positive")
	}
	if c.Core.Address == "" && c.Core.DiscoveryTimeout <= 0 {
		problems = append(problems, "core.discovery_timeout must be positive when no core address is set")
	}
	if c.Core.KeepAlive.PingInterval < 0 || c.Core.KeepAlive.PongTimeout < 0 || c.Core.KeepAlive.MaxMissedPongs < 0 {
		problems = append(problems, "core.keepalive values must not be negative")
	}
	if c.Browse.Hierarchy == "" {
		problems = append(problems, "browse.hierarchy is empty")
	}
	if c.Browse.PageSize < 0 {
		problems = append(problems, "browse.page_size must not be negative")
	}
	if c.History.Retention < 0 {
		problems = append(problems, "history.retention must not be negative")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// SlogLevel returns the slog level named by Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q is not a level", l.Level)
	}
	return level, nil
}
