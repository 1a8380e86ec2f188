// Package config loads the daemon and CLI configuration.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends accepted by infra.OpenSettingsStore.
const (
	StoreEncrypted = "encrypted"
	StoreFile      = "file"
)

// DefaultListen is the loopback address the daemon serves the API on.
const DefaultListen = "127.0.0.1:7780"

// ConfigFileName is looked up in the data directory when no --config is given.
const ConfigFileName = "config.yaml"

// Config holds every tunable of the daemon and CLI.
type Config struct {
	Listen  string    `yaml:"listen"`
	DataDir string    `yaml:"data_dir"`
	Store   string    `yaml:"store"`
	Log     LogConfig `yaml:"log"`

	RescanInterval    time.Duration `yaml:"rescan_interval"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	RescanConcurrency int           `yaml:"rescan_concurrency"`

	// RedirectURL is where blocked tabs are sent. Empty means the daemon's
	// own /blocked page.
	RedirectURL string `yaml:"redirect_url"`
}

// LogConfig selects log destinations and level.
type LogConfig struct {
	File      string `yaml:"file"`
	ErrorFile string `yaml:"error_file"`
	Level     string `yaml:"level"`
}

// Default returns the configuration for the current execution mode.
func Default() *Config {
	return DefaultFor(DetectExecMode())
}

// DefaultFor returns the configuration for mode.
func DefaultFor(mode ExecMode) *Config {
	dataDir := mode.DataDir()
	return &Config{
		Listen:  DefaultListen,
		DataDir: dataDir,
		Store:   StoreEncrypted,
		Log: LogConfig{
			File:      filepath.Join(dataDir, "submon.log"),
			ErrorFile: filepath.Join(dataDir, "submon.err"),
			Level:     "info",
		},
		RescanInterval:    time.Minute,
		PollInterval:      2 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		RescanConcurrency: 8,
	}
}

// LoadConfig reads a YAML file on top of the defaults. Environment
// variables in the file are expanded. An empty path loads the config file
// from the default data directory if one exists.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(cfg.DataDir, ConfigFileName)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	content = []byte(os.ExpandEnv(string(content)))
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	switch c.Store {
	case StoreEncrypted, StoreFile:
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StoreEncrypted, StoreFile)
	}
	for name, d := range map[string]time.Duration{
		"rescan_interval":    c.RescanInterval,
		"poll_interval":      c.PollInterval,
		"heartbeat_interval": c.HeartbeatInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.RescanConcurrency < 1 {
		return fmt.Errorf("rescan_concurrency must be at least 1, got %d", c.RescanConcurrency)
	}
	return nil
}

// BlockedPageURL returns the URL blocked tabs are redirected to. bound is
// the address the daemon actually listens on.
func (c *Config) BlockedPageURL(bound string) string {
	if c.RedirectURL != "" {
		return c.RedirectURL
	}
	return "http://" + ReachableAddr(bound) + "/blocked"
}

// BaseURL returns the API base URL clients use to reach the daemon.
func (c *Config) BaseURL() string {
	return "http://" + ReachableAddr(c.Listen)
}

// ReachableAddr turns a listen address into one a local client can dial:
// an empty or unspecified host ("", 0.0.0.0, ::) becomes 127.0.0.1.
func ReachableAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
