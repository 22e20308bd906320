package config

import (
	"fmt"
	"os"
	"time"

	"github.com/entrhq/browserpool/pkg/browserpool"
	"github.com/entrhq/browserpool/pkg/logging"
	"gopkg.in/yaml.v3"
)

// Config is the complete configuration of a browserpool server
type Config struct {
	// Browser process settings
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// Settings applied to every session (browser context)
	Session SessionConfig `yaml:"session" json:"session"`

	// Idle session reclamation
	Reaper ReaperConfig `yaml:"reaper" json:"reaper"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// HTTP request layer
	Server ServerConfig `yaml:"server" json:"server"`
}

// EngineConfig defines how the shared browser is launched
type EngineConfig struct {
	Browser         string        `yaml:"browser" json:"browser"`
	Args            []string      `yaml:"args" json:"args"`
	Headless        bool          `yaml:"headless" json:"headless"`
	SlowMo          time.Duration `yaml:"slow_mo" json:"slow_mo"`
	LaunchTimeout   time.Duration `yaml:"launch_timeout" json:"launch_timeout"`
	InstallBrowsers bool          `yaml:"install_browsers" json:"install_browsers"`
}

// SessionConfig defines the defaults of every browser context
type SessionConfig struct {
	ViewportWidth     int           `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight    int           `yaml:"viewport_height" json:"viewport_height"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	JavaScriptEnabled bool          `yaml:"javascript_enabled" json:"javascript_enabled"`
	BypassCSP         bool          `yaml:"bypass_csp" json:"bypass_csp"`
}

// ReaperConfig defines idle session reclamation
type ReaperConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	DeferClose    bool          `yaml:"defer_close" json:"defer_close"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Level is the minimum level written: debug, info, warn or error
	Level string `yaml:"level" json:"level"`

	// Dir is the log directory (default ~/.browserpool/logs)
	Dir string `yaml:"dir" json:"dir"`
}

// ServerConfig defines the HTTP request layer
type ServerConfig struct {
	Addr        string        `yaml:"addr" json:"addr"`
	WaitUntil   string        `yaml:"wait_until" json:"wait_until"`
	SettleDelay time.Duration `yaml:"settle_delay" json:"settle_delay"`
}

var (
	validBrowsers = map[string]bool{
		"chromium": true,
		"firefox":  true,
		"webkit":   true,
	}

	validWaitUntil = map[string]bool{
		"load":             true,
		"domcontentloaded": true,
		"networkidle":      true,
		"commit":           true,
	}
)

// DefaultConfig returns the configuration the server runs with when no file is given
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Browser: browserpool.DefaultBrowser,
			Args: []string{
				"--disable-gpu",
				"--disable-dev-shm-usage",
				"--disable-software-rasterizer",
				"--disable-extensions",
				"--no-sandbox",
				"--single-process",
			},
			Headless: true,
			SlowMo:   50 * time.Millisecond,
		},
		Session: SessionConfig{
			ViewportWidth:     browserpool.DefaultViewportWidth,
			ViewportHeight:    browserpool.DefaultViewportHeight,
			Timeout:           30 * time.Second,
			JavaScriptEnabled: true,
			BypassCSP:         true,
		},
		Reaper: ReaperConfig{
			SweepInterval: browserpool.DefaultSweepInterval,
			IdleTimeout:   browserpool.DefaultIdleTimeout,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr:      "0.0.0.0:3000",
			WaitUntil: "load",
		},
	}
}

// Load reads a YAML configuration file on top of DefaultConfig. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if !validBrowsers[c.Engine.Browser] {
		return fmt.Errorf("invalid browser: %s (must be 'chromium', 'firefox' or 'webkit')", c.Engine.Browser)
	}

	if c.Engine.SlowMo < 0 {
		return fmt.Errorf("slow_mo cannot be negative")
	}

	if c.Engine.LaunchTimeout < 0 {
		return fmt.Errorf("launch_timeout cannot be negative")
	}

	if c.Session.ViewportWidth <= 0 || c.Session.ViewportHeight <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", c.Session.ViewportWidth, c.Session.ViewportHeight)
	}

	if c.Session.Timeout < 0 {
		return fmt.Errorf("session timeout cannot be negative")
	}

	if c.Reaper.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive")
	}

	if c.Reaper.IdleTimeout <= 0 {
		return fmt.Errorf("idle_timeout must be positive")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging level: %w", err)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server address is required")
	}

	if !validWaitUntil[c.Server.WaitUntil] {
		return fmt.Errorf("invalid wait_until: %s (must be 'load', 'domcontentloaded', 'networkidle' or 'commit')", c.Server.WaitUntil)
	}

	if c.Server.SettleDelay < 0 {
		return fmt.Errorf("settle_delay cannot be negative")
	}

	return nil
}

// PoolOptions converts the configuration into browserpool options. Playwright
// takes durations in milliseconds.
func (c *Config) PoolOptions(log browserpool.Logger) browserpool.Options {
	return browserpool.Options{
		Engine: browserpool.EngineOptions{
			Browser:         c.Engine.Browser,
			Args:            append([]string(nil), c.Engine.Args...),
			Headless:        c.Engine.Headless,
			SlowMo:          milliseconds(c.Engine.SlowMo),
			LaunchTimeout:   milliseconds(c.Engine.LaunchTimeout),
			InstallBrowsers: c.Engine.InstallBrowsers,
		},
		Session: browserpool.SessionOptions{
			Viewport: &browserpool.Viewport{
				Width:  c.Session.ViewportWidth,
				Height: c.Session.ViewportHeight,
			},
			Timeout:           milliseconds(c.Session.Timeout),
			DisableJavaScript: !c.Session.JavaScriptEnabled,
			BypassCSP:         c.Session.BypassCSP,
		},
		SweepInterval: c.Reaper.SweepInterval,
		IdleTimeout:   c.Reaper.IdleTimeout,
		DeferClose:    c.Reaper.DeferClose,
		Logger:        log,
	}
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
