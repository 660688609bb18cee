package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Poll    PollConfig    `yaml:"poll"`
	Journal JournalConfig `yaml:"journal"`
	Log     LogConfig     `yaml:"log"`
	Sim     SimConfig     `yaml:"sim"`
}

// BackendConfig holds the export service connection settings.
type BackendConfig struct {
	BaseURL   string        `yaml:"base_url" envconfig:"OVAGRAB_BASE_URL"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"OVAGRAB_TIMEOUT"`
	UserAgent string        `yaml:"user_agent" envconfig:"OVAGRAB_USER_AGENT"`
	Host      string        `yaml:"host" envconfig:"OVAGRAB_VCENTER_HOST"`
	Username  string        `yaml:"username" envconfig:"OVAGRAB_USERNAME"`
}

// PollConfig holds download queue polling configuration.
type PollConfig struct {
	Interval time.Duration `yaml:"interval" envconfig:"OVAGRAB_POLL_INTERVAL"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"OVAGRAB_POLL_TIMEOUT"`
}

// JournalConfig holds the local export journal location. Empty disables it.
type JournalConfig struct {
	Path string `yaml:"path" envconfig:"OVAGRAB_JOURNAL_PATH"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" envconfig:"OVAGRAB_LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"OVAGRAB_LOG_FORMAT"`
	File   string `yaml:"file" envconfig:"OVAGRAB_LOG_FILE"`
}

// SimConfig holds the backend simulator configuration.
type SimConfig struct {
	Host          string        `yaml:"host" envconfig:"OVAGRAB_SIM_HOST"`
	Port          int           `yaml:"port" envconfig:"OVAGRAB_SIM_PORT"`
	Username      string        `yaml:"username" envconfig:"OVAGRAB_SIM_USERNAME"`
	Password      string        `yaml:"password" envconfig:"OVAGRAB_SIM_PASSWORD"`
	InventoryPath string        `yaml:"inventory_path" envconfig:"OVAGRAB_SIM_INVENTORY"`
	StepInterval  time.Duration `yaml:"step_interval" envconfig:"OVAGRAB_SIM_STEP_INTERVAL"`
	StepPercent   int           `yaml:"step_percent" envconfig:"OVAGRAB_SIM_STEP_PERCENT"`
	HistoryLimit  int           `yaml:"history_limit" envconfig:"OVAGRAB_SIM_HISTORY_LIMIT"`
	DownloadDir   string        `yaml:"download_dir" envconfig:"OVAGRAB_SIM_DOWNLOAD_DIR"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:   "http://localhost:5000",
			Timeout:   5 * time.Minute,
			UserAgent: "ovagrab/1.0",
		},
		Poll: PollConfig{
			Interval: 2 * time.Second,
			Timeout:  10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Sim: SimConfig{
			Host:         "127.0.0.1",
			Port:         5000,
			Username:     "administrator@vsphere.local",
			StepInterval: 500 * time.Millisecond,
			StepPercent:  10,
			HistoryLimit: 10,
			DownloadDir:  "./downloads",
		},
	}
}

// Load reads configuration from file and environment variables.
// Defaults are overridden by the file, which is overridden by the environment.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("OVAGRAB_BASE_URL is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("OVAGRAB_BASE_URL must be an absolute URL, got %q", c.Backend.BaseURL)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("OVAGRAB_POLL_INTERVAL must be positive")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("OVAGRAB_LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}
	if c.Sim.HistoryLimit < 0 {
		return fmt.Errorf("OVAGRAB_SIM_HISTORY_LIMIT cannot be negative")
	}
	return nil
}

// Address returns the simulator listen address in host:port format.
func (c *SimConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
