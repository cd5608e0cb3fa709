// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Provider identifies which LLM backend the agent executor talks to.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// ElementFormat selects how harvested page elements are encoded into the
// agent prompt.
type ElementFormat string

const (
	// ElementFormatARIA encodes elements as compact role/name lines.
	ElementFormatARIA ElementFormat = "aria"
	// ElementFormatHTML encodes elements as trimmed outerHTML snippets.
	ElementFormatHTML ElementFormat = "html"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
}

// LoggerConfig controls the zap logger and optional rotating log file.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
}

// BrowserConfig controls the chromedp session.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
	// MaxElements caps how many interactive elements a snapshot reports.
	MaxElements int `mapstructure:"max_elements" yaml:"max_elements"`
}

// AgentConfig is passed through unchanged to the agent executor.
type AgentConfig struct {
	Provider          Provider      `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	MaxSteps          int           `mapstructure:"max_steps" yaml:"max_steps"`
	MaxActionsPerStep int           `mapstructure:"max_actions_per_step" yaml:"max_actions_per_step"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ElementFormat     ElementFormat `mapstructure:"element_format" yaml:"element_format"`
	MemoryWindow      int           `mapstructure:"memory_window" yaml:"memory_window"`
	Temperature       float64       `mapstructure:"temperature" yaml:"temperature"`
	// RPM rate-limits outbound LLM requests. Zero disables the limiter.
	RPM int `mapstructure:"rpm" yaml:"rpm"`
}

// HistoryConfig controls the on-disk instruction history.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DBPath  string `mapstructure:"db_path" yaml:"db_path"`
}

// Dir returns the per-user pagepilot directory, creating nothing.
func Dir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".pagepilot"), nil
}

// SetDefaults registers the default values on the provided viper instance.
// It is separated from Load so tests can exercise it against an isolated viper.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "warn")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "pagepilot")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", 30*time.Second)
	v.SetDefault("browser.window_width", 1366)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("browser.max_elements", 80)

	v.SetDefault("agent.provider", string(ProviderGemini))
	v.SetDefault("agent.model", "gemini-2.0-flash")
	v.SetDefault("agent.max_steps", 10)
	v.SetDefault("agent.max_actions_per_step", 5)
	v.SetDefault("agent.request_timeout", 90*time.Second)
	v.SetDefault("agent.element_format", string(ElementFormatARIA))
	v.SetDefault("agent.memory_window", 5)
	v.SetDefault("agent.temperature", 0.2)

	v.SetDefault("history.enabled", true)
}

// Load reads configuration from the given file (or the default search path
// when cfgFile is empty), layered with PAGEPILOT_* environment variables, and
// unmarshals it into a validated Config.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PAGEPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars carry the day.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.History.DBPath == "" {
		if dir, err := Dir(); err == nil {
			cfg.History.DBPath = filepath.Join(dir, "history.db")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints the zero value cannot express.
func (c *Config) Validate() error {
	switch c.Agent.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown agent provider %q", c.Agent.Provider)
	}

	switch c.Agent.ElementFormat {
	case ElementFormatARIA, ElementFormatHTML:
	default:
		return fmt.Errorf("unknown element format %q", c.Agent.ElementFormat)
	}

	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be positive, got %d", c.Agent.MaxSteps)
	}
	if c.Agent.MaxActionsPerStep <= 0 {
		return fmt.Errorf("agent.max_actions_per_step must be positive, got %d", c.Agent.MaxActionsPerStep)
	}
	if c.Agent.MemoryWindow < 0 {
		return fmt.Errorf("agent.memory_window must not be negative, got %d", c.Agent.MemoryWindow)
	}
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be positive")
	}
	return nil
}
