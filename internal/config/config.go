// Package config handles service configuration from environment variables
// and an optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all service settings. Read once at startup; numeric knobs
// have safe defaults, missing secrets degrade readiness rather than crash.
type Config struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`

	// ServiceAPIKey authenticates callers of /v1/* endpoints.
	ServiceAPIKey string `mapstructure:"service_api_key" yaml:"service_api_key"`
	// ProviderAPIKey authenticates this service against the upstream
	// model provider.
	ProviderAPIKey string `mapstructure:"provider_api_key" yaml:"provider_api_key"`
	// ProviderBaseURL overrides the provider endpoint (OpenAI-compatible).
	ProviderBaseURL string `mapstructure:"provider_base_url" yaml:"provider_base_url"`

	DefaultModelID        string `mapstructure:"default_model_id" yaml:"default_model_id"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	MaxConcurrency        int    `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	MaxTextChars          int    `mapstructure:"max_text_chars" yaml:"max_text_chars"`
	MaxExamples           int    `mapstructure:"max_examples" yaml:"max_examples"`
	MaxWorkers            int    `mapstructure:"max_workers" yaml:"max_workers"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:                  "127.0.0.1",
		Port:                  "8080",
		DefaultModelID:        "gemini-2.5-flash",
		RequestTimeoutSeconds: 120,
		MaxConcurrency:        4,
		MaxTextChars:          100000,
		MaxExamples:           50,
		MaxWorkers:            20,
	}
}

// RequestTimeout returns the dispatch deadline as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// MissingSecrets returns the names of unconfigured secrets, in a fixed order.
// Used by the readiness endpoint.
func (c *Config) MissingSecrets() []string {
	var missing []string
	if c.ServiceAPIKey == "" {
		missing = append(missing, "SERVICE_API_KEY")
	}
	if c.ProviderAPIKey == "" {
		missing = append(missing, "PROVIDER_API_KEY")
	}
	return missing
}

// Source provides the current configuration. *Manager implements it;
// tests use Static.
type Source interface {
	Get() *Config
}

// Static is a fixed-value Source for tests and one-shot tools.
type Static struct {
	Config *Config
}

// Get returns the wrapped configuration.
func (s Static) Get() *Config {
	return s.Config
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("host", defaults.Host)
	viper.SetDefault("port", defaults.Port)
	viper.SetDefault("service_api_key", "")
	viper.SetDefault("provider_api_key", "")
	viper.SetDefault("provider_base_url", "")
	viper.SetDefault("default_model_id", defaults.DefaultModelID)
	viper.SetDefault("request_timeout_seconds", defaults.RequestTimeoutSeconds)
	viper.SetDefault("max_concurrency", defaults.MaxConcurrency)
	viper.SetDefault("max_text_chars", defaults.MaxTextChars)
	viper.SetDefault("max_examples", defaults.MaxExamples)
	viper.SetDefault("max_workers", defaults.MaxWorkers)

	// Environment variables with LEXGATE_ prefix
	viper.SetEnvPrefix("LEXGATE")
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.lexgate")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets in a config file may reference environment variables.
	cfg.ServiceAPIKey = ResolveEnvVars(cfg.ServiceAPIKey)
	cfg.ProviderAPIKey = ResolveEnvVars(cfg.ProviderAPIKey)

	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of the config file.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cm.reload()
	})
	viper.WatchConfig()
}

// reload re-parses the current viper state and notifies registered
// callbacks. A parse failure keeps the previous config.
func (cm *Manager) reload() {
	cfg, err := cm.load()
	if err != nil {
		return
	}

	cm.mu.Lock()
	cm.config = cfg
	callbacks := make([]func(*Config), len(cm.callbacks))
	copy(callbacks, cm.callbacks)
	cm.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	cfg.ServiceAPIKey = "${SERVICE_API_KEY}"
	cfg.ProviderAPIKey = "${PROVIDER_API_KEY}"

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# lexgate configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export SERVICE_API_KEY=xxx PROVIDER_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
