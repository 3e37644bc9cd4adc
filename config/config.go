// Package config loads bindery configuration from YAML files and the
// environment. Precedence, lowest to highest: built-in defaults, config
// file, BINDERY_* environment variables, command-line flags (applied by the
// command layer).
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Manager handles loading configuration.
type Manager struct {
	mu     sync.RWMutex
	config *Config
}

// NewManager creates a config manager and loads the initial config. An
// empty cfgFile searches config.yaml in the working directory and
// $HOME/.bindery.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{}

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
	viper.SetDefault("output_dir", defaults.OutputDir)
	viper.SetDefault("engine", defaults.Engine)
	viper.SetDefault("fetch", defaults.Fetch)
	viper.SetDefault("batch", defaults.Batch)
	viper.SetDefault("browser", defaults.Browser)
	viper.SetDefault("enhance", defaults.Enhance)

	// Environment variables with BINDERY_ prefix; nested keys use
	// underscores, e.g. BINDERY_FETCH_TIMEOUT.
	viper.SetEnvPrefix("BINDERY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.bindery")
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
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}
