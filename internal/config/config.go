package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"calsync/engine"
	"calsync/internal/utils"

	"github.com/go-playground/validator/v10"

	_ "embed"
)

var configOnce sync.Once

var globalConfig *Config

var customConfigPath string // Custom config path set via --config flag

//go:embed config.sample.json
var sampleConfig []byte

const (
	CONFIG_DIR_PATH  = "calsync"
	CONFIG_FILE_PATH = "config.json"
	CONFIG_DIR_PERM  = 0755
	CONFIG_FILE_PERM = 0644
)

// Config represents the application configuration.
type Config struct {
	// Providers maps provider names to their sync configuration.
	Providers map[string]engine.ProviderConfig `json:"providers,omitempty"`

	// DatabasePath overrides the default local store location
	// (~/.local/share/calsync/calsync.db). Supports ~ and env expansion.
	DatabasePath string `json:"database_path,omitempty"`

	// PolicyDir holds per-provider merge policy YAML files.
	PolicyDir string `json:"policy_dir,omitempty"`

	// Connectivity probe. An empty URL disables active probing; the engine
	// then assumes online and lets sync attempts discover outages.
	ProbeURL             string `json:"probe_url,omitempty"`
	ProbeIntervalSeconds int    `json:"probe_interval_seconds,omitempty" validate:"omitempty,min=5"`

	// AutoSync enables the background scheduler (interval + reconnect
	// triggers). Manual 'calsync sync' always works regardless.
	AutoSync bool `json:"auto_sync"`

	// Outbox drain tuning. Zero values use engine defaults.
	BatchSize   int `json:"batch_size,omitempty" validate:"omitempty,min=1"`
	MaxAttempts int `json:"max_attempts,omitempty" validate:"omitempty,min=1"`

	DateFormat string `json:"date_format,omitempty"` // Go time format string, defaults to "2006-01-02"
}

// GetProvider returns the provider configuration for the given name
func (c *Config) GetProvider(name string) (*engine.ProviderConfig, error) {
	providerConfig, exists := c.Providers[name]
	if !exists {
		return nil, utils.ErrProviderNotConfigured(name)
	}

	if providerConfig.Name == "" {
		providerConfig.Name = name
	}
	return &providerConfig, nil
}

// GetEnabledProviders returns all enabled provider configurations keyed by
// name, with the Name field filled in.
func (c *Config) GetEnabledProviders() map[string]engine.ProviderConfig {
	enabled := make(map[string]engine.ProviderConfig)
	for name, providerConfig := range c.Providers {
		if !providerConfig.Enabled {
			continue
		}
		if providerConfig.Name == "" {
			providerConfig.Name = name
		}
		enabled[name] = providerConfig
	}
	return enabled
}

func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	if len(c.Providers) == 0 {
		return fmt.Errorf("no providers configured")
	}

	for name, providerConfig := range c.Providers {
		if err := validate.Struct(providerConfig); err != nil {
			return fmt.Errorf("provider %q validation failed: %w", name, err)
		}

		// Type-specific validation
		switch providerConfig.Type {
		case "gcal":
			// Calendar id and URL both have usable defaults.
		case "mock":
			// Test-only provider, nothing to check.
		default:
			if providerConfig.URL == "" {
				return fmt.Errorf("provider %q: url is required for %s providers", name, providerConfig.Type)
			}
		}
	}

	return nil
}

// ProbeInterval returns the connectivity probe interval, zero meaning the
// monitor default.
func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSeconds) * time.Second
}

func (c *Config) GetDateFormat() string {
	if c.DateFormat == "" {
		return "2006-01-02" // Default to yyyy-mm-dd
	}
	return c.DateFormat
}

// GetDatabasePath returns the expanded database path, empty for the default.
func (c *Config) GetDatabasePath() (string, error) {
	if c.DatabasePath == "" {
		return "", nil
	}
	return utils.ExpandPath(c.DatabasePath)
}

// GetPolicyDir returns the expanded merge-policy directory, defaulting to
// <config dir>/policies.
func (c *Config) GetPolicyDir() (string, error) {
	if c.PolicyDir != "" {
		return utils.ExpandPath(c.PolicyDir)
	}
	configPath, err := GetConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(configPath), "policies"), nil
}

// SetCustomConfigPath sets a custom config path to use instead of the default
// user config directory. If path is empty or ".", it uses
// "./calsync/config.json". If path is a directory, it looks for "config.json"
// inside it. Must be called before the first GetConfig call.
func SetCustomConfigPath(path string) {
	if path == "" || path == "." {
		customConfigPath = filepath.Join(".", CONFIG_DIR_PATH, CONFIG_FILE_PATH)
	} else {
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			customConfigPath = filepath.Join(path, CONFIG_FILE_PATH)
		} else {
			customConfigPath = path
		}
	}
}

func GetConfig() *Config {
	configOnce.Do(func() {
		config, err := loadUserOrSampleConfig()
		if err != nil {
			log.Fatal(err)
		}
		globalConfig = config
	})
	return globalConfig
}

func loadUserOrSampleConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("config path couldn't be retrieved: %w", err)
	}
	configData, err := configDataFromPath(configPath)
	if err != nil {
		return nil, fmt.Errorf("config data couldn't be retrieved: %w", err)
	}
	return parseConfig(configData, configPath)
}

func GetConfigPath() (string, error) {
	// A custom config path wins even when the file does not exist yet, so
	// the config can be created there.
	if customConfigPath != "" {
		return customConfigPath, nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	return filepath.Join(dir, CONFIG_DIR_PATH, CONFIG_FILE_PATH), nil
}

func createConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), CONFIG_DIR_PERM)
}

func WriteConfigFile(configPath string, data []byte) error {
	return os.WriteFile(configPath, data, CONFIG_FILE_PERM)
}

func createConfigFromSample(configPath string) ([]byte, error) {
	if err := createConfigDir(configPath); err != nil {
		return nil, err
	}
	if err := WriteConfigFile(configPath, sampleConfig); err != nil {
		return nil, err
	}
	return sampleConfig, nil
}

func parseConfig(configData []byte, configPath string) (*Config, error) {
	var configObj Config
	if err := json.Unmarshal(configData, &configObj); err != nil {
		return nil, fmt.Errorf("invalid JSON in config file %s: %w", configPath, err)
	}

	if err := configObj.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return &configObj, nil
}

func configDataFromPath(configPath string) ([]byte, error) {
	configData, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		fmt.Println("No config exists at", configPath)

		shouldCopySample := utils.PromptYesNo("Do you want to copy the config sample to " + configPath + "?")
		if shouldCopySample {
			return createConfigFromSample(configPath)
		}
		return sampleConfig, nil
	}
	return configData, err
}
