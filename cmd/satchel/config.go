// Config loading for the satchel CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyDataDir        = "data_dir"
	cfgKeyRemoteEndpoint = "remote_endpoint"
	cfgKeyMaxConcurrency = "max_concurrency"
	cfgKeyMaxRetry       = "max_retry"
	cfgKeyBaseRetryDelay = "base_retry_delay"
	cfgKeyDrainTimeout   = "drain_timeout"
	cfgKeySyncInterval   = "sync_interval"
)

// configValues is the subset of viper the CLI reads through; narrows the
// surface for coreConfig.
type configValues interface {
	GetString(key string) string
	GetInt(key string) int
	GetDuration(key string) time.Duration
}

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# Satchel CLI configuration

# Remote note service endpoint. Sync stays offline-only until this is set.
# remote_endpoint:

# Data directory (optional; overridable by --data-dir flag)
# data_dir:

# Processor and sync tunables (defaults shown)
# max_concurrency: 3
# max_retry: 3
# base_retry_delay: 5s
# drain_timeout: 30s
# sync_interval: 5m
`

// loadConfig reads config.yaml from the config directory using Viper,
// creating the directory and a default config.yaml on first run. A missing
// config.yaml is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureDefaultConfigFile creates a default config.yaml if none exists.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
