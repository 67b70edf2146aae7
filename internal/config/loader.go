package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"berth/internal/api"
	"berth/pkg/logging"
)

const (
	userConfigDir  = ".config/berth"
	configFileName = "config.yaml"
)

// GetDefaultConfigPath returns ~/.config/berth.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads config.yaml from configPath on top of the defaults.
// The config directory doubles as the default home. A missing file yields
// the defaults; an unreadable or malformed one is a ConfigurationError.
func LoadConfig(configPath string) (BerthConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig(configPath)

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		return BerthConfig{}, api.NewConfigurationError(configFilePath, "cannot read configuration", err)
	}

	var file BerthConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return BerthConfig{}, api.NewConfigurationError(configFilePath, "malformed configuration", err)
	}
	config = merge(config, file)

	if err := config.Validate(); err != nil {
		return BerthConfig{}, api.NewConfigurationError(configFilePath, "invalid configuration", err)
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// merge overlays the non-zero fields of file on base. A home override moves
// the derived workspace root with it unless the root is set explicitly.
func merge(base, file BerthConfig) BerthConfig {
	out := base
	if file.Home != "" {
		out.Home = file.Home
		out.Workspace.Root = filepath.Join(file.Home, "services")
	}
	if file.Workspace.Root != "" {
		out.Workspace.Root = file.Workspace.Root
	}
	if file.Workspace.ExcludeDirs != nil {
		out.Workspace.ExcludeDirs = file.Workspace.ExcludeDirs
	}
	if file.Workspace.SettingsFile != "" {
		out.Workspace.SettingsFile = file.Workspace.SettingsFile
	}
	if file.Server.Host != "" {
		out.Server.Host = file.Server.Host
	}
	if file.Server.Port != 0 {
		out.Server.Port = file.Server.Port
	}
	if file.Server.MaxBundleSize != 0 {
		out.Server.MaxBundleSize = file.Server.MaxBundleSize
	}
	if file.Workers.Size != 0 {
		out.Workers.Size = file.Workers.Size
	}
	if file.Lifecycle.StartTimeout != 0 {
		out.Lifecycle.StartTimeout = file.Lifecycle.StartTimeout
	}
	if file.Lifecycle.StopTimeout != 0 {
		out.Lifecycle.StopTimeout = file.Lifecycle.StopTimeout
	}
	if file.Lifecycle.StuckThreshold != 0 {
		out.Lifecycle.StuckThreshold = file.Lifecycle.StuckThreshold
	}
	if file.Lifecycle.GuardTTL != 0 {
		out.Lifecycle.GuardTTL = file.Lifecycle.GuardTTL
	}
	if file.Lifecycle.SweepInterval != 0 {
		out.Lifecycle.SweepInterval = file.Lifecycle.SweepInterval
	}
	if file.Notify.SessionBuffer != 0 {
		out.Notify.SessionBuffer = file.Notify.SessionBuffer
	}
	if file.Notify.MaxTextLength != 0 {
		out.Notify.MaxTextLength = file.Notify.MaxTextLength
	}
	if file.Logging.Level != "" {
		out.Logging.Level = file.Logging.Level
	}
	if file.Logging.Format != "" {
		out.Logging.Format = file.Logging.Format
	}
	return out
}
