package app

import (
	"io"

	"berth/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of the configured level.
	Debug bool

	// ConfigPath is the configuration directory. Empty means ~/.config/berth.
	ConfigPath string

	// LogOutput receives log output. Nil means stdout.
	LogOutput io.Writer

	// BerthConfig is loaded from ConfigPath when nil.
	BerthConfig *config.BerthConfig
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
	}
}
