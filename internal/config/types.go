package config

import (
	"path/filepath"
	"time"
)

// BerthConfig is the top-level configuration structure for berth.
type BerthConfig struct {
	// Home is the control-plane home. Import scratch space lives under
	// <home>/.cache/temp.
	Home      string          `yaml:"home,omitempty"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Server    ServerConfig    `yaml:"server"`
	Workers   WorkersConfig   `yaml:"workers"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Notify    NotifyConfig    `yaml:"notify"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// WorkspaceConfig locates the managed services.
type WorkspaceConfig struct {
	Root         string   `yaml:"root,omitempty"`         // Service directories (default: <home>/services)
	ExcludeDirs  []string `yaml:"excludeDirs,omitempty"`  // Directory names never treated as services
	SettingsFile string   `yaml:"settingsFile,omitempty"` // Per-service settings file (default: service.yaml)
}

// ServerConfig defines where the HTTP server listens.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
	// MaxBundleSize limits bundle uploads in bytes. Zero means unlimited.
	MaxBundleSize int64 `yaml:"maxBundleSize,omitempty"`
}

// WorkersConfig sizes the shared worker pool.
type WorkersConfig struct {
	Size int `yaml:"size,omitempty"`
}

// LifecycleConfig tunes start and stop handling.
type LifecycleConfig struct {
	StartTimeout   time.Duration `yaml:"startTimeout,omitempty"`
	StopTimeout    time.Duration `yaml:"stopTimeout,omitempty"`
	StuckThreshold int           `yaml:"stuckThreshold,omitempty"`
	GuardTTL       time.Duration `yaml:"guardTTL,omitempty"`
	// SweepInterval is how often expired guards are swept.
	SweepInterval time.Duration `yaml:"sweepInterval,omitempty"`
}

// NotifyConfig tunes client push sessions.
type NotifyConfig struct {
	SessionBuffer int `yaml:"sessionBuffer,omitempty"`
	MaxTextLength int `yaml:"maxTextLength,omitempty"`
}

// LoggingConfig selects the log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn or error
	Format string `yaml:"format,omitempty"` // text or json
}

// TempDir returns the directory used for in-flight imports.
func (c BerthConfig) TempDir() string {
	return filepath.Join(c.Home, ".cache", "temp")
}

// LogDir returns the directory service output is written to.
func (c BerthConfig) LogDir() string {
	return filepath.Join(c.Home, "logs")
}
