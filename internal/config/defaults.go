package config

import (
	"path/filepath"
	"time"
)

const (
	DefaultHost           = "localhost"
	DefaultPort           = 9899
	DefaultWorkers        = 8
	DefaultStartTimeout   = 60 * time.Second
	DefaultStopTimeout    = 30 * time.Second
	DefaultStuckThreshold = 3
	DefaultGuardTTL       = 5 * time.Minute
	DefaultSweepInterval  = 30 * time.Second
	DefaultSessionBuffer  = 64
	DefaultMaxTextLength  = 512
	DefaultSettingsFile   = "service.yaml"
)

// DefaultExcludeDirs are workspace entries that are never services.
var DefaultExcludeDirs = []string{"bin", "lib", "conf", "plugins", "plugin"}

// GetDefaultConfig returns the default configuration rooted at home.
func GetDefaultConfig(home string) BerthConfig {
	return BerthConfig{
		Home: home,
		Workspace: WorkspaceConfig{
			Root:         filepath.Join(home, "services"),
			ExcludeDirs:  append([]string(nil), DefaultExcludeDirs...),
			SettingsFile: DefaultSettingsFile,
		},
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Workers: WorkersConfig{
			Size: DefaultWorkers,
		},
		Lifecycle: LifecycleConfig{
			StartTimeout:   DefaultStartTimeout,
			StopTimeout:    DefaultStopTimeout,
			StuckThreshold: DefaultStuckThreshold,
			GuardTTL:       DefaultGuardTTL,
			SweepInterval:  DefaultSweepInterval,
		},
		Notify: NotifyConfig{
			SessionBuffer: DefaultSessionBuffer,
			MaxTextLength: DefaultMaxTextLength,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

