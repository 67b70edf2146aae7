package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"berth/internal/config"
	"berth/pkg/logging"
)

// Application represents the main application structure that bootstraps and runs berth.
//
// Example usage:
//
//	cfg := app.NewConfig(false, "")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.Run(ctx)
type Application struct {
	config   *Config
	services *Services
}

// NewApplication creates and initializes a new application instance.
//
// Bootstrap order: logging, configuration, workspace root, then the
// components in dependency order (see InitializeServices). Configuration
// errors are fatal.
func NewApplication(cfg *Config) (*Application, error) {
	appLogLevel := logging.LevelInfo
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}

	var logOutput io.Writer = os.Stdout
	if cfg.LogOutput != nil {
		logOutput = cfg.LogOutput
	}
	logging.InitForCLI(appLogLevel, logOutput)

	if cfg.BerthConfig == nil {
		configPath := cfg.ConfigPath
		if configPath == "" {
			var err error
			configPath, err = config.GetDefaultConfigPath()
			if err != nil {
				return nil, err
			}
		}

		berthCfg, err := config.LoadConfig(configPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load berth configuration from %s", configPath)
			return nil, fmt.Errorf("failed to load berth configuration from %s: %w", configPath, err)
		}
		cfg.BerthConfig = &berthCfg
	}

	// The configured level applies unless --debug asked for more.
	if !cfg.Debug {
		level, _ := logging.ParseLevel(cfg.BerthConfig.Logging.Level)
		logging.Init(level, logging.Format(cfg.BerthConfig.Logging.Format), logOutput)
	} else if logging.Format(cfg.BerthConfig.Logging.Format) == logging.FormatJSON {
		logging.Init(logging.LevelDebug, logging.FormatJSON, logOutput)
	}

	services, err := InitializeServices(*cfg.BerthConfig)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Services returns the wired components.
func (a *Application) Services() *Services {
	return a.services
}

// Run starts the control plane and blocks until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func (a *Application) Run(ctx context.Context) error {
	return runServer(ctx, a.config.BerthConfig.Lifecycle.SweepInterval, a.services)
}
