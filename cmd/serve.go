package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"berth/internal/app"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveConfigPath specifies a custom configuration directory path.
var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the berth control plane",
	Long: `Starts the berth control plane in the foreground.

The control plane scans the workspace, autostarts services whose
service.yaml sets autoStart, accepts agent connections and serves the
management API until it receives SIGINT or SIGTERM.

Configuration:
  berth loads config.yaml from ~/.config/berth unless --config-path points
  at another directory. A missing file means defaults.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveDebug, serveConfigPath)
	cfg.LogOutput = cmd.ErrOrStderr()

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Configuration directory (default ~/.config/berth)")
}
