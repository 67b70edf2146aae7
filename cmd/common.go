package cmd

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"berth/internal/api"
	"berth/internal/client"
	"berth/internal/config"
	"berth/pkg/logging"
)

// clientFlags are shared by commands that talk to a running server.
type clientFlags struct {
	configPath string
	server     string
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config-path", "", "Configuration directory (default ~/.config/berth)")
	cmd.Flags().StringVar(&f.server, "server", "", "Server URL (default from configuration)")
}

// loadConfig reads the configuration without the loader's info logging.
func loadConfig(configPath string, cmd *cobra.Command) (config.BerthConfig, error) {
	logging.InitForCLI(logging.LevelWarn, cmd.ErrOrStderr())

	if configPath == "" {
		var err error
		configPath, err = config.GetDefaultConfigPath()
		if err != nil {
			return config.BerthConfig{}, err
		}
	}
	return config.LoadConfig(configPath)
}

func (f *clientFlags) client(cmd *cobra.Command) (*client.Client, error) {
	if f.server != "" {
		return client.New(f.server)
	}
	cfg, err := loadConfig(f.configPath, cmd)
	if err != nil {
		return nil, err
	}
	return client.New(serverURL(cfg))
}

func serverURL(cfg config.BerthConfig) string {
	return fmt.Sprintf("http://%s", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)))
}

func isConflict(err error) bool {
	var ce *api.ConflictError
	return client.IsConflict(err) || errors.As(err, &ce)
}
