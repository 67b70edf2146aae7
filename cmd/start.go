package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"berth/internal/client"
)

var (
	startFlags clientFlags
	stopFlags  clientFlags
)

var startCmd = &cobra.Command{
	Use:   "start <service>",
	Short: "Start a service",
	Long: `Asks the running server to start a service, given by name or sid.

The command returns once the start is accepted; use 'berth events' to
follow its progress.

Examples:
  berth start billing`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, &startFlags, args[0], "start", (*client.Client).Start)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop <service>",
	Short: "Stop a service",
	Long: `Asks the running server to stop a service, given by name or sid.

Examples:
  berth stop billing`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, &stopFlags, args[0], "stop", (*client.Client).Stop)
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)

	startFlags.register(startCmd)
	stopFlags.register(stopCmd)
}

func runCommand(cmd *cobra.Command, flags *clientFlags, target, verb string,
	op func(*client.Client, context.Context, string) error) error {
	c, err := flags.client(cmd)
	if err != nil {
		return err
	}

	svc, err := c.Resolve(cmd.Context(), target)
	if err != nil {
		return err
	}
	if err := op(c, cmd.Context(), svc.SID); err != nil {
		return fmt.Errorf("%s %s: %w", verb, svc.Name, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Accepted %s of %s\n", verb, svc.Name)
	return nil
}
