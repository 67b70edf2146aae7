package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var importFlags clientFlags

var importCmd = &cobra.Command{
	Use:   "import <bundle.zip>",
	Short: "Import a service bundle",
	Long: `Uploads a zip bundle holding one service directory.

A new directory becomes a new service; an existing one is replaced as long
as the service is not running. Progress and the result are pushed to
'berth events'.

Examples:
  berth import ./billing.zip`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := importFlags.client(cmd)
		if err != nil {
			return err
		}
		id, err := c.Import(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("import %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Import %s accepted\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importFlags.register(importCmd)
}
