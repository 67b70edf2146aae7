package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"berth/internal/api"
	"berth/internal/formatting"
	"berth/internal/workspace"
)

var (
	listOutputFormat string
	listTree         bool
	listOffline      bool
	listNoColor      bool
	listFlags        clientFlags
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the services of the workspace",
	Long: `Lists the services of the workspace with their status.

The running server is asked first. With --offline, or when no server is
reachable, the workspace is scanned directly and no status is shown.

Examples:
  berth list
  berth list --tree
  berth list --offline -o yaml`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listFlags.register(listCmd)
	listCmd.Flags().StringVarP(&listOutputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	listCmd.Flags().BoolVar(&listTree, "tree", false, "Show services grouped")
	listCmd.Flags().BoolVar(&listOffline, "offline", false, "Scan the workspace without asking the server")
	listCmd.Flags().BoolVar(&listNoColor, "no-color", false, "Disable colored output")
}

func runList(cmd *cobra.Command, args []string) error {
	format := formatting.OutputFormat(listOutputFormat)
	switch format {
	case formatting.FormatTable, formatting.FormatJSON, formatting.FormatYAML:
	default:
		return fmt.Errorf("unknown output format %q: use table, json or yaml", listOutputFormat)
	}

	opts := formatting.Options{Format: format, Color: !listNoColor}
	out := cmd.OutOrStdout()

	if !listOffline {
		if c, err := listFlags.client(cmd); err == nil {
			if listTree {
				if tree, err := c.Tree(cmd.Context()); err == nil {
					return formatting.New(opts).FormatTree(out, tree)
				}
			} else if services, err := c.List(cmd.Context()); err == nil {
				opts.ShowStatus = true
				return formatting.New(opts).FormatCatalog(out, services)
			}
		}
	}

	cfg, err := loadConfig(listFlags.configPath, cmd)
	if err != nil {
		return err
	}
	registry := workspace.NewRegistry(workspace.Options{
		Root:         cfg.Workspace.Root,
		ExcludeDirs:  cfg.Workspace.ExcludeDirs,
		SettingsFile: cfg.Workspace.SettingsFile,
	})

	if listTree {
		tree, err := registry.GroupTree()
		if err != nil {
			return err
		}
		return formatting.New(opts).FormatTree(out, tree)
	}

	descs, err := registry.List()
	if err != nil {
		return err
	}
	services := make([]api.ServiceInfo, 0, len(descs))
	for _, d := range descs {
		services = append(services, api.ServiceInfo{ServiceDescriptor: d})
	}
	return formatting.New(opts).FormatCatalog(out, services)
}
