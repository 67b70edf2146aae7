package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"berth/internal/api"
	"berth/internal/formatting"
	"berth/internal/notify"
)

var (
	eventsFlags        clientFlags
	eventsOutputFormat string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow lifecycle changes, notices and import progress",
	Long: `Connects to the push stream of the running server and prints every
message until interrupted.

Examples:
  berth events
  berth events -o json`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsFlags.register(eventsCmd)
	eventsCmd.Flags().StringVarP(&eventsOutputFormat, "output", "o", "text", "Output format (text, json)")
}

func runEvents(cmd *cobra.Command, args []string) error {
	c, err := eventsFlags.client(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	return c.Watch(cmd.Context(), func(msg notify.Message) {
		if eventsOutputFormat == "json" {
			fmt.Fprintln(out, formatting.PrettyJSON(msg))
			return
		}
		printMessage(out, msg)
	})
}

func printMessage(w io.Writer, msg notify.Message) {
	at := msg.At.Local().Format(time.TimeOnly)
	switch msg.Kind {
	case notify.KindLifecycle:
		fmt.Fprintf(w, "%s %-9s %s %s", at, msg.Status, displayName(msg), msg.Lifecycle)
		if msg.Cause != "" {
			fmt.Fprintf(w, " (%s)", msg.Cause)
		}
		fmt.Fprintln(w)
	case notify.KindNotice:
		fmt.Fprintf(w, "%s %-9s %s\n", at, levelColor(msg.Level).Sprint(msg.Level), msg.Text)
	case notify.KindProgress:
		if msg.Text == "" {
			fmt.Fprintf(w, "%s %-9s %s done\n", at, "PROGRESS", msg.OperationID)
			return
		}
		fmt.Fprintf(w, "%s %-9s %s: %s\n", at, "PROGRESS", msg.OperationID, msg.Text)
	case notify.KindCatalog:
		fmt.Fprintf(w, "%s %-9s %s\n", at, "CATALOG", msg.Text)
	}
}

func displayName(msg notify.Message) string {
	if msg.Name != "" {
		return msg.Name
	}
	return msg.SID
}

func levelColor(l api.NoticeLevel) text.Colors {
	switch l {
	case api.NoticeError:
		return text.Colors{text.FgRed}
	case api.NoticeWarn:
		return text.Colors{text.FgYellow}
	default:
		return text.Colors{text.FgCyan}
	}
}
