package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/livejar/internal/config"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Inspect stream windows",
	Long:  `Inspect the stream windows recorded in the settings document.`,
}

var streamListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stream windows",
	Long: `List every stream window with its channel and persisted state. Enabled
windows are the ones reopened at the next start.`,
	Example: `  # List windows in table format (default)
  livejar stream list

  # List windows in JSON format
  livejar stream list --format json`,
	RunE: runStreamList,
}

var streamFormat string

func init() {
	rootCmd.AddCommand(streamCmd)
	streamCmd.AddCommand(streamListCmd)

	streamListCmd.Flags().StringVarP(&streamFormat, "format", "f", "table", "output format (table or json)")
}

func runStreamList(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}
	windows := repo.Windows()

	switch streamFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(windows)
	case "table":
		return printStreamsTable(windows)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", streamFormat)
	}
}

func printStreamsTable(windows []config.StreamWindow) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tLABEL\tTYPE\tCHANNEL\tENABLED\tMUTED\tSIZE")
	fmt.Fprintln(w, "--\t-----\t----\t-------\t-------\t-----\t----")

	for _, sw := range windows {
		st := config.DefaultStreamState()
		if sw.State != nil {
			st = *sw.State
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%dx%d\n",
			sw.ID, sw.Label, sw.Type, sw.Channel, yesNo(st.Enabled), yesNo(st.Muted), st.Width, st.Height)
	}

	return nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
