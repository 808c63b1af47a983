package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/livejar/internal/config"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage the LiveJar settings document",
	Long: `View and edit the persisted settings document. A running server picks up
every change made here.`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Long:  `Display the current LiveJar settings.`,
	Example: `  # Show settings as YAML (default)
  livejar settings show

  # Show settings as JSON
  livejar settings show --format json

  # Show settings as TOML
  livejar settings show --format toml`,
	RunE: runSettingsShow,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get PATH",
	Short: "Get a settings value",
	Long:  `Get the value at a dot separated path. Numeric segments index lists.`,
	Example: `  # Get one preference
  livejar settings get general.reopen_windows

  # Get the state of the first window
  livejar settings get windows.0.state`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set PATH VALUE",
	Short: "Set a settings value",
	Long: `Set the value at a dot separated path. VALUE is read as YAML, so true, 3
and [a, b] arrive typed.`,
	Example: `  # Turn off reopening windows at start
  livejar settings set general.reopen_windows false

  # Mute the first window
  livejar settings set windows.0.state.muted true`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset PATH",
	Short: "Reset a settings value to its default",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsReset,
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset every setting to its default",
	RunE:  runSettingsClear,
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show settings file path",
	Long:  `Display the path to the settings document.`,
	RunE:  runSettingsPath,
}

var formatFlag string

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsResetCmd)
	settingsCmd.AddCommand(settingsClearCmd)
	settingsCmd.AddCommand(settingsPathCmd)

	settingsShowCmd.Flags().StringVarP(&formatFlag, "format", "f", "yaml", "output format (yaml, json or toml)")
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}
	return encode(repo.Get(), formatFlag)
}

func encode(v any, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		return encoder.Encode(v)
	case "toml":
		tree, err := plainTree(v)
		if err != nil {
			return err
		}
		encoder := toml.NewEncoder(os.Stdout)
		encoder.SetIndentTables(true)
		return encoder.Encode(tree)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml', 'json' or 'toml')", format)
	}
}

// plainTree converts v to maps and slices keyed by its yaml names, without
// nulls since TOML has none
func plainTree(v any) (any, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return dropNulls(tree), nil
}

func dropNulls(node any) any {
	switch n := node.(type) {
	case map[string]any:
		for k, v := range n {
			if v == nil {
				delete(n, k)
				continue
			}
			n[k] = dropNulls(v)
		}
		return n
	case []any:
		for i, v := range n {
			n[i] = dropNulls(v)
		}
		return n
	default:
		return n
	}
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}

	v, err := repo.GetAtPath(args[0])
	if err != nil {
		return err
	}
	switch v.(type) {
	case map[string]any, []any:
		return encode(v, "yaml")
	default:
		fmt.Println(v)
		return nil
	}
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	repo, err := openRepository()
	if err != nil {
		return err
	}
	if err := repo.SetAtPath(key, config.ParseValue(value)); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	fmt.Printf("✅ Settings updated: %s = %s\n", key, value)
	return nil
}

func runSettingsReset(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}
	if err := repo.ResetAtPath(args[0]); err != nil {
		return fmt.Errorf("failed to reset %s: %w", args[0], err)
	}

	fmt.Printf("✅ Settings reset: %s\n", args[0])
	return nil
}

func runSettingsClear(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}
	if err := repo.Clear(); err != nil {
		return fmt.Errorf("failed to clear settings: %w", err)
	}

	fmt.Println("✅ Settings reset to defaults")
	return nil
}

func runSettingsPath(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}

	fmt.Println(repo.Store().Path())
	return nil
}
