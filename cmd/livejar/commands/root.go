package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/livejar/internal/config"
	"github.com/bryanchriswhite/livejar/internal/logger"
	"github.com/bryanchriswhite/livejar/internal/settings"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "livejar",
		Short: "LiveJar - Multi-window stream viewer core",
		Long: `LiveJar keeps a set of live stream windows in sync with one persisted
settings document.

Features:
  • Open, close, switch and solo stream windows
  • Window geometry and flags persisted across restarts
  • Channel playlists with recent history
  • REST, websocket and MCP command surfaces
  • Offline settings editing picked up by a running server`,
		SilenceUsage: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "options file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("settings", "", "settings document (default is $HOME/.config/livejar/settings.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "human readable console logs")

	// Bind flags to viper
	viper.BindPFlag("settings", rootCmd.PersistentFlags().Lookup("settings"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	viper.SetEnvPrefix("livejar")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read options file: %v\n", err)
			os.Exit(1)
		}
	}
	logger.Init(viper.GetString("log_level"), viper.GetBool("log_pretty"))
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// SettingsPath returns the settings document path, empty for the default
func SettingsPath() string {
	return viper.GetString("settings")
}

// openRepository opens the settings document for the offline commands
func openRepository() (*settings.Repository, error) {
	store, err := config.Open(SettingsPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return settings.New(store), nil
}
