package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/livejar/internal/config"
)

var playlistCmd = &cobra.Command{
	Use:   "playlist",
	Short: "Manage channel playlists",
	Long:  `Add or remove channels from playlists.`,
}

var playlistAddCmd = &cobra.Command{
	Use:   "add LABEL CHANNELS",
	Short: "Add channels to a playlist",
	Long: `Add channels to a playlist, creating it when missing. CHANNELS may hold
several names separated by spaces or commas.`,
	Example: `  # Add one channel
  livejar playlist add favorites some_channel

  # Add several at once
  livejar playlist add favorites "one, two three"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runPlaylistAdd,
}

var playlistRemoveCmd = &cobra.Command{
	Use:   "remove LABEL CHANNEL",
	Short: "Remove a channel from a playlist",
	Example: `  # Remove a channel
  livejar playlist remove favorites some_channel`,
	Args: cobra.ExactArgs(2),
	RunE: runPlaylistRemove,
}

var playlistDeleteCmd = &cobra.Command{
	Use:   "delete LABEL",
	Short: "Delete a playlist",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlaylistDelete,
}

var playlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List playlists",
	Long:  `Display every playlist and its channels.`,
	RunE:  runPlaylistList,
}

var playlistType string

func init() {
	rootCmd.AddCommand(playlistCmd)
	playlistCmd.AddCommand(playlistAddCmd)
	playlistCmd.AddCommand(playlistRemoveCmd)
	playlistCmd.AddCommand(playlistDeleteCmd)
	playlistCmd.AddCommand(playlistListCmd)

	playlistCmd.PersistentFlags().StringVarP(&playlistType, "type", "t", string(config.StreamTypeTwitch), "stream type of the playlist")
}

func runPlaylistAdd(cmd *cobra.Command, args []string) error {
	label := args[0]
	channels := strings.Join(args[1:], " ")

	repo, err := openRepository()
	if err != nil {
		return err
	}
	if err := repo.AddToPlaylist(label, config.StreamType(playlistType), channels); err != nil {
		return fmt.Errorf("failed to add to playlist: %w", err)
	}

	fmt.Printf("✅ Added '%s' to playlist '%s'\n", channels, label)
	return nil
}

func runPlaylistRemove(cmd *cobra.Command, args []string) error {
	label, channel := args[0], args[1]

	repo, err := openRepository()
	if err != nil {
		return err
	}
	if err := repo.RemoveFromPlaylist(label, config.StreamType(playlistType), channel); err != nil {
		return fmt.Errorf("failed to remove from playlist: %w", err)
	}

	fmt.Printf("✅ Removed '%s' from playlist '%s'\n", channel, label)
	return nil
}

func runPlaylistDelete(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}
	if err := repo.DeletePlaylist(args[0], config.StreamType(playlistType)); err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}

	fmt.Printf("✅ Deleted playlist '%s'\n", args[0])
	return nil
}

func runPlaylistList(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return err
	}

	playlists := repo.Playlists()
	if len(playlists) == 0 {
		fmt.Println("No playlists")
		return nil
	}
	for _, p := range playlists {
		fmt.Printf("%s (%s):\n", p.Label, p.Type)
		if len(p.Entries) == 0 {
			fmt.Println("  (empty)")
		}
		for _, entry := range p.Entries {
			fmt.Printf("  • %s\n", entry)
		}
	}
	return nil
}
