package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

const (
	// DefaultWindowWidth and DefaultWindowHeight size a stream window that has
	// no saved geometry or whose saved geometry no longer fits a display
	DefaultWindowWidth  = 640
	DefaultWindowHeight = 480

	MinWindowWidth  = 320
	MinWindowHeight = 240

	DefaultMainWidth  = 800
	DefaultMainHeight = 600

	DefaultChannel = "la_jarre_a_son"
	DefaultQuality = "auto"

	// RecentPlaylist collects every channel ever opened, per stream type
	RecentPlaylist = "recent"
	// FollowedPlaylist mirrors the channels followed on the authenticated account
	FollowedPlaylist = "followed"

	AuthTokenTypeBearer = "bearer"

	defaultChangelogDismissed = "100.0.0"
)

// TwitchEmbedURL returns the player URL for a twitch channel
func TwitchEmbedURL(channel string) string {
	return fmt.Sprintf("https://player.twitch.tv/?channel=%s&parent=localhost", url.QueryEscape(channel))
}

// DefaultStreamState is the runtime state of a window opened for the first time
func DefaultStreamState() StreamWindowState {
	return StreamWindowState{
		WindowState: WindowState{
			Width:  DefaultWindowWidth,
			Height: DefaultWindowHeight,
		},
		Enabled: true,
	}
}

// DefaultMainState is the main window geometry before it has ever been moved
func DefaultMainState() WindowState {
	return WindowState{
		Width:  DefaultMainWidth,
		Height: DefaultMainHeight,
	}
}

// DefaultTwitchWindow is the record new twitch windows are merged onto
func DefaultTwitchWindow() StreamWindow {
	return StreamWindow{
		ID:      0,
		Label:   "default",
		Type:    StreamTypeTwitch,
		Channel: DefaultChannel,
		URL:     TwitchEmbedURL(DefaultChannel),
		Quality: DefaultQuality,
		Volume:  1.0,
	}
}

// DefaultSettings returns a fresh copy of the baked-in defaults
func DefaultSettings() Settings {
	return Settings{
		Auth: AuthSettings{},
		General: GeneralSettings{
			ReopenWindows:          true,
			TopbarStyle:            TopbarHidden,
			VolumeScrollSpeed:      0.1,
			LatencyHighThreshold:   7.0,
			MutePrerollTimeout:     15.0,
			AutoRefreshHighLatency: false,
			DoubleClickAction:      DoubleClickSolo,
		},
		Windows: []StreamWindow{},
		Playlists: []ChannelPlaylist{
			{Label: RecentPlaylist, Type: StreamTypeTwitch, Entries: []string{}},
		},
		WindowState: DefaultMainState(),
		AppState: AppState{
			ChangelogDismissed: Ptr(defaultChangelogDismissed),
		},
	}
}

// DefaultPath returns $HOME/.config/livejar/settings.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "livejar", "settings.yaml"), nil
}
