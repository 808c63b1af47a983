package settings

import (
	"reflect"

	"github.com/bryanchriswhite/livejar/internal/config"
	"github.com/bryanchriswhite/livejar/internal/logger"
)

// SetAuthToken stores the token for provider
func (r *Repository) SetAuthToken(provider config.AuthProvider, token config.AuthToken) error {
	if token.Type == "" {
		token.Type = config.AuthTokenTypeBearer
	}
	if token.Scopes == nil {
		token.Scopes = []string{}
	}
	return r.store.Update(func(s *config.Settings) error {
		switch provider {
		case config.AuthProviderTwitch:
			s.Auth.Twitch = &token
			return nil
		default:
			return config.FieldErrors{"provider": "unknown auth provider"}
		}
	})
}

// ClearAuthToken logs out of provider and drops the playlist mirrored from the account
func (r *Repository) ClearAuthToken(provider config.AuthProvider) error {
	err := r.store.Update(func(s *config.Settings) error {
		switch provider {
		case config.AuthProviderTwitch:
			s.Auth.Twitch = nil
		default:
			return config.FieldErrors{"provider": "unknown auth provider"}
		}
		kept := make([]config.ChannelPlaylist, 0, len(s.Playlists))
		for _, p := range s.Playlists {
			if p.Label == config.FollowedPlaylist && string(p.Type) == string(provider) {
				continue
			}
			kept = append(kept, p)
		}
		s.Playlists = kept
		return nil
	})
	if err == nil {
		logger.WithComponent("settings").Info().Str("provider", string(provider)).Msg("Logged out")
	}
	return err
}

// DismissChangelog records the changelog version the user closed
func (r *Repository) DismissChangelog(version string) error {
	return r.store.Update(func(s *config.Settings) error {
		s.AppState.ChangelogDismissed = config.Ptr(version)
		return nil
	})
}

// DismissUpdate records the release the user chose to skip
func (r *Repository) DismissUpdate(version string) error {
	return r.store.Update(func(s *config.Settings) error {
		s.AppState.UpdateDismissed = config.Ptr(version)
		return nil
	})
}

// OnAppStateChange calls fn only when app_state changed
func (r *Repository) OnAppStateChange(fn func(config.AppState)) func() {
	return r.store.OnChange(func(newValue, oldValue config.Settings) {
		if !reflect.DeepEqual(newValue.AppState, oldValue.AppState) {
			fn(newValue.AppState)
		}
	})
}

// MainWindowState returns the persisted main window geometry
func (r *Repository) MainWindowState() config.WindowState {
	return r.store.Get().WindowState
}

// UpdateMainWindowState merges patch into the main window state
func (r *Repository) UpdateMainWindowState(patch config.WindowStatePatch) error {
	return r.store.Update(func(s *config.Settings) error {
		s.WindowState = s.WindowState.Apply(patch)
		return nil
	})
}

// SaveMainWindowBounds persists the normal (unmaximized) bounds of the main window
func (r *Repository) SaveMainWindowBounds(x, y, width, height int) error {
	return r.UpdateMainWindowState(config.WindowStatePatch{
		X:      config.Ptr(x),
		Y:      config.Ptr(y),
		Width:  config.Ptr(width),
		Height: config.Ptr(height),
	})
}
