package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/livejar/internal/config"
)

func TestAuthTokenLifecycle(t *testing.T) {
	r := newRepo(t)
	require.NoError(t, r.UpdatePlaylist(config.FollowedPlaylist, config.StreamTypeTwitch, []string{"a"}))

	require.NoError(t, r.SetAuthToken(config.AuthProviderTwitch, config.AuthToken{AccessToken: "tok"}))
	tok := r.Get().Auth.Twitch
	require.NotNil(t, tok)
	assert.Equal(t, config.AuthTokenTypeBearer, tok.Type)
	assert.Equal(t, []string{}, tok.Scopes)

	require.NoError(t, r.ClearAuthToken(config.AuthProviderTwitch))
	assert.Nil(t, r.Get().Auth.Twitch)
	_, ok := r.Get().Playlist(config.FollowedPlaylist, config.StreamTypeTwitch)
	assert.False(t, ok)
	_, ok = r.Get().Playlist(config.RecentPlaylist, config.StreamTypeTwitch)
	assert.True(t, ok)
}

func TestSetAuthTokenUnknownProvider(t *testing.T) {
	r := newRepo(t)
	_, ok := config.AsFieldErrors(r.SetAuthToken("youtube", config.AuthToken{AccessToken: "x"}))
	assert.True(t, ok)
}

func TestAppStateChanges(t *testing.T) {
	r := newRepo(t)
	var got []config.AppState
	r.OnAppStateChange(func(s config.AppState) { got = append(got, s) })

	require.NoError(t, r.AddRecent(config.StreamTypeTwitch, "somebody"))
	assert.Empty(t, got, "unrelated writes do not notify")

	require.NoError(t, r.DismissChangelog("2.1.0"))
	require.NoError(t, r.DismissUpdate("2.2.0"))
	require.Len(t, got, 2)
	assert.Equal(t, "2.1.0", *got[1].ChangelogDismissed)
	assert.Equal(t, "2.2.0", *got[1].UpdateDismissed)
}

func TestMainWindowState(t *testing.T) {
	r := newRepo(t)

	require.NoError(t, r.UpdateMainWindowState(config.WindowStatePatch{AlwaysOnTop: config.Ptr(true)}))
	require.NoError(t, r.SaveMainWindowBounds(10, 20, 1024, 768))

	st := r.MainWindowState()
	assert.True(t, st.AlwaysOnTop)
	assert.Equal(t, 10, *st.X)
	assert.Equal(t, 20, *st.Y)
	assert.Equal(t, 1024, st.Width)
	assert.Equal(t, 768, st.Height)
}
