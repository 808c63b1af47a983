package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSettingsAcceptsDefaults(t *testing.T) {
	assert.NoError(t, ValidateSettings(DefaultSettings()))
}

func TestValidateSettingsFields(t *testing.T) {
	s := DefaultSettings()
	s.General.TopbarStyle = "neon"
	w := testWindow(0)
	w.Volume = 1.5
	s.Windows = []StreamWindow{w}

	fe, ok := AsFieldErrors(ValidateSettings(s))
	require.True(t, ok)
	assert.Contains(t, fe, "general.topbar_style")
	assert.Contains(t, fe, "windows.0.volume")
}

func TestValidateSettingsPlaylistRules(t *testing.T) {
	s := DefaultSettings()
	s.Playlists = append(s.Playlists,
		ChannelPlaylist{Label: RecentPlaylist, Type: StreamTypeTwitch, Entries: []string{}},
		ChannelPlaylist{Label: "mixed", Type: StreamTypeTwitch, Entries: []string{"Upper"}},
	)

	fe, ok := AsFieldErrors(ValidateSettings(s))
	require.True(t, ok)
	assert.Contains(t, fe, "playlists.1")
	assert.Contains(t, fe, "playlists.2.entries.0")
}

func TestValidateStreamPatch(t *testing.T) {
	assert.NoError(t, ValidateStreamPatch(StreamPatch{
		Channel: Ptr("some_channel"),
		Volume:  Ptr(0.5),
	}))

	cases := []struct {
		name  string
		patch StreamPatch
		field string
	}{
		{"bad channel", StreamPatch{Channel: Ptr("not a channel!")}, "channel"},
		{"volume too loud", StreamPatch{Volume: Ptr(2.0)}, "volume"},
		{"unknown type", StreamPatch{Type: Ptr(StreamType("youtube"))}, "type"},
		{"bad url", StreamPatch{URL: Ptr("ftp://example.com")}, "url"},
		{"bad state", StreamPatch{State: &StreamStatePatch{WindowStatePatch: WindowStatePatch{Width: Ptr(0)}}}, "state.width"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fe, ok := AsFieldErrors(ValidateStreamPatch(tc.patch))
			require.True(t, ok)
			assert.Contains(t, fe, tc.field)
		})
	}
}

func TestValidateStatePatch(t *testing.T) {
	assert.NoError(t, ValidateStatePatch(StreamStatePatch{Muted: Ptr(true)}))

	fe, ok := AsFieldErrors(ValidateStatePatch(StreamStatePatch{
		WindowStatePatch: WindowStatePatch{Height: Ptr(-4)},
	}))
	require.True(t, ok)
	assert.Contains(t, fe, "height")
}

func TestFieldErrorsMessageIsSorted(t *testing.T) {
	err := FieldErrors{"b": "second", "a": "first"}
	assert.Equal(t, "validation failed: a: first; b: second", err.Error())
}
