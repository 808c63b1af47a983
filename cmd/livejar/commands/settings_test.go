package commands

import (
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/livejar/internal/config"
)

func TestPlainTreeDropsNulls(t *testing.T) {
	s := config.DefaultSettings()
	tree, err := plainTree(s)
	require.NoError(t, err)

	root, ok := tree.(map[string]any)
	require.True(t, ok)
	appState, ok := root["app_state"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, appState, "update_dismissed")
	assert.Contains(t, appState, "changelog_dismissed")

	// TOML has no null, so the tree must encode cleanly
	_, err = toml.Marshal(tree)
	assert.NoError(t, err)
}

func TestDropNullsInLists(t *testing.T) {
	tree := dropNulls([]any{map[string]any{"a": nil, "b": 1}})
	assert.Equal(t, []any{map[string]any{"b": 1}}, tree)
}
