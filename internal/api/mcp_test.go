package api

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, r.Content)
	text, ok := r.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestMCPStreamAdd(t *testing.T) {
	f := newFixture(t)
	s := NewMCPServer(f.hub.dispatcher)

	args := pick(map[string]any{"channel": "some_channel", "ignored": true}, "channel", "label")
	r := s.call(t.Context(), "stream.add", args)
	assert.False(t, r.IsError)
	assert.Contains(t, resultText(t, r), `"channel": "some_channel"`)
	assert.Len(t, f.repo.Windows(), 1)
}

func TestMCPFieldErrors(t *testing.T) {
	f := newFixture(t)
	s := NewMCPServer(f.hub.dispatcher)

	r := s.call(t.Context(), "stream.add", map[string]any{"channel": "no spaces allowed"})
	assert.True(t, r.IsError)
	assert.Contains(t, resultText(t, r), `"channel"`)
}

func TestMCPSuccessWithoutResult(t *testing.T) {
	f := newFixture(t)
	s := NewMCPServer(f.hub.dispatcher)

	// ids arrive as JSON numbers
	r := s.call(t.Context(), "window.solo", idOnly(map[string]any{"id": float64(2)}))
	assert.False(t, r.IsError)
	assert.JSONEq(t, `{"status":"success"}`, resultText(t, r))
}

func TestPlaylistShapeDefaultsType(t *testing.T) {
	args := playlistShape(map[string]any{"label": "favorites", "entry": "a"}).(map[string]any)
	assert.Equal(t, "twitch", args["type"])
}
