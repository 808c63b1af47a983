package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/livejar/internal/logger"
)

// MCPServer exposes the command table as MCP tools
type MCPServer struct {
	dispatcher *Dispatcher
	mcp        *mcpserver.MCPServer
	http       *mcpserver.StreamableHTTPServer
	log        *zerolog.Logger
}

// NewMCPServer creates an MCP server with every livejar tool registered
func NewMCPServer(dispatcher *Dispatcher) *MCPServer {
	s := &MCPServer{
		dispatcher: dispatcher,
		mcp:        mcpserver.NewMCPServer("livejar", Version),
		log:        logger.WithComponent("mcp"),
	}
	s.registerTools()
	return s
}

// Serve starts the streamable HTTP transport on port
func (s *MCPServer) Serve(port int) error {
	s.http = mcpserver.NewStreamableHTTPServer(s.mcp)
	s.log.Info().Int("port", port).Msg("Starting MCP server")
	return s.http.Start(fmt.Sprintf(":%d", port))
}

// Shutdown stops the HTTP transport
func (s *MCPServer) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// shapeFunc turns tool arguments into command args
type shapeFunc func(params map[string]any) any

func (s *MCPServer) registerTools() {
	stateFields := []string{"x", "y", "width", "height", "maximized", "always_on_top", "muted", "locked", "ignore_solo"}

	// streams
	s.tool(mcp.NewTool("stream_list",
		mcp.WithDescription("List stream windows with their state"),
	), "stream.list", nil)

	s.tool(mcp.NewTool("stream_add",
		mcp.WithDescription("Add a stream window and open it"),
		mcp.WithString("channel", mcp.Description("Twitch channel name"), mcp.Required()),
		mcp.WithString("label", mcp.Description("Display label")),
		mcp.WithString("quality", mcp.Description("Playback quality (e.g. 'chunked', '720p60')")),
		mcp.WithNumber("volume", mcp.Description("Volume from 0 to 1")),
	), "stream.add", func(p map[string]any) any {
		return pick(p, "channel", "label", "quality", "volume")
	})

	s.tool(mcp.NewTool("stream_update",
		mcp.WithDescription("Update a stream window's descriptor"),
		mcp.WithNumber("id", mcp.Description("Stream window ID"), mcp.Required()),
		mcp.WithString("channel", mcp.Description("Twitch channel name")),
		mcp.WithString("label", mcp.Description("Display label")),
		mcp.WithString("quality", mcp.Description("Playback quality")),
		mcp.WithNumber("volume", mcp.Description("Volume from 0 to 1")),
	), "stream.update", func(p map[string]any) any {
		return map[string]any{
			"id":     p["id"],
			"stream": pick(p, "channel", "label", "quality", "volume"),
		}
	})

	s.tool(mcp.NewTool("stream_delete",
		mcp.WithDescription("Close and remove a stream window"),
		mcp.WithNumber("id", mcp.Description("Stream window ID"), mcp.Required()),
	), "stream.delete", idOnly)

	s.tool(mcp.NewTool("stream_switch",
		mcp.WithDescription("Exchange the content of two open stream windows"),
		mcp.WithNumber("id", mcp.Description("First stream window ID"), mcp.Required()),
		mcp.WithNumber("target_id", mcp.Description("Second stream window ID"), mcp.Required()),
	), "stream.switch", func(p map[string]any) any {
		return pick(p, "id", "target_id")
	})

	// windows
	s.tool(mcp.NewTool("window_open",
		mcp.WithDescription("Open or focus a stream window"),
		mcp.WithNumber("id", mcp.Description("Stream window ID"), mcp.Required()),
	), "window.open", idOnly)

	s.tool(mcp.NewTool("window_close",
		mcp.WithDescription("Close a stream window"),
		mcp.WithNumber("id", mcp.Description("Stream window ID"), mcp.Required()),
	), "window.close", idOnly)

	s.tool(mcp.NewTool("window_solo",
		mcp.WithDescription("Unmute one stream window and mute every other open window"),
		mcp.WithNumber("id", mcp.Description("Stream window ID"), mcp.Required()),
	), "window.solo", idOnly)

	for _, op := range []string{"minimize", "maximize", "unmaximize"} {
		s.tool(mcp.NewTool("window_"+op,
			mcp.WithDescription(fmt.Sprintf("%s a stream window", strings.ToUpper(op[:1])+op[1:])),
			mcp.WithNumber("id", mcp.Description("Stream window ID"), mcp.Required()),
		), "window."+op, idOnly)
	}

	s.tool(mcp.NewTool("window_set_state",
		mcp.WithDescription("Change a window's state. Omit id for the main window."),
		mcp.WithNumber("id", mcp.Description("Stream window ID")),
		mcp.WithNumber("x", mcp.Description("Left edge in pixels")),
		mcp.WithNumber("y", mcp.Description("Top edge in pixels")),
		mcp.WithNumber("width", mcp.Description("Width in pixels")),
		mcp.WithNumber("height", mcp.Description("Height in pixels")),
		mcp.WithBoolean("maximized", mcp.Description("Maximize the window")),
		mcp.WithBoolean("always_on_top", mcp.Description("Keep the window above others")),
		mcp.WithBoolean("muted", mcp.Description("Mute audio")),
		mcp.WithBoolean("locked", mcp.Description("Lock position and size")),
		mcp.WithBoolean("ignore_solo", mcp.Description("Keep audio when another window is soloed")),
	), "window.setState", func(p map[string]any) any {
		return map[string]any{
			"id":    p["id"],
			"state": pick(p, stateFields...),
		}
	})

	// playlists
	s.tool(mcp.NewTool("playlist_list",
		mcp.WithDescription("List channel playlists"),
	), "playlist.list", nil)

	s.tool(mcp.NewTool("playlist_add",
		mcp.WithDescription("Add a channel to a playlist, creating it when missing"),
		mcp.WithString("label", mcp.Description("Playlist label"), mcp.Required()),
		mcp.WithString("entry", mcp.Description("Channel name"), mcp.Required()),
		mcp.WithString("type", mcp.Description("Stream type (default: twitch)")),
	), "playlist.add", playlistShape)

	s.tool(mcp.NewTool("playlist_remove",
		mcp.WithDescription("Remove a channel from a playlist"),
		mcp.WithString("label", mcp.Description("Playlist label"), mcp.Required()),
		mcp.WithString("entry", mcp.Description("Channel name"), mcp.Required()),
		mcp.WithString("type", mcp.Description("Stream type (default: twitch)")),
	), "playlist.remove", playlistShape)

	// settings
	s.tool(mcp.NewTool("settings_get",
		mcp.WithDescription("Return the current settings"),
	), "settings.getSettings", nil)

	s.tool(mcp.NewTool("app_quit",
		mcp.WithDescription("Close every window and quit. Open windows reopen on the next start."),
	), "app.quit", nil)
}

func (s *MCPServer) tool(t mcp.Tool, command string, shape shapeFunc) {
	s.mcp.AddTool(t, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args any
		if shape != nil {
			args = shape(request.GetArguments())
		}
		return s.call(ctx, command, args), nil
	})
}

func (s *MCPServer) call(ctx context.Context, command string, args any) *mcp.CallToolResult {
	raw, err := json.Marshal(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	result, err := s.dispatcher.Dispatch(ctx, Caller{}, command, raw)
	if err != nil {
		if fields, ok := fieldErrors(err); ok {
			data, _ := json.Marshal(map[string]any{"error": err.Error(), "errors": fields})
			return mcp.NewToolResultError(string(data))
		}
		return mcp.NewToolResultError(err.Error())
	}
	if result == nil {
		return mcp.NewToolResultText(`{"status":"success"}`)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(data))
}

// pick copies the named keys that are present
func pick(params map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := params[k]; ok {
			out[k] = v
		}
	}
	return out
}

func idOnly(p map[string]any) any {
	return pick(p, "id")
}

func playlistShape(p map[string]any) any {
	args := pick(p, "label", "entry", "type")
	if _, ok := args["type"]; !ok {
		args["type"] = "twitch"
	}
	return args
}
