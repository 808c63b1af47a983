package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/livejar/internal/config"
	"github.com/bryanchriswhite/livejar/internal/control"
	"github.com/bryanchriswhite/livejar/internal/events"
	"github.com/bryanchriswhite/livejar/internal/settings"
	"github.com/bryanchriswhite/livejar/internal/streams"
	"github.com/bryanchriswhite/livejar/internal/window"
	"github.com/bryanchriswhite/livejar/internal/window/windowtest"
)

type fixture struct {
	repo *settings.Repository
	host *windowtest.Host
	hub  *Hub
	srv  *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loop := control.New(16)
	loop.Start()
	t.Cleanup(loop.Stop)

	s := config.DefaultSettings()
	repo := settings.New(config.OpenMemory(&s))
	host := windowtest.NewHost()
	bus := events.New()
	mgr := window.NewManager(repo, window.NewRegistry(), host, bus, func(fn func()) { loop.Post(fn) })
	mgr.Start()
	t.Cleanup(mgr.Stop)

	d := NewDispatcher(Core{
		Loop:     loop,
		Settings: repo,
		Windows:  mgr,
		Streams:  streams.New(repo, mgr),
	})
	hub := NewHub(loop, d, mgr, bus)
	hub.Start()
	t.Cleanup(hub.Stop)

	srv := httptest.NewServer(NewServer(d, hub).Handler())
	t.Cleanup(srv.Close)
	return &fixture{repo: repo, host: host, hub: hub, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// list results decode to a nil map
	var out any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	obj, _ := out.(map[string]any)
	return resp.StatusCode, obj
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	status, body := f.do(t, "GET", "/api/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, Version, body["version"])
}

func TestAddStreamOpensWindow(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, "POST", "/api/streams", `{"channel":"some_channel"}`)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["id"])
	assert.Equal(t, "some_channel", body["channel"])
	assert.Len(t, f.host.Handles(), 1)

	resp, err := http.Get(f.srv.URL + "/api/streams")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list []config.StreamWindow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.True(t, list[0].State.Enabled)
}

func TestAddStreamValidationErrors(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, "POST", "/api/streams", `{"channel":"no spaces allowed"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	fields, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "channel")
	assert.Empty(t, f.repo.Windows())
}

func TestAddIframeStream(t *testing.T) {
	f := newFixture(t)
	status, _ := f.do(t, "POST", "/api/streams", `{"type":"iframe","url":"https://example.com"}`)
	assert.Equal(t, http.StatusNotImplemented, status)
}

func TestMalformedBody(t *testing.T) {
	f := newFixture(t)
	status, _ := f.do(t, "POST", "/api/streams", `{"channel":`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGetStreamNotFound(t *testing.T) {
	f := newFixture(t)
	status, _ := f.do(t, "GET", "/api/streams/7", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCloseUnknownWindowIsNoop(t *testing.T) {
	f := newFixture(t)
	status, body := f.do(t, "POST", "/api/windows/3/close", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", body["status"])
}

func TestCommandEndpoint(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, "POST", "/api/commands", `{"id":4,"command":"window.close","args":{"id":null}}`)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 4, body["id"])
	assert.NotEmpty(t, body["error"])
	fields, ok := body["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "id")

	_, body = f.do(t, "POST", "/api/commands", `{"id":5,"command":"nope"}`)
	assert.Contains(t, body["error"], "unknown command")
}

func TestPlaylistRoutes(t *testing.T) {
	f := newFixture(t)

	status, _ := f.do(t, "POST", "/api/playlists/twitch/favorites/entries", `{"entry":"some_channel"}`)
	require.Equal(t, http.StatusOK, status)
	p, ok := f.repo.Get().Playlist("favorites", config.StreamTypeTwitch)
	require.True(t, ok)
	assert.Equal(t, []string{"some_channel"}, p.Entries)

	status, _ = f.do(t, "DELETE", "/api/playlists/twitch/favorites/entries/some_channel", "")
	require.Equal(t, http.StatusOK, status)
	p, _ = f.repo.Get().Playlist("favorites", config.StreamTypeTwitch)
	assert.Empty(t, p.Entries)
}

func TestSettingRoutes(t *testing.T) {
	f := newFixture(t)

	before := f.repo.Get().General.ReopenWindows
	status, _ := f.do(t, "PATCH", "/api/settings/general.reopen_windows", `{"value":`+boolJSON(!before)+`}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, !before, f.repo.Get().General.ReopenWindows)

	status, _ = f.do(t, "DELETE", "/api/settings/general.reopen_windows", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, before, f.repo.Get().General.ReopenWindows)
}

func boolJSON(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req, err := http.NewRequest("OPTIONS", f.srv.URL+"/api/streams", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func wsURL(f *fixture, query string) string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/ws" + query
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebsocketAttachReceivesSettingsThenState(t *testing.T) {
	f := newFixture(t)
	status, _ := f.do(t, "POST", "/api/streams", `{"channel":"some_channel"}`)
	require.Equal(t, http.StatusOK, status)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(f, "?window=0"), nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readMessage(t, conn)
	assert.Equal(t, ChannelSettings, first["channel"])
	second := readMessage(t, conn)
	assert.Equal(t, ChannelWindowState, second["channel"])
	data, ok := second["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["enabled"])

	assert.Eventually(t, func() bool { return f.hub.Len() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWebsocketCloseOwnWindow(t *testing.T) {
	f := newFixture(t)
	status, _ := f.do(t, "POST", "/api/streams", `{"channel":"some_channel"}`)
	require.Equal(t, http.StatusOK, status)
	h := f.host.Last()
	require.NotNil(t, h)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(f, "?window=0"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Frame{ID: 1, Command: "window.close", Args: json.RawMessage(`{"id":null}`)}))

	// pushes may interleave with the reply
	for {
		msg := readMessage(t, conn)
		if _, push := msg["channel"]; push {
			continue
		}
		assert.EqualValues(t, 1, msg["id"])
		assert.Empty(t, msg["error"])
		break
	}
	assert.True(t, h.Closed())
}

func TestWebsocketRejectsBadWindow(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/api/ws?window=abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDispatchUnknownCommand(t *testing.T) {
	f := newFixture(t)
	d := f.hub.dispatcher
	_, err := d.Dispatch(t.Context(), Caller{}, "window.explode", nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = d.Dispatch(t.Context(), Caller{}, "window.open", json.RawMessage(`{"id":"zero"}`))
	assert.ErrorIs(t, err, ErrBadArgs)
}

func TestCommandsSorted(t *testing.T) {
	f := newFixture(t)
	names := f.hub.dispatcher.Commands()
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "stream.switch")
}

func TestSetMainState(t *testing.T) {
	f := newFixture(t)
	status, _ := f.do(t, "PATCH", "/api/windows/main/state", `{"always_on_top":true}`)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, f.repo.MainWindowState().AlwaysOnTop)

	status, body := f.do(t, "GET", "/api/windows/main/state", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["always_on_top"])
}

func TestWindowMaximizeMinimizeCommands(t *testing.T) {
	f := newFixture(t)
	status, _ := f.do(t, "POST", "/api/streams", `{"channel":"some_channel"}`)
	require.Equal(t, http.StatusOK, status)
	h := f.host.Last()
	d := f.hub.dispatcher

	status, _ = f.do(t, "POST", "/api/windows/0/maximize", "")
	require.Equal(t, http.StatusOK, status)
	assert.True(t, h.Maximized())

	own := Caller{Attached: true, WindowID: config.Ptr(0)}
	_, err := d.Dispatch(t.Context(), own, "window.unmaximize", json.RawMessage(`{"id":null}`))
	require.NoError(t, err)
	assert.False(t, h.Maximized())

	_, err = d.Dispatch(t.Context(), own, "window.minimize", nil)
	require.NoError(t, err)
	assert.True(t, h.IsMinimized())

	_, err = d.Dispatch(t.Context(), Caller{}, "window.maximize", json.RawMessage(`{"id":null}`))
	fields, ok := config.AsFieldErrors(err)
	require.True(t, ok)
	assert.Contains(t, fields, "id")
}

func TestWindowCommandsTargetAttachedMain(t *testing.T) {
	f := newFixture(t)
	var openErr error
	require.NoError(t, f.hub.loop.Do(t.Context(), func() {
		openErr = f.hub.windows.OpenMainWindow()
	}))
	require.NoError(t, openErr)
	mainWin := f.host.Last()
	require.NotNil(t, mainWin)

	d := f.hub.dispatcher
	_, err := d.Dispatch(t.Context(), Caller{Attached: true}, "window.maximize", json.RawMessage(`{"id":null}`))
	require.NoError(t, err)
	assert.True(t, mainWin.Maximized())

	_, err = d.Dispatch(t.Context(), Caller{Attached: true}, "window.minimize", nil)
	require.NoError(t, err)
	assert.True(t, mainWin.IsMinimized())
}

func TestAppQuitClosesWindowsAndKeepsThemEnabled(t *testing.T) {
	f := newFixture(t)
	status, _ := f.do(t, "POST", "/api/streams", `{"channel":"some_channel"}`)
	require.Equal(t, http.StatusOK, status)
	h := f.host.Last()

	status, body := f.do(t, "POST", "/api/app/quit", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", body["status"])

	assert.True(t, h.Closed())
	assert.True(t, f.hub.windows.Quitting())
	rec, ok := f.repo.Window(0)
	require.True(t, ok)
	assert.True(t, rec.State.Enabled)
}

// readChannel skips messages until a push on channel arrives
func readChannel(t *testing.T, conn *websocket.Conn, channel string) map[string]any {
	t.Helper()
	for {
		msg := readMessage(t, conn)
		if msg["channel"] == channel {
			return msg
		}
	}
}

func TestMainReceivesLifecyclePushes(t *testing.T) {
	f := newFixture(t)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(f, ""), nil)
	require.NoError(t, err)
	defer conn.Close()
	readChannel(t, conn, ChannelWindowState)

	status, _ := f.do(t, "POST", "/api/streams", `{"channel":"some_channel"}`)
	require.Equal(t, http.StatusOK, status)
	f.host.Last().Emit(window.Event{Type: window.EventReadyToShow})

	msg := readChannel(t, conn, ChannelWindowLifecycle)
	assert.Equal(t, map[string]any{"id": float64(0), "open": true}, msg["data"])

	status, _ = f.do(t, "POST", "/api/windows/0/close", "")
	require.Equal(t, http.StatusOK, status)
	msg = readChannel(t, conn, ChannelWindowLifecycle)
	assert.Equal(t, map[string]any{"id": float64(0), "open": false}, msg["data"])
}

func TestMainReceivesAppStatePush(t *testing.T) {
	f := newFixture(t)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(f, "?window=main"), nil)
	require.NoError(t, err)
	defer conn.Close()
	readChannel(t, conn, ChannelWindowState)

	status, _ := f.do(t, "POST", "/api/commands", `{"id":1,"command":"app.dismissChangelog","args":{"version":"9.9.9"}}`)
	require.Equal(t, http.StatusOK, status)

	msg := readChannel(t, conn, ChannelAppState)
	data, ok := msg["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "9.9.9", data["changelog_dismissed"])
}
