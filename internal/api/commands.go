package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/livejar/internal/config"
	"github.com/bryanchriswhite/livejar/internal/control"
	"github.com/bryanchriswhite/livejar/internal/logger"
	"github.com/bryanchriswhite/livejar/internal/metrics"
	"github.com/bryanchriswhite/livejar/internal/settings"
	"github.com/bryanchriswhite/livejar/internal/streams"
	"github.com/bryanchriswhite/livejar/internal/window"
)

var (
	// ErrUnknownCommand is returned for commands missing from the table
	ErrUnknownCommand = errors.New("unknown command")
	// ErrBadArgs wraps argument decoding failures
	ErrBadArgs = errors.New("bad arguments")
)

// Caller identifies where a command came from. Commands sent over a window's
// websocket are attached to that window; WindowID is nil for the main window.
type Caller struct {
	Attached bool
	WindowID *int
}

// Core is everything commands operate on
type Core struct {
	Loop     *control.Loop
	Settings *settings.Repository
	Windows  *window.Manager
	Streams  *streams.Service
}

type handlerFunc func(c Caller, args json.RawMessage) (any, error)

// Dispatcher routes named commands onto the control loop. REST, websocket and
// MCP all go through it.
type Dispatcher struct {
	core     Core
	handlers map[string]handlerFunc
	log      *zerolog.Logger
}

// NewDispatcher builds the command table
func NewDispatcher(core Core) *Dispatcher {
	d := &Dispatcher{
		core: core,
		log:  logger.WithComponent("api"),
	}
	d.handlers = map[string]handlerFunc{
		"window.get":        d.windowGet,
		"window.open":       d.windowOpen,
		"window.close":      d.windowClose,
		"window.minimize":   d.windowMinimize,
		"window.maximize":   d.windowMaximize,
		"window.unmaximize": d.windowUnmaximize,
		"window.solo":       d.windowSolo,
		"window.setState":   d.windowSetState,
		"window.getState":   d.windowGetState,

		"stream.list":   d.streamList,
		"stream.add":    d.streamAdd,
		"stream.update": d.streamUpdate,
		"stream.delete": d.streamDelete,
		"stream.switch": d.streamSwitch,

		"playlist.list":   d.playlistList,
		"playlist.update": d.playlistUpdate,
		"playlist.add":    d.playlistAdd,
		"playlist.remove": d.playlistRemove,
		"playlist.delete": d.playlistDelete,

		"settings.getSettings":    d.settingsGet,
		"settings.updateSetting":  d.settingsUpdateSetting,
		"settings.updateSettings": d.settingsUpdateSettings,
		"settings.reset":          d.settingsReset,
		"settings.clear":          d.settingsClear,

		"app.quit":             d.appQuit,
		"app.dismissChangelog": d.appDismissChangelog,
		"app.dismissUpdate":    d.appDismissUpdate,
		"auth.setToken":        d.authSetToken,
		"auth.logout":          d.authLogout,
	}
	return d
}

// Commands lists the command names in sorted order
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs command on the control loop and waits for its result
func (d *Dispatcher) Dispatch(ctx context.Context, c Caller, command string, args json.RawMessage) (any, error) {
	h, ok := d.handlers[command]
	if !ok {
		metrics.ObserveCommand("unknown", metrics.ResultInvalid)
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}

	result, err := control.Call(ctx, d.core.Loop, func() (any, error) {
		return h(c, args)
	})

	switch {
	case err == nil:
		metrics.ObserveCommand(command, metrics.ResultOK)
	case isInvalid(err):
		metrics.ObserveCommand(command, metrics.ResultInvalid)
		d.log.Debug().Err(err).Str("command", command).Msg("Command rejected")
	default:
		metrics.ObserveCommand(command, metrics.ResultError)
		d.log.Warn().Err(err).Str("command", command).Msg("Command failed")
	}
	return result, err
}

func isInvalid(err error) bool {
	_, fields := config.AsFieldErrors(err)
	return fields || errors.Is(err, ErrBadArgs) || errors.Is(err, ErrUnknownCommand)
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrBadArgs, err)
	}
	return v, nil
}

type idArgs struct {
	ID int `json:"id"`
}

type optionalIDArgs struct {
	ID *int `json:"id"`
}

type setStateArgs struct {
	ID    *int                    `json:"id"`
	State config.StreamStatePatch `json:"state"`
}

type streamUpdateArgs struct {
	ID     int                `json:"id"`
	Stream config.StreamPatch `json:"stream"`
}

type switchArgs struct {
	ID       int `json:"id"`
	TargetID int `json:"target_id"`
}

type playlistArgs struct {
	Label   string            `json:"label"`
	Type    config.StreamType `json:"type"`
	Entry   string            `json:"entry,omitempty"`
	Entries []string          `json:"entries,omitempty"`
}

type settingArgs struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type versionArgs struct {
	Version string `json:"version"`
}

type authArgs struct {
	Provider config.AuthProvider `json:"provider"`
	Token    config.AuthToken    `json:"token"`
}

// WINDOW

func (d *Dispatcher) windowGet(_ Caller, raw json.RawMessage) (any, error) {
	args, err := decode[idArgs](raw)
	if err != nil {
		return nil, err
	}
	if w, ok := d.core.Settings.Window(args.ID); ok {
		return w, nil
	}
	return nil, nil
}

func (d *Dispatcher) windowOpen(_ Caller, raw json.RawMessage) (any, error) {
	args, err := decode[idArgs](raw)
	if err != nil {
		return nil, err
	}
	d.core.Windows.OpenWindow(args.ID)
	return nil, nil
}

// windowClose closes the given window, or with a null id the caller's own
// target resolves the window a command addresses. A null id means the
// caller's own window; the result is nil for the main window.
func target(c Caller, raw json.RawMessage) (*int, error) {
	args, err := decode[optionalIDArgs](raw)
	if err != nil {
		return nil, err
	}
	if args.ID != nil {
		return args.ID, nil
	}
	if !c.Attached {
		return nil, config.FieldErrors{"id": "required outside a window"}
	}
	return c.WindowID, nil
}

func (d *Dispatcher) windowClose(c Caller, raw json.RawMessage) (any, error) {
	id, err := target(c, raw)
	if err != nil {
		return nil, err
	}
	if id == nil {
		d.core.Windows.CloseMain()
		return nil, nil
	}
	d.core.Windows.CloseWindow(*id)
	return nil, nil
}

func (d *Dispatcher) windowMinimize(c Caller, raw json.RawMessage) (any, error) {
	id, err := target(c, raw)
	if err != nil {
		return nil, err
	}
	d.core.Windows.Minimize(id)
	return nil, nil
}

func (d *Dispatcher) windowMaximize(c Caller, raw json.RawMessage) (any, error) {
	id, err := target(c, raw)
	if err != nil {
		return nil, err
	}
	d.core.Windows.Maximize(id)
	return nil, nil
}

func (d *Dispatcher) windowUnmaximize(c Caller, raw json.RawMessage) (any, error) {
	id, err := target(c, raw)
	if err != nil {
		return nil, err
	}
	d.core.Windows.Unmaximize(id)
	return nil, nil
}

func (d *Dispatcher) windowSolo(_ Caller, raw json.RawMessage) (any, error) {
	args, err := decode[idArgs](raw)
	if err != nil {
		return nil, err
	}
	d.core.Windows.Solo(args.ID)
	metrics.ObserveSolo()
	return nil, nil
}

func (d *Dispatcher) windowSetState(_ Caller, raw json.RawMessage) (any, error) {
	args, err := decode[setStateArgs](raw)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateStatePatch(args.State); err != nil {
		return nil, err
	}
	d.core.Windows.SetState(args.ID, args.State)
	return nil, nil
}

// windowGetState returns the state and also pushes it on window:state
func (d *Dispatcher) windowGetState(_ Caller, raw json.RawMessage) (any, error) {
	args, err := decode[optionalIDArgs](raw)
	if err != nil {
		return nil, err
	}
	d.core.Windows.PushState(args.ID)
	if args.ID == nil {
		return d.core.Windows.MainState(), nil
	}
	if st, ok := d.core.Windows.StreamState(*args.ID); ok {
		return st, nil
	}
	return nil, nil
}

// STREAM

func (d *Dispatcher) streamList(Caller, json.RawMessage) (any, error) {
	return d.core.Streams.List(), nil
}

func (d *Dispatcher) streamAdd(_ Caller, raw json.RawMessage) (any, error) {
	patch, err := decode[config.StreamPatch](raw)
	if err != nil {
		return nil, err
	}
	return d.core.Streams.Add(patch)
}

func (d *Dispatcher) streamUpdate(_ Caller, raw json.RawMessage) (any, error) {
	args, err := decode[streamUpdateArgs](raw)
	if err != nil {
		return nil, err
	}
	rec, found, err := d.core.Streams.Update(args.ID, args.Stream)
	if err != nil || !found {
		return nil, err
	}
	return rec, nil
}

func (d *Dispatcher) streamDelete(_ Caller, raw json.RawMessage) (any, error) {
	args, err := decode[idArgs](raw)
	if err != nil {
		return nil, err
	}
	return nil, d.core.Streams.Remove(args.ID)
}

func (d *Dispatcher) streamSwitch(_ Caller, raw json.RawMessage) (any, error) {
	args, err := decode[switchArgs](raw)
	if err != nil {
		return nil, err
	}
	return nil, d.core.Streams.Switch(args.ID, args.TargetID)
}

// PLAYLISTS

func (d *Dispatcher) playlists(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return d.core.Settings.Playlists(), nil
}

func (d *Dispatcher) playlistList(Caller, json.RawMessage) (any, error) {
	return d.playlists(nil)
}

func (d *Dispatcher) playlistUpdate(_ Caller, raw json.RawMessage) (any, error) {
	args, err := decode[playlistArgs](raw)
	if err != nil {
		return nil, err
	}
	return d.playlists(d.core.Settings.UpdatePlaylist(args.Label, args.Type, args.Entries))
}

func (d *Dispatcher) playlistAdd(_ Caller, raw json.RawMessage) (any, error) {
	args, err := decode[playlistArgs](raw)
	if err != nil {
		return nil, err
	}
	return d.playlists(d.core.Settings.AddToPlaylist(args.Label, args.Type, args.Entry))
}

func (d *Dispatcher) playlistRemove(_ Caller, raw json.RawMessage) (any, error) {
	args, err := decode[playlistArgs](raw)
	if err != nil {
		return nil, err
	}
	return d.playlists(d.core.Settings.RemoveFromPlaylist(args.Label, args.Type, args.Entry))
}

func (d *Dispatcher) playlistDelete(_ Caller, raw json.RawMessage) (any, error) {
	args, err := decode[playlistArgs](raw)
	if err != nil {
		return nil, err
	}
	return d.playlists(d.core.Settings.DeletePlaylist(args.Label, args.Type))
}

// SETTINGS

func (d *Dispatcher) current(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return d.core.Settings.Get(), nil
}

func (d *Dispatcher) settingsGet(Caller, json.RawMessage) (any, error) {
	return d.current(nil)
}

func (d *Dispatcher) settingsUpdateSetting(_ Caller, raw json.RawMessage) (any, error) {
	args, err := decode[settingArgs](raw)
	if err != nil {
		return nil, err
	}
	return d.current(d.core.Settings.SetAtPath(args.Key, args.Value))
}

func (d *Dispatcher) settingsUpdateSettings(_ Caller, raw json.RawMessage) (any, error) {
	args, err := decode[struct {
		Settings *config.Settings `json:"settings"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if args.Settings == nil {
		return nil, config.FieldErrors{"settings": "required"}
	}
	return d.current(d.core.Settings.SetAll(*args.Settings))
}

func (d *Dispatcher) settingsReset(_ Caller, raw json.RawMessage) (any, error) {
	args, err := decode[settingArgs](raw)
	if err != nil {
		return nil, err
	}
	return d.current(d.core.Settings.ResetAtPath(args.Key))
}

func (d *Dispatcher) settingsClear(Caller, json.RawMessage) (any, error) {
	return d.current(d.core.Settings.Clear())
}

// APP STATE

// appQuit closes every window with quitting set, so they reopen next start.
// serve exits once the main window is gone.
func (d *Dispatcher) appQuit(_ Caller, _ json.RawMessage) (any, error) {
	d.core.Windows.SetQuitting()
	d.core.Windows.CloseAll()
	return nil, nil
}

func (d *Dispatcher) appDismissChangelog(_ Caller, raw json.RawMessage) (any, error) {
	args, err := decode[versionArgs](raw)
	if err != nil {
		return nil, err
	}
	return nil, d.core.Settings.DismissChangelog(args.Version)
}

func (d *Dispatcher) appDismissUpdate(_ Caller, raw json.RawMessage) (any, error) {
	args, err := decode[versionArgs](raw)
	if err != nil {
		return nil, err
	}
	return nil, d.core.Settings.DismissUpdate(args.Version)
}

func (d *Dispatcher) authSetToken(_ Caller, raw json.RawMessage) (any, error) {
	args, err := decode[authArgs](raw)
	if err != nil {
		return nil, err
	}
	return nil, d.core.Settings.SetAuthToken(args.Provider, args.Token)
}

func (d *Dispatcher) authLogout(_ Caller, raw json.RawMessage) (any, error) {
	args, err := decode[authArgs](raw)
	if err != nil {
		return nil, err
	}
	return nil, d.core.Settings.ClearAuthToken(args.Provider)
}
