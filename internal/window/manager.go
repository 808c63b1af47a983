package window

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/livejar/internal/config"
	"github.com/bryanchriswhite/livejar/internal/events"
	"github.com/bryanchriswhite/livejar/internal/logger"
	"github.com/bryanchriswhite/livejar/internal/settings"
)

const mainTitle = "livejar"

// Manager keeps live OS windows and their persisted runtime state in sync.
// Every method except SetQuitting must run on the control loop.
type Manager struct {
	repo     *settings.Repository
	registry *Registry
	host     Host
	bus      *events.Bus
	dispatch func(func())
	quitting atomic.Bool

	main       Handle
	mainClosed chan struct{}
	closeOnce  sync.Once

	unsubscribe func()
	log         *zerolog.Logger
}

// NewManager wires a manager. dispatch moves OS events onto the control loop;
// pass loop.Post.
func NewManager(repo *settings.Repository, registry *Registry, host Host, bus *events.Bus, dispatch func(func())) *Manager {
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	return &Manager{
		repo:       repo,
		registry:   registry,
		host:       host,
		bus:        bus,
		dispatch:   dispatch,
		mainClosed: make(chan struct{}),
		log:        logger.WithComponent("window"),
	}
}

// Start subscribes to settings changes so state deltas reach attached windows
func (m *Manager) Start() {
	if m.unsubscribe != nil {
		return
	}
	m.unsubscribe = m.repo.OnChange(m.onSettingsChange)
}

// Stop drops the settings subscription
func (m *Manager) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Registry returns the live window registry
func (m *Manager) Registry() *Registry {
	return m.registry
}

// SetQuitting marks the application as shutting down. Safe from any goroutine.
func (m *Manager) SetQuitting() {
	if !m.quitting.Swap(true) {
		m.log.Info().Msg("Application quitting, closed windows stay enabled")
	}
}

// Quitting reports whether shutdown has begun
func (m *Manager) Quitting() bool {
	return m.quitting.Load()
}

// OpenWindow creates the OS window for id, or restores and focuses it if it
// already exists. Unknown ids are ignored.
func (m *Manager) OpenWindow(id int) {
	if h, ok := m.registry.Get(id); ok {
		if h.IsMinimized() {
			m.warn(h.Restore(), id, "restore")
		}
		m.warn(h.Focus(), id, "focus")
		return
	}

	rec, ok := m.repo.Window(id)
	if !ok {
		m.log.Debug().Int("window_id", id).Msg("Open ignored, no such window")
		return
	}
	state := m.streamState(rec)
	bounds := FitBounds(state.WindowState, m.host.Displays(), config.DefaultWindowWidth, config.DefaultWindowHeight)

	var h Handle
	h, err := m.host.CreateWindow(Options{
		ID:        config.Ptr(id),
		Title:     rec.Label,
		Bounds:    bounds,
		MinWidth:  config.MinWindowWidth,
		MinHeight: config.MinWindowHeight,
	}, func(ev Event) {
		m.dispatch(func() { m.handleStreamEvent(id, h, ev) })
	})
	if err != nil {
		m.log.Error().Err(err).Int("window_id", id).Msg("Failed to create window")
		return
	}
	m.registry.Register(id, h)

	if err := m.repo.UpdateWindowState(id, config.StreamStatePatch{Enabled: config.Ptr(true)}); err != nil {
		m.log.Warn().Err(err).Int("window_id", id).Msg("Failed to persist enabled window")
	}
	m.log.Info().Int("window_id", id).Str("label", rec.Label).Msg("Window opening")
}

// CloseWindow closes the OS window for id and unregisters it right away.
// A missing window is a no-op.
func (m *Manager) CloseWindow(id int) {
	h, ok := m.registry.Get(id)
	if !ok {
		return
	}
	m.registry.Unregister(id)
	m.warn(h.Close(), id, "close")
	if !m.Quitting() {
		if err := m.repo.UpdateWindowState(id, config.StreamStatePatch{Enabled: config.Ptr(false)}); err != nil {
			m.log.Warn().Err(err).Int("window_id", id).Msg("Failed to persist closed window")
		}
	}
	m.bus.Publish(events.WindowClosedEvent{WindowID: id})
}

// CloseAll closes every open window without touching their enabled flags
func (m *Manager) CloseAll() {
	m.SetQuitting()
	for _, id := range m.registry.OpenIDs() {
		m.CloseWindow(id)
	}
	m.CloseMain()
}

// handleStreamEvent persists what the OS reported about a stream window.
// Events from a handle that is no longer registered are ignored.
func (m *Manager) handleStreamEvent(id int, h Handle, ev Event) {
	cur, ok := m.registry.Get(id)
	if !ok || cur != h {
		m.log.Debug().Int("window_id", id).Stringer("event", ev.Type).Msg("Ignoring event from stale window")
		return
	}

	var patch config.StreamStatePatch
	switch ev.Type {
	case EventReadyToShow:
		m.show(id, h)
		return
	case EventMoved, EventResized:
		patch.X = config.Ptr(ev.Bounds.X)
		patch.Y = config.Ptr(ev.Bounds.Y)
		patch.Width = config.Ptr(ev.Bounds.Width)
		patch.Height = config.Ptr(ev.Bounds.Height)
	case EventMaximize:
		patch.Maximized = config.Ptr(true)
	case EventUnmaximize:
		patch.Maximized = config.Ptr(false)
	case EventAlwaysOnTopChanged:
		patch.AlwaysOnTop = config.Ptr(ev.AlwaysOnTop)
	case EventClosed:
		m.registry.Unregister(id)
		if !m.Quitting() {
			patch.Enabled = config.Ptr(false)
		}
		m.bus.Publish(events.WindowClosedEvent{WindowID: id})
		m.log.Info().Int("window_id", id).Bool("quitting", m.Quitting()).Msg("Window closed")
	default:
		return
	}

	if patch.Empty() {
		return
	}
	if err := m.repo.UpdateWindowState(id, patch); err != nil {
		m.log.Warn().Err(err).Int("window_id", id).Stringer("event", ev.Type).Msg("Failed to persist window state")
	}
}

// show applies the flags that need a mapped window, then marks it open
func (m *Manager) show(id int, h Handle) {
	rec, ok := m.repo.Window(id)
	if !ok {
		return
	}
	state := m.streamState(rec)

	m.warn(h.Show(), id, "show")
	m.warn(h.Focus(), id, "focus")
	if state.Maximized {
		m.warn(h.Maximize(), id, "maximize")
	}
	if state.AlwaysOnTop {
		m.warn(h.SetAlwaysOnTop(true), id, "always on top")
	}
	if state.Locked {
		m.warn(h.SetResizable(false), id, "lock resize")
		m.warn(h.SetMovable(false), id, "lock move")
	}
	if state.Muted {
		m.warn(h.SetAudioMuted(true), id, "mute")
	}

	m.registry.MarkOpen(id)
	m.bus.Publish(events.WindowOpenedEvent{WindowID: id})
}

// SetState applies the live effect on the OS window first, then persists.
// A nil id addresses the main window.
func (m *Manager) SetState(id *int, patch config.StreamStatePatch) {
	if id == nil {
		m.setMainState(patch.WindowStatePatch)
		return
	}

	if h, ok := m.registry.Get(*id); ok {
		if rec, ok := m.repo.Window(*id); ok {
			m.applyGeometry(h, *id, m.streamState(rec).WindowState, patch.WindowStatePatch)
		}
		m.applyLive(*id, h, patch)
	}
	if err := m.repo.UpdateWindowState(*id, patch); err != nil {
		m.log.Warn().Err(err).Int("window_id", *id).Msg("Failed to persist window state")
	}
}

func (m *Manager) applyLive(id int, h Handle, patch config.StreamStatePatch) {
	if patch.AlwaysOnTop != nil {
		m.warn(h.SetAlwaysOnTop(*patch.AlwaysOnTop), id, "always on top")
	}
	if patch.Locked != nil {
		m.warn(h.SetMovable(!*patch.Locked), id, "lock move")
		m.warn(h.SetResizable(!*patch.Locked), id, "lock resize")
	}
	if patch.Muted != nil {
		m.warn(h.SetAudioMuted(*patch.Muted), id, "mute")
	}
}

// applyGeometry moves, resizes and maximizes h for the fields patch sets.
// Missing geometry fields keep their value from cur.
func (m *Manager) applyGeometry(h Handle, id int, cur config.WindowState, patch config.WindowStatePatch) {
	if patch.X != nil || patch.Y != nil || patch.Width != nil || patch.Height != nil {
		m.warn(h.SetBounds(stateBounds(cur.Apply(patch))), id, "bounds")
	}
	if patch.Maximized != nil {
		if *patch.Maximized {
			m.warn(h.Maximize(), id, "maximize")
		} else {
			m.warn(h.Unmaximize(), id, "unmaximize")
		}
	}
}

func stateBounds(st config.WindowState) Bounds {
	b := Bounds{Width: st.Width, Height: st.Height}
	if st.X != nil && st.Y != nil {
		b.X, b.Y = config.Ptr(*st.X), config.Ptr(*st.Y)
	}
	return b
}

// ApplyState re-applies a complete runtime state to an open window
func (m *Manager) ApplyState(id int, st config.StreamWindowState) {
	h, ok := m.registry.Get(id)
	if !ok {
		return
	}
	m.warn(h.SetBounds(stateBounds(st.WindowState)), id, "bounds")
	if st.Maximized {
		m.warn(h.Maximize(), id, "maximize")
	} else {
		m.warn(h.Unmaximize(), id, "unmaximize")
	}
	m.warn(h.SetAlwaysOnTop(st.AlwaysOnTop), id, "always on top")
	m.warn(h.SetMovable(!st.Locked), id, "lock move")
	m.warn(h.SetResizable(!st.Locked), id, "lock resize")
	m.warn(h.SetAudioMuted(st.Muted), id, "mute")
}

// SetTitle retitles the open window id
func (m *Manager) SetTitle(id int, title string) {
	if h, ok := m.registry.Get(id); ok {
		m.warn(h.SetTitle(title), id, "title")
	}
}

// Minimize iconifies window id, or the main window when id is nil
func (m *Manager) Minimize(id *int) {
	if h, wid, ok := m.handle(id); ok {
		m.warn(h.Minimize(), wid, "minimize")
	}
}

// Maximize maximizes window id, or the main window when id is nil. The
// resulting OS event persists the flag.
func (m *Manager) Maximize(id *int) {
	if h, wid, ok := m.handle(id); ok {
		m.warn(h.Maximize(), wid, "maximize")
	}
}

// Unmaximize restores window id, or the main window when id is nil
func (m *Manager) Unmaximize(id *int) {
	if h, wid, ok := m.handle(id); ok {
		m.warn(h.Unmaximize(), wid, "unmaximize")
	}
}

// handle resolves id to a live window. The main window logs as -1.
func (m *Manager) handle(id *int) (Handle, int, bool) {
	if id == nil {
		return m.main, -1, m.main != nil
	}
	h, ok := m.registry.Get(*id)
	return h, *id, ok
}

// StreamState returns the persisted runtime state of window id, or the
// default state when it never had one. Unknown ids report false.
func (m *Manager) StreamState(id int) (config.StreamWindowState, bool) {
	rec, ok := m.repo.Window(id)
	if !ok {
		return config.StreamWindowState{}, false
	}
	return m.streamState(rec), true
}

// MainState returns the persisted main window state
func (m *Manager) MainState() config.WindowState {
	return m.repo.MainWindowState()
}

// PushState publishes the current state of id (nil for main) to its subscribers
func (m *Manager) PushState(id *int) {
	if id == nil {
		st := m.MainState()
		m.bus.Publish(events.WindowStateChangedEvent{Main: &st})
		return
	}
	st, ok := m.StreamState(*id)
	if !ok {
		return
	}
	wid := *id
	m.bus.Publish(events.WindowStateChangedEvent{WindowID: &wid, Stream: &st})
}

func (m *Manager) streamState(rec config.StreamWindow) config.StreamWindowState {
	if rec.State == nil {
		return config.DefaultStreamState()
	}
	return rec.State.Clone()
}

// onSettingsChange fans a store write out as pushes: full settings to everyone,
// then scoped diffs for the main window and each stream window
func (m *Manager) onSettingsChange(newValue, oldValue config.Settings) {
	m.bus.Publish(events.SettingsChangedEvent{Settings: newValue})
	m.onMainStateChange(newValue, oldValue)
	m.onChildStateChange(newValue, oldValue)
}

func (m *Manager) onMainStateChange(newValue, oldValue config.Settings) {
	n, o := newValue.WindowState, oldValue.WindowState
	if n.Maximized == o.Maximized && n.AlwaysOnTop == o.AlwaysOnTop {
		return
	}
	st := n.Clone()
	m.bus.Publish(events.WindowStateChangedEvent{Main: &st})
}

func (m *Manager) onChildStateChange(newValue, oldValue config.Settings) {
	for _, w := range newValue.Windows {
		prev, existed := oldValue.Window(w.ID)
		if existed && reflect.DeepEqual(prev.State, w.State) {
			continue
		}
		st := m.streamState(w)
		id := w.ID
		m.bus.Publish(events.WindowStateChangedEvent{WindowID: &id, Stream: &st})
	}
}

func (m *Manager) warn(err error, id int, op string) {
	if err != nil {
		m.log.Warn().Err(err).Int("window_id", id).Str("op", op).Msg("Window operation failed")
	}
}
