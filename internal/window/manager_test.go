package window_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/livejar/internal/config"
	"github.com/bryanchriswhite/livejar/internal/events"
	"github.com/bryanchriswhite/livejar/internal/settings"
	"github.com/bryanchriswhite/livejar/internal/window"
	"github.com/bryanchriswhite/livejar/internal/window/windowtest"
)

type fixture struct {
	m    *window.Manager
	host *windowtest.Host
	repo *settings.Repository
	bus  *events.Bus
}

func newFixture(t *testing.T, windows ...config.StreamWindow) *fixture {
	t.Helper()
	s := config.DefaultSettings()
	s.Windows = windows
	repo := settings.New(config.OpenMemory(&s))
	host := windowtest.NewHost()
	bus := events.New()
	m := window.NewManager(repo, window.NewRegistry(), host, bus, nil)
	m.Start()
	t.Cleanup(m.Stop)
	return &fixture{m: m, host: host, repo: repo, bus: bus}
}

func record(id int, st *config.StreamWindowState) config.StreamWindow {
	w := config.DefaultTwitchWindow()
	w.ID = id
	w.Label = "stream"
	w.State = st
	return w
}

func state(mod func(*config.StreamWindowState)) *config.StreamWindowState {
	st := config.DefaultStreamState()
	if mod != nil {
		mod(&st)
	}
	return &st
}

func (f *fixture) state(t *testing.T, id int) config.StreamWindowState {
	t.Helper()
	w, ok := f.repo.Window(id)
	require.True(t, ok)
	require.NotNil(t, w.State)
	return *w.State
}

// open creates the window and delivers ready-to-show
func (f *fixture) open(t *testing.T, id int) *windowtest.Handle {
	t.Helper()
	f.m.OpenWindow(id)
	h := f.host.Last()
	require.NotNil(t, h)
	h.Emit(window.Event{Type: window.EventReadyToShow})
	return h
}

func TestOpenWindowLifecycle(t *testing.T) {
	f := newFixture(t, record(0, nil))

	f.m.OpenWindow(0)
	h := f.host.Last()
	require.NotNil(t, h)
	assert.Equal(t, window.PhaseOpening, f.m.Registry().Phase(0))
	assert.True(t, f.state(t, 0).Enabled)
	assert.False(t, h.Shown())

	h.Emit(window.Event{Type: window.EventReadyToShow})
	assert.Equal(t, window.PhaseOpen, f.m.Registry().Phase(0))
	assert.True(t, h.Shown())
	assert.True(t, h.Called("focus"))
}

func TestOpenWindowAppliesFlagsWhenShown(t *testing.T) {
	f := newFixture(t, record(0, state(func(s *config.StreamWindowState) {
		s.Maximized = true
		s.AlwaysOnTop = true
		s.Locked = true
		s.Muted = true
	})))

	f.m.OpenWindow(0)
	h := f.host.Last()
	assert.False(t, h.Maximized(), "flags wait for ready-to-show")

	h.Emit(window.Event{Type: window.EventReadyToShow})
	assert.True(t, h.Maximized())
	assert.True(t, h.AlwaysOnTop())
	assert.True(t, h.Locked())
	assert.True(t, h.Muted())
}

func TestOpenWindowUsesSavedBoundsOnlyWhenVisible(t *testing.T) {
	f := newFixture(t,
		record(0, state(func(s *config.StreamWindowState) {
			s.X, s.Y, s.Width, s.Height = config.Ptr(10), config.Ptr(20), 800, 600
		})),
		record(1, state(func(s *config.StreamWindowState) {
			s.X, s.Y, s.Width, s.Height = config.Ptr(5000), config.Ptr(20), 800, 600
		})),
	)

	f.m.OpenWindow(0)
	b := f.host.Last().Opts.Bounds
	require.NotNil(t, b.X)
	assert.Equal(t, 10, *b.X)
	assert.Equal(t, 800, b.Width)

	f.m.OpenWindow(1)
	b = f.host.Last().Opts.Bounds
	assert.Nil(t, b.X)
	assert.Equal(t, config.DefaultWindowWidth, b.Width)
	assert.Equal(t, config.DefaultWindowHeight, b.Height)
}

func TestOpenWindowIsIdempotent(t *testing.T) {
	f := newFixture(t, record(0, nil))
	h := f.open(t, 0)
	require.NoError(t, h.Minimize())

	f.m.OpenWindow(0)
	assert.Len(t, f.host.Handles(), 1)
	assert.True(t, h.Called("restore"))
	assert.False(t, h.IsMinimized())
}

func TestOpenUnknownWindowIsNoop(t *testing.T) {
	f := newFixture(t)
	f.m.OpenWindow(7)
	assert.Empty(t, f.host.Handles())
}

func TestOSEventsPersistImmediately(t *testing.T) {
	f := newFixture(t, record(0, nil))
	h := f.open(t, 0)

	h.Emit(window.Event{Type: window.EventMoved, Bounds: window.Rect{X: 30, Y: 40, Width: 700, Height: 500}})
	st := f.state(t, 0)
	assert.Equal(t, 30, *st.X)
	assert.Equal(t, 40, *st.Y)
	assert.Equal(t, 700, st.Width)

	h.Emit(window.Event{Type: window.EventMaximize})
	assert.True(t, f.state(t, 0).Maximized)
	h.Emit(window.Event{Type: window.EventUnmaximize})
	assert.False(t, f.state(t, 0).Maximized)

	h.Emit(window.Event{Type: window.EventAlwaysOnTopChanged, AlwaysOnTop: true})
	assert.True(t, f.state(t, 0).AlwaysOnTop)
}

func TestCloseEventDisablesWindow(t *testing.T) {
	f := newFixture(t, record(0, nil))
	h := f.open(t, 0)
	h.Emit(window.Event{Type: window.EventMoved, Bounds: window.Rect{X: 1, Y: 2, Width: 640, Height: 480}})

	h.Emit(window.Event{Type: window.EventClosed})

	st := f.state(t, 0)
	assert.False(t, st.Enabled)
	assert.Equal(t, 1, *st.X, "geometry is kept for the next open")
	assert.Empty(t, f.m.Registry().OpenIDs())
}

func TestCloseDuringQuitKeepsEnabled(t *testing.T) {
	f := newFixture(t, record(0, nil))
	h := f.open(t, 0)

	f.m.SetQuitting()
	h.Emit(window.Event{Type: window.EventClosed})

	assert.True(t, f.state(t, 0).Enabled)
	assert.Empty(t, f.m.Registry().OpenIDs())
}

func TestEventsFromStaleHandleAreIgnored(t *testing.T) {
	f := newFixture(t, record(0, nil))
	old := f.open(t, 0)

	f.m.CloseWindow(0)
	assert.True(t, old.Closed())
	assert.False(t, f.state(t, 0).Enabled)

	fresh := f.open(t, 0)
	old.Emit(window.Event{Type: window.EventClosed})

	assert.True(t, f.state(t, 0).Enabled)
	got, ok := f.m.Registry().Get(0)
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

func TestCloseAllKeepsEnabledFlags(t *testing.T) {
	f := newFixture(t, record(0, nil), record(1, nil))
	a := f.open(t, 0)
	b := f.open(t, 1)

	f.m.CloseAll()

	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
	assert.True(t, f.state(t, 0).Enabled)
	assert.True(t, f.state(t, 1).Enabled)
	assert.Equal(t, 0, f.m.Registry().Len())
}

func TestSetStateAppliesLiveThenPersists(t *testing.T) {
	f := newFixture(t, record(0, nil))
	h := f.open(t, 0)

	id := 0
	f.m.SetState(&id, config.StreamStatePatch{
		WindowStatePatch: config.WindowStatePatch{AlwaysOnTop: config.Ptr(true)},
		Locked:           config.Ptr(true),
		Muted:            config.Ptr(true),
	})

	assert.True(t, h.AlwaysOnTop())
	assert.True(t, h.Locked())
	assert.True(t, h.Muted())
	st := f.state(t, 0)
	assert.True(t, st.AlwaysOnTop)
	assert.True(t, st.Locked)
	assert.True(t, st.Muted)
}

func TestSetStateMovesAndMaximizesLiveWindow(t *testing.T) {
	f := newFixture(t, record(0, nil))
	h := f.open(t, 0)

	id := 0
	f.m.SetState(&id, config.StreamStatePatch{
		WindowStatePatch: config.WindowStatePatch{Maximized: config.Ptr(true), Width: config.Ptr(300)},
	})
	assert.True(t, h.Maximized())
	assert.Equal(t, 300, h.Bounds().Width)
	assert.Equal(t, config.DefaultWindowHeight, h.Bounds().Height, "unset fields keep the persisted value")
	st := f.state(t, 0)
	assert.True(t, st.Maximized)
	assert.Equal(t, 300, st.Width)

	f.m.SetState(&id, config.StreamStatePatch{
		WindowStatePatch: config.WindowStatePatch{Maximized: config.Ptr(false)},
	})
	assert.False(t, h.Maximized())
}

func TestMinimizeMaximizeUnmaximize(t *testing.T) {
	f := newFixture(t, record(0, nil))
	h := f.open(t, 0)
	id := 0

	f.m.Maximize(&id)
	assert.True(t, h.Maximized())
	f.m.Unmaximize(&id)
	assert.False(t, h.Maximized())
	f.m.Minimize(&id)
	assert.True(t, h.IsMinimized())

	// closed and unknown windows are ignored
	missing := 7
	f.m.Minimize(&missing)
	f.m.Maximize(nil)
}

func TestSetTitle(t *testing.T) {
	f := newFixture(t, record(0, nil))
	h := f.open(t, 0)
	f.m.SetTitle(0, "renamed")
	assert.Equal(t, "renamed", h.Title())
}

func TestSetStateOnClosedWindowPersistsOnly(t *testing.T) {
	f := newFixture(t, record(0, state(nil)))
	id := 0
	f.m.SetState(&id, config.StreamStatePatch{IgnoreSolo: config.Ptr(true)})
	assert.True(t, f.state(t, 0).IgnoreSolo)
	assert.Empty(t, f.host.Handles())
}

func TestGetState(t *testing.T) {
	f := newFixture(t, record(0, nil), record(1, state(func(s *config.StreamWindowState) { s.Muted = true })))

	st, ok := f.m.StreamState(0)
	require.True(t, ok)
	assert.Equal(t, config.DefaultStreamState(), st)

	st, ok = f.m.StreamState(1)
	require.True(t, ok)
	assert.True(t, st.Muted)

	_, ok = f.m.StreamState(99)
	assert.False(t, ok)

	assert.Equal(t, config.DefaultMainState(), f.m.MainState())
}

func TestMainWindow(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.OpenMainWindow())
	h := f.host.Last()
	h.Emit(window.Event{Type: window.EventReadyToShow})
	assert.True(t, h.Shown())

	f.m.SetState(nil, config.StreamStatePatch{
		WindowStatePatch: config.WindowStatePatch{AlwaysOnTop: config.Ptr(true)},
	})
	assert.True(t, h.AlwaysOnTop())
	assert.True(t, f.repo.MainWindowState().AlwaysOnTop)

	h.Emit(window.Event{Type: window.EventMaximize})
	assert.True(t, f.repo.MainWindowState().Maximized)

	h.Emit(window.Event{Type: window.EventClosed, Bounds: window.Rect{X: 15, Y: 25, Width: 900, Height: 700}})
	st := f.repo.MainWindowState()
	assert.Equal(t, 15, *st.X)
	assert.Equal(t, 900, st.Width)

	select {
	case <-f.m.MainClosed():
	default:
		t.Fatal("main closed channel not closed")
	}
}

func TestMainWindowLiveState(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.OpenMainWindow())
	h := f.host.Last()
	h.Emit(window.Event{Type: window.EventReadyToShow})

	f.m.SetState(nil, config.StreamStatePatch{
		WindowStatePatch: config.WindowStatePatch{Maximized: config.Ptr(true), Height: config.Ptr(500)},
	})
	assert.True(t, h.Maximized())
	assert.Equal(t, window.Rect{Width: config.DefaultMainWidth, Height: 500}, h.Bounds())
	assert.True(t, f.repo.MainWindowState().Maximized)

	f.m.Minimize(nil)
	assert.True(t, h.IsMinimized())
}

func TestMainWindowFallsBackToMainDefaults(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.repo.UpdateMainWindowState(config.WindowStatePatch{
		X: config.Ptr(5000), Y: config.Ptr(0), Width: config.Ptr(1024), Height: config.Ptr(768),
	}))

	require.NoError(t, f.m.OpenMainWindow())
	b := f.host.Last().Opts.Bounds
	assert.Nil(t, b.X)
	assert.Equal(t, config.DefaultMainWidth, b.Width)
	assert.Equal(t, config.DefaultMainHeight, b.Height)
}

func TestStateChangesArePushed(t *testing.T) {
	f := newFixture(t, record(0, state(nil)), record(1, state(nil)))
	pushes := make(chan events.WindowStateChangedEvent, 16)
	unsub := f.bus.Subscribe(func(e events.WindowStateChangedEvent) { pushes <- e })
	defer unsub()

	id := 1
	f.m.SetState(&id, config.StreamStatePatch{Muted: config.Ptr(true)})

	select {
	case e := <-pushes:
		require.NotNil(t, e.WindowID)
		assert.Equal(t, 1, *e.WindowID)
		require.NotNil(t, e.Stream)
		assert.True(t, e.Stream.Muted)
	case <-time.After(time.Second):
		t.Fatal("state change not pushed")
	}

	// only the window whose state changed is pushed
	select {
	case e := <-pushes:
		t.Fatalf("unexpected push for %v", e.WindowID)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestMainPushIsScopedToMaximizedAndAlwaysOnTop(t *testing.T) {
	f := newFixture(t)
	pushes := make(chan events.WindowStateChangedEvent, 16)
	unsub := f.bus.Subscribe(func(e events.WindowStateChangedEvent) { pushes <- e })
	defer unsub()

	require.NoError(t, f.repo.UpdateMainWindowState(config.WindowStatePatch{Width: config.Ptr(1200)}))
	select {
	case <-pushes:
		t.Fatal("width change must not push main state")
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, f.repo.UpdateMainWindowState(config.WindowStatePatch{Maximized: config.Ptr(true)}))
	select {
	case e := <-pushes:
		assert.Nil(t, e.WindowID)
		require.NotNil(t, e.Main)
		assert.True(t, e.Main.Maximized)
	case <-time.After(time.Second):
		t.Fatal("main state change not pushed")
	}
}

func TestApplyState(t *testing.T) {
	f := newFixture(t, record(0, nil))
	h := f.open(t, 0)

	f.m.ApplyState(0, config.StreamWindowState{
		WindowState: config.WindowState{X: config.Ptr(3), Y: config.Ptr(4), Width: 500, Height: 400, AlwaysOnTop: true},
		Locked:      true,
		Muted:       true,
	})

	assert.Equal(t, window.Rect{X: 3, Y: 4, Width: 500, Height: 400}, h.Bounds())
	assert.True(t, h.Called("unmaximize"))
	assert.True(t, h.AlwaysOnTop())
	assert.True(t, h.Locked())
	assert.True(t, h.Muted())
}
