package window

import (
	"github.com/bryanchriswhite/livejar/internal/config"
)

// OpenMainWindow creates the application shell window from the persisted
// main window state. Calling it again focuses the existing window.
func (m *Manager) OpenMainWindow() error {
	if m.main != nil {
		m.warn(m.main.Focus(), -1, "focus main")
		return nil
	}

	state := m.repo.MainWindowState()
	bounds := FitBounds(state, m.host.Displays(), config.DefaultMainWidth, config.DefaultMainHeight)

	var h Handle
	h, err := m.host.CreateWindow(Options{
		Title:     mainTitle,
		Bounds:    bounds,
		MinWidth:  config.MinWindowWidth,
		MinHeight: config.MinWindowHeight,
	}, func(ev Event) {
		m.dispatch(func() { m.handleMainEvent(h, ev) })
	})
	if err != nil {
		return err
	}
	m.main = h
	m.log.Info().Msg("Main window opening")
	return nil
}

// CloseMain closes the main window. Its closed event saves the bounds.
func (m *Manager) CloseMain() {
	if m.main != nil {
		m.warn(m.main.Close(), -1, "close main")
	}
}

// MainClosed is closed once the main window went away
func (m *Manager) MainClosed() <-chan struct{} {
	return m.mainClosed
}

func (m *Manager) handleMainEvent(h Handle, ev Event) {
	if m.main == nil || m.main != h {
		return
	}

	var patch config.WindowStatePatch
	switch ev.Type {
	case EventReadyToShow:
		state := m.repo.MainWindowState()
		m.warn(h.Show(), -1, "show main")
		m.warn(h.Focus(), -1, "focus main")
		if state.Maximized {
			m.warn(h.Maximize(), -1, "maximize main")
		}
		if state.AlwaysOnTop {
			m.warn(h.SetAlwaysOnTop(true), -1, "always on top main")
		}
		return
	case EventMaximize:
		patch.Maximized = config.Ptr(true)
	case EventUnmaximize:
		patch.Maximized = config.Ptr(false)
	case EventAlwaysOnTopChanged:
		patch.AlwaysOnTop = config.Ptr(ev.AlwaysOnTop)
	case EventClosed:
		m.main = nil
		b := ev.Bounds
		if b.Width > 0 && b.Height > 0 {
			if err := m.repo.SaveMainWindowBounds(b.X, b.Y, b.Width, b.Height); err != nil {
				m.log.Warn().Err(err).Msg("Failed to save main window bounds")
			}
		}
		m.closeOnce.Do(func() { close(m.mainClosed) })
		return
	default:
		return
	}

	if err := m.repo.UpdateMainWindowState(patch); err != nil {
		m.log.Warn().Err(err).Stringer("event", ev.Type).Msg("Failed to persist main window state")
	}
}

// setMainState applies the patch to the live main window and persists it
func (m *Manager) setMainState(patch config.WindowStatePatch) {
	if m.main != nil {
		m.applyGeometry(m.main, -1, m.repo.MainWindowState(), patch)
		if patch.AlwaysOnTop != nil {
			m.warn(m.main.SetAlwaysOnTop(*patch.AlwaysOnTop), -1, "always on top main")
		}
	}
	if patch.Empty() {
		return
	}
	if err := m.repo.UpdateMainWindowState(patch); err != nil {
		m.log.Warn().Err(err).Msg("Failed to persist main window state")
	}
}
