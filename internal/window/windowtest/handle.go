package windowtest

import (
	"sync"

	"github.com/bryanchriswhite/livejar/internal/window"
)

// Call is one recorded method invocation
type Call struct {
	Op  string
	Arg any
}

// Handle is a fake window.Handle
type Handle struct {
	Opts window.Options

	mu          sync.Mutex
	onEvent     func(window.Event)
	calls       []Call
	bounds      window.Rect
	minimized   bool
	closed      bool
	shown       bool
	maximized   bool
	alwaysOnTop bool
	movable     bool
	resizable   bool
	muted       bool
	title       string
}

func (h *Handle) record(op string, arg any) {
	h.calls = append(h.calls, Call{Op: op, Arg: arg})
}

// Emit delivers an OS event as the real host would
func (h *Handle) Emit(ev window.Event) {
	h.mu.Lock()
	fn := h.onEvent
	if ev.Bounds == (window.Rect{}) {
		ev.Bounds = h.bounds
	}
	h.mu.Unlock()
	fn(ev)
}

func (h *Handle) Minimize() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("minimize", nil)
	h.minimized = true
	return nil
}

func (h *Handle) Show() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("show", nil)
	h.shown = true
	return nil
}

func (h *Handle) Focus() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("focus", nil)
	return nil
}

func (h *Handle) IsMinimized() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.minimized
}

func (h *Handle) Restore() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("restore", nil)
	h.minimized = false
	return nil
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("close", nil)
	h.closed = true
	return nil
}

func (h *Handle) Bounds() window.Rect {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bounds
}

func (h *Handle) SetBounds(b window.Bounds) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("set_bounds", b)
	if b.X != nil {
		h.bounds.X = *b.X
	}
	if b.Y != nil {
		h.bounds.Y = *b.Y
	}
	h.bounds.Width, h.bounds.Height = b.Width, b.Height
	return nil
}

func (h *Handle) Maximize() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("maximize", nil)
	h.maximized = true
	return nil
}

func (h *Handle) Unmaximize() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("unmaximize", nil)
	h.maximized = false
	return nil
}

func (h *Handle) SetAlwaysOnTop(on bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("always_on_top", on)
	h.alwaysOnTop = on
	return nil
}

func (h *Handle) SetMovable(movable bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("movable", movable)
	h.movable = movable
	return nil
}

func (h *Handle) SetResizable(resizable bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("resizable", resizable)
	h.resizable = resizable
	return nil
}

func (h *Handle) SetAudioMuted(muted bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("muted", muted)
	h.muted = muted
	return nil
}

func (h *Handle) SetTitle(title string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("title", title)
	h.title = title
	return nil
}

// Title returns the last title set, or the one the window was created with
func (h *Handle) Title() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.title == "" {
		return h.Opts.Title
	}
	return h.title
}

// Calls returns every recorded call in order
func (h *Handle) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Call, len(h.calls))
	copy(out, h.calls)
	return out
}

// Called reports whether op was invoked at least once
func (h *Handle) Called(op string) bool {
	for _, c := range h.Calls() {
		if c.Op == op {
			return true
		}
	}
	return false
}

func (h *Handle) Muted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.muted
}

func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *Handle) Shown() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shown
}

func (h *Handle) Maximized() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maximized
}

func (h *Handle) AlwaysOnTop() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.alwaysOnTop
}

// Locked reports whether the window can neither move nor resize
func (h *Handle) Locked() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.movable && !h.resizable
}
