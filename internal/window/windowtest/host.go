// Package windowtest provides an in-memory window.Host that records every
// call made on the windows it creates.
package windowtest

import (
	"sync"

	"github.com/bryanchriswhite/livejar/internal/window"
)

// Host is a fake window.Host
type Host struct {
	mu       sync.Mutex
	displays []window.Rect
	handles  []*Handle
	// CreateErr, when set, makes CreateWindow fail
	CreateErr error
}

// NewHost returns a host reporting the given displays. With none, a single
// 1920x1080 display is reported.
func NewHost(displays ...window.Rect) *Host {
	if len(displays) == 0 {
		displays = []window.Rect{{Width: 1920, Height: 1080}}
	}
	return &Host{displays: displays}
}

func (h *Host) Name() string { return "fake" }

func (h *Host) Close() error { return nil }

// SetDisplays replaces the reported displays
func (h *Host) SetDisplays(displays ...window.Rect) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.displays = displays
}

func (h *Host) Displays() []window.Rect {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]window.Rect, len(h.displays))
	copy(out, h.displays)
	return out
}

func (h *Host) CreateWindow(opts window.Options, onEvent func(window.Event)) (window.Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.CreateErr != nil {
		return nil, h.CreateErr
	}
	r := window.Rect{Width: opts.Bounds.Width, Height: opts.Bounds.Height}
	if opts.Bounds.X != nil {
		r.X = *opts.Bounds.X
	}
	if opts.Bounds.Y != nil {
		r.Y = *opts.Bounds.Y
	}
	hd := &Handle{
		Opts:      opts,
		onEvent:   onEvent,
		bounds:    r,
		movable:   true,
		resizable: true,
	}
	h.handles = append(h.handles, hd)
	return hd, nil
}

// Handles returns every window created so far, in creation order
func (h *Host) Handles() []*Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Handle, len(h.handles))
	copy(out, h.handles)
	return out
}

// Last returns the most recently created window, or nil
func (h *Host) Last() *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.handles) == 0 {
		return nil
	}
	return h.handles[len(h.handles)-1]
}
