package window

import (
	"errors"
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xinerama"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/livejar/internal/events"
	"github.com/bryanchriswhite/livejar/internal/logger"
)

const (
	wmClassInstance = "livejar"
	wmClassName     = "LiveJar"

	netWMStateRemove = 0
	netWMStateAdd    = 1

	// ICCCM WM_STATE value requested through WM_CHANGE_STATE
	iconicState = 3
)

// ErrWindowClosed is returned by operations on a destroyed window
var ErrWindowClosed = errors.New("window closed")

// X11Host implements Host on an X server using EWMH hints. Windows are bare
// frames; audio lives in the rendering surface attached to each window, so
// mute requests go out on the bus.
type X11Host struct {
	conn     *xgb.Conn
	root     xproto.Window
	screen   *xproto.ScreenInfo
	xinerama bool
	bus      *events.Bus

	mu      sync.RWMutex
	atoms   map[string]xproto.Atom
	windows map[xproto.Window]*x11Window

	done chan struct{}
	log  *zerolog.Logger
}

// NewX11Host connects to display ("" uses $DISPLAY) and starts the event loop
func NewX11Host(display string, bus *events.Bus) (*X11Host, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	h := &X11Host{
		conn:    conn,
		root:    screen.Root,
		screen:  screen,
		bus:     bus,
		atoms:   make(map[string]xproto.Atom),
		windows: make(map[xproto.Window]*x11Window),
		done:    make(chan struct{}),
		log:     logger.WithComponent("x11"),
	}
	if err := xinerama.Init(conn); err != nil {
		h.log.Debug().Err(err).Msg("Xinerama unavailable, using the root screen")
	} else {
		h.xinerama = true
	}

	go h.eventLoop()
	return h, nil
}

// Name returns the host name
func (h *X11Host) Name() string {
	return "x11"
}

// Close closes the X connection and waits for the event loop
func (h *X11Host) Close() error {
	h.conn.Close()
	<-h.done
	return nil
}

// Displays returns one rectangle per monitor
func (h *X11Host) Displays() []Rect {
	if h.xinerama {
		reply, err := xinerama.QueryScreens(h.conn).Reply()
		if err == nil && len(reply.ScreenInfo) > 0 {
			out := make([]Rect, 0, len(reply.ScreenInfo))
			for _, s := range reply.ScreenInfo {
				out = append(out, Rect{X: int(s.XOrg), Y: int(s.YOrg), Width: int(s.Width), Height: int(s.Height)})
			}
			return out
		}
		h.log.Debug().Err(err).Msg("QueryScreens failed, using the root screen")
	}
	return []Rect{{Width: int(h.screen.WidthInPixels), Height: int(h.screen.HeightInPixels)}}
}

// CreateWindow creates an unmapped window and reports ready-to-show once the
// server acknowledged it
func (h *X11Host) CreateWindow(opts Options, onEvent func(Event)) (Handle, error) {
	wid, err := xproto.NewWindowId(h.conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create window ID: %w", err)
	}

	var x, y int16
	if opts.Bounds.X != nil && opts.Bounds.Y != nil {
		x, y = int16(*opts.Bounds.X), int16(*opts.Bounds.Y)
	}

	mask := uint32(xproto.CwBackPixel | xproto.CwEventMask)
	values := []uint32{
		0x000000,
		xproto.EventMaskStructureNotify | xproto.EventMaskPropertyChange,
	}
	err = xproto.CreateWindowChecked(
		h.conn,
		h.screen.RootDepth,
		wid,
		h.root,
		x, y,
		uint16(opts.Bounds.Width), uint16(opts.Bounds.Height),
		0,
		xproto.WindowClassInputOutput,
		h.screen.RootVisual,
		mask,
		values,
	).Check()
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	w := &x11Window{
		host:      h,
		id:        wid,
		opts:      opts,
		onEvent:   onEvent,
		movable:   true,
		resizable: true,
		bounds: Rect{
			X:      int(x),
			Y:      int(y),
			Width:  opts.Bounds.Width,
			Height: opts.Bounds.Height,
		},
	}

	if err := w.setTitle(opts.Title); err != nil {
		h.log.Warn().Err(err).Msg("Failed to set window title")
	}
	if err := w.setClass(wmClassInstance, wmClassName); err != nil {
		h.log.Warn().Err(err).Msg("Failed to set window class")
	}
	if err := w.setProtocols(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to set WM_PROTOCOLS")
	}
	if err := w.writeSizeHints(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to set size hints")
	}

	h.mu.Lock()
	h.windows[wid] = w
	h.mu.Unlock()

	h.conn.Sync()
	go onEvent(Event{Type: EventReadyToShow, Bounds: w.Bounds()})

	h.log.Debug().Uint32("xid", uint32(wid)).Str("title", opts.Title).Msg("Created window")
	return w, nil
}

// getAtom gets an atom ID by name, cached per connection
func (h *X11Host) getAtom(name string) (xproto.Atom, error) {
	h.mu.RLock()
	atom, ok := h.atoms[name]
	h.mu.RUnlock()
	if ok {
		return atom, nil
	}

	reply, err := xproto.InternAtom(h.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	h.atoms[name] = reply.Atom
	h.mu.Unlock()
	return reply.Atom, nil
}

func (h *X11Host) window(id xproto.Window) *x11Window {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.windows[id]
}

func (h *X11Host) forget(id xproto.Window) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.windows, id)
}

// sendRootMessage sends an EWMH client message about win to the window manager
func (h *X11Host) sendRootMessage(win xproto.Window, msgType string, data ...uint32) error {
	atom, err := h.getAtom(msgType)
	if err != nil {
		return err
	}
	for len(data) < 5 {
		data = append(data, 0)
	}
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   atom,
		Data:   xproto.ClientMessageDataUnionData32New(data),
	}
	return xproto.SendEventChecked(
		h.conn,
		false,
		h.root,
		xproto.EventMaskSubstructureNotify|xproto.EventMaskSubstructureRedirect,
		string(ev.Bytes()),
	).Check()
}

// eventLoop translates X events into window Events until the connection closes
func (h *X11Host) eventLoop() {
	defer close(h.done)
	for {
		ev, err := h.conn.WaitForEvent()
		if ev == nil && err == nil {
			h.log.Debug().Msg("X connection closed, event loop exiting")
			return
		}
		if err != nil {
			h.log.Debug().Err(err).Msg("X error")
			continue
		}

		switch e := ev.(type) {
		case xproto.ConfigureNotifyEvent:
			if w := h.window(e.Window); w != nil {
				w.onConfigure(e)
			}
		case xproto.PropertyNotifyEvent:
			if w := h.window(e.Window); w != nil {
				w.onProperty(e)
			}
		case xproto.ClientMessageEvent:
			if w := h.window(e.Window); w != nil {
				w.onClientMessage(e)
			}
		case xproto.DestroyNotifyEvent:
			if w := h.window(e.Window); w != nil {
				w.onDestroyed()
			}
		}
	}
}

// x11Window is one top-level window created by X11Host
type x11Window struct {
	host    *X11Host
	id      xproto.Window
	opts    Options
	onEvent func(Event)

	mu          sync.Mutex
	bounds      Rect
	mapped      bool
	maximized   bool
	alwaysOnTop bool
	movable     bool
	resizable   bool
	closed      bool
}

// live returns ErrWindowClosed once the server destroyed the window
func (w *x11Window) live() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWindowClosed
	}
	return nil
}

func (w *x11Window) Show() error {
	if err := w.live(); err != nil {
		return err
	}
	if err := xproto.MapWindowChecked(w.host.conn, w.id).Check(); err != nil {
		return fmt.Errorf("failed to map window: %w", err)
	}
	w.mu.Lock()
	w.mapped = true
	w.mu.Unlock()
	return nil
}

func (w *x11Window) Focus() error {
	if err := w.live(); err != nil {
		return err
	}
	// source indication 2: request from a pager or other direct user action
	return w.host.sendRootMessage(w.id, "_NET_ACTIVE_WINDOW", 2, uint32(xproto.TimeCurrentTime))
}

func (w *x11Window) IsMinimized() bool {
	states, err := w.netWMState()
	if err != nil {
		return false
	}
	hidden, err := w.host.getAtom("_NET_WM_STATE_HIDDEN")
	if err != nil {
		return false
	}
	return containsAtom(states, hidden)
}

func (w *x11Window) Minimize() error {
	if err := w.live(); err != nil {
		return err
	}
	return w.host.sendRootMessage(w.id, "WM_CHANGE_STATE", iconicState)
}

func (w *x11Window) Restore() error {
	if err := w.live(); err != nil {
		return err
	}
	if err := xproto.MapWindowChecked(w.host.conn, w.id).Check(); err != nil {
		return err
	}
	return w.Focus()
}

func (w *x11Window) Close() error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return nil
	}
	return xproto.DestroyWindowChecked(w.host.conn, w.id).Check()
}

func (w *x11Window) Bounds() Rect {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bounds
}

func (w *x11Window) SetBounds(b Bounds) error {
	if err := w.live(); err != nil {
		return err
	}
	mask := uint16(xproto.ConfigWindowWidth | xproto.ConfigWindowHeight)
	values := []uint32{uint32(b.Width), uint32(b.Height)}
	if b.X != nil && b.Y != nil {
		mask |= xproto.ConfigWindowX | xproto.ConfigWindowY
		values = append([]uint32{uint32(int32(*b.X)), uint32(int32(*b.Y))}, values...)
	}
	if err := xproto.ConfigureWindowChecked(w.host.conn, w.id, mask, values).Check(); err != nil {
		return err
	}

	w.mu.Lock()
	if b.X != nil && b.Y != nil {
		w.bounds.X, w.bounds.Y = *b.X, *b.Y
	}
	w.bounds.Width, w.bounds.Height = b.Width, b.Height
	w.mu.Unlock()
	return w.writeSizeHints()
}

func (w *x11Window) Maximize() error {
	return w.changeState(netWMStateAdd, "_NET_WM_STATE_MAXIMIZED_VERT", "_NET_WM_STATE_MAXIMIZED_HORZ")
}

func (w *x11Window) Unmaximize() error {
	return w.changeState(netWMStateRemove, "_NET_WM_STATE_MAXIMIZED_VERT", "_NET_WM_STATE_MAXIMIZED_HORZ")
}

func (w *x11Window) SetAlwaysOnTop(on bool) error {
	action := uint32(netWMStateRemove)
	if on {
		action = netWMStateAdd
	}
	return w.changeState(action, "_NET_WM_STATE_ABOVE")
}

// SetMovable has no EWMH equivalent; moves of a pinned window are undone in
// onConfigure
func (w *x11Window) SetMovable(movable bool) error {
	w.mu.Lock()
	w.movable = movable
	w.mu.Unlock()
	return nil
}

func (w *x11Window) SetResizable(resizable bool) error {
	w.mu.Lock()
	w.resizable = resizable
	w.mu.Unlock()
	return w.writeSizeHints()
}

func (w *x11Window) SetAudioMuted(muted bool) error {
	if w.opts.ID == nil || w.host.bus == nil {
		return nil
	}
	w.host.bus.Publish(events.AudioMutedEvent{WindowID: *w.opts.ID, Muted: muted})
	return nil
}

func (w *x11Window) SetTitle(title string) error {
	if err := w.live(); err != nil {
		return err
	}
	return w.setTitle(title)
}

func (w *x11Window) changeState(action uint32, names ...string) error {
	if err := w.live(); err != nil {
		return err
	}
	data := []uint32{action}
	for _, name := range names {
		atom, err := w.host.getAtom(name)
		if err != nil {
			return err
		}
		data = append(data, uint32(atom))
	}
	for len(data) < 3 {
		data = append(data, 0)
	}
	data = append(data, 1) // source indication: application
	return w.host.sendRootMessage(w.id, "_NET_WM_STATE", data...)
}

func (w *x11Window) netWMState() ([]xproto.Atom, error) {
	atom, err := w.host.getAtom("_NET_WM_STATE")
	if err != nil {
		return nil, err
	}
	reply, err := xproto.GetProperty(w.host.conn, false, w.id, atom, xproto.AtomAtom, 0, 64).Reply()
	if err != nil {
		return nil, err
	}
	return decodeAtoms(reply.Value), nil
}

func (w *x11Window) onConfigure(e xproto.ConfigureNotifyEvent) {
	x, y := int(e.X), int(e.Y)
	// reparenting window managers report positions relative to the frame
	if tr, err := xproto.TranslateCoordinates(w.host.conn, w.id, w.host.root, 0, 0).Reply(); err == nil {
		x, y = int(tr.DstX), int(tr.DstY)
	}
	next := Rect{X: x, Y: y, Width: int(e.Width), Height: int(e.Height)}

	w.mu.Lock()
	prev := w.bounds
	pinned := !w.movable && w.mapped && (next.X != prev.X || next.Y != prev.Y)
	if !pinned {
		w.bounds = next
	}
	w.mu.Unlock()

	if pinned {
		err := xproto.ConfigureWindowChecked(w.host.conn, w.id,
			xproto.ConfigWindowX|xproto.ConfigWindowY,
			[]uint32{uint32(int32(prev.X)), uint32(int32(prev.Y))}).Check()
		if err != nil {
			w.host.log.Debug().Err(err).Msg("Failed to restore locked window position")
		}
		return
	}

	switch {
	case next.Width != prev.Width || next.Height != prev.Height:
		w.onEvent(Event{Type: EventResized, Bounds: next})
	case next.X != prev.X || next.Y != prev.Y:
		w.onEvent(Event{Type: EventMoved, Bounds: next})
	}
}

func (w *x11Window) onProperty(e xproto.PropertyNotifyEvent) {
	stateAtom, err := w.host.getAtom("_NET_WM_STATE")
	if err != nil || e.Atom != stateAtom {
		return
	}
	states, err := w.netWMState()
	if err != nil {
		return
	}
	vert, _ := w.host.getAtom("_NET_WM_STATE_MAXIMIZED_VERT")
	horz, _ := w.host.getAtom("_NET_WM_STATE_MAXIMIZED_HORZ")
	above, _ := w.host.getAtom("_NET_WM_STATE_ABOVE")
	maximized := containsAtom(states, vert) && containsAtom(states, horz)
	onTop := containsAtom(states, above)

	w.mu.Lock()
	maxChanged := maximized != w.maximized
	topChanged := onTop != w.alwaysOnTop
	w.maximized, w.alwaysOnTop = maximized, onTop
	bounds := w.bounds
	w.mu.Unlock()

	if maxChanged {
		ev := Event{Type: EventUnmaximize, Bounds: bounds}
		if maximized {
			ev.Type = EventMaximize
		}
		w.onEvent(ev)
	}
	if topChanged {
		w.onEvent(Event{Type: EventAlwaysOnTopChanged, Bounds: bounds, AlwaysOnTop: onTop})
	}
}

func (w *x11Window) onClientMessage(e xproto.ClientMessageEvent) {
	protocols, err := w.host.getAtom("WM_PROTOCOLS")
	if err != nil || e.Type != protocols || e.Format != 32 {
		return
	}
	deleteWindow, err := w.host.getAtom("WM_DELETE_WINDOW")
	if err != nil || xproto.Atom(e.Data.Data32[0]) != deleteWindow {
		return
	}
	if err := xproto.DestroyWindowChecked(w.host.conn, w.id).Check(); err != nil {
		w.host.log.Warn().Err(err).Msg("Failed to destroy window")
	}
}

func (w *x11Window) onDestroyed() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	bounds := w.bounds
	w.mu.Unlock()

	w.host.forget(w.id)
	w.onEvent(Event{Type: EventClosed, Bounds: bounds})
}

// setTitle sets the window title
func (w *x11Window) setTitle(title string) error {
	titleAtom, err := w.host.getAtom("_NET_WM_NAME")
	if err != nil {
		return err
	}
	utf8Atom, err := w.host.getAtom("UTF8_STRING")
	if err != nil {
		return err
	}
	return xproto.ChangePropertyChecked(
		w.host.conn,
		xproto.PropModeReplace,
		w.id,
		titleAtom,
		utf8Atom,
		8,
		uint32(len(title)),
		[]byte(title),
	).Check()
}

// setClass sets the window class
func (w *x11Window) setClass(instance, class string) error {
	// WM_CLASS format: instance\0class\0
	classStr := instance + "\x00" + class + "\x00"
	return xproto.ChangePropertyChecked(
		w.host.conn,
		xproto.PropModeReplace,
		w.id,
		xproto.AtomWmClass,
		xproto.AtomString,
		8,
		uint32(len(classStr)),
		[]byte(classStr),
	).Check()
}

// setProtocols opts into WM_DELETE_WINDOW so closing goes through us
func (w *x11Window) setProtocols() error {
	protocols, err := w.host.getAtom("WM_PROTOCOLS")
	if err != nil {
		return err
	}
	deleteWindow, err := w.host.getAtom("WM_DELETE_WINDOW")
	if err != nil {
		return err
	}
	return xproto.ChangePropertyChecked(
		w.host.conn,
		xproto.PropModeReplace,
		w.id,
		protocols,
		xproto.AtomAtom,
		32,
		1,
		encodeAtoms([]xproto.Atom{deleteWindow}),
	).Check()
}

func (w *x11Window) writeSizeHints() error {
	w.mu.Lock()
	hints := sizeHints{
		positioned: w.opts.Bounds.X != nil,
		minWidth:   w.opts.MinWidth,
		minHeight:  w.opts.MinHeight,
	}
	if !w.resizable {
		hints.minWidth, hints.minHeight = w.bounds.Width, w.bounds.Height
		hints.maxWidth, hints.maxHeight = w.bounds.Width, w.bounds.Height
	}
	w.mu.Unlock()

	data := hints.encode()
	return xproto.ChangePropertyChecked(
		w.host.conn,
		xproto.PropModeReplace,
		w.id,
		xproto.AtomWmNormalHints,
		xproto.AtomWmSizeHints,
		32,
		uint32(len(data)/4),
		data,
	).Check()
}

// WM_SIZE_HINTS flags
const (
	hintUSPosition = 1 << 0
	hintPMinSize   = 1 << 4
	hintPMaxSize   = 1 << 5
)

// sizeHints is the subset of WM_NORMAL_HINTS we set. A zero max leaves the
// window resizable.
type sizeHints struct {
	positioned bool
	minWidth   int
	minHeight  int
	maxWidth   int
	maxHeight  int
}

// encode lays the hints out as the 18 CARD32 fields of WM_SIZE_HINTS
func (s sizeHints) encode() []byte {
	fields := make([]uint32, 18)
	if s.positioned {
		fields[0] |= hintUSPosition
	}
	if s.minWidth > 0 || s.minHeight > 0 {
		fields[0] |= hintPMinSize
		fields[5], fields[6] = uint32(s.minWidth), uint32(s.minHeight)
	}
	if s.maxWidth > 0 && s.maxHeight > 0 {
		fields[0] |= hintPMaxSize
		fields[7], fields[8] = uint32(s.maxWidth), uint32(s.maxHeight)
	}
	buf := make([]byte, len(fields)*4)
	for i, v := range fields {
		xgb.Put32(buf[i*4:], v)
	}
	return buf
}

func encodeAtoms(atoms []xproto.Atom) []byte {
	buf := make([]byte, len(atoms)*4)
	for i, a := range atoms {
		xgb.Put32(buf[i*4:], uint32(a))
	}
	return buf
}

func decodeAtoms(b []byte) []xproto.Atom {
	out := make([]xproto.Atom, 0, len(b)/4)
	for i := 0; i+4 <= len(b); i += 4 {
		out = append(out, xproto.Atom(xgb.Get32(b[i:])))
	}
	return out
}

func containsAtom(atoms []xproto.Atom, a xproto.Atom) bool {
	if a == 0 {
		return false
	}
	for _, x := range atoms {
		if x == a {
			return true
		}
	}
	return false
}
