package window

// Rect is a screen rectangle in pixels
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Contains reports whether o lies entirely inside r
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X &&
		o.Y >= r.Y &&
		o.X+o.Width <= r.X+r.Width &&
		o.Y+o.Height <= r.Y+r.Height
}

// Bounds is the geometry a window is created or moved with.
// A nil X or Y lets the window manager place the window.
type Bounds struct {
	X      *int
	Y      *int
	Width  int
	Height int
}

// Options describe a window to create. ID is nil for the main window.
type Options struct {
	ID        *int
	Title     string
	Bounds    Bounds
	MinWidth  int
	MinHeight int
}

// EventType enumerates what a Host reports about a live window
type EventType int

const (
	EventReadyToShow EventType = iota + 1
	EventMoved
	EventResized
	EventMaximize
	EventUnmaximize
	EventAlwaysOnTopChanged
	EventClosed
)

func (t EventType) String() string {
	switch t {
	case EventReadyToShow:
		return "ready-to-show"
	case EventMoved:
		return "moved"
	case EventResized:
		return "resized"
	case EventMaximize:
		return "maximize"
	case EventUnmaximize:
		return "unmaximize"
	case EventAlwaysOnTopChanged:
		return "always-on-top-changed"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is one OS-level notification. Bounds is the window's last known
// normal geometry; AlwaysOnTop is meaningful for EventAlwaysOnTopChanged.
type Event struct {
	Type        EventType
	Bounds      Rect
	AlwaysOnTop bool
}

// Handle is a live OS window
type Handle interface {
	Show() error
	Focus() error
	IsMinimized() bool
	Minimize() error
	Restore() error
	Close() error
	Bounds() Rect
	SetBounds(b Bounds) error
	Maximize() error
	Unmaximize() error
	SetAlwaysOnTop(on bool) error
	SetMovable(movable bool) error
	SetResizable(resizable bool) error
	SetAudioMuted(muted bool) error
	SetTitle(title string) error
}

// Host creates OS windows and reports the attached displays.
// onEvent may be called from any goroutine.
type Host interface {
	CreateWindow(opts Options, onEvent func(Event)) (Handle, error)
	Displays() []Rect
	Close() error
	Name() string
}
