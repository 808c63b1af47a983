package events

import "github.com/bryanchriswhite/livejar/internal/config"

// Event type constants for kelindar/event.
const (
	TypeSettingsChanged uint32 = iota + 1
	TypeWindowStateChanged
	TypeAudioMuted
	TypeWindowOpened
	TypeWindowClosed
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SettingsChangedEvent carries the full settings after any effective write.
type SettingsChangedEvent struct {
	Settings config.Settings `json:"settings"`
}

// Type returns the event type identifier for SettingsChangedEvent.
func (e SettingsChangedEvent) Type() uint32 { return TypeSettingsChanged }

// WindowStateChangedEvent is pushed when the state a window cares about changed.
// WindowID is nil for the main window, in which case Main is set instead of Stream.
type WindowStateChangedEvent struct {
	WindowID *int                      `json:"window_id"`
	Stream   *config.StreamWindowState `json:"stream,omitempty"`
	Main     *config.WindowState       `json:"main,omitempty"`
}

// Type returns the event type identifier for WindowStateChangedEvent.
func (e WindowStateChangedEvent) Type() uint32 { return TypeWindowStateChanged }

// AudioMutedEvent asks the rendering surface of a window to mute or unmute.
type AudioMutedEvent struct {
	WindowID int  `json:"window_id"`
	Muted    bool `json:"muted"`
}

// Type returns the event type identifier for AudioMutedEvent.
func (e AudioMutedEvent) Type() uint32 { return TypeAudioMuted }

// WindowOpenedEvent is published once a window reached the open state.
type WindowOpenedEvent struct {
	WindowID int `json:"window_id"`
}

// Type returns the event type identifier for WindowOpenedEvent.
func (e WindowOpenedEvent) Type() uint32 { return TypeWindowOpened }

// WindowClosedEvent is published after a window was unregistered.
type WindowClosedEvent struct {
	WindowID int `json:"window_id"`
}

// Type returns the event type identifier for WindowClosedEvent.
func (e WindowClosedEvent) Type() uint32 { return TypeWindowClosed }
