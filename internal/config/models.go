package config

import (
	"fmt"
	"slices"
)

// StreamType identifies the platform a stream window embeds
type StreamType string

const (
	StreamTypeTwitch StreamType = "twitch"
	StreamTypeIframe StreamType = "iframe"
)

// Valid reports whether t is a known stream type
func (t StreamType) Valid() bool {
	return t == StreamTypeTwitch || t == StreamTypeIframe
}

// TopbarStyle controls how the stream window top bar is drawn
type TopbarStyle string

const (
	TopbarSolid       TopbarStyle = "solid"
	TopbarTransparent TopbarStyle = "transparent"
	TopbarHidden      TopbarStyle = "hidden"
)

// DoubleClickAction is what a double click on a stream does
type DoubleClickAction string

const (
	DoubleClickNone     DoubleClickAction = "none"
	DoubleClickMaximize DoubleClickAction = "maximize"
	DoubleClickSolo     DoubleClickAction = "solo"
	DoubleClickMute     DoubleClickAction = "mute"
)

// AuthProvider names an external platform holding an access token
type AuthProvider string

const AuthProviderTwitch AuthProvider = "twitch"

// WindowState is the geometry shared by the main window and stream windows.
// A nil X or Y lets the OS choose the position.
type WindowState struct {
	X           *int `json:"x,omitempty" yaml:"x,omitempty"`
	Y           *int `json:"y,omitempty" yaml:"y,omitempty"`
	Width       int  `json:"width" yaml:"width"`
	Height      int  `json:"height" yaml:"height"`
	Maximized   bool `json:"maximized" yaml:"maximized"`
	AlwaysOnTop bool `json:"always_on_top" yaml:"always_on_top"`
}

// StreamWindowState is the runtime state persisted for a stream window
type StreamWindowState struct {
	WindowState `yaml:",inline"`
	Enabled     bool `json:"enabled" yaml:"enabled"`
	Muted       bool `json:"muted" yaml:"muted"`
	Locked      bool `json:"locked" yaml:"locked"`
	IgnoreSolo  bool `json:"ignore_solo" yaml:"ignore_solo"`
}

// StreamWindow is the persisted descriptor of one stream window
type StreamWindow struct {
	ID      int                `json:"id" yaml:"id"`
	Label   string             `json:"label" yaml:"label"`
	Type    StreamType         `json:"type" yaml:"type"`
	Channel string             `json:"channel,omitempty" yaml:"channel,omitempty"`
	URL     string             `json:"url" yaml:"url"`
	Quality string             `json:"quality" yaml:"quality"`
	Volume  float64            `json:"volume" yaml:"volume"`
	State   *StreamWindowState `json:"state" yaml:"state"`
}

// Kind is the content source of a stream window. It is one of TwitchKind or IframeKind.
type Kind interface {
	StreamType() StreamType
	isKind()
}

// TwitchKind is a channel on the twitch player
type TwitchKind struct {
	Channel     string
	ResolvedURL string
}

// IframeKind is an arbitrary embeddable page
type IframeKind struct {
	URL string
}

func (TwitchKind) StreamType() StreamType { return StreamTypeTwitch }
func (IframeKind) StreamType() StreamType { return StreamTypeIframe }
func (TwitchKind) isKind()                {}
func (IframeKind) isKind()                {}

// Kind returns the typed content source of the window
func (w StreamWindow) Kind() (Kind, error) {
	switch w.Type {
	case StreamTypeTwitch:
		return TwitchKind{Channel: w.Channel, ResolvedURL: w.URL}, nil
	case StreamTypeIframe:
		return IframeKind{URL: w.URL}, nil
	default:
		return nil, fmt.Errorf("unknown stream type %q", w.Type)
	}
}

// ChannelPlaylist is a named set of channels for quick selection.
// (Label, Type) identifies the playlist; entries are lowercase and unique.
type ChannelPlaylist struct {
	Label   string     `json:"label" yaml:"label"`
	Type    StreamType `json:"type" yaml:"type"`
	Entries []string   `json:"entries" yaml:"entries"`
}

// GeneralSettings are user preferences
type GeneralSettings struct {
	ReopenWindows          bool              `json:"reopen_windows" yaml:"reopen_windows"`
	TopbarStyle            TopbarStyle       `json:"topbar_style" yaml:"topbar_style"`
	VolumeScrollSpeed      float64           `json:"volume_scroll_speed" yaml:"volume_scroll_speed"`
	LatencyHighThreshold   float64           `json:"latency_high_threshold" yaml:"latency_high_threshold"`
	MutePrerollTimeout     float64           `json:"mute_preroll_timeout" yaml:"mute_preroll_timeout"`
	AutoRefreshHighLatency bool              `json:"auto_refresh_high_latency" yaml:"auto_refresh_high_latency"`
	DoubleClickAction      DoubleClickAction `json:"double_click_action" yaml:"double_click_action"`
}

// AuthToken is an access token obtained from an external platform
type AuthToken struct {
	AccessToken string   `json:"access_token" yaml:"access_token"`
	Type        string   `json:"type" yaml:"type"`
	Scopes      []string `json:"scopes" yaml:"scopes"`
}

// AuthSettings holds one optional token per provider
type AuthSettings struct {
	Twitch *AuthToken `json:"twitch" yaml:"twitch"`
}

// AppState records which changelog and update notices were dismissed
type AppState struct {
	ChangelogDismissed *string `json:"changelog_dismissed" yaml:"changelog_dismissed"`
	UpdateDismissed    *string `json:"update_dismissed" yaml:"update_dismissed"`
}

// Settings is the root aggregate of everything persisted
type Settings struct {
	Auth        AuthSettings      `json:"auth" yaml:"auth"`
	General     GeneralSettings   `json:"general" yaml:"general"`
	Windows     []StreamWindow    `json:"windows" yaml:"windows"`
	Playlists   []ChannelPlaylist `json:"playlists" yaml:"playlists"`
	WindowState WindowState       `json:"window_state" yaml:"window_state"`
	AppState    AppState          `json:"app_state" yaml:"app_state"`
}

// Document is the on-disk layout of the settings file
type Document struct {
	Version  int      `json:"version" yaml:"version"`
	Settings Settings `json:"settings" yaml:"settings"`
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Clone returns a deep copy
func (s WindowState) Clone() WindowState {
	s.X = clonePtr(s.X)
	s.Y = clonePtr(s.Y)
	return s
}

// Clone returns a deep copy
func (s StreamWindowState) Clone() StreamWindowState {
	s.WindowState = s.WindowState.Clone()
	return s
}

// Clone returns a deep copy
func (w StreamWindow) Clone() StreamWindow {
	if w.State != nil {
		st := w.State.Clone()
		w.State = &st
	}
	return w
}

// Clone returns a deep copy
func (p ChannelPlaylist) Clone() ChannelPlaylist {
	p.Entries = slices.Clone(p.Entries)
	return p
}

// Clone returns a deep copy
func (s Settings) Clone() Settings {
	out := s
	if s.Auth.Twitch != nil {
		tok := *s.Auth.Twitch
		tok.Scopes = slices.Clone(tok.Scopes)
		out.Auth.Twitch = &tok
	}
	if s.Windows != nil {
		out.Windows = make([]StreamWindow, len(s.Windows))
		for i, w := range s.Windows {
			out.Windows[i] = w.Clone()
		}
	}
	if s.Playlists != nil {
		out.Playlists = make([]ChannelPlaylist, len(s.Playlists))
		for i, p := range s.Playlists {
			out.Playlists[i] = p.Clone()
		}
	}
	out.WindowState = s.WindowState.Clone()
	out.AppState.ChangelogDismissed = clonePtr(s.AppState.ChangelogDismissed)
	out.AppState.UpdateDismissed = clonePtr(s.AppState.UpdateDismissed)
	return out
}

// Window returns the window with the given id
func (s Settings) Window(id int) (StreamWindow, bool) {
	for _, w := range s.Windows {
		if w.ID == id {
			return w, true
		}
	}
	return StreamWindow{}, false
}

// Playlist returns the playlist identified by label and type
func (s Settings) Playlist(label string, t StreamType) (ChannelPlaylist, bool) {
	for _, p := range s.Playlists {
		if p.Label == label && p.Type == t {
			return p, true
		}
	}
	return ChannelPlaylist{}, false
}

// normalize replaces nil collections so the document always serializes the same way
func (s *Settings) normalize() {
	if s.Windows == nil {
		s.Windows = []StreamWindow{}
	}
	if s.Playlists == nil {
		s.Playlists = []ChannelPlaylist{}
	}
	for i := range s.Playlists {
		if s.Playlists[i].Entries == nil {
			s.Playlists[i].Entries = []string{}
		}
	}
	if s.Auth.Twitch != nil && s.Auth.Twitch.Scopes == nil {
		s.Auth.Twitch.Scopes = []string{}
	}
}
