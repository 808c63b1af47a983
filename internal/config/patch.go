package config

// WindowStatePatch is a partial WindowState. Nil fields are left unchanged.
type WindowStatePatch struct {
	X           *int  `json:"x,omitempty" yaml:"x,omitempty"`
	Y           *int  `json:"y,omitempty" yaml:"y,omitempty"`
	Width       *int  `json:"width,omitempty" yaml:"width,omitempty"`
	Height      *int  `json:"height,omitempty" yaml:"height,omitempty"`
	Maximized   *bool `json:"maximized,omitempty" yaml:"maximized,omitempty"`
	AlwaysOnTop *bool `json:"always_on_top,omitempty" yaml:"always_on_top,omitempty"`
}

// StreamStatePatch is a partial StreamWindowState
type StreamStatePatch struct {
	WindowStatePatch `yaml:",inline"`
	Enabled          *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Muted            *bool `json:"muted,omitempty" yaml:"muted,omitempty"`
	Locked           *bool `json:"locked,omitempty" yaml:"locked,omitempty"`
	IgnoreSolo       *bool `json:"ignore_solo,omitempty" yaml:"ignore_solo,omitempty"`
}

// StreamPatch is a partial StreamWindow used by add and update
type StreamPatch struct {
	Type    *StreamType       `json:"type,omitempty" yaml:"type,omitempty"`
	Label   *string           `json:"label,omitempty" yaml:"label,omitempty"`
	Channel *string           `json:"channel,omitempty" yaml:"channel,omitempty"`
	URL     *string           `json:"url,omitempty" yaml:"url,omitempty"`
	Quality *string           `json:"quality,omitempty" yaml:"quality,omitempty"`
	Volume  *float64          `json:"volume,omitempty" yaml:"volume,omitempty"`
	State   *StreamStatePatch `json:"state,omitempty" yaml:"state,omitempty"`
}

func apply[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Apply returns s with every non-nil field of p applied
func (s WindowState) Apply(p WindowStatePatch) WindowState {
	out := s.Clone()
	if p.X != nil {
		out.X = Ptr(*p.X)
	}
	if p.Y != nil {
		out.Y = Ptr(*p.Y)
	}
	apply(&out.Width, p.Width)
	apply(&out.Height, p.Height)
	apply(&out.Maximized, p.Maximized)
	apply(&out.AlwaysOnTop, p.AlwaysOnTop)
	return out
}

// Apply returns s with every non-nil field of p applied
func (s StreamWindowState) Apply(p StreamStatePatch) StreamWindowState {
	out := s.Clone()
	out.WindowState = s.WindowState.Apply(p.WindowStatePatch)
	apply(&out.Enabled, p.Enabled)
	apply(&out.Muted, p.Muted)
	apply(&out.Locked, p.Locked)
	apply(&out.IgnoreSolo, p.IgnoreSolo)
	return out
}

// Empty reports whether the patch changes nothing
func (p WindowStatePatch) Empty() bool {
	return p == WindowStatePatch{}
}

// Empty reports whether the patch changes nothing
func (p StreamStatePatch) Empty() bool {
	return p == StreamStatePatch{}
}

// Apply merges the patch onto w. Type is not touched; callers decide whether
// a type change is allowed.
func (w StreamWindow) Apply(p StreamPatch) StreamWindow {
	out := w.Clone()
	apply(&out.Label, p.Label)
	apply(&out.Channel, p.Channel)
	apply(&out.URL, p.URL)
	apply(&out.Quality, p.Quality)
	apply(&out.Volume, p.Volume)
	if p.State != nil {
		base := DefaultStreamState()
		if out.State != nil {
			base = *out.State
		}
		st := base.Apply(*p.State)
		out.State = &st
	}
	return out
}
