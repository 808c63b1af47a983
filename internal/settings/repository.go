// Package settings provides typed accessors over the settings store.
// Every write reads the full current document, mutates a copy and writes it back.
package settings

import (
	"github.com/bryanchriswhite/livejar/internal/config"
)

// Repository is the typed face of a config.Store
type Repository struct {
	store *config.Store
}

// New wraps store
func New(store *config.Store) *Repository {
	return &Repository{store: store}
}

// Store returns the underlying store
func (r *Repository) Store() *config.Store {
	return r.store
}

// Get returns a copy of the current settings
func (r *Repository) Get() config.Settings {
	return r.store.Get()
}

// SetAll replaces the whole settings object
func (r *Repository) SetAll(s config.Settings) error {
	return r.store.Set(s)
}

// SetAtPath writes one value addressed by a dot-separated path
func (r *Repository) SetAtPath(path string, value any) error {
	return r.store.SetAtPath(path, value)
}

// GetAtPath reads one value addressed by a dot-separated path
func (r *Repository) GetAtPath(path string) (any, error) {
	return r.store.GetAtPath(path)
}

// ResetAtPath restores the default for path
func (r *Repository) ResetAtPath(path string) error {
	return r.store.ResetAtPath(path)
}

// Clear wipes everything back to defaults
func (r *Repository) Clear() error {
	return r.store.Clear()
}

// OnChange subscribes to every effective settings write
func (r *Repository) OnChange(fn config.ChangeFunc) func() {
	return r.store.OnChange(fn)
}

// Window returns the record with the given id
func (r *Repository) Window(id int) (config.StreamWindow, bool) {
	return r.store.Get().Window(id)
}

// Windows returns every window record in order
func (r *Repository) Windows() []config.StreamWindow {
	return r.store.Get().Windows
}

// UpdateWindow runs fn against the record with the given id.
// Unknown ids are a silent no-op.
func (r *Repository) UpdateWindow(id int, fn func(*config.StreamWindow)) error {
	return r.store.Update(func(s *config.Settings) error {
		for i := range s.Windows {
			if s.Windows[i].ID == id {
				fn(&s.Windows[i])
				return nil
			}
		}
		return nil
	})
}

// UpdateWindowState merges patch into the runtime state of window id.
// A window that never had state starts from the default runtime state.
func (r *Repository) UpdateWindowState(id int, patch config.StreamStatePatch) error {
	return r.UpdateWindow(id, func(w *config.StreamWindow) {
		base := config.DefaultStreamState()
		if w.State != nil {
			base = *w.State
		}
		next := base.Apply(patch)
		w.State = &next
	})
}

// UpdateWindowStates applies one patch per id in a single write
func (r *Repository) UpdateWindowStates(patches map[int]config.StreamStatePatch) error {
	if len(patches) == 0 {
		return nil
	}
	return r.store.Update(func(s *config.Settings) error {
		for i := range s.Windows {
			patch, ok := patches[s.Windows[i].ID]
			if !ok {
				continue
			}
			base := config.DefaultStreamState()
			if s.Windows[i].State != nil {
				base = *s.Windows[i].State
			}
			next := base.Apply(patch)
			s.Windows[i].State = &next
		}
		return nil
	})
}
