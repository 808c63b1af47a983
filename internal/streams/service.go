// Package streams owns the lifecycle of stream window records: creating,
// updating, removing and exchanging them, and reopening them at startup.
package streams

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/livejar/internal/config"
	"github.com/bryanchriswhite/livejar/internal/logger"
	"github.com/bryanchriswhite/livejar/internal/settings"
	"github.com/bryanchriswhite/livejar/internal/window"
)

// ErrKindNotImplemented is returned for stream kinds that have no lifecycle yet
var ErrKindNotImplemented = errors.New("stream kind not implemented")

// Service manages stream records and their OS windows.
// Like window.Manager it must only be used from the control loop.
type Service struct {
	repo    *settings.Repository
	windows *window.Manager

	// highest id handed out this session, so removed ids are never reused
	highWater int
	log       *zerolog.Logger
}

// New creates a stream service
func New(repo *settings.Repository, windows *window.Manager) *Service {
	return &Service{
		repo:      repo,
		windows:   windows,
		highWater: -1,
		log:       logger.WithComponent("streams"),
	}
}

// List returns every stream record in order
func (s *Service) List() []config.StreamWindow {
	return s.repo.Windows()
}

// Get returns the stream record with the given id
func (s *Service) Get(id int) (config.StreamWindow, bool) {
	return s.repo.Window(id)
}

// NextID returns the id the next added stream will get:
// one past the highest id seen, or 0 when there has never been one
func (s *Service) NextID() int {
	next := s.highWater
	for _, w := range s.repo.Windows() {
		if w.ID > next {
			next = w.ID
		}
	}
	return next + 1
}

// Add creates a stream from patch merged onto the default record of its kind,
// persists it and opens its window
func (s *Service) Add(patch config.StreamPatch) (config.StreamWindow, error) {
	if err := config.ValidateStreamPatch(patch); err != nil {
		return config.StreamWindow{}, err
	}

	kind := config.StreamTypeTwitch
	if patch.Type != nil {
		kind = *patch.Type
	}
	if kind != config.StreamTypeTwitch {
		return config.StreamWindow{}, fmt.Errorf("add %s stream: %w", kind, ErrKindNotImplemented)
	}

	id := s.NextID()
	rec := config.DefaultTwitchWindow().Apply(patch)
	rec.ID = id
	rec.Type = kind
	if rec.Channel != "" {
		rec.URL = config.TwitchEmbedURL(rec.Channel)
		if err := s.repo.AddRecent(kind, rec.Channel); err != nil {
			s.log.Warn().Err(err).Str("channel", rec.Channel).Msg("Failed to add channel to recent playlist")
		}
	}

	err := s.repo.Store().Update(func(cur *config.Settings) error {
		cur.Windows = append(cur.Windows, rec)
		return nil
	})
	if err != nil {
		return config.StreamWindow{}, err
	}
	s.highWater = id
	s.log.Info().Int("window_id", id).Str("channel", rec.Channel).Msg("Stream added")

	s.windows.OpenWindow(id)
	if cur, ok := s.repo.Window(id); ok {
		return cur, nil
	}
	return rec, nil
}

// Update merges patch onto the record with the given id. An unknown id is a
// silent no-op and reports false. Changing the stream type is rejected.
func (s *Service) Update(id int, patch config.StreamPatch) (config.StreamWindow, bool, error) {
	if err := config.ValidateStreamPatch(patch); err != nil {
		return config.StreamWindow{}, false, err
	}

	cur, ok := s.repo.Window(id)
	if !ok {
		return config.StreamWindow{}, false, nil
	}
	if patch.Type != nil && *patch.Type != cur.Type {
		return config.StreamWindow{}, true, config.FieldErrors{"type": "stream type cannot be changed"}
	}

	kind, err := cur.Kind()
	if err != nil {
		return config.StreamWindow{}, true, err
	}
	if _, ok := kind.(config.TwitchKind); !ok {
		return config.StreamWindow{}, true, fmt.Errorf("update %s stream: %w", cur.Type, ErrKindNotImplemented)
	}

	next := cur.Apply(patch)
	if patch.Channel != nil && next.Channel != "" {
		next.URL = config.TwitchEmbedURL(next.Channel)
		if err := s.repo.AddRecent(next.Type, next.Channel); err != nil {
			s.log.Warn().Err(err).Str("channel", next.Channel).Msg("Failed to add channel to recent playlist")
		}
	}

	if err := s.repo.UpdateWindow(id, func(w *config.StreamWindow) { *w = next }); err != nil {
		return config.StreamWindow{}, true, err
	}
	if patch.Label != nil {
		s.windows.SetTitle(id, next.Label)
	}
	return next, true, nil
}

// Remove deletes the record and closes its window. Unknown ids are ignored.
func (s *Service) Remove(id int) error {
	if _, ok := s.repo.Window(id); !ok {
		return nil
	}
	err := s.repo.Store().Update(func(cur *config.Settings) error {
		kept := make([]config.StreamWindow, 0, len(cur.Windows))
		for _, w := range cur.Windows {
			if w.ID != id {
				kept = append(kept, w)
			}
		}
		cur.Windows = kept
		return nil
	})
	if err != nil {
		return err
	}
	if id > s.highWater {
		s.highWater = id
	}
	s.windows.CloseWindow(id)
	s.log.Info().Int("window_id", id).Msg("Stream removed")
	return nil
}

// Switch exchanges label and runtime state between two enabled windows, so
// each frame takes the other's place while keeping its own content. If
// either window is missing or disabled nothing happens.
func (s *Service) Switch(a, b int) error {
	if a == b {
		return nil
	}
	wa, okA := s.repo.Window(a)
	wb, okB := s.repo.Window(b)
	if !okA || !okB || !enabled(wa) || !enabled(wb) {
		s.log.Debug().Int("a", a).Int("b", b).Msg("Switch ignored, both windows must be enabled")
		return nil
	}
	stateA, stateB := wa.State.Clone(), wb.State.Clone()

	s.windows.ApplyState(a, stateB)
	s.windows.ApplyState(b, stateA)
	s.windows.SetTitle(a, wb.Label)
	s.windows.SetTitle(b, wa.Label)

	return s.repo.Store().Update(func(cur *config.Settings) error {
		for i := range cur.Windows {
			switch cur.Windows[i].ID {
			case a:
				cur.Windows[i].Label = wb.Label
				cur.Windows[i].State = config.Ptr(stateB.Clone())
			case b:
				cur.Windows[i].Label = wa.Label
				cur.Windows[i].State = config.Ptr(stateA.Clone())
			}
		}
		return nil
	})
}

// OpenAll runs once at startup. With reopen_windows on it opens every
// enabled window; otherwise it marks every window disabled.
func (s *Service) OpenAll() error {
	current := s.repo.Get()
	if current.General.ReopenWindows {
		opened := 0
		for _, w := range current.Windows {
			if enabled(w) {
				s.windows.OpenWindow(w.ID)
				opened++
			}
		}
		s.log.Info().Int("windows", opened).Msg("Reopened windows")
		return nil
	}

	patches := make(map[int]config.StreamStatePatch, len(current.Windows))
	for _, w := range current.Windows {
		patches[w.ID] = config.StreamStatePatch{Enabled: config.Ptr(false)}
	}
	s.log.Info().Int("windows", len(patches)).Msg("Reopen disabled, marking windows closed")
	return s.repo.UpdateWindowStates(patches)
}

func enabled(w config.StreamWindow) bool {
	return w.State != nil && w.State.Enabled
}
