package window

import (
	"github.com/bryanchriswhite/livejar/internal/config"
)

// Solo unmutes target and mutes every other open window that does not opt
// out with ignore_solo. Live audio flags are set in the same pass as the
// persisted update; closed windows are left alone.
func (m *Manager) Solo(target int) {
	current := m.repo.Get()
	patches := make(map[int]config.StreamStatePatch)

	for _, id := range m.registry.OpenIDs() {
		rec, ok := current.Window(id)
		if !ok {
			continue
		}
		state := m.streamState(rec)

		muted := true
		switch {
		case id == target:
			muted = false
		case state.IgnoreSolo:
			continue
		}

		if h, ok := m.registry.Get(id); ok {
			m.warn(h.SetAudioMuted(muted), id, "solo mute")
		}
		patches[id] = config.StreamStatePatch{Muted: config.Ptr(muted)}
	}

	if err := m.repo.UpdateWindowStates(patches); err != nil {
		m.log.Warn().Err(err).Int("window_id", target).Msg("Failed to persist solo")
		return
	}
	m.log.Debug().Int("window_id", target).Int("windows", len(patches)).Msg("Solo applied")
}
