package settings

import (
	"regexp"
	"strings"

	"github.com/bryanchriswhite/livejar/internal/config"
	"github.com/bryanchriswhite/livejar/internal/logger"
)

const maxLabelLength = 64

var entrySeparator = regexp.MustCompile(`[\s,]+`)

// Playlists returns every playlist
func (r *Repository) Playlists() []config.ChannelPlaylist {
	return r.store.Get().Playlists
}

// AddToPlaylist splits raw on whitespace or commas, lowercases the tokens and
// appends the ones not yet present. The playlist is created when missing.
func (r *Repository) AddToPlaylist(label string, t config.StreamType, raw string) error {
	if err := validatePlaylistKey(label, t); err != nil {
		return err
	}
	entries := normalizeEntries(entrySeparator.Split(strings.TrimSpace(raw), -1))

	err := r.store.Update(func(s *config.Settings) error {
		for i := range s.Playlists {
			p := &s.Playlists[i]
			if p.Label == label && p.Type == t {
				p.Entries = normalizeEntries(append(p.Entries, entries...))
				return nil
			}
		}
		s.Playlists = append(s.Playlists, config.ChannelPlaylist{Label: label, Type: t, Entries: entries})
		return nil
	})
	if err == nil {
		logger.WithComponent("settings").Debug().
			Str("playlist", label).
			Str("type", string(t)).
			Strs("entries", entries).
			Msg("Added to playlist")
	}
	return err
}

// UpdatePlaylist replaces the entries of a playlist, creating it when missing.
// Order follows entries.
func (r *Repository) UpdatePlaylist(label string, t config.StreamType, entries []string) error {
	if err := validatePlaylistKey(label, t); err != nil {
		return err
	}
	normalized := normalizeEntries(entries)

	return r.store.Update(func(s *config.Settings) error {
		for i := range s.Playlists {
			if s.Playlists[i].Label == label && s.Playlists[i].Type == t {
				s.Playlists[i].Entries = normalized
				return nil
			}
		}
		s.Playlists = append(s.Playlists, config.ChannelPlaylist{Label: label, Type: t, Entries: normalized})
		return nil
	})
}

// RemoveFromPlaylist removes an exact entry. Missing playlists or entries are a no-op.
func (r *Repository) RemoveFromPlaylist(label string, t config.StreamType, entry string) error {
	return r.store.Update(func(s *config.Settings) error {
		for i := range s.Playlists {
			p := &s.Playlists[i]
			if p.Label != label || p.Type != t {
				continue
			}
			kept := make([]string, 0, len(p.Entries))
			for _, e := range p.Entries {
				if e != entry {
					kept = append(kept, e)
				}
			}
			p.Entries = kept
		}
		return nil
	})
}

// DeletePlaylist removes a whole playlist. A missing playlist is a no-op.
func (r *Repository) DeletePlaylist(label string, t config.StreamType) error {
	return r.store.Update(func(s *config.Settings) error {
		kept := make([]config.ChannelPlaylist, 0, len(s.Playlists))
		for _, p := range s.Playlists {
			if p.Label == label && p.Type == t {
				continue
			}
			kept = append(kept, p)
		}
		s.Playlists = kept
		return nil
	})
}

// AddRecent folds a channel into the recent playlist of its type
func (r *Repository) AddRecent(t config.StreamType, channel string) error {
	return r.AddToPlaylist(config.RecentPlaylist, t, channel)
}

func validatePlaylistKey(label string, t config.StreamType) error {
	errs := config.FieldErrors{}
	switch {
	case strings.TrimSpace(label) == "":
		errs["label"] = "label is required"
	case len(label) > maxLabelLength:
		errs["label"] = "label is too long"
	case strings.ContainsAny(label, "\n\r\t"):
		errs["label"] = "label must be a single line"
	}
	if !t.Valid() {
		errs["type"] = "unknown playlist type"
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// normalizeEntries lowercases, drops empty tokens and dedupes, keeping first occurrences
func normalizeEntries(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, e := range in {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
