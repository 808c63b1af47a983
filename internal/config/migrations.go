package config

import (
	"fmt"
	"strings"
)

// CurrentVersion is the document version written by this build
const CurrentVersion = 2

// Migration transforms a document tree of version N into version N+1.
// It must not mutate its input.
type Migration func(doc map[string]any) (map[string]any, error)

// migrations[i] upgrades version i to i+1
var migrations = []Migration{
	normalizePlaylistEntries,
	addAppState,
}

// Migrate upgrades doc to CurrentVersion. It reports whether any migration ran.
// A document without a version field is treated as version 0.
func Migrate(doc map[string]any) (map[string]any, bool, error) {
	version, err := documentVersion(doc)
	if err != nil {
		return nil, false, err
	}
	if version > CurrentVersion {
		return nil, false, fmt.Errorf("settings version %d is newer than supported version %d", version, CurrentVersion)
	}

	out := doc
	for v := version; v < CurrentVersion; v++ {
		next, err := migrations[v](out)
		if err != nil {
			return nil, false, fmt.Errorf("migrate settings v%d -> v%d: %w", v, v+1, err)
		}
		next["version"] = v + 1
		out = next
	}
	return out, version < CurrentVersion, nil
}

func documentVersion(doc map[string]any) (int, error) {
	raw, ok := doc["version"]
	if !ok || raw == nil {
		return 0, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("invalid settings version %v", raw)
	}
}

// normalizePlaylistEntries lowercases, trims and dedupes every playlist's entries
func normalizePlaylistEntries(doc map[string]any) (map[string]any, error) {
	out := copyMap(doc)
	settings, ok := out["settings"].(map[string]any)
	if !ok {
		return out, nil
	}
	settings = copyMap(settings)
	out["settings"] = settings

	playlists, ok := settings["playlists"].([]any)
	if !ok {
		return out, nil
	}
	migrated := make([]any, len(playlists))
	for i, raw := range playlists {
		pl, ok := raw.(map[string]any)
		if !ok {
			migrated[i] = raw
			continue
		}
		pl = copyMap(pl)
		entries, _ := pl["entries"].([]any)
		seen := make(map[string]bool, len(entries))
		normalized := make([]any, 0, len(entries))
		for _, e := range entries {
			s := strings.ToLower(strings.TrimSpace(fmt.Sprint(e)))
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			normalized = append(normalized, s)
		}
		pl["entries"] = normalized
		migrated[i] = pl
	}
	settings["playlists"] = migrated
	return out, nil
}

// addAppState inserts the app_state block introduced with update notices
func addAppState(doc map[string]any) (map[string]any, error) {
	out := copyMap(doc)
	settings, ok := out["settings"].(map[string]any)
	if !ok {
		return out, nil
	}
	settings = copyMap(settings)
	out["settings"] = settings

	if _, ok := settings["app_state"]; !ok {
		settings["app_state"] = map[string]any{
			"changelog_dismissed": defaultChangelogDismissed,
			"update_dismissed":    nil,
		}
	}
	return out, nil
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
