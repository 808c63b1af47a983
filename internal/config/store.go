package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/livejar/internal/logger"
)

// ChangeFunc receives deep copies of the settings after and before a write
type ChangeFunc func(newValue, oldValue Settings)

// WriteObserver is told about the outcome of every persisted write
type WriteObserver func(err error)

type listener struct {
	id uint64
	fn ChangeFunc
}

// Store is the persisted settings document with change subscriptions.
// A Store opened without a path keeps everything in memory.
type Store struct {
	path        string
	doc         Document
	lastWritten []byte
	listeners   []listener
	nextID      uint64
	observer    WriteObserver
	mu          sync.RWMutex
}

// Open loads the settings document at path, migrating it if needed.
// A missing file is created with defaults.
func Open(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	s := &Store{path: path}
	if err := s.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("store").Info().
				Str("path", s.path).
				Msg("Settings file not found, creating defaults")
			s.doc = Document{Version: CurrentVersion, Settings: DefaultSettings()}
			if err := s.save(); err != nil {
				return nil, fmt.Errorf("failed to create default settings: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
	}

	logger.WithComponent("store").Info().
		Str("path", s.path).
		Int("version", s.doc.Version).
		Int("windows", len(s.doc.Settings.Windows)).
		Msg("Settings loaded")
	return s, nil
}

// OpenMemory returns a store holding initial (or defaults when nil) that never touches disk
func OpenMemory(initial *Settings) *Store {
	settings := DefaultSettings()
	if initial != nil {
		settings = initial.Clone()
	}
	settings.normalize()
	return &Store{doc: Document{Version: CurrentVersion, Settings: settings}}
}

// Path returns the settings file path, empty for an in-memory store
func (s *Store) Path() string {
	return s.path
}

// SetWriteObserver registers fn to be called after every persist attempt
func (s *Store) SetWriteObserver(fn WriteObserver) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// Get returns a deep copy of the current settings
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Settings.Clone()
}

// Set replaces the whole settings object
func (s *Store) Set(next Settings) error {
	return s.Update(func(cur *Settings) error {
		*cur = next.Clone()
		return nil
	})
}

// GetAtPath returns the value at a dot-separated path as a generic tree
func (s *Store) GetAtPath(path string) (any, error) {
	return getPath(s.Get(), path)
}

// SetAtPath writes value at a dot-separated path
func (s *Store) SetAtPath(path string, value any) error {
	return s.Update(func(cur *Settings) error {
		return setPath(cur, path, value)
	})
}

// ResetAtPath restores the default value for path
func (s *Store) ResetAtPath(path string) error {
	def, err := getPath(DefaultSettings(), path)
	if err != nil {
		return err
	}
	return s.SetAtPath(path, def)
}

// Clear wipes the settings back to defaults
func (s *Store) Clear() error {
	return s.Set(DefaultSettings())
}

// OnChange registers fn for every effective write. The returned func unsubscribes.
func (s *Store) OnChange(fn ChangeFunc) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Update runs mutate against a copy of the current settings, validates the
// result, persists it and notifies listeners. If mutate or validation fails
// nothing changes. If persisting fails the in-memory document is rolled back.
func (s *Store) Update(mutate func(*Settings) error) error {
	s.mu.Lock()
	old := s.doc.Settings
	next := old.Clone()
	if err := mutate(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	next.normalize()
	if err := ValidateSettings(next); err != nil {
		s.mu.Unlock()
		return err
	}
	if reflect.DeepEqual(old, next) {
		s.mu.Unlock()
		return nil
	}

	s.doc.Settings = next
	if err := s.save(); err != nil {
		s.doc.Settings = old
		observer := s.observer
		s.mu.Unlock()
		if observer != nil {
			observer(err)
		}
		return err
	}
	observer := s.observer
	listeners := make([]listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	if observer != nil && s.path != "" {
		observer(nil)
	}
	for _, l := range listeners {
		l.fn(next.Clone(), old.Clone())
	}
	return nil
}

// Reload re-reads the file after an external edit. Contents identical to the
// last write are ignored.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	s.mu.RLock()
	same := bytes.Equal(data, s.lastWritten)
	s.mu.RUnlock()
	if same {
		return nil
	}

	doc, _, err := decodeDocument(data)
	if err != nil {
		return err
	}
	logger.WithComponent("store").Info().
		Str("path", s.path).
		Msg("Settings changed on disk, reloading")
	return s.Set(doc.Settings)
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	doc, migrated, err := decodeDocument(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.doc = doc
	s.lastWritten = data
	if migrated {
		logger.WithComponent("store").Info().
			Int("version", doc.Version).
			Msg("Migrated settings document")
		if err := s.save(); err != nil {
			logger.WithComponent("store").Warn().Err(err).Msg("Failed to save migrated settings")
		}
	}
	s.mu.Unlock()
	return nil
}

// decodeDocument parses, migrates, decodes and validates a settings file
func decodeDocument(data []byte) (Document, bool, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{Version: CurrentVersion, Settings: DefaultSettings()}, true, nil
	}

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return Document{}, false, fmt.Errorf("failed to parse settings: %w", err)
	}
	tree, migrated, err := Migrate(tree)
	if err != nil {
		return Document{}, false, err
	}

	// Decode on top of defaults so keys missing from older files keep their default
	doc := Document{Settings: DefaultSettings()}
	raw, err := yaml.Marshal(tree)
	if err != nil {
		return Document{}, false, err
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Document{}, false, fmt.Errorf("failed to decode settings: %w", err)
	}
	doc.Settings.normalize()
	if err := ValidateSettings(doc.Settings); err != nil {
		return Document{}, false, fmt.Errorf("invalid settings: %w", err)
	}
	return doc, migrated, nil
}

// save writes the document. Callers hold s.mu.
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	log := logger.WithComponent("store")

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("Failed to create settings directory")
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := yaml.Marshal(s.doc)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal settings")
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("Failed to write settings")
		return fmt.Errorf("failed to write settings: %w", err)
	}
	s.lastWritten = data

	log.Debug().Str("path", s.path).Msg("Settings saved")
	return nil
}
