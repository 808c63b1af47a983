package config

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.json
var schemaFS embed.FS

const schemaBase = "https://livejar.local/schema/"

var (
	settingsSchema *jsonschema.Schema
	streamSchema   *jsonschema.Schema
	stateSchema    *jsonschema.Schema
)

func init() {
	compiler := jsonschema.NewCompiler()
	files := []string{"settings.schema.json", "state.schema.json", "stream.schema.json"}
	for _, name := range files {
		data, err := schemaFS.ReadFile("schema/" + name)
		if err != nil {
			panic(fmt.Sprintf("read embedded schema %s: %v", name, err))
		}
		if err := compiler.AddResource(schemaBase+name, bytes.NewReader(data)); err != nil {
			panic(fmt.Sprintf("add schema resource %s: %v", name, err))
		}
	}
	settingsSchema = compiler.MustCompile(schemaBase + "settings.schema.json")
	stateSchema = compiler.MustCompile(schemaBase + "state.schema.json")
	streamSchema = compiler.MustCompile(schemaBase + "stream.schema.json")
}

// FieldErrors maps a dot-separated field path to a human readable message
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsFieldErrors extracts FieldErrors from err, if any
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// ValidateSettings checks s against the settings schema and the uniqueness
// rules a schema cannot express
func ValidateSettings(s Settings) error {
	if err := validate(settingsSchema, "settings", s); err != nil {
		return err
	}

	errs := FieldErrors{}
	ids := make(map[int]bool, len(s.Windows))
	for i, w := range s.Windows {
		if ids[w.ID] {
			errs[fmt.Sprintf("windows.%d.id", i)] = fmt.Sprintf("duplicate window id %d", w.ID)
		}
		ids[w.ID] = true
	}
	type playlistKey struct {
		label string
		typ   StreamType
	}
	playlists := make(map[playlistKey]bool, len(s.Playlists))
	for i, p := range s.Playlists {
		k := playlistKey{p.Label, p.Type}
		if playlists[k] {
			errs[fmt.Sprintf("playlists.%d", i)] = fmt.Sprintf("duplicate playlist %s/%s", p.Type, p.Label)
		}
		playlists[k] = true
		for j, e := range p.Entries {
			if e != strings.ToLower(e) {
				errs[fmt.Sprintf("playlists.%d.entries.%d", i, j)] = "entries must be lowercase"
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateStreamPatch checks an add or update payload
func ValidateStreamPatch(p StreamPatch) error {
	return validate(streamSchema, "stream", p)
}

// ValidateStatePatch checks a window state patch
func ValidateStatePatch(p StreamStatePatch) error {
	return validate(stateSchema, "state", p)
}

func validate(schema *jsonschema.Schema, root string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s for validation: %w", root, err)
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("decode %s for validation: %w", root, err)
	}

	err = schema.Validate(instance)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	errs := FieldErrors{}
	collectLeaves(ve, root, errs)
	return errs
}

// collectLeaves flattens the validation tree, keeping only the innermost causes
func collectLeaves(ve *jsonschema.ValidationError, root string, errs FieldErrors) {
	if len(ve.Causes) > 0 {
		for _, c := range ve.Causes {
			collectLeaves(c, root, errs)
		}
		return
	}
	field := strings.ReplaceAll(strings.TrimPrefix(ve.InstanceLocation, "/"), "/", ".")
	if field == "" {
		field = root
	}
	if _, exists := errs[field]; !exists {
		errs[field] = ve.Message
	}
}
