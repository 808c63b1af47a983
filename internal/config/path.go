package config

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidPath is returned for an empty path or a path with empty segments
	ErrInvalidPath = errors.New("invalid settings path")
	// ErrPathNotFound is returned when a path does not address an existing key
	ErrPathNotFound = errors.New("settings path not found")
)

// splitPath breaks "windows.2.state.muted" into its segments
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	segs := strings.Split(path, ".")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segs, nil
}

// toTree converts v into the generic yaml tree (maps, lists, scalars)
func toTree(v any) (any, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// fromTree decodes a generic tree into out, rejecting keys out does not declare
func fromTree(tree any, out any) error {
	data, err := yaml.Marshal(tree)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

func lookup(node any, segs []string) (any, error) {
	for i, seg := range segs {
		switch n := node.(type) {
		case map[string]any:
			child, ok := n[seg]
			if !ok {
				return nil, notFound(segs[:i+1])
			}
			node = child
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(n) {
				return nil, notFound(segs[:i+1])
			}
			node = n[idx]
		default:
			return nil, notFound(segs[:i+1])
		}
	}
	return node, nil
}

// assign returns a copy of node with value placed at segs. Intermediate
// segments must exist; the final segment may add a new map key.
func assign(node any, segs []string, value any, depth int) (any, error) {
	seg := segs[depth]
	last := depth == len(segs)-1

	switch n := node.(type) {
	case map[string]any:
		out := copyMap(n)
		if last {
			out[seg] = value
			return out, nil
		}
		child, ok := n[seg]
		if !ok {
			return nil, notFound(segs[:depth+1])
		}
		updated, err := assign(child, segs, value, depth+1)
		if err != nil {
			return nil, err
		}
		out[seg] = updated
		return out, nil
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(n) {
			return nil, notFound(segs[:depth+1])
		}
		out := make([]any, len(n))
		copy(out, n)
		if last {
			out[idx] = value
			return out, nil
		}
		updated, err := assign(n[idx], segs, value, depth+1)
		if err != nil {
			return nil, err
		}
		out[idx] = updated
		return out, nil
	default:
		return nil, notFound(segs[:depth+1])
	}
}

func notFound(segs []string) error {
	return fmt.Errorf("%w: %s", ErrPathNotFound, strings.Join(segs, "."))
}

// getPath reads the value at path from s as a generic tree
func getPath(s Settings, path string) (any, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	tree, err := toTree(s)
	if err != nil {
		return nil, err
	}
	return lookup(tree, segs)
}

// setPath writes value at path into s. value may be any yaml-encodable Go value.
func setPath(s *Settings, path string, value any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	tree, err := toTree(*s)
	if err != nil {
		return err
	}
	v, err := toTree(value)
	if err != nil {
		return fmt.Errorf("encode value for %s: %w", path, err)
	}
	updated, err := assign(tree, segs, v, 0)
	if err != nil {
		return err
	}
	var next Settings
	if err := fromTree(updated, &next); err != nil {
		return FieldErrors{path: err.Error()}
	}
	*s = next
	return nil
}

// ParseValue parses a command-line value as a yaml scalar or flow collection,
// so "true", "3" and "[a, b]" arrive typed
func ParseValue(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil && raw != "null" && raw != "~" {
		return raw
	}
	return v
}
