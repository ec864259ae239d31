package config

import (
	"fmt"
	"reflect"
	"strings"
)

// ParseConfigPath splits a dotted key such as "idle.longMinutes" and checks
// that each segment names a field of Config by its yaml tag.
func ParseConfigPath(key string) ([]string, error) {
	if key == "" {
		return nil, &ConfigError{Message: "empty config key"}
	}
	parts := strings.Split(key, ".")
	t := reflect.TypeOf(Config{})
	for i, part := range parts {
		if part == "" {
			return nil, &ConfigError{Message: fmt.Sprintf("config key %q has an empty segment", key)}
		}
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return nil, &ConfigError{Message: fmt.Sprintf("%s holds a value, not a section", strings.Join(parts[:i], "."))}
		}
		f, ok := fieldByTag(t, part)
		if !ok {
			return nil, &ConfigError{Message: fmt.Sprintf("unknown config key %q", strings.Join(parts[:i+1], "."))}
		}
		t = f.Type
	}
	return parts, nil
}

func fieldByTag(t reflect.Type, name string) (reflect.StructField, bool) {
	for i := range t.NumField() {
		f := t.Field(i)
		if tag, _, _ := strings.Cut(f.Tag.Get("yaml"), ","); tag == name {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

// section returns the map that holds the last segment of path. With create
// set, missing or scalar intermediates are replaced by empty maps.
func section(root map[string]any, path []string, create bool) (map[string]any, bool) {
	m := root
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			if !create {
				return nil, false
			}
			next = map[string]any{}
			m[key] = next
		}
		m = next
	}
	return m, true
}

// GetValueAtPath returns the value stored at path in a raw config map.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	m, ok := section(root, path, false)
	if !ok {
		return nil, false
	}
	v, ok := m[path[len(path)-1]]
	return v, ok
}

// SetValueAtPath stores value at path, creating sections as needed.
func SetValueAtPath(root map[string]any, path []string, value any) {
	m, _ := section(root, path, true)
	m[path[len(path)-1]] = value
}

// UnsetValueAtPath removes the value at path and reports whether one was
// there.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	m, ok := section(root, path, false)
	if !ok {
		return false
	}
	last := path[len(path)-1]
	if _, ok := m[last]; !ok {
		return false
	}
	delete(m, last)
	return true
}
