package config

import (
	"errors"
	"strings"
)

// rawBytes feeds an in-memory YAML document to koanf.
type rawBytes []byte

func (r rawBytes) ReadBytes() ([]byte, error) { return r, nil }

func (r rawBytes) Read() (map[string]any, error) {
	return nil, errors.New("rawBytes provider does not support Read")
}

// mapProvider feeds an already-nested map to koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("mapProvider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) { return m, nil }

// nestedMap turns "a.b.c", v into {"a": {"b": {"c": v}}}.
func nestedMap(key string, value any) mapProvider {
	parts := strings.Split(key, ".")
	var cur any = value
	for i := len(parts) - 1; i >= 0; i-- {
		cur = map[string]any{parts[i]: cur}
	}
	return mapProvider(cur.(map[string]any))
}
