package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// Format is the on-disk encoding of a config file, chosen by extension.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// toJSON returns data as JSON so both formats go through the same strict
// decoder. JSON input is returned unchanged.
func toJSON(path string, data []byte) ([]byte, Format, error) {
	f := formatOf(path)
	if f == FormatJSON {
		return data, f, nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, f, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if doc == nil {
		// An empty YAML file means "all defaults".
		return []byte("{}"), f, nil
	}
	j, err := json.Marshal(stringKeys(doc))
	if err != nil {
		return nil, f, fmt.Errorf("%s: yaml to json: %w", filepath.Base(path), err)
	}
	return j, f, nil
}

// stringKeys rewrites YAML maps with non-string keys (e.g. `1: x`) so the
// document can be marshaled as JSON.
func stringKeys(v any) any {
	switch x := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			m[fmt.Sprint(k)] = stringKeys(val)
		}
		return m
	case map[string]any:
		for k, val := range x {
			x[k] = stringKeys(val)
		}
		return x
	case []any:
		for i := range x {
			x[i] = stringKeys(x[i])
		}
		return x
	default:
		return v
	}
}
