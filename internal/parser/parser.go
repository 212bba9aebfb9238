// Package parser decodes ledger documents into generic structured values.
package parser

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a ledger document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// DetectFormat picks the decoder from the file extension. Unknown
// extensions are read as YAML, which also accepts JSON.
func DetectFormat(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// Parse decodes data into a tree of map[string]any, []any and scalars.
// An empty YAML document decodes to nil.
func Parse(name string, data []byte) (any, error) {
	var (
		out any
		err error
	)
	switch DetectFormat(name) {
	case FormatTOML:
		out, err = parseTOML(data)
	default:
		// JSON goes through yaml.v3 as well so integers stay integers.
		out, err = parseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parser: %s: %w", name, err)
	}
	return normalize(out), nil
}

func parseYAML(data []byte) (any, error) {
	var out any
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseTOML(data []byte) (any, error) {
	var out map[string]any
	if _, err := toml.Decode(string(data), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// normalize rewrites decoder-specific shapes into the generic ones the
// checkers expect.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalize(item)
		}
		return t
	case map[any]any:
		// yaml.v3 only produces this for non-string keys.
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		for i, item := range t {
			t[i] = normalize(item)
		}
		return t
	case []map[string]any:
		// TOML arrays of tables.
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case time.Time:
		// TOML datetimes.
		return t.Format(time.RFC3339Nano)
	default:
		return v
	}
}
