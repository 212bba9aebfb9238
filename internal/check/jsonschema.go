package check

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// ExternalSchema validates ledgers against a user-supplied JSON Schema on
// top of the built-in rules.
type ExternalSchema struct {
	schema *jsonschema.Schema
	source string
}

// LoadExternalSchema compiles the JSON Schema at path.
func LoadExternalSchema(path string) (*ExternalSchema, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("check: schema path: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile(abs)
	if err != nil {
		return nil, fmt.Errorf("check: compile schema %s: %w", path, err)
	}
	return &ExternalSchema{schema: schema, source: abs}, nil
}

// Source returns the absolute schema path.
func (s *ExternalSchema) Source() string { return s.source }

// Check returns one violation per leaf schema error, prefixed with path and
// the offending field (tasks[0].status style).
func (s *ExternalSchema) Check(path string, doc any) []string {
	obj, err := toJSONValue(doc)
	if err != nil {
		return []string{fmt.Sprintf("%s: schema validation failed: %v", path, err)}
	}
	err = s.schema.Validate(obj)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{fmt.Sprintf("%s: schema validation failed: %v", path, err)}
	}
	var out []string
	collectCauses(ve, func(field, msg string) {
		if field == "" {
			out = append(out, fmt.Sprintf("%s: %s", path, msg))
			return
		}
		out = append(out, fmt.Sprintf("%s: %s: %s", path, field, msg))
	})
	return out
}

func collectCauses(ve *jsonschema.ValidationError, emit func(field, msg string)) {
	if len(ve.Causes) == 0 {
		emit(pointerToField(ve.InstanceLocation), ve.Message)
		return
	}
	for _, cause := range ve.Causes {
		collectCauses(cause, emit)
	}
}

// pointerToField turns a JSON pointer (/tasks/0/status) into tasks[0].status.
func pointerToField(ptr string) string {
	ptr = strings.TrimPrefix(strings.TrimPrefix(ptr, "#"), "/")
	if ptr == "" {
		return ""
	}
	var b strings.Builder
	for _, part := range strings.Split(ptr, "/") {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		if part == "" {
			continue
		}
		if idx, err := strconv.Atoi(part); err == nil {
			fmt.Fprintf(&b, "[%d]", idx)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}

// toJSONValue re-encodes doc so the validator only sees encoding/json types.
func toJSONValue(doc any) (any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
