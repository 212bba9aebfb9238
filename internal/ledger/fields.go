// Package ledger holds the ledger data model and narrow accessors over
// parsed ledger documents.
//
// Parsed documents are plain trees of map[string]any, []any and scalars.
// Accessors never panic on a type mismatch: they report ok == false and let
// the caller turn that into a violation.
package ledger

// SchemaVersion is the only ledger version accepted.
const SchemaVersion = 1

// Status is the lifecycle state of a task.
type Status string

const (
	StatusTodo  Status = "todo"
	StatusDoing Status = "doing"
	StatusDone  Status = "done"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusDoing, StatusDone:
		return true
	}
	return false
}

// Fields is a parsed mapping node.
type Fields map[string]any

// AsFields returns v as Fields when it is a mapping.
func AsFields(v any) (Fields, bool) {
	switch m := v.(type) {
	case map[string]any:
		return Fields(m), true
	case Fields:
		return m, true
	}
	return nil, false
}

// Present reports whether key exists and is not null.
func (f Fields) Present(key string) bool {
	v, ok := f[key]
	return ok && v != nil
}

// String returns the value at key when it is a string.
func (f Fields) String(key string) (string, bool) {
	s, ok := f[key].(string)
	return s, ok
}

// Int returns the value at key when it is an integer of any width.
// Floats and booleans are not integers.
func (f Fields) Int(key string) (int64, bool) {
	return AsInt(f[key])
}

// List returns the value at key when it is a sequence.
func (f Fields) List(key string) ([]any, bool) {
	l, ok := f[key].([]any)
	return l, ok
}

// OptionalString returns the string at key. A missing or null value is
// reported as ("", true); a value of another type as ("", false).
func (f Fields) OptionalString(key string) (string, bool) {
	v, ok := f[key]
	if !ok || v == nil {
		return "", true
	}
	s, ok := v.(string)
	return s, ok
}

// Status returns the task status at "status" when it is a string.
func (f Fields) Status() (Status, bool) {
	s, ok := f.String("status")
	return Status(s), ok
}

// AsInt converts the integer kinds produced by the yaml and toml decoders.
func AsInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	}
	return 0, false
}
