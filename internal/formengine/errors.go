package formengine

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownPath is returned when a path does not address a field (or an
	// existing repeat instance) of the schema.
	ErrUnknownPath = errors.New("formengine: unknown path")
	// ErrUnknownField is returned when a payload key names a field the
	// schema does not define.
	ErrUnknownField = errors.New("formengine: unknown field")
	// ErrNotRepeatable is returned by instance operations on plain fields.
	ErrNotRepeatable = errors.New("formengine: field is not repeatable")
	// ErrReadOnly is returned when user input targets a date_now field.
	ErrReadOnly = errors.New("formengine: field is read-only")
	// ErrValueType is returned when a value does not fit its field type.
	ErrValueType = errors.New("formengine: value does not match field type")
)

// Messages reported by the validator when a rule carries no message of its own.
const (
	MsgRequired      = "This field is required."
	MsgAtLeastOne    = "at least one entry is required"
	MsgInvalidOption = "Invalid option selected."
	MsgNotNumber     = "Must be a number."
	MsgInvalidDate   = "Must be a valid date."
)

// SchemaError reports a malformed or inconsistent form definition. It is
// fatal for the form: no store can be built from a schema that fails to compile.
type SchemaError struct {
	Field  FieldID
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return "schema: " + e.Reason
	}
	return fmt.Sprintf("schema: field %s: %s", e.Field, e.Reason)
}

func schemaErrorf(id FieldID, format string, args ...any) *SchemaError {
	return &SchemaError{Field: id, Reason: fmt.Sprintf(format, args...)}
}

// ValidationErrors maps a field path (Path.String form) to the first failing
// check for that field.
type ValidationErrors map[string]string

// Error returns a compact, deterministic summary.
func (v ValidationErrors) Error() string {
	switch len(v) {
	case 0:
		return "no validation errors"
	case 1:
		for path, msg := range v {
			return fmt.Sprintf("%s: %s", path, msg)
		}
	}
	keys := v.Paths()
	return fmt.Sprintf("%s: %s (and %d more)", keys[0], v[keys[0]], len(keys)-1)
}

// Paths returns the failing paths in sorted order.
func (v ValidationErrors) Paths() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Err returns nil when there are no errors, so callers never see a typed nil.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// AsValidationErrors extracts ValidationErrors from err.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	return nil, false
}

func pathError(sentinel error, p Path) error {
	return fmt.Errorf("%w: %s", sentinel, p)
}
