package oxidb

import (
	"fmt"
	"strings"
)

// Error is an error response from the server.
type Error struct {
	Cmd string
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("oxidb: %s: %s", e.Cmd, e.Msg)
}

// AlreadyExists reports whether the server refused to create something that
// is already there, such as an index or a bucket.
func (e *Error) AlreadyExists() bool {
	return strings.Contains(strings.ToLower(e.Msg), "already exists")
}

// ConflictError is returned when the server reports a write conflict, such
// as a unique index violation.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("oxidb: conflict: %s", e.Msg)
}
