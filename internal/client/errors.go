package client

import (
	"fmt"

	"github.com/uwamba/edms/internal/formengine"
)

// TransportError is any failed API call. StatusCode is zero when no
// response arrived. Errors carries the server's per-path messages from a
// 422 unchanged.
type TransportError struct {
	Op         string
	StatusCode int
	Message    string
	Errors     map[string][]string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode == 0:
		return fmt.Sprintf("client: %s: %v", e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("client: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("client: %s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationErrors returns the first server message per path, or nil when
// the failure was not a field validation.
func (e *TransportError) ValidationErrors() formengine.ValidationErrors {
	if len(e.Errors) == 0 {
		return nil
	}
	out := make(formengine.ValidationErrors, len(e.Errors))
	for path, msgs := range e.Errors {
		if len(msgs) > 0 {
			out[path] = msgs[0]
		}
	}
	return out
}
