package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/uwamba/edms/internal/db"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
)

func notFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// storeError maps store sentinels onto service sentinels.
func storeError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, db.ErrNotFound):
		return notFound(what)
	case errors.Is(err, db.ErrDuplicate):
		return fmt.Errorf("%s already exists: %w", what, ErrConflict)
	}
	return err
}

// nowFunc is the service clock.
var nowFunc = time.Now

const timeLayout = time.RFC3339

func now() string { return nowFunc().UTC().Format(timeLayout) }

func forbidden(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrForbidden)
}

func conflict(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrConflict)
}
