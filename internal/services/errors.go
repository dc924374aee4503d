package services

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrSessionClosed = errors.New("session has ended")
	ErrSessionFull   = errors.New("session is full")
	ErrValidation    = errors.New("validation failed")
	ErrConflict      = errors.New("already exists")
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
