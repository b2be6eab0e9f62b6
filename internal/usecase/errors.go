package usecase

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map them to transport status codes with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrTransient  = errors.New("temporarily unavailable")
)

// ReasonError carries a caller-facing reason for a failed request.
type ReasonError struct {
	Kind   error
	Reason string
	Seats  []string
	Fields map[string]string
}

func (e *ReasonError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
}

func (e *ReasonError) Unwrap() error {
	return e.Kind
}

func validationError(reason string, seats ...string) error {
	return &ReasonError{Kind: ErrValidation, Reason: reason, Seats: seats}
}

func conflictError(reason string, seats ...string) error {
	return &ReasonError{Kind: ErrConflict, Reason: reason, Seats: seats}
}

func notFoundError(reason string) error {
	return &ReasonError{Kind: ErrNotFound, Reason: reason}
}

// transient marks a store or broker failure. Errors that already carry a
// kind are returned unchanged.
func transient(err error) error {
	if err == nil {
		return nil
	}
	var reason *ReasonError
	if errors.As(err, &reason) || errors.Is(err, ErrTransient) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
