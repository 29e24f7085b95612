package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/property-marketplace/internal/repository"
)

var (
	// ErrAuthRequired means the route needs a signed-in user.
	ErrAuthRequired = errors.New("authentication required")
	// ErrRoleMismatch means the signed-in user has the wrong role for the route.
	ErrRoleMismatch = errors.New("role mismatch")
	// ErrInsufficientCredits is returned when a listing is created with a
	// balance below one credit.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrNegativeBalance is returned when an admin adjustment would push a
	// balance below zero.
	ErrNegativeBalance = errors.New("adjustment would make balance negative")
	// ErrProfileNotFound means the user has no profile row.
	ErrProfileNotFound = errors.New("profile not found")

	ErrNotFound  = repository.ErrNotFound
	ErrForbidden = repository.ErrForbidden
)

// StoreError wraps a failure of the persistence backend.  The backend
// message is kept so non-production deployments can surface it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// storeErr wraps err unless it is nil or already a domain error.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrForbidden, ErrInsufficientCredits,
		ErrNegativeBalance, ErrProfileNotFound, repository.ErrEmailExists} {
		if errors.Is(err, known) {
			return err
		}
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// ValidationError lists invalid input fields with a message per field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// NewValidationError builds a single-field ValidationError.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
