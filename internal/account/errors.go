package account

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var (
	ErrConflict           = errors.New("user already exists with this email")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("invalid or expired token")
	ErrInvalidPurpose     = errors.New("invalid token purpose")
	ErrNotFound           = errors.New("user not found")
	ErrTokenRequired      = errors.New("token is required")
)

// ValidationError carries the per-field failures of an input struct.
type ValidationError struct {
	Fields validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Fields.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Fields
}
