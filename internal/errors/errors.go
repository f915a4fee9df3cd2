package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types for the portal
var (
	// Session errors
	ErrNoAccessToken  = errors.New("No access token received")
	ErrNoRefreshToken = errors.New("No refresh token received")
	ErrNotLoggedIn    = errors.New("not logged in")

	// Token errors
	ErrMalformedToken = errors.New("malformed token")
	ErrNoExpiry       = errors.New("token has no expiry")

	// Registration errors
	ErrInvalidEmail    = errors.New("email is required")
	ErrInvalidRole     = errors.New("role must be doctor or patient")
	ErrPasswordTooWeak = errors.New("password must be at least 8 characters long")

	// Cache errors
	ErrNotFound = errors.New("not found")
)

// TransportError is a failed call to the backend. Detail holds the most specific
// human readable message the backend supplied, if any.
type TransportError struct {
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, http.StatusText(e.StatusCode))
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationError is a response that arrived but is unusable, such as a
// login response without an access token.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need a single errors import
func New(text string) error {
	return errors.New(text)
}
