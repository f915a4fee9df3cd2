package users

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/scan-portal/internal/errors"
)

const MinPasswordLength = 8

var validate = validator.New()

// Credentials are the login form values. They are never persisted.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the sign-up form. An empty Role registers a patient.
type Registration struct {
	Email    string `validate:"required,email"`
	Password string `validate:"min=8"`
	Role     Role   `validate:"omitempty,oneof=patient doctor"`
	FullName string
}

// ValidatePasswordStrength mirrors the backend rule so the form can fail fast.
func ValidatePasswordStrength(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return errors.ErrPasswordTooWeak
	}
	return nil
}

// Validate checks a registration before it is sent to the backend. The email
// must be a bare address; display-name forms are rejected.
func (r Registration) Validate() error {
	r.Email = strings.TrimSpace(r.Email)

	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	switch field := fieldErrs[0].Field(); field {
	case "Email":
		return &errors.ValidationError{Field: "email", Err: errors.ErrInvalidEmail}
	case "Password":
		return &errors.ValidationError{Field: "password", Err: errors.ErrPasswordTooWeak}
	case "Role":
		return &errors.ValidationError{Field: "role", Err: errors.ErrInvalidRole}
	default:
		return &errors.ValidationError{Field: strings.ToLower(field), Err: err}
	}
}

// RoleOrDefault returns the role sent to the backend
func (r Registration) RoleOrDefault() Role {
	if r.Role == RoleUnset {
		return RolePatient
	}
	return r.Role
}
