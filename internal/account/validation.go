package account

import (
	"errors"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	minPasswordLen = 8
	// bcrypt rejects longer input
	maxPasswordBytes = 72
)

// PasswordMeetsPolicy reports whether s has at least eight characters, at
// most 72 bytes, and contains an ASCII upper-case letter, lower-case letter
// and digit.
func PasswordMeetsPolicy(s string) bool {
	if utf8.RuneCountInString(s) < minPasswordLen || len(s) > maxPasswordBytes {
		return false
	}

	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case 'A' <= r && r <= 'Z':
			upper = true
		case 'a' <= r && r <= 'z':
			lower = true
		case '0' <= r && r <= '9':
			digit = true
		}
	}

	return upper && lower && digit
}

// RegisterValidations installs the "password" and "notblank" rules on v.
// The HTTP binder and the service share them so both layers agree.
func RegisterValidations(v *validator.Validate) error {
	err := v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return PasswordMeetsPolicy(fl.Field().String())
	})
	if err != nil {
		return err
	}

	return v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report JSON names so callers can echo them back to clients
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := RegisterValidations(v); err != nil {
		// only fails on a malformed tag name
		panic(err)
	}

	return v
}

func (s *Service) validate(in any) error {
	err := s.validator.Struct(in)
	if err == nil {
		return nil
	}

	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		return &ValidationError{Fields: fields}
	}

	return err
}
