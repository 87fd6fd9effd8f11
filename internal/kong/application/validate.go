package application

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	usernameRules = "required,max=15,kong_username"
	emailRules    = "required,contains=@,contains=."
	passwordRules = "min=10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("kong_username", isKongUsername); err != nil {
		panic(err)
	}
	return v
}

// isKongUsername accepts ASCII letters, digits and at most one underscore,
// which may not lead.
func isKongUsername(fl validator.FieldLevel) bool {
	username := fl.Field().String()
	if strings.HasPrefix(username, "_") || strings.Count(username, "_") > 1 {
		return false
	}
	for _, c := range username {
		switch {
		case c == '_':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// ValidateUsername reports ErrInvalidUsername for empty, overlong or
// malformed usernames.
func ValidateUsername(username string) error {
	if err := validate.Var(username, usernameRules); err != nil {
		return ErrInvalidUsername
	}
	return nil
}

// ValidateEmail reports ErrInvalidEmail for addresses that are empty or lack
// an "@" or a ".".
func ValidateEmail(email string) error {
	if err := validate.Var(email, emailRules); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword reports ErrInvalidPassword for passwords shorter than ten
// characters.
func ValidatePassword(password string) error {
	if err := validate.Var(password, passwordRules); err != nil {
		return ErrInvalidPassword
	}
	return nil
}
