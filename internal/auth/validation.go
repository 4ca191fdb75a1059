package auth

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

type RegisterRequest struct {
	Username  string `json:"username" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Password  string `json:"password" validate:"required"`
	Password2 string `json:"password2" validate:"required"`
}

var validate = validator.New()

// validateRegister folds struct-level validation into field-keyed messages.
func validateRegister(req *RegisterRequest) map[string]string {
	errs := make(map[string]string)
	if err := validate.Struct(req); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			field := jsonField(fieldErr.Field())
			switch fieldErr.Tag() {
			case "required":
				errs[field] = "This field is required."
			case "email":
				errs[field] = "Enter a valid email address."
			default:
				errs[field] = "Invalid value."
			}
		}
	}
	return errs
}

func jsonField(structField string) string {
	switch structField {
	case "Username":
		return "username"
	case "Email":
		return "email"
	case "FirstName":
		return "first_name"
	case "LastName":
		return "last_name"
	case "Password":
		return "password"
	case "Password2":
		return "password2"
	}
	return strings.ToLower(structField)
}

const passwordSpecials = "!@#$%^&*()_+"

// commonPasswords is a short deny-list of passwords seen in every breach dump.
var commonPasswords = map[string]struct{}{
	"password":   {},
	"password1":  {},
	"password123": {},
	"12345678":   {},
	"123456789":  {},
	"1234567890": {},
	"qwerty123":  {},
	"qwertyuiop": {},
	"iloveyou":   {},
	"letmein1":   {},
	"admin123":   {},
	"welcome1":   {},
}

// CheckPasswordStrength applies the registration password rules and returns
// a user-facing message, or "" when the password passes.
func CheckPasswordStrength(password string) string {
	if len(password) < 8 {
		return "Password must be at least 8 characters long."
	}
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		return "Password is too common."
	}
	allDigits := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	if allDigits {
		return "Password cannot be entirely numeric."
	}
	if !strings.ContainsAny(password, passwordSpecials) {
		return "Password must contain at least one special character: " + passwordSpecials
	}
	return ""
}
