package auth

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const MinPasswordLength = 8

var validate = validator.New()

// CheckPassword enforces the signup policy: length, a letter and a digit.
func CheckPassword(password string) error {
	if len(password) < MinPasswordLength {
		return newError(KindWeakPassword, "Password must be at least 8 characters")
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter {
		return newError(KindWeakPassword, "Password must contain a letter")
	}
	if !digit {
		return newError(KindWeakPassword, "Password must contain a number")
	}
	return nil
}

func checkEmail(email string) error {
	if err := validate.Var(strings.TrimSpace(email), "required,email"); err != nil {
		return newError(KindInvalidEmail, "")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func displayName(fullName, email string) string {
	if name := strings.TrimSpace(fullName); name != "" {
		return name
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}
