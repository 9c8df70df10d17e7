package auth

import "errors"

type Kind string

const (
	KindInvalidCredentials Kind = "invalid_credentials"
	KindAccountDisabled    Kind = "account_disabled"
	KindTooManyAttempts    Kind = "too_many_attempts"
	KindEmailInUse         Kind = "email_in_use"
	KindWeakPassword       Kind = "weak_password"
	KindPasswordMismatch   Kind = "password_mismatch"
	KindInvalidEmail       Kind = "invalid_email"
	KindInvalidResetToken  Kind = "invalid_reset_token"
	KindGeneric            Kind = "generic"
)

type AuthError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.UserMessage()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown next to the form.
func (e *AuthError) UserMessage() string {
	switch e.Kind {
	case KindInvalidCredentials:
		return "Invalid email or password."
	case KindAccountDisabled:
		return "This account has been disabled."
	case KindTooManyAttempts:
		return "Too many failed attempts. Please try again later."
	case KindEmailInUse:
		return "An account with this email already exists."
	case KindWeakPassword:
		if e.Message != "" {
			return e.Message
		}
		return "Password is too weak. Please use a stronger password."
	case KindPasswordMismatch:
		return "Passwords do not match"
	case KindInvalidEmail:
		return "Invalid email address format."
	case KindInvalidResetToken:
		return "This reset link is invalid or has expired."
	default:
		return "An error occurred. Please try again."
	}
}

func newError(kind Kind, msg string) *AuthError {
	return &AuthError{Kind: kind, Message: msg}
}

// asAuthError maps any backend failure onto the taxonomy.
func asAuthError(err error) *AuthError {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}
	return &AuthError{Kind: KindGeneric, Err: err}
}

// KindOf returns the kind of an auth failure, or "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return asAuthError(err).Kind
}
