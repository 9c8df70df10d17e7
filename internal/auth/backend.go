package auth

import "context"

// ResetRequestedMessage is returned for every reset request so callers cannot probe
// which emails are registered.
const ResetRequestedMessage = "If an account exists with this email, a reset link has been generated."

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FullName        string `json:"fullName"`
}

type ResetRequest struct {
	Email           string `json:"email"`
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Backend authenticates users. Failures are returned as *AuthError where the kind is known.
type Backend interface {
	// Resolve returns the persisted session, or nil when nobody is signed in.
	Resolve(ctx context.Context) (*Session, error)
	Login(ctx context.Context, creds Credentials) (*Session, error)
	Signup(ctx context.Context, req SignupRequest) (*Session, error)
	Logout(ctx context.Context) error
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, req ResetRequest) error
}
