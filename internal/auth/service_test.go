package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skufu/excipredict/internal/kv"
)

// slowBackend blocks Resolve until released.
type slowBackend struct {
	*MockBackend
	release chan struct{}
	session *Session
	err     error
}

func (b *slowBackend) Resolve(ctx context.Context) (*Session, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.session, b.err
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	backend := NewMockBackend(kv.NewMemory(), nil, WithBcryptCost(bcrypt.MinCost))
	return NewService(backend, NewStore(), nil)
}

func waitResolved(t *testing.T, s *Store) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st, err := s.WaitResolved(ctx)
	require.NoError(t, err)
	return st
}

func TestServiceStartResolvesOnce(t *testing.T) {
	backend := &slowBackend{release: make(chan struct{}), session: &Session{UserID: "u1"}}
	svc := NewService(backend, NewStore(), nil)

	svc.Start(context.Background())
	svc.Start(context.Background())
	assert.Equal(t, StatusUnknown, svc.Store().Current().Status)

	close(backend.release)
	st := waitResolved(t, svc.Store())
	assert.True(t, st.Authenticated())
	assert.Equal(t, "u1", st.Session.UserID)
}

func TestServiceStartFailureResolvesLoggedOut(t *testing.T) {
	backend := &slowBackend{release: make(chan struct{}), err: errors.New("boom")}
	close(backend.release)
	svc := NewService(backend, NewStore(), nil)

	svc.Start(context.Background())
	st := waitResolved(t, svc.Store())
	assert.Equal(t, StatusResolved, st.Status)
	assert.Nil(t, st.Session)
}

func TestServiceLoginBeforeResolutionWins(t *testing.T) {
	mock := NewMockBackend(kv.NewMemory(), nil, WithBcryptCost(bcrypt.MinCost))
	backend := &slowBackend{MockBackend: mock, release: make(chan struct{})}
	svc := NewService(backend, NewStore(), nil)
	ctx := context.Background()

	svc.Start(ctx)
	sess, err := svc.Signup(ctx, SignupRequest{Email: "ada@example.com", Password: "secret123", ConfirmPassword: "secret123"})
	require.NoError(t, err)

	close(backend.release)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, sess.UserID, svc.Store().UserID())
}

func TestServiceSignupValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  SignupRequest
		kind Kind
	}{
		{"bad email", SignupRequest{Email: "not-an-email", Password: "secret123", ConfirmPassword: "secret123"}, KindInvalidEmail},
		{"short", SignupRequest{Email: "a@b.co", Password: "abc1", ConfirmPassword: "abc1"}, KindWeakPassword},
		{"no digit", SignupRequest{Email: "a@b.co", Password: "abcdefgh", ConfirmPassword: "abcdefgh"}, KindWeakPassword},
		{"mismatch", SignupRequest{Email: "a@b.co", Password: "secret123", ConfirmPassword: "secret124"}, KindPasswordMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(ctx, tt.req)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
	assert.Equal(t, StatusUnknown, svc.Store().Current().Status)
}

func TestServiceLoginLogout(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, Credentials{Email: "", Password: "x"})
	assert.Equal(t, KindInvalidCredentials, KindOf(err))

	_, err = svc.Signup(ctx, SignupRequest{Email: "ada@example.com", Password: "secret123", ConfirmPassword: "secret123"})
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx))
	st := svc.Store().Current()
	assert.Equal(t, StatusResolved, st.Status)
	assert.Nil(t, st.Session)

	sess, err := svc.Login(ctx, Credentials{Email: "ada@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, svc.Store().UserID())

	require.NoError(t, svc.Logout(ctx))
	require.NoError(t, svc.Logout(ctx))
}

func TestServiceResetValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.RequestPasswordReset(ctx, "nope")
	assert.Equal(t, KindInvalidEmail, KindOf(err))

	msg, err := svc.RequestPasswordReset(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, ResetRequestedMessage, msg)

	err = svc.ResetPassword(ctx, ResetRequest{Email: "a@b.co", Token: " ", Password: "secret123", ConfirmPassword: "secret123"})
	assert.Equal(t, KindInvalidResetToken, KindOf(err))
	err = svc.ResetPassword(ctx, ResetRequest{Email: "a@b.co", Token: "t", Password: "secret123", ConfirmPassword: "x"})
	assert.Equal(t, KindPasswordMismatch, KindOf(err))
}

func TestUserMessages(t *testing.T) {
	assert.Equal(t, "Invalid email or password.", (&AuthError{Kind: KindInvalidCredentials}).UserMessage())
	assert.Equal(t, "An error occurred. Please try again.", asAuthError(errors.New("db down")).UserMessage())
	assert.Equal(t, "Password must contain a number", CheckPassword("abcdefgh").(*AuthError).UserMessage())
	assert.Equal(t, Kind(""), KindOf(nil))
}
