package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skufu/excipredict/internal/kv"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMock(t *testing.T) (*MockBackend, *kv.Memory, *fakeClock, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	store := kv.NewMemory()
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	b := NewMockBackend(store, zap.New(core), WithClock(clock.now), WithBcryptCost(bcrypt.MinCost))
	return b, store, clock, logs
}

func signup(t *testing.T, b *MockBackend, email, password string) *Session {
	t.Helper()
	sess, err := b.Signup(context.Background(), SignupRequest{
		Email: email, Password: password, ConfirmPassword: password, FullName: "Ada Lovelace",
	})
	require.NoError(t, err)
	return sess
}

func TestMockSignupPersistsSession(t *testing.T) {
	b, store, _, _ := newTestMock(t)
	ctx := context.Background()

	sess := signup(t, b, "Ada@Example.com", "secret123")
	assert.Equal(t, "ada@example.com", sess.Email)
	assert.Equal(t, "Ada Lovelace", sess.DisplayName)
	assert.Contains(t, sess.UserID, "user_")

	resolved, err := b.Resolve(ctx)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, sess.UserID, resolved.UserID)

	// A fresh backend on the same store sees the same session.
	other := NewMockBackend(store, nil)
	resolved, err = other.Resolve(ctx)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, sess.UserID, resolved.UserID)
}

func TestMockSignupDuplicateEmail(t *testing.T) {
	b, _, _, _ := newTestMock(t)
	signup(t, b, "ada@example.com", "secret123")

	_, err := b.Signup(context.Background(), SignupRequest{Email: "ADA@example.com", Password: "other1234"})
	assert.Equal(t, KindEmailInUse, KindOf(err))
}

func TestMockLoginAndLogout(t *testing.T) {
	b, _, _, _ := newTestMock(t)
	ctx := context.Background()
	signup(t, b, "ada@example.com", "secret123")
	require.NoError(t, b.Logout(ctx))

	sess, err := b.Resolve(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)

	_, err = b.Login(ctx, Credentials{Email: "ada@example.com", Password: "wrong"})
	assert.Equal(t, KindInvalidCredentials, KindOf(err))
	_, err = b.Login(ctx, Credentials{Email: "nobody@example.com", Password: "secret123"})
	assert.Equal(t, KindInvalidCredentials, KindOf(err))

	sess, err = b.Login(ctx, Credentials{Email: " ADA@example.com ", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", sess.Email)
}

func TestMockLockout(t *testing.T) {
	b, _, clock, _ := newTestMock(t)
	ctx := context.Background()
	signup(t, b, "ada@example.com", "secret123")

	for i := 0; i < MaxLoginAttempts; i++ {
		_, err := b.Login(ctx, Credentials{Email: "ada@example.com", Password: "wrong"})
		assert.Equal(t, KindInvalidCredentials, KindOf(err))
	}
	_, err := b.Login(ctx, Credentials{Email: "ada@example.com", Password: "secret123"})
	assert.Equal(t, KindTooManyAttempts, KindOf(err))

	clock.advance(LockoutDuration)
	_, err = b.Login(ctx, Credentials{Email: "ada@example.com", Password: "secret123"})
	assert.NoError(t, err)
}

func TestMockDisabledAccount(t *testing.T) {
	b, _, _, _ := newTestMock(t)
	ctx := context.Background()
	signup(t, b, "ada@example.com", "secret123")
	require.NoError(t, b.SetDisabled(ctx, "ada@example.com", true))

	sess, err := b.Resolve(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)

	_, err = b.Login(ctx, Credentials{Email: "ada@example.com", Password: "secret123"})
	assert.Equal(t, KindAccountDisabled, KindOf(err))
}

func TestMockPasswordReset(t *testing.T) {
	b, _, clock, logs := newTestMock(t)
	ctx := context.Background()
	signup(t, b, "ada@example.com", "secret123")

	msg, err := b.RequestPasswordReset(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, ResetRequestedMessage, msg)
	assert.Zero(t, logs.FilterMessage("password reset token issued").Len())

	msg, err = b.RequestPasswordReset(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, ResetRequestedMessage, msg)

	issued := logs.FilterMessage("password reset token issued").All()
	require.Len(t, issued, 1)
	token := issued[0].ContextMap()["token"].(string)

	err = b.ResetPassword(ctx, ResetRequest{Email: "ada@example.com", Token: "bogus", Password: "newpass99"})
	assert.Equal(t, KindInvalidResetToken, KindOf(err))

	require.NoError(t, b.ResetPassword(ctx, ResetRequest{Email: "ada@example.com", Token: token, Password: "newpass99"}))

	// Tokens are single use.
	err = b.ResetPassword(ctx, ResetRequest{Email: "ada@example.com", Token: token, Password: "another99"})
	assert.Equal(t, KindInvalidResetToken, KindOf(err))

	_, err = b.Login(ctx, Credentials{Email: "ada@example.com", Password: "newpass99"})
	assert.NoError(t, err)

	_, err = b.RequestPasswordReset(ctx, "ada@example.com")
	require.NoError(t, err)
	token = logs.FilterMessage("password reset token issued").All()[1].ContextMap()["token"].(string)
	clock.advance(ResetTokenTTL)
	err = b.ResetPassword(ctx, ResetRequest{Email: "ada@example.com", Token: token, Password: "late12345"})
	assert.Equal(t, KindInvalidResetToken, KindOf(err))
}

func TestMockResolveDiscardsUnknownUser(t *testing.T) {
	b, store, _, _ := newTestMock(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, authKey, []byte(`{"user":{"userId":"user_x","email":"ghost@example.com"},"token":"t"}`)))

	sess, err := b.Resolve(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)
	_, ok, _ := store.Get(ctx, authKey)
	assert.False(t, ok)
}
