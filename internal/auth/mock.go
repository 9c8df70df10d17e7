package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skufu/excipredict/internal/kv"
)

const (
	usersKey    = "excipredict_users"
	authKey     = "excipredict_auth"
	resetsKey   = "excipredict_reset_tokens"
	attemptsKey = "excipredict_login_attempts"

	MaxLoginAttempts = 5
	LockoutDuration  = 15 * time.Minute
	ResetTokenTTL    = time.Hour
)

type storedUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	FullName     string `json:"fullName"`
	PasswordHash string `json:"passwordHash"`
	Disabled     bool   `json:"disabled,omitempty"`
}

func (u storedUser) session() *Session {
	return &Session{UserID: u.ID, Email: u.Email, DisplayName: displayName(u.FullName, u.Email)}
}

type persistedAuth struct {
	User  Session `json:"user"`
	Token string  `json:"token"`
}

type resetToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type loginAttempts struct {
	Count       int       `json:"count"`
	LockedUntil time.Time `json:"lockedUntil"`
}

// MockBackend keeps accounts in a local kv.Store. Reset tokens are written to the log
// instead of being emailed.
type MockBackend struct {
	mu     sync.Mutex
	store  kv.Store
	logger *zap.Logger
	now    func() time.Time
	cost   int
}

type MockOption func(*MockBackend)

func WithClock(now func() time.Time) MockOption {
	return func(b *MockBackend) { b.now = now }
}

// WithBcryptCost lowers hashing cost, mostly for tests.
func WithBcryptCost(cost int) MockOption {
	return func(b *MockBackend) { b.cost = cost }
}

func NewMockBackend(store kv.Store, logger *zap.Logger, opts ...MockOption) *MockBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &MockBackend{store: store, logger: logger, now: time.Now, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *MockBackend) Resolve(ctx context.Context) (*Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var auth persistedAuth
	ok, err := b.load(ctx, authKey, &auth)
	if err != nil || !ok {
		return nil, err
	}
	users, err := b.users(ctx)
	if err != nil {
		return nil, err
	}
	u, found := users[normalizeEmail(auth.User.Email)]
	if auth.Token == "" || !found || u.ID != auth.User.UserID || u.Disabled {
		b.logger.Info("discarding stale persisted session")
		return nil, b.store.Delete(ctx, authKey)
	}
	return u.session(), nil
}

func (b *MockBackend) Login(ctx context.Context, creds Credentials) (*Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	email := normalizeEmail(creds.Email)
	attempts, err := loadMap[loginAttempts](ctx, b, attemptsKey)
	if err != nil {
		return nil, err
	}
	now := b.now()
	a := attempts[email]
	if now.Before(a.LockedUntil) {
		return nil, newError(KindTooManyAttempts, "")
	}

	users, err := b.users(ctx)
	if err != nil {
		return nil, err
	}
	u, found := users[email]
	if !found || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(creds.Password)) != nil {
		a.Count++
		if a.Count >= MaxLoginAttempts {
			a = loginAttempts{LockedUntil: now.Add(LockoutDuration)}
			b.logger.Warn("account locked after failed logins", zap.String("email", email))
		}
		attempts[email] = a
		if err := b.save(ctx, attemptsKey, attempts); err != nil {
			return nil, err
		}
		return nil, newError(KindInvalidCredentials, "")
	}
	if u.Disabled {
		return nil, newError(KindAccountDisabled, "")
	}

	delete(attempts, email)
	if err := b.save(ctx, attemptsKey, attempts); err != nil {
		return nil, err
	}
	sess := u.session()
	if err := b.save(ctx, authKey, persistedAuth{User: *sess, Token: uuid.NewString()}); err != nil {
		return nil, err
	}
	return sess, nil
}

func (b *MockBackend) Signup(ctx context.Context, req SignupRequest) (*Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	email := normalizeEmail(req.Email)
	users, err := b.users(ctx)
	if err != nil {
		return nil, err
	}
	if _, exists := users[email]; exists {
		return nil, newError(KindEmailInUse, "")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), b.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := storedUser{
		ID:           "user_" + uuid.NewString(),
		Email:        email,
		FullName:     req.FullName,
		PasswordHash: string(hash),
	}
	users[email] = u
	if err := b.save(ctx, usersKey, users); err != nil {
		return nil, err
	}
	sess := u.session()
	if err := b.save(ctx, authKey, persistedAuth{User: *sess, Token: uuid.NewString()}); err != nil {
		return nil, err
	}
	return sess, nil
}

func (b *MockBackend) Logout(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Delete(ctx, authKey)
}

func (b *MockBackend) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	email = normalizeEmail(email)
	users, err := b.users(ctx)
	if err != nil {
		return "", err
	}
	if _, found := users[email]; !found {
		return ResetRequestedMessage, nil
	}

	resets, err := loadMap[resetToken](ctx, b, resetsKey)
	if err != nil {
		return "", err
	}
	tok := resetToken{Token: uuid.NewString(), ExpiresAt: b.now().Add(ResetTokenTTL)}
	resets[email] = tok
	if err := b.save(ctx, resetsKey, resets); err != nil {
		return "", err
	}
	b.logger.Info("password reset token issued",
		zap.String("email", email),
		zap.String("token", tok.Token),
		zap.Time("expires_at", tok.ExpiresAt))
	return ResetRequestedMessage, nil
}

func (b *MockBackend) ResetPassword(ctx context.Context, req ResetRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	email := normalizeEmail(req.Email)
	resets, err := loadMap[resetToken](ctx, b, resetsKey)
	if err != nil {
		return err
	}
	tok, found := resets[email]
	if !found || tok.Token != req.Token || !b.now().Before(tok.ExpiresAt) {
		return newError(KindInvalidResetToken, "")
	}
	users, err := b.users(ctx)
	if err != nil {
		return err
	}
	u, found := users[email]
	if !found {
		return newError(KindInvalidResetToken, "")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), b.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	users[email] = u
	if err := b.save(ctx, usersKey, users); err != nil {
		return err
	}

	delete(resets, email)
	if err := b.save(ctx, resetsKey, resets); err != nil {
		return err
	}
	attempts, err := loadMap[loginAttempts](ctx, b, attemptsKey)
	if err != nil {
		return err
	}
	delete(attempts, email)
	return b.save(ctx, attemptsKey, attempts)
}

func (b *MockBackend) users(ctx context.Context) (map[string]storedUser, error) {
	return loadMap[storedUser](ctx, b, usersKey)
}

// loadMap decodes a keyed collection, returning an empty writable map when absent.
func loadMap[V any](ctx context.Context, b *MockBackend, key string) (map[string]V, error) {
	var m map[string]V
	if _, err := b.load(ctx, key, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = make(map[string]V)
	}
	return m, nil
}

func (b *MockBackend) load(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := b.store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (b *MockBackend) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return b.store.Put(ctx, key, raw)
}
