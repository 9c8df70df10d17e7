package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skufu/excipredict/internal/kv"
)

const uniqueViolation = "23505"

// DB is the slice of *pgxpool.Pool the backend needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresBackend stores accounts in Postgres. The local kv.Store only remembers which
// server-side session token this process holds.
type PostgresBackend struct {
	db     DB
	local  kv.Store
	logger *zap.Logger
	now    func() time.Time
	cost   int
}

func NewPostgresBackend(db DB, local kv.Store, logger *zap.Logger) *PostgresBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresBackend{db: db, local: local, logger: logger, now: time.Now, cost: bcrypt.DefaultCost}
}

func (b *PostgresBackend) Resolve(ctx context.Context) (*Session, error) {
	raw, ok, err := b.local.Get(ctx, authKey)
	if err != nil || !ok {
		return nil, err
	}
	var auth persistedAuth
	if err := json.Unmarshal(raw, &auth); err != nil || auth.Token == "" {
		b.logger.Info("discarding unreadable persisted session")
		return nil, b.local.Delete(ctx, authKey)
	}

	var (
		u        storedUser
		disabled bool
	)
	err = b.db.QueryRow(ctx, `
		SELECT u.id, u.email, u.full_name, u.disabled
		FROM auth_sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token = $1`, auth.Token).Scan(&u.ID, &u.Email, &u.FullName, &disabled)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && disabled) {
		b.logger.Info("discarding stale persisted session")
		return nil, b.local.Delete(ctx, authKey)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	return u.session(), nil
}

func (b *PostgresBackend) Login(ctx context.Context, creds Credentials) (*Session, error) {
	email := normalizeEmail(creds.Email)

	var (
		u           storedUser
		failed      int
		lockedUntil *time.Time
	)
	err := b.db.QueryRow(ctx, `
		SELECT id, email, full_name, password_hash, disabled, failed_attempts, locked_until
		FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Disabled, &failed, &lockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, newError(KindInvalidCredentials, "")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	now := b.now()
	if lockedUntil != nil && now.Before(*lockedUntil) {
		return nil, newError(KindTooManyAttempts, "")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(creds.Password)) != nil {
		failed++
		var lock *time.Time
		if failed >= MaxLoginAttempts {
			until := now.Add(LockoutDuration)
			lock, failed = &until, 0
			b.logger.Warn("account locked after failed logins", zap.String("email", email))
		}
		if _, err := b.db.Exec(ctx,
			`UPDATE users SET failed_attempts = $2, locked_until = $3 WHERE id = $1`,
			u.ID, failed, lock); err != nil {
			return nil, fmt.Errorf("record failed login: %w", err)
		}
		return nil, newError(KindInvalidCredentials, "")
	}
	if u.Disabled {
		return nil, newError(KindAccountDisabled, "")
	}

	if _, err := b.db.Exec(ctx,
		`UPDATE users SET failed_attempts = 0, locked_until = NULL WHERE id = $1`, u.ID); err != nil {
		return nil, fmt.Errorf("clear failed logins: %w", err)
	}
	return b.openSession(ctx, u)
}

func (b *PostgresBackend) Signup(ctx context.Context, req SignupRequest) (*Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), b.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := storedUser{
		ID:           "user_" + uuid.NewString(),
		Email:        normalizeEmail(req.Email),
		FullName:     req.FullName,
		PasswordHash: string(hash),
	}
	_, err = b.db.Exec(ctx,
		`INSERT INTO users (id, email, full_name, password_hash) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Email, u.FullName, u.PasswordHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, newError(KindEmailInUse, "")
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return b.openSession(ctx, u)
}

func (b *PostgresBackend) Logout(ctx context.Context) error {
	raw, ok, err := b.local.Get(ctx, authKey)
	if err != nil {
		return err
	}
	if ok {
		var auth persistedAuth
		if json.Unmarshal(raw, &auth) == nil && auth.Token != "" {
			if _, err := b.db.Exec(ctx, `DELETE FROM auth_sessions WHERE token = $1`, auth.Token); err != nil {
				b.logger.Warn("failed to revoke server session", zap.Error(err))
			}
		}
	}
	return b.local.Delete(ctx, authKey)
}

func (b *PostgresBackend) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	var exists bool
	if err := b.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if !exists {
		return ResetRequestedMessage, nil
	}

	token := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), b.cost)
	if err != nil {
		return "", fmt.Errorf("hash reset token: %w", err)
	}
	expires := b.now().Add(ResetTokenTTL)
	if _, err := b.db.Exec(ctx, `
		INSERT INTO password_resets (email, token_hash, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET token_hash = excluded.token_hash, expires_at = excluded.expires_at`,
		email, string(hash), expires); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	// No mail transport is configured; operators hand the token over out of band.
	b.logger.Info("password reset token issued",
		zap.String("email", email),
		zap.String("token", token),
		zap.Time("expires_at", expires))
	return ResetRequestedMessage, nil
}

func (b *PostgresBackend) ResetPassword(ctx context.Context, req ResetRequest) error {
	email := normalizeEmail(req.Email)
	var (
		tokenHash string
		expires   time.Time
	)
	err := b.db.QueryRow(ctx,
		`SELECT token_hash, expires_at FROM password_resets WHERE email = $1`, email).
		Scan(&tokenHash, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return newError(KindInvalidResetToken, "")
	}
	if err != nil {
		return fmt.Errorf("load reset token: %w", err)
	}
	if !b.now().Before(expires) || bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(req.Token)) != nil {
		return newError(KindInvalidResetToken, "")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), b.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := b.db.Exec(ctx, `
		UPDATE users SET password_hash = $2, failed_attempts = 0, locked_until = NULL
		WHERE email = $1`, email, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if _, err := b.db.Exec(ctx, `DELETE FROM password_resets WHERE email = $1`, email); err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if _, err := b.db.Exec(ctx, `
		DELETE FROM auth_sessions WHERE user_id = (SELECT id FROM users WHERE email = $1)`, email); err != nil {
		b.logger.Warn("failed to revoke sessions after reset", zap.Error(err))
	}
	return nil
}

func (b *PostgresBackend) openSession(ctx context.Context, u storedUser) (*Session, error) {
	token := uuid.NewString()
	if _, err := b.db.Exec(ctx,
		`INSERT INTO auth_sessions (token, user_id) VALUES ($1, $2)`, token, u.ID); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	sess := u.session()
	raw, err := json.Marshal(persistedAuth{User: *sess, Token: token})
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	if err := b.local.Put(ctx, authKey, raw); err != nil {
		return nil, err
	}
	return sess, nil
}
