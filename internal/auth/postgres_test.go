package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skufu/excipredict/internal/kv"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(r.values))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *bool:
			*p = r.values[i].(bool)
		case *int:
			*p = r.values[i].(int)
		case *time.Time:
			*p = r.values[i].(time.Time)
		case **time.Time:
			if v, ok := r.values[i].(time.Time); ok {
				*p = &v
			}
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	rows    []pgx.Row
	execErr error
	execs   []execCall
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: strings.TrimSpace(sql), args: args})
	return pgconn.NewCommandTag("OK"), f.execErr
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	if len(f.rows) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	row := f.rows[0]
	f.rows = f.rows[1:]
	return row
}

func newTestPostgres(db *fakeDB) (*PostgresBackend, *kv.Memory) {
	local := kv.NewMemory()
	b := NewPostgresBackend(db, local, nil)
	b.cost = bcrypt.MinCost
	b.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return b, local
}

func TestPostgresSignupUniqueViolation(t *testing.T) {
	db := &fakeDB{execErr: &pgconn.PgError{Code: "23505"}}
	b, _ := newTestPostgres(db)

	_, err := b.Signup(context.Background(), SignupRequest{Email: "ada@example.com", Password: "secret123"})
	assert.Equal(t, KindEmailInUse, KindOf(err))
}

func TestPostgresSignupOpensSession(t *testing.T) {
	db := &fakeDB{}
	b, local := newTestPostgres(db)
	ctx := context.Background()

	sess, err := b.Signup(ctx, SignupRequest{Email: "Ada@Example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", sess.Email)
	require.Len(t, db.execs, 2)
	assert.Contains(t, db.execs[1].sql, "INSERT INTO auth_sessions")

	_, ok, _ := local.Get(ctx, authKey)
	assert.True(t, ok)
}

func TestPostgresResolve(t *testing.T) {
	ctx := context.Background()

	b, _ := newTestPostgres(&fakeDB{})
	sess, err := b.Resolve(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)

	db := &fakeDB{rows: []pgx.Row{fakeRow{values: []any{"user_1", "ada@example.com", "", false}}}}
	b, local := newTestPostgres(db)
	require.NoError(t, local.Put(ctx, authKey, []byte(`{"user":{"userId":"user_1"},"token":"tok"}`)))
	sess, err = b.Resolve(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "ada", sess.DisplayName)

	// The server no longer knows the token.
	sess, err = b.Resolve(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)
	_, ok, _ := local.Get(ctx, authKey)
	assert.False(t, ok)
}

func TestPostgresLoginLocksAfterRepeatedFailures(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	row := fakeRow{values: []any{"user_1", "ada@example.com", "Ada", string(hash), false, MaxLoginAttempts - 1, nil}}
	db := &fakeDB{rows: []pgx.Row{row}}
	b, _ := newTestPostgres(db)

	_, err = b.Login(context.Background(), Credentials{Email: "ada@example.com", Password: "wrong"})
	assert.Equal(t, KindInvalidCredentials, KindOf(err))
	require.Len(t, db.execs, 1)
	lock, ok := db.execs[0].args[2].(*time.Time)
	require.True(t, ok)
	require.NotNil(t, lock)
	assert.Equal(t, b.now().Add(LockoutDuration), *lock)

	db.rows = []pgx.Row{fakeRow{values: []any{"user_1", "ada@example.com", "Ada", string(hash), false, 0, *lock}}}
	_, err = b.Login(context.Background(), Credentials{Email: "ada@example.com", Password: "secret123"})
	assert.Equal(t, KindTooManyAttempts, KindOf(err))
}

func TestPostgresLoginFailureIsGeneric(t *testing.T) {
	db := &fakeDB{rows: []pgx.Row{fakeRow{err: errors.New("connection reset")}}}
	b, _ := newTestPostgres(db)
	_, err := b.Login(context.Background(), Credentials{Email: "ada@example.com", Password: "x"})
	assert.Equal(t, KindGeneric, KindOf(err))
}

func TestPostgresResetRejectsExpiredToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("tok"), bcrypt.MinCost)
	require.NoError(t, err)
	db := &fakeDB{}
	b, _ := newTestPostgres(db)

	db.rows = []pgx.Row{fakeRow{values: []any{string(hash), b.now().Add(-time.Minute)}}}
	err = b.ResetPassword(context.Background(), ResetRequest{Email: "ada@example.com", Token: "tok", Password: "secret123"})
	assert.Equal(t, KindInvalidResetToken, KindOf(err))

	db.rows = []pgx.Row{fakeRow{values: []any{string(hash), b.now().Add(time.Minute)}}}
	require.NoError(t, b.ResetPassword(context.Background(), ResetRequest{Email: "ada@example.com", Token: "tok", Password: "secret123"}))
	assert.Len(t, db.execs, 3)
}
