package auth

import (
	"context"
	"fmt"
)

// SetDisabled flips the disabled flag on an existing account.
func (b *MockBackend) SetDisabled(ctx context.Context, email string, disabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	email = normalizeEmail(email)
	users, err := b.users(ctx)
	if err != nil {
		return err
	}
	u, found := users[email]
	if !found {
		return fmt.Errorf("no account for %s", email)
	}
	u.Disabled = disabled
	users[email] = u
	return b.save(ctx, usersKey, users)
}
