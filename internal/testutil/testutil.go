// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rexlx/mindhaven/internal/store"
	"github.com/rexlx/mindhaven/internal/store/sqlite"
)

// NewStore opens a fresh SQLite store in a temp dir.
func NewStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "haven.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// SeedUser creates an account with a profile and returns its id.
func SeedUser(t *testing.T, s store.Store, email, alias string) string {
	t.Helper()
	ctx := context.Background()
	now := store.Now()
	a := &store.Account{ID: store.NewID(), Email: email, PasswordHash: []byte("x"), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateAccount(ctx, a))
	require.NoError(t, s.UpsertProfile(ctx, &store.Profile{
		ID: store.NewID(), UserID: a.ID, Alias: alias, NotificationsEnabled: true, CreatedAt: now, UpdatedAt: now,
	}))
	return a.ID
}
