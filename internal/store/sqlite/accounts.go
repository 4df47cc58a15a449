package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rexlx/mindhaven/internal/store"
)

// --- Account Functions ---

func (s *Store) CreateAccount(ctx context.Context, a *store.Account) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.PasswordHash, toMicros(a.CreatedAt), toMicros(a.UpdatedAt))
	if isUniqueConstraintError(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) scanAccount(row *sql.Row) (*store.Account, error) {
	var a store.Account
	var created, updated int64
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt = fromMicros(created)
	a.UpdatedAt = fromMicros(updated)
	return &a, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*store.Account, error) {
	return s.scanAccount(s.sqlDB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at, updated_at FROM accounts WHERE id = ?`, id))
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*store.Account, error) {
	return s.scanAccount(s.sqlDB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at, updated_at FROM accounts WHERE email = ?`, email))
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id string, hash []byte) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, toMicros(store.Now()), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) DeleteUserData(ctx context.Context, userID string) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var email string
	err = tx.QueryRowContext(ctx, `SELECT email FROM accounts WHERE id = ?`, userID).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM password_reset_codes WHERE email = ?`, email); err != nil {
		return fmt.Errorf("delete reset codes: %w", err)
	}
	// Every other owned row cascades from accounts.
	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, userID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return tx.Commit()
}

// --- Profile Functions ---

const profileColumns = `id, user_id, anonymous_alias, avatar_url, bio, notifications_enabled, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (store.Profile, error) {
	var p store.Profile
	var created, updated int64
	if err := row.Scan(&p.ID, &p.UserID, &p.Alias, &p.AvatarURL, &p.Bio, &p.NotificationsEnabled, &created, &updated); err != nil {
		return store.Profile{}, err
	}
	p.CreatedAt = fromMicros(created)
	p.UpdatedAt = fromMicros(updated)
	return p, nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*store.Profile, error) {
	p, err := scanProfile(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpsertProfile(ctx context.Context, p *store.Profile) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	anonymous_alias = excluded.anonymous_alias,
	avatar_url = excluded.avatar_url,
	bio = excluded.bio,
	notifications_enabled = excluded.notifications_enabled,
	updated_at = excluded.updated_at`,
		p.ID, p.UserID, p.Alias, p.AvatarURL, p.Bio, p.NotificationsEnabled,
		toMicros(p.CreatedAt), toMicros(p.UpdatedAt))
	return err
}

func (s *Store) queryProfiles(ctx context.Context, query string, args ...any) ([]store.Profile, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var profiles []store.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (s *Store) ListProfiles(ctx context.Context, userIDs []string) ([]store.Profile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}
	return s.queryProfiles(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id IN (`+placeholders(len(userIDs))+`)`, args...)
}

func (s *Store) SearchProfiles(ctx context.Context, excludeUserID, query string, limit int) ([]store.Profile, error) {
	return s.queryProfiles(ctx, `
SELECT `+profileColumns+` FROM profiles
WHERE user_id <> ? AND anonymous_alias LIKE ? ESCAPE '\'
ORDER BY anonymous_alias ASC
LIMIT ?`, excludeUserID, "%"+store.EscapeLike(query)+"%", limit)
}
