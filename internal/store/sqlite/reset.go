package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rexlx/mindhaven/internal/store"
)

// --- Security Question Functions ---

func (s *Store) UpsertSecurityQuestions(ctx context.Context, q *store.SecurityQuestions) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO security_questions (user_id, question1, answer1_hash, question2, answer2_hash, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	question1 = excluded.question1,
	answer1_hash = excluded.answer1_hash,
	question2 = excluded.question2,
	answer2_hash = excluded.answer2_hash,
	updated_at = excluded.updated_at`,
		q.UserID, q.Question1, q.Answer1Hash, q.Question2, q.Answer2Hash,
		toMicros(q.CreatedAt), toMicros(q.UpdatedAt))
	return err
}

func (s *Store) GetSecurityQuestions(ctx context.Context, userID string) (*store.SecurityQuestions, error) {
	var q store.SecurityQuestions
	var created, updated int64
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT user_id, question1, answer1_hash, question2, answer2_hash, created_at, updated_at
FROM security_questions WHERE user_id = ?`, userID).
		Scan(&q.UserID, &q.Question1, &q.Answer1Hash, &q.Question2, &q.Answer2Hash, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	q.CreatedAt = fromMicros(created)
	q.UpdatedAt = fromMicros(updated)
	return &q, nil
}

// --- Reset Code Functions ---

func (s *Store) InvalidateResetCodes(ctx context.Context, email string) error {
	_, err := s.sqlDB.ExecContext(ctx, `UPDATE password_reset_codes SET used = 1 WHERE email = ? AND used = 0`, email)
	return err
}

func (s *Store) CreateResetCode(ctx context.Context, c *store.ResetCode) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO password_reset_codes (id, email, code_hash, expires_at, used, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Email, c.CodeHash, toMicros(c.ExpiresAt), c.Used, toMicros(c.CreatedAt))
	return err
}

func (s *Store) FindActiveResetCode(ctx context.Context, email string, codeHash []byte, now time.Time) (*store.ResetCode, error) {
	var c store.ResetCode
	var expires, created int64
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT id, email, code_hash, expires_at, used, created_at FROM password_reset_codes
WHERE email = ? AND code_hash = ? AND used = 0 AND expires_at > ?
ORDER BY created_at DESC, rowid DESC
LIMIT 1`, email, codeHash, toMicros(now)).
		Scan(&c.ID, &c.Email, &c.CodeHash, &expires, &c.Used, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.ExpiresAt = fromMicros(expires)
	c.CreatedAt = fromMicros(created)
	return &c, nil
}

func (s *Store) ConsumeResetCode(ctx context.Context, id string) (bool, error) {
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE password_reset_codes SET used = 1 WHERE id = ? AND used = 0`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) PurgeResetCodes(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM password_reset_codes WHERE used = 1 OR expires_at < ?`, toMicros(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
