package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rexlx/mindhaven/internal/store"
)

// --- Mood Functions ---

func scanMood(row rowScanner) (store.MoodLog, error) {
	var m store.MoodLog
	var created int64
	if err := row.Scan(&m.ID, &m.UserID, &m.Mood, &m.Notes, &created); err != nil {
		return store.MoodLog{}, err
	}
	m.CreatedAt = fromMicros(created)
	return m, nil
}

func (s *Store) AddMood(ctx context.Context, m *store.MoodLog) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO mood_logs (id, user_id, mood, notes, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Mood, m.Notes, toMicros(m.CreatedAt))
	return err
}

func (s *Store) GetMood(ctx context.Context, id string) (*store.MoodLog, error) {
	m, err := scanMood(s.sqlDB.QueryRowContext(ctx,
		`SELECT id, user_id, mood, notes, created_at FROM mood_logs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListMoods(ctx context.Context, userID string) ([]store.MoodLog, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, user_id, mood, notes, created_at FROM mood_logs
WHERE user_id = ?
ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []store.MoodLog
	for rows.Next() {
		m, err := scanMood(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, m)
	}
	return logs, rows.Err()
}

func (s *Store) DeleteMood(ctx context.Context, id string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM mood_logs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
