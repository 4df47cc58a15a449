package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rexlx/mindhaven/internal/store"
)

// --- AI Chat Functions ---

func (s *Store) CreateChat(ctx context.Context, c *store.AIChat) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO ai_chats (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Title, toMicros(c.CreatedAt), toMicros(c.UpdatedAt))
	return err
}

func scanChat(row rowScanner) (store.AIChat, error) {
	var c store.AIChat
	var created, updated int64
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &created, &updated); err != nil {
		return store.AIChat{}, err
	}
	c.CreatedAt = fromMicros(created)
	c.UpdatedAt = fromMicros(updated)
	return c, nil
}

func (s *Store) GetChat(ctx context.Context, id string) (*store.AIChat, error) {
	c, err := scanChat(s.sqlDB.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM ai_chats WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListChats(ctx context.Context, userID string) ([]store.AIChat, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, user_id, title, created_at, updated_at FROM ai_chats
WHERE user_id = ?
ORDER BY updated_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chats []store.AIChat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func (s *Store) UpdateChatTitle(ctx context.Context, id, title string) error {
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE ai_chats SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) TouchChat(ctx context.Context, id string, at time.Time) error {
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE ai_chats SET updated_at = ? WHERE id = ?`, toMicros(at), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) DeleteChat(ctx context.Context, id string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM ai_chats WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) AddChatMessage(ctx context.Context, m *store.AIMessage) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO ai_chat_messages (id, chat_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ChatID, m.Role, m.Content, toMicros(m.CreatedAt))
	return err
}

func (s *Store) ListChatMessages(ctx context.Context, chatID string) ([]store.AIMessage, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, chat_id, role, content, created_at FROM ai_chat_messages
WHERE chat_id = ?
ORDER BY created_at ASC, rowid ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []store.AIMessage
	for rows.Next() {
		var m store.AIMessage
		var created int64
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = fromMicros(created)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
