package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rexlx/mindhaven/internal/store"
)

// --- Peer Chat Functions ---

const peerChatColumns = `id, participant1_id, participant2_id, created_at, updated_at`

func scanPeerChat(row rowScanner) (store.PeerChat, error) {
	var c store.PeerChat
	var created, updated int64
	if err := row.Scan(&c.ID, &c.Participant1ID, &c.Participant2ID, &created, &updated); err != nil {
		return store.PeerChat{}, err
	}
	c.CreatedAt = fromMicros(created)
	c.UpdatedAt = fromMicros(updated)
	return c, nil
}

func (s *Store) getPeerChat(row *sql.Row) (*store.PeerChat, error) {
	c, err := scanPeerChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreatePeerChat(ctx context.Context, c *store.PeerChat) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO peer_chats (`+peerChatColumns+`) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Participant1ID, c.Participant2ID, toMicros(c.CreatedAt), toMicros(c.UpdatedAt))
	return err
}

func (s *Store) GetPeerChat(ctx context.Context, id string) (*store.PeerChat, error) {
	return s.getPeerChat(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+peerChatColumns+` FROM peer_chats WHERE id = ?`, id))
}

func (s *Store) FindPeerChat(ctx context.Context, userA, userB string) (*store.PeerChat, error) {
	return s.getPeerChat(s.sqlDB.QueryRowContext(ctx, `
SELECT `+peerChatColumns+` FROM peer_chats
WHERE (participant1_id = ? AND participant2_id = ?) OR (participant1_id = ? AND participant2_id = ?)
ORDER BY created_at ASC
LIMIT 1`, userA, userB, userB, userA))
}

func (s *Store) ListPeerChats(ctx context.Context, userID string) ([]store.PeerChat, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+peerChatColumns+` FROM peer_chats c
WHERE (c.participant1_id = ? OR c.participant2_id = ?)
	AND NOT EXISTS (SELECT 1 FROM deleted_conversations d WHERE d.user_id = ? AND d.chat_id = c.id)
ORDER BY c.updated_at DESC, c.rowid DESC`, userID, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chats []store.PeerChat
	for rows.Next() {
		c, err := scanPeerChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func (s *Store) TouchPeerChat(ctx context.Context, id string, at time.Time) error {
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE peer_chats SET updated_at = ? WHERE id = ?`, toMicros(at), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) HideConversation(ctx context.Context, userID, chatID string) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO deleted_conversations (user_id, chat_id, deleted_at) VALUES (?, ?, ?)
ON CONFLICT(user_id, chat_id) DO NOTHING`, userID, chatID, toMicros(store.Now()))
	return err
}

func (s *Store) UnhideConversation(ctx context.Context, userID, chatID string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM deleted_conversations WHERE user_id = ? AND chat_id = ?`, userID, chatID)
	return err
}

// --- Peer Message Functions ---

const peerMessageColumns = `id, chat_id, sender_id, content, image_url, video_url, deleted_for_sender, deleted_for_everyone, created_at`

func scanPeerMessage(row rowScanner) (store.PeerMessage, error) {
	var m store.PeerMessage
	var created int64
	if err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.ImageURL, &m.VideoURL,
		&m.DeletedForSender, &m.DeletedForEveryone, &created); err != nil {
		return store.PeerMessage{}, err
	}
	m.CreatedAt = fromMicros(created)
	return m, nil
}

func (s *Store) queryPeerMessages(ctx context.Context, query string, args ...any) ([]store.PeerMessage, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []store.PeerMessage
	for rows.Next() {
		m, err := scanPeerMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Store) AddPeerMessage(ctx context.Context, m *store.PeerMessage) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO peer_messages (`+peerMessageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ChatID, m.SenderID, m.Content, m.ImageURL, m.VideoURL,
		m.DeletedForSender, m.DeletedForEveryone, toMicros(m.CreatedAt))
	return err
}

func (s *Store) GetPeerMessage(ctx context.Context, id string) (*store.PeerMessage, error) {
	m, err := scanPeerMessage(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+peerMessageColumns+` FROM peer_messages WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListPeerMessages(ctx context.Context, chatID, viewerID string) ([]store.PeerMessage, error) {
	return s.queryPeerMessages(ctx, `
SELECT `+peerMessageColumns+` FROM peer_messages
WHERE chat_id = ?
	AND deleted_for_everyone = 0
	AND NOT (deleted_for_sender = 1 AND sender_id = ?)
ORDER BY created_at ASC, rowid ASC`, chatID, viewerID)
}

func (s *Store) LastPeerMessages(ctx context.Context, chatIDs []string) (map[string]store.PeerMessage, error) {
	last := make(map[string]store.PeerMessage, len(chatIDs))
	if len(chatIDs) == 0 {
		return last, nil
	}
	args := make([]any, len(chatIDs))
	for i, id := range chatIDs {
		args[i] = id
	}
	msgs, err := s.queryPeerMessages(ctx, `
SELECT `+peerMessageColumns+` FROM peer_messages
WHERE chat_id IN (`+placeholders(len(chatIDs))+`) AND deleted_for_everyone = 0
ORDER BY created_at DESC, rowid DESC`, args...)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if _, ok := last[m.ChatID]; !ok {
			last[m.ChatID] = m
		}
	}
	return last, nil
}

func (s *Store) MarkDeletedForSender(ctx context.Context, messageID string) error {
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE peer_messages SET deleted_for_sender = 1 WHERE id = ?`, messageID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) MarkDeletedForEveryone(ctx context.Context, messageID string) error {
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE peer_messages SET deleted_for_everyone = 1 WHERE id = ?`, messageID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
