// internal/store/postgres/db.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rexlx/mindhaven/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash BYTEA NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS profiles (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL UNIQUE REFERENCES accounts(id) ON DELETE CASCADE,
    anonymous_alias TEXT NOT NULL,
    avatar_url TEXT,
    bio TEXT,
    notifications_enabled BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS ai_chats (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS ai_chat_messages (
    id TEXT PRIMARY KEY,
    chat_id TEXT NOT NULL REFERENCES ai_chats(id) ON DELETE CASCADE,
    role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
    content TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    seq BIGSERIAL
);
CREATE TABLE IF NOT EXISTS forum_posts (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    category TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS forum_replies (
    id TEXT PRIMARY KEY,
    post_id TEXT NOT NULL REFERENCES forum_posts(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    content TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS peer_chats (
    id TEXT PRIMARY KEY,
    participant1_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    participant2_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS peer_messages (
    id TEXT PRIMARY KEY,
    chat_id TEXT NOT NULL REFERENCES peer_chats(id) ON DELETE CASCADE,
    sender_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    content TEXT NOT NULL DEFAULT '',
    image_url TEXT,
    video_url TEXT,
    deleted_for_sender BOOLEAN NOT NULL DEFAULT FALSE,
    deleted_for_everyone BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    seq BIGSERIAL
);
CREATE TABLE IF NOT EXISTS deleted_conversations (
    user_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    chat_id TEXT NOT NULL REFERENCES peer_chats(id) ON DELETE CASCADE,
    deleted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, chat_id)
);
CREATE TABLE IF NOT EXISTS mood_logs (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    mood TEXT NOT NULL,
    notes TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    type TEXT NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    read BOOLEAN NOT NULL DEFAULT FALSE,
    reference_id TEXT,
    reference_type TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS security_questions (
    user_id TEXT PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
    question1 TEXT NOT NULL,
    answer1_hash BYTEA NOT NULL,
    question2 TEXT NOT NULL,
    answer2_hash BYTEA NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS password_reset_codes (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    code_hash BYTEA NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL,
    used BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_ai_chats_user ON ai_chats(user_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_ai_chat_messages_chat ON ai_chat_messages(chat_id, created_at);
CREATE INDEX IF NOT EXISTS idx_forum_posts_category ON forum_posts(category, created_at);
CREATE INDEX IF NOT EXISTS idx_forum_replies_post ON forum_replies(post_id, created_at);
CREATE INDEX IF NOT EXISTS idx_peer_messages_chat ON peer_messages(chat_id, created_at);
CREATE INDEX IF NOT EXISTS idx_mood_logs_user ON mood_logs(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_password_reset_codes_email ON password_reset_codes(email, used);
`

var _ store.Store = (*Database)(nil)

type Database struct {
	pool *pgxpool.Pool
}

func NewDatabase(ctx context.Context, connectionString string) (*Database, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Database{pool: pool}, nil
}

func (d *Database) CreateTables(ctx context.Context) error {
	_, err := d.pool.Exec(ctx, schema)
	return err
}

func (d *Database) Close() error {
	d.pool.Close()
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func requireAffected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// collect scans every row with fn.
func collect[T any](rows pgx.Rows, fn func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := fn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// --- Account Functions ---

func (d *Database) CreateAccount(ctx context.Context, a *store.Account) error {
	query := `INSERT INTO accounts (id, email, password_hash, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := d.pool.Exec(ctx, query, a.ID, a.Email, a.PasswordHash, a.CreatedAt, a.UpdatedAt)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (d *Database) getAccount(ctx context.Context, where string, arg string) (*store.Account, error) {
	var a store.Account
	query := `SELECT id, email, password_hash, created_at, updated_at FROM accounts WHERE ` + where + ` = $1`
	err := d.pool.QueryRow(ctx, query, arg).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (d *Database) GetAccount(ctx context.Context, id string) (*store.Account, error) {
	return d.getAccount(ctx, "id", id)
}

func (d *Database) GetAccountByEmail(ctx context.Context, email string) (*store.Account, error) {
	return d.getAccount(ctx, "email", email)
}

func (d *Database) UpdatePasswordHash(ctx context.Context, id string, hash []byte) error {
	return requireAffected(d.pool.Exec(ctx,
		`UPDATE accounts SET password_hash = $1, updated_at = $2 WHERE id = $3`, hash, store.Now(), id))
}

func (d *Database) DeleteUserData(ctx context.Context, userID string) error {
	return pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		var email string
		if err := tx.QueryRow(ctx, `SELECT email FROM accounts WHERE id = $1`, userID).Scan(&email); err != nil {
			return notFound(err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM password_reset_codes WHERE email = $1`, email); err != nil {
			return fmt.Errorf("delete reset codes: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, userID); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return nil
	})
}

// --- Profile Functions ---

const profileColumns = `id, user_id, anonymous_alias, avatar_url, bio, notifications_enabled, created_at, updated_at`

func scanProfile(row pgx.Row) (store.Profile, error) {
	var p store.Profile
	err := row.Scan(&p.ID, &p.UserID, &p.Alias, &p.AvatarURL, &p.Bio, &p.NotificationsEnabled, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (d *Database) GetProfile(ctx context.Context, userID string) (*store.Profile, error) {
	p, err := scanProfile(d.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (d *Database) UpsertProfile(ctx context.Context, p *store.Profile) error {
	query := `
        INSERT INTO profiles (` + profileColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (user_id) DO UPDATE SET
            anonymous_alias = EXCLUDED.anonymous_alias,
            avatar_url = EXCLUDED.avatar_url,
            bio = EXCLUDED.bio,
            notifications_enabled = EXCLUDED.notifications_enabled,
            updated_at = EXCLUDED.updated_at;
    `
	_, err := d.pool.Exec(ctx, query,
		p.ID,
		p.UserID,
		p.Alias,
		p.AvatarURL,
		p.Bio,
		p.NotificationsEnabled,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

func (d *Database) ListProfiles(ctx context.Context, userIDs []string) ([]store.Profile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := d.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProfile)
}

func (d *Database) SearchProfiles(ctx context.Context, excludeUserID, query string, limit int) ([]store.Profile, error) {
	rows, err := d.pool.Query(ctx, `
        SELECT `+profileColumns+` FROM profiles
        WHERE user_id <> $1 AND anonymous_alias ILIKE $2 ESCAPE '\'
        ORDER BY anonymous_alias ASC
        LIMIT $3`, excludeUserID, "%"+store.EscapeLike(query)+"%", limit)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProfile)
}

// --- AI Chat Functions ---

func scanChat(row pgx.Row) (store.AIChat, error) {
	var c store.AIChat
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (d *Database) CreateChat(ctx context.Context, c *store.AIChat) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO ai_chats (id, user_id, title, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.UserID, c.Title, c.CreatedAt, c.UpdatedAt)
	return err
}

func (d *Database) GetChat(ctx context.Context, id string) (*store.AIChat, error) {
	c, err := scanChat(d.pool.QueryRow(ctx, `SELECT id, user_id, title, created_at, updated_at FROM ai_chats WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (d *Database) ListChats(ctx context.Context, userID string) ([]store.AIChat, error) {
	rows, err := d.pool.Query(ctx, `
        SELECT id, user_id, title, created_at, updated_at FROM ai_chats
        WHERE user_id = $1
        ORDER BY updated_at DESC, created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanChat)
}

func (d *Database) UpdateChatTitle(ctx context.Context, id, title string) error {
	return requireAffected(d.pool.Exec(ctx, `UPDATE ai_chats SET title = $1 WHERE id = $2`, title, id))
}

func (d *Database) TouchChat(ctx context.Context, id string, at time.Time) error {
	return requireAffected(d.pool.Exec(ctx, `UPDATE ai_chats SET updated_at = $1 WHERE id = $2`, at, id))
}

func (d *Database) DeleteChat(ctx context.Context, id string) error {
	return requireAffected(d.pool.Exec(ctx, `DELETE FROM ai_chats WHERE id = $1`, id))
}

func (d *Database) AddChatMessage(ctx context.Context, m *store.AIMessage) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO ai_chat_messages (id, chat_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ChatID, m.Role, m.Content, m.CreatedAt)
	return err
}

func (d *Database) ListChatMessages(ctx context.Context, chatID string) ([]store.AIMessage, error) {
	rows, err := d.pool.Query(ctx, `
        SELECT id, chat_id, role, content, created_at FROM ai_chat_messages
        WHERE chat_id = $1
        ORDER BY created_at ASC, seq ASC`, chatID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (store.AIMessage, error) {
		var m store.AIMessage
		err := row.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.CreatedAt)
		return m, err
	})
}

// --- Forum Functions ---

const postSelect = `
        SELECT p.id, p.user_id, p.title, p.content, p.category, p.created_at,
            COALESCE(pr.anonymous_alias, 'Anonymous'),
            (SELECT COUNT(*) FROM forum_replies r WHERE r.post_id = p.id)
        FROM forum_posts p
        LEFT JOIN profiles pr ON pr.user_id = p.user_id`

func scanPost(row pgx.Row) (store.ForumPost, error) {
	var p store.ForumPost
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Content, &p.Category, &p.CreatedAt, &p.AuthorAlias, &p.ReplyCount)
	return p, err
}

func postWhere(f store.PostFilter) (string, []interface{}) {
	var clauses []string
	args := []interface{}{}
	if f.Category != "" {
		args = append(args, f.Category)
		clauses = append(clauses, fmt.Sprintf("p.category = $%d", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+store.EscapeLike(q)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(`(p.title ILIKE $%d ESCAPE '\' OR p.content ILIKE $%d ESCAPE '\')`, n, n))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (d *Database) CreatePost(ctx context.Context, p *store.ForumPost) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO forum_posts (id, user_id, title, content, category, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.UserID, p.Title, p.Content, p.Category, p.CreatedAt)
	return err
}

func (d *Database) GetPost(ctx context.Context, id string) (*store.ForumPost, error) {
	p, err := scanPost(d.pool.QueryRow(ctx, postSelect+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (d *Database) ListPosts(ctx context.Context, f store.PostFilter) ([]store.ForumPost, error) {
	where, args := postWhere(f)
	query := postSelect + where + " ORDER BY p.created_at DESC, p.id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPost)
}

func (d *Database) CountPosts(ctx context.Context, f store.PostFilter) (int, error) {
	where, args := postWhere(f)
	var count int
	err := d.pool.QueryRow(ctx, "SELECT COUNT(*) FROM forum_posts p"+where, args...).Scan(&count)
	return count, err
}

func (d *Database) DeletePost(ctx context.Context, id string) error {
	return requireAffected(d.pool.Exec(ctx, `DELETE FROM forum_posts WHERE id = $1`, id))
}

const replySelect = `
        SELECT r.id, r.post_id, r.user_id, r.content, r.created_at, COALESCE(pr.anonymous_alias, 'Anonymous')
        FROM forum_replies r
        LEFT JOIN profiles pr ON pr.user_id = r.user_id`

func scanReply(row pgx.Row) (store.ForumReply, error) {
	var r store.ForumReply
	err := row.Scan(&r.ID, &r.PostID, &r.UserID, &r.Content, &r.CreatedAt, &r.AuthorAlias)
	return r, err
}

func (d *Database) CreateReply(ctx context.Context, r *store.ForumReply) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO forum_replies (id, post_id, user_id, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.PostID, r.UserID, r.Content, r.CreatedAt)
	return err
}

func (d *Database) GetReply(ctx context.Context, id string) (*store.ForumReply, error) {
	r, err := scanReply(d.pool.QueryRow(ctx, replySelect+` WHERE r.id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (d *Database) ListReplies(ctx context.Context, postID string) ([]store.ForumReply, error) {
	rows, err := d.pool.Query(ctx, replySelect+` WHERE r.post_id = $1 ORDER BY r.created_at ASC, r.id ASC`, postID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanReply)
}

func (d *Database) DeleteReply(ctx context.Context, id string) error {
	return requireAffected(d.pool.Exec(ctx, `DELETE FROM forum_replies WHERE id = $1`, id))
}

// --- Peer Chat Functions ---

const peerChatColumns = `id, participant1_id, participant2_id, created_at, updated_at`

func scanPeerChat(row pgx.Row) (store.PeerChat, error) {
	var c store.PeerChat
	err := row.Scan(&c.ID, &c.Participant1ID, &c.Participant2ID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (d *Database) CreatePeerChat(ctx context.Context, c *store.PeerChat) error {
	_, err := d.pool.Exec(ctx, `INSERT INTO peer_chats (`+peerChatColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Participant1ID, c.Participant2ID, c.CreatedAt, c.UpdatedAt)
	return err
}

func (d *Database) GetPeerChat(ctx context.Context, id string) (*store.PeerChat, error) {
	c, err := scanPeerChat(d.pool.QueryRow(ctx, `SELECT `+peerChatColumns+` FROM peer_chats WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (d *Database) FindPeerChat(ctx context.Context, userA, userB string) (*store.PeerChat, error) {
	c, err := scanPeerChat(d.pool.QueryRow(ctx, `
        SELECT `+peerChatColumns+` FROM peer_chats
        WHERE (participant1_id = $1 AND participant2_id = $2) OR (participant1_id = $2 AND participant2_id = $1)
        ORDER BY created_at ASC
        LIMIT 1`, userA, userB))
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (d *Database) ListPeerChats(ctx context.Context, userID string) ([]store.PeerChat, error) {
	rows, err := d.pool.Query(ctx, `
        SELECT `+peerChatColumns+` FROM peer_chats c
        WHERE (c.participant1_id = $1 OR c.participant2_id = $1)
            AND NOT EXISTS (SELECT 1 FROM deleted_conversations dc WHERE dc.user_id = $1 AND dc.chat_id = c.id)
        ORDER BY c.updated_at DESC, c.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPeerChat)
}

func (d *Database) TouchPeerChat(ctx context.Context, id string, at time.Time) error {
	return requireAffected(d.pool.Exec(ctx, `UPDATE peer_chats SET updated_at = $1 WHERE id = $2`, at, id))
}

func (d *Database) HideConversation(ctx context.Context, userID, chatID string) error {
	_, err := d.pool.Exec(ctx, `
        INSERT INTO deleted_conversations (user_id, chat_id, deleted_at) VALUES ($1, $2, $3)
        ON CONFLICT (user_id, chat_id) DO NOTHING`, userID, chatID, store.Now())
	return err
}

func (d *Database) UnhideConversation(ctx context.Context, userID, chatID string) error {
	_, err := d.pool.Exec(ctx, `DELETE FROM deleted_conversations WHERE user_id = $1 AND chat_id = $2`, userID, chatID)
	return err
}

// --- Peer Message Functions ---

const peerMessageColumns = `id, chat_id, sender_id, content, image_url, video_url, deleted_for_sender, deleted_for_everyone, created_at`

func scanPeerMessage(row pgx.Row) (store.PeerMessage, error) {
	var m store.PeerMessage
	err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.ImageURL, &m.VideoURL,
		&m.DeletedForSender, &m.DeletedForEveryone, &m.CreatedAt)
	return m, err
}

func (d *Database) AddPeerMessage(ctx context.Context, m *store.PeerMessage) error {
	_, err := d.pool.Exec(ctx, `
        INSERT INTO peer_messages (`+peerMessageColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.ChatID, m.SenderID, m.Content, m.ImageURL, m.VideoURL,
		m.DeletedForSender, m.DeletedForEveryone, m.CreatedAt)
	return err
}

func (d *Database) GetPeerMessage(ctx context.Context, id string) (*store.PeerMessage, error) {
	m, err := scanPeerMessage(d.pool.QueryRow(ctx, `SELECT `+peerMessageColumns+` FROM peer_messages WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (d *Database) ListPeerMessages(ctx context.Context, chatID, viewerID string) ([]store.PeerMessage, error) {
	rows, err := d.pool.Query(ctx, `
        SELECT `+peerMessageColumns+` FROM peer_messages
        WHERE chat_id = $1
            AND NOT deleted_for_everyone
            AND NOT (deleted_for_sender AND sender_id = $2)
        ORDER BY created_at ASC, seq ASC`, chatID, viewerID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPeerMessage)
}

func (d *Database) LastPeerMessages(ctx context.Context, chatIDs []string) (map[string]store.PeerMessage, error) {
	last := make(map[string]store.PeerMessage, len(chatIDs))
	if len(chatIDs) == 0 {
		return last, nil
	}
	rows, err := d.pool.Query(ctx, `
        SELECT DISTINCT ON (chat_id) `+peerMessageColumns+` FROM peer_messages
        WHERE chat_id = ANY($1) AND NOT deleted_for_everyone
        ORDER BY chat_id, created_at DESC, seq DESC`, chatIDs)
	if err != nil {
		return nil, err
	}
	msgs, err := collect(rows, scanPeerMessage)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		last[m.ChatID] = m
	}
	return last, nil
}

func (d *Database) MarkDeletedForSender(ctx context.Context, messageID string) error {
	return requireAffected(d.pool.Exec(ctx, `UPDATE peer_messages SET deleted_for_sender = TRUE WHERE id = $1`, messageID))
}

func (d *Database) MarkDeletedForEveryone(ctx context.Context, messageID string) error {
	return requireAffected(d.pool.Exec(ctx, `UPDATE peer_messages SET deleted_for_everyone = TRUE WHERE id = $1`, messageID))
}

// --- Mood Functions ---

func scanMood(row pgx.Row) (store.MoodLog, error) {
	var m store.MoodLog
	err := row.Scan(&m.ID, &m.UserID, &m.Mood, &m.Notes, &m.CreatedAt)
	return m, err
}

func (d *Database) AddMood(ctx context.Context, m *store.MoodLog) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO mood_logs (id, user_id, mood, notes, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.UserID, m.Mood, m.Notes, m.CreatedAt)
	return err
}

func (d *Database) GetMood(ctx context.Context, id string) (*store.MoodLog, error) {
	m, err := scanMood(d.pool.QueryRow(ctx, `SELECT id, user_id, mood, notes, created_at FROM mood_logs WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (d *Database) ListMoods(ctx context.Context, userID string) ([]store.MoodLog, error) {
	rows, err := d.pool.Query(ctx, `
        SELECT id, user_id, mood, notes, created_at FROM mood_logs
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMood)
}

func (d *Database) DeleteMood(ctx context.Context, id string) error {
	return requireAffected(d.pool.Exec(ctx, `DELETE FROM mood_logs WHERE id = $1`, id))
}

// --- Notification Functions ---

const notificationColumns = `id, user_id, type, title, message, read, reference_id, reference_type, created_at`

func scanNotification(row pgx.Row) (store.Notification, error) {
	var n store.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Read, &n.ReferenceID, &n.ReferenceType, &n.CreatedAt)
	return n, err
}

func (d *Database) CreateNotification(ctx context.Context, n *store.Notification) error {
	_, err := d.pool.Exec(ctx, `
        INSERT INTO notifications (`+notificationColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.Read, n.ReferenceID, n.ReferenceType, n.CreatedAt)
	return err
}

func (d *Database) GetNotification(ctx context.Context, id string) (*store.Notification, error) {
	n, err := scanNotification(d.pool.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &n, nil
}

func (d *Database) ListNotifications(ctx context.Context, userID string) ([]store.Notification, error) {
	rows, err := d.pool.Query(ctx, `
        SELECT `+notificationColumns+` FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanNotification)
}

func (d *Database) MarkNotificationRead(ctx context.Context, id string) error {
	return requireAffected(d.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id))
}

func (d *Database) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := d.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`, userID)
	return err
}

func (d *Database) DeleteNotification(ctx context.Context, id string) error {
	return requireAffected(d.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id))
}

func (d *Database) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var count int
	err := d.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID).Scan(&count)
	return count, err
}

// --- Security Question and Reset Code Functions ---

func (d *Database) UpsertSecurityQuestions(ctx context.Context, q *store.SecurityQuestions) error {
	query := `
        INSERT INTO security_questions (user_id, question1, answer1_hash, question2, answer2_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (user_id) DO UPDATE SET
            question1 = EXCLUDED.question1,
            answer1_hash = EXCLUDED.answer1_hash,
            question2 = EXCLUDED.question2,
            answer2_hash = EXCLUDED.answer2_hash,
            updated_at = EXCLUDED.updated_at;
    `
	_, err := d.pool.Exec(ctx, query,
		q.UserID,
		q.Question1,
		q.Answer1Hash,
		q.Question2,
		q.Answer2Hash,
		q.CreatedAt,
		q.UpdatedAt,
	)
	return err
}

func (d *Database) GetSecurityQuestions(ctx context.Context, userID string) (*store.SecurityQuestions, error) {
	var q store.SecurityQuestions
	query := `
        SELECT user_id, question1, answer1_hash, question2, answer2_hash, created_at, updated_at
        FROM security_questions
        WHERE user_id = $1`
	err := d.pool.QueryRow(ctx, query, userID).Scan(
		&q.UserID,
		&q.Question1,
		&q.Answer1Hash,
		&q.Question2,
		&q.Answer2Hash,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &q, nil
}

func (d *Database) InvalidateResetCodes(ctx context.Context, email string) error {
	_, err := d.pool.Exec(ctx, `UPDATE password_reset_codes SET used = TRUE WHERE email = $1 AND NOT used`, email)
	return err
}

func (d *Database) CreateResetCode(ctx context.Context, c *store.ResetCode) error {
	_, err := d.pool.Exec(ctx, `
        INSERT INTO password_reset_codes (id, email, code_hash, expires_at, used, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Email, c.CodeHash, c.ExpiresAt, c.Used, c.CreatedAt)
	return err
}

func (d *Database) FindActiveResetCode(ctx context.Context, email string, codeHash []byte, now time.Time) (*store.ResetCode, error) {
	var c store.ResetCode
	query := `
        SELECT id, email, code_hash, expires_at, used, created_at
        FROM password_reset_codes
        WHERE email = $1 AND code_hash = $2 AND NOT used AND expires_at > $3
        ORDER BY created_at DESC
        LIMIT 1`
	err := d.pool.QueryRow(ctx, query, email, codeHash, now).Scan(
		&c.ID,
		&c.Email,
		&c.CodeHash,
		&c.ExpiresAt,
		&c.Used,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (d *Database) ConsumeResetCode(ctx context.Context, id string) (bool, error) {
	tag, err := d.pool.Exec(ctx, `UPDATE password_reset_codes SET used = TRUE WHERE id = $1 AND NOT used`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (d *Database) PurgeResetCodes(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := d.pool.Exec(ctx, `DELETE FROM password_reset_codes WHERE used OR expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
