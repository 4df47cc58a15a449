package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/rexlx/mindhaven/internal/store"
)

// --- Forum Post Functions ---

const postSelect = `
SELECT p.id, p.user_id, p.title, p.content, p.category, p.created_at,
	COALESCE(pr.anonymous_alias, 'Anonymous'),
	(SELECT COUNT(*) FROM forum_replies r WHERE r.post_id = p.id)
FROM forum_posts p
LEFT JOIN profiles pr ON pr.user_id = p.user_id`

func scanPost(row rowScanner) (store.ForumPost, error) {
	var p store.ForumPost
	var created int64
	if err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Content, &p.Category, &created, &p.AuthorAlias, &p.ReplyCount); err != nil {
		return store.ForumPost{}, err
	}
	p.CreatedAt = fromMicros(created)
	return p, nil
}

// postWhere builds the WHERE clause shared by ListPosts and CountPosts.
func postWhere(f store.PostFilter) (string, []any) {
	var clauses []string
	var args []any
	if f.Category != "" {
		clauses = append(clauses, "p.category = ?")
		args = append(args, f.Category)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + store.EscapeLike(q) + "%"
		clauses = append(clauses, `(p.title LIKE ? ESCAPE '\' OR p.content LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *Store) CreatePost(ctx context.Context, p *store.ForumPost) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO forum_posts (id, user_id, title, content, category, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Title, p.Content, p.Category, toMicros(p.CreatedAt))
	return err
}

func (s *Store) GetPost(ctx context.Context, id string) (*store.ForumPost, error) {
	p, err := scanPost(s.sqlDB.QueryRowContext(ctx, postSelect+` WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPosts(ctx context.Context, f store.PostFilter) ([]store.ForumPost, error) {
	where, args := postWhere(f)
	query := postSelect + where + ` ORDER BY p.created_at DESC, p.rowid DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var posts []store.ForumPost
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (s *Store) CountPosts(ctx context.Context, f store.PostFilter) (int, error) {
	where, args := postWhere(f)
	var count int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM forum_posts p`+where, args...).Scan(&count)
	return count, err
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM forum_posts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// --- Forum Reply Functions ---

const replySelect = `
SELECT r.id, r.post_id, r.user_id, r.content, r.created_at, COALESCE(pr.anonymous_alias, 'Anonymous')
FROM forum_replies r
LEFT JOIN profiles pr ON pr.user_id = r.user_id`

func scanReply(row rowScanner) (store.ForumReply, error) {
	var r store.ForumReply
	var created int64
	if err := row.Scan(&r.ID, &r.PostID, &r.UserID, &r.Content, &created, &r.AuthorAlias); err != nil {
		return store.ForumReply{}, err
	}
	r.CreatedAt = fromMicros(created)
	return r, nil
}

func (s *Store) CreateReply(ctx context.Context, r *store.ForumReply) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO forum_replies (id, post_id, user_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.PostID, r.UserID, r.Content, toMicros(r.CreatedAt))
	return err
}

func (s *Store) GetReply(ctx context.Context, id string) (*store.ForumReply, error) {
	r, err := scanReply(s.sqlDB.QueryRowContext(ctx, replySelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListReplies(ctx context.Context, postID string) ([]store.ForumReply, error) {
	rows, err := s.sqlDB.QueryContext(ctx, replySelect+` WHERE r.post_id = ? ORDER BY r.created_at ASC, r.rowid ASC`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var replies []store.ForumReply
	for rows.Next() {
		r, err := scanReply(rows)
		if err != nil {
			return nil, err
		}
		replies = append(replies, r)
	}
	return replies, rows.Err()
}

func (s *Store) DeleteReply(ctx context.Context, id string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM forum_replies WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
