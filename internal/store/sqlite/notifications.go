package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rexlx/mindhaven/internal/store"
)

// --- Notification Functions ---

const notificationColumns = `id, user_id, type, title, message, read, reference_id, reference_type, created_at`

func scanNotification(row rowScanner) (store.Notification, error) {
	var n store.Notification
	var created int64
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Read,
		&n.ReferenceID, &n.ReferenceType, &created); err != nil {
		return store.Notification{}, err
	}
	n.CreatedAt = fromMicros(created)
	return n, nil
}

func (s *Store) CreateNotification(ctx context.Context, n *store.Notification) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO notifications (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.Read, n.ReferenceID, n.ReferenceType, toMicros(n.CreatedAt))
	return err
}

func (s *Store) GetNotification(ctx context.Context, id string) (*store.Notification, error) {
	n, err := scanNotification(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string) ([]store.Notification, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+notificationColumns+` FROM notifications
WHERE user_id = ?
ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []store.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.sqlDB.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`, userID)
	return err
}

func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`, userID).Scan(&count)
	return count, err
}
