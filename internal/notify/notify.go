// Package notify stores in-app notifications and serves the notification inbox.
package notify

import (
	"context"
	"errors"
	"log"

	"github.com/rexlx/mindhaven/internal/apperr"
	"github.com/rexlx/mindhaven/internal/store"
)

// Notification types.
const (
	TypeForum   = "forum"
	TypeMessage = "message"
	TypeSystem  = "system"
)

// Reference types.
const (
	RefForumPost = "forum_post"
	RefPeerChat  = "peer_chat"
)

type Store interface {
	store.NotificationStore
	GetProfile(ctx context.Context, userID string) (*store.Profile, error)
}

type Service struct {
	store  Store
	logger *log.Logger
}

func NewService(s Store, logger *log.Logger) *Service {
	return &Service{store: s, logger: logger}
}

// Notify stores n for its recipient unless they turned notifications off.
// It reports whether a notification was created.
func (s *Service) Notify(ctx context.Context, n store.Notification) (bool, error) {
	p, err := s.store.GetProfile(ctx, n.UserID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return false, err
	case !p.NotificationsEnabled:
		return false, nil
	}
	n.ID = store.NewID()
	n.Read = false
	n.CreatedAt = store.Now()
	if err := s.store.CreateNotification(ctx, &n); err != nil {
		return false, err
	}
	return true, nil
}

// NotifyQuietly is Notify for callers that must not fail on notification errors.
// It runs synchronously and logs failures instead of returning them.
func (s *Service) NotifyQuietly(ctx context.Context, n store.Notification) {
	if _, err := s.Notify(ctx, n); err != nil {
		s.logger.Printf("notify %s (%s): %v", n.UserID, n.Type, err)
	}
}

func (s *Service) List(ctx context.Context, userID string) ([]store.Notification, error) {
	list, err := s.store.ListNotifications(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("Failed to load notifications", err)
	}
	if list == nil {
		list = []store.Notification{}
	}
	return list, nil
}

func (s *Service) owned(ctx context.Context, userID, id string) error {
	n, err := s.store.GetNotification(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && n.UserID != userID) {
		return apperr.NotFound("Notification not found")
	}
	if err != nil {
		return apperr.Internal("Failed to load notification", err)
	}
	return nil
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	if err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.MarkNotificationRead(ctx, id); err != nil {
		return apperr.Internal("Failed to update notification", err)
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.store.MarkAllNotificationsRead(ctx, userID); err != nil {
		return apperr.Internal("Failed to update notifications", err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteNotification(ctx, id); err != nil {
		return apperr.Internal("Failed to delete notification", err)
	}
	return nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	n, err := s.store.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("Failed to count notifications", err)
	}
	return n, nil
}
