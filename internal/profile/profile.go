// Package profile manages the anonymous profile, its avatar and the security-question settings.
package profile

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/rexlx/mindhaven/internal/account"
	"github.com/rexlx/mindhaven/internal/apperr"
	"github.com/rexlx/mindhaven/internal/blob"
	"github.com/rexlx/mindhaven/internal/store"
)

const (
	MaxAliasLength = 50
	MaxBioLength   = 500
	// SearchLimit caps directory search results.
	SearchLimit = 20
)

type Store interface {
	store.ProfileStore
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
}

// Update is a full replacement of the editable profile fields.
type Update struct {
	Alias                string `json:"anonymous_alias"`
	Bio                  string `json:"bio"`
	AvatarURL            string `json:"avatar_url"`
	NotificationsEnabled *bool  `json:"notifications_enabled"`
}

// Dashboard is the header summary shown after sign-in.
type Dashboard struct {
	Alias               string  `json:"anonymous_alias"`
	AvatarURL           *string `json:"avatar_url"`
	UnreadNotifications int     `json:"unread_notifications"`
}

type Service struct {
	store  Store
	blobs  *blob.Store
	logger *log.Logger
}

func NewService(s Store, blobs *blob.Store, logger *log.Logger) *Service {
	return &Service{store: s, blobs: blobs, logger: logger}
}

// Get returns the user's profile, creating the default one when it is missing.
func (s *Service) Get(ctx context.Context, userID string) (*store.Profile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Internal("Failed to load profile", err)
	}
	now := store.Now()
	p = &store.Profile{
		ID:                   store.NewID(),
		UserID:               userID,
		Alias:                account.NewAlias(userID),
		NotificationsEnabled: true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return nil, apperr.Internal("Failed to create profile", err)
	}
	return p, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ownsAvatar reports whether url is an avatar this server stored for userID.
func (s *Service) ownsAvatar(userID, url string) bool {
	bucket, name, ok := s.blobs.ObjectFromURL(url)
	return ok && bucket == blob.BucketAvatars && strings.HasPrefix(name, userID+"/")
}

// Update saves the editable fields. Replacing an uploaded avatar deletes the old file.
func (s *Service) Update(ctx context.Context, userID string, u Update) (*store.Profile, error) {
	alias := strings.TrimSpace(u.Alias)
	if alias == "" {
		return nil, apperr.Invalid("Anonymous identity cannot be empty")
	}
	if utf8.RuneCountInString(alias) > MaxAliasLength {
		return nil, apperr.Invalid("Anonymous identity must be at most 50 characters")
	}
	bio := strings.TrimSpace(u.Bio)
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return nil, apperr.Invalid("Bio must be at most 500 characters")
	}
	avatar := strings.TrimSpace(u.AvatarURL)
	if avatar != "" && !s.ownsAvatar(userID, avatar) {
		return nil, apperr.Invalid("Avatar must be uploaded first")
	}

	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	old := p.AvatarURL

	p.Alias = alias
	p.Bio = optional(bio)
	p.AvatarURL = optional(avatar)
	if u.NotificationsEnabled != nil {
		p.NotificationsEnabled = *u.NotificationsEnabled
	}
	p.UpdatedAt = store.Now()
	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return nil, apperr.Internal("Failed to update profile", err)
	}

	if old != nil && *old != avatar && s.ownsAvatar(userID, *old) {
		_, name, _ := s.blobs.ObjectFromURL(*old)
		if err := s.blobs.Delete(blob.BucketAvatars, name); err != nil {
			s.logger.Printf("delete old avatar %s: %v", name, err)
		}
	}
	return p, nil
}

// UploadAvatar stores an image from the request and returns its public URL. The profile
// is unchanged until Update saves the URL.
func (s *Service) UploadAvatar(r *http.Request, userID string) (string, error) {
	up, err := s.blobs.SaveForm(r, blob.BucketAvatars, userID, blob.AvatarLimits)
	if err != nil {
		return "", err
	}
	return up.URL, nil
}

// Search finds other users by alias.
func (s *Service) Search(ctx context.Context, userID, query string) ([]store.Profile, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []store.Profile{}, nil
	}
	list, err := s.store.SearchProfiles(ctx, userID, query, SearchLimit)
	if err != nil {
		return nil, apperr.Internal("Failed to search profiles", err)
	}
	if list == nil {
		list = []store.Profile{}
	}
	return list, nil
}

func (s *Service) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread, err := s.store.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("Failed to load dashboard", err)
	}
	return &Dashboard{Alias: p.Alias, AvatarURL: p.AvatarURL, UnreadNotifications: unread}, nil
}
