// Package account owns credentials: sign-up, sign-in, password changes and account removal.
package account

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"

	"github.com/rexlx/mindhaven/internal/apperr"
	"github.com/rexlx/mindhaven/internal/blob"
	"github.com/rexlx/mindhaven/internal/notify"
	"github.com/rexlx/mindhaven/internal/store"
)

const welcomeMessage = "Welcome to Mindful Heaven. Please set up your security questions in Settings."

var (
	errPasswordTooShort = apperr.Invalid("Password must be at least 6 characters")
	errPasswordTooLong  = apperr.Invalid("Password must be at most 72 bytes")
	errBadCredentials   = apperr.Unauthorized("Invalid email or password")
)

type Store interface {
	store.AccountStore
	store.ProfileStore
}

type Service struct {
	store    Store
	blobs    *blob.Store
	notifier *notify.Service
	cost     int
	logger   *log.Logger
}

func NewService(s Store, blobs *blob.Store, notifier *notify.Service, bcryptCost int, logger *log.Logger) *Service {
	return &Service{store: s, blobs: blobs, notifier: notifier, cost: bcryptCost, logger: logger}
}

// NormalizeEmail lower-cases and trims an address. Accounts are keyed on the result.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewAlias derives the default anonymous alias from a user id.
func NewAlias(userID string) string {
	prefix := userID
	if len(prefix) > 6 {
		prefix = prefix[:6]
	}
	return "Anonymous" + strings.ToUpper(prefix)
}

// SignUp creates the account, its default profile and a welcome notification.
func (s *Service) SignUp(ctx context.Context, email, password string) (*store.Account, error) {
	email = NormalizeEmail(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, apperr.Invalid("A valid email is required")
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return nil, apperr.Internal("Failed to create account", err)
	}

	now := store.Now()
	a := &store.Account{ID: store.NewID(), Email: email, PasswordHash: hash, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Conflict("An account with this email already exists")
		}
		return nil, apperr.Internal("Failed to create account", err)
	}
	p := &store.Profile{
		ID:                   store.NewID(),
		UserID:               a.ID,
		Alias:                NewAlias(a.ID),
		NotificationsEnabled: true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return nil, apperr.Internal("Failed to create profile", err)
	}
	s.notifier.NotifyQuietly(ctx, store.Notification{
		UserID:  a.ID,
		Type:    notify.TypeSystem,
		Title:   "Welcome",
		Message: welcomeMessage,
	})
	s.logger.Printf("account created: %s", a.ID)
	return a, nil
}

// SignIn returns the account when the credentials match.
func (s *Service) SignIn(ctx context.Context, email, password string) (*store.Account, error) {
	a, err := s.store.GetAccountByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		DummyCompare(password)
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, apperr.Internal("Failed to sign in", err)
	}
	ok, err := PasswordMatches(a.PasswordHash, password)
	if err != nil {
		return nil, apperr.Internal("Failed to sign in", err)
	}
	if !ok {
		return nil, errBadCredentials
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, userID string) (*store.Account, error) {
	a, err := s.store.GetAccount(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load account", err)
	}
	return a, nil
}

// FindByEmail looks an account up by its normalised email.
func (s *Service) FindByEmail(ctx context.Context, email string) (*store.Account, error) {
	a, err := s.store.GetAccountByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load account", err)
	}
	return a, nil
}

// ChangePassword sets a new password for a signed-in user.
func (s *Service) ChangePassword(ctx context.Context, userID, password string) error {
	return s.SetPasswordAdmin(ctx, userID, password)
}

// SetPasswordAdmin sets a password without any proof of the old one. Reset flows and
// service-role callers use it after their own verification.
func (s *Service) SetPasswordAdmin(ctx context.Context, userID, password string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}
	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return apperr.Internal("Failed to update password", err)
	}
	err = s.store.UpdatePasswordHash(ctx, userID, hash)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("User not found")
	}
	if err != nil {
		return apperr.Internal("Failed to update password", err)
	}
	s.logger.Printf("password updated: %s", userID)
	return nil
}

// Delete removes the user's media, rows and account.
func (s *Service) Delete(ctx context.Context, userID string) error {
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	for _, bucket := range []string{blob.BucketAvatars, blob.BucketMessages} {
		if err := s.blobs.DeletePrefix(bucket, userID); err != nil {
			return apperr.Internal("Failed to delete account", fmt.Errorf("delete %s: %w", bucket, err))
		}
	}
	if err := s.store.DeleteUserData(ctx, userID); err != nil {
		return apperr.Internal("Failed to delete account", err)
	}
	s.logger.Printf("account deleted: %s", userID)
	return nil
}
