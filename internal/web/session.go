package web

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/rexlx/mindhaven/internal/apperr"
)

const userIDKey = "user_id"

// NewSessionManager returns the cookie session manager used by the /auth and /api routes.
func NewSessionManager(lifetime time.Duration, secure bool) *scs.SessionManager {
	sm := scs.New()
	sm.Lifetime = lifetime
	sm.Cookie.Name = "haven_session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = secure
	return sm
}

// Sessions wraps scs with the user-id helpers handlers need.
type Sessions struct {
	Manager *scs.SessionManager
}

// Login renews the token and binds userID to the session.
func (s *Sessions) Login(ctx context.Context, userID string) error {
	if err := s.Manager.RenewToken(ctx); err != nil {
		return err
	}
	s.Manager.Put(ctx, userIDKey, userID)
	return nil
}

// Logout destroys the session.
func (s *Sessions) Logout(ctx context.Context) error {
	return s.Manager.Destroy(ctx)
}

// UserID returns the signed-in user, or "".
func (s *Sessions) UserID(ctx context.Context) string {
	return s.Manager.GetString(ctx, userIDKey)
}

// RequireUser rejects requests without a signed-in user.
func (s *Sessions) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.UserID(r.Context()) == "" {
			WriteError(w, r, apperr.Unauthorized("Authentication required"))
			return
		}
		next(w, r)
	}
}
