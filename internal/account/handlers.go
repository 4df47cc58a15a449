// internal/account/handlers.go
package account

import (
	"net/http"

	"github.com/rexlx/mindhaven/internal/apikey"
	"github.com/rexlx/mindhaven/internal/apperr"
	"github.com/rexlx/mindhaven/internal/store"
	"github.com/rexlx/mindhaven/internal/web"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

// session is the body of sign-up, sign-in and me responses.
type session struct {
	User    *store.Account `json:"user"`
	Profile *store.Profile `json:"profile,omitempty"`
}

type Handlers struct {
	svc       *Service
	sessions  *web.Sessions
	apiSecret []byte
}

func NewHandlers(svc *Service, sessions *web.Sessions, apiSecret []byte) *Handlers {
	return &Handlers{svc: svc, sessions: sessions, apiSecret: apiSecret}
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/signup", h.signUp)
	mux.HandleFunc("POST /auth/login", h.signIn)
	mux.HandleFunc("POST /auth/logout", h.signOut)
	mux.HandleFunc("GET /auth/me", h.sessions.RequireUser(h.me))
	mux.HandleFunc("PUT /api/account/password", h.sessions.RequireUser(h.changePassword))
	mux.HandleFunc("DELETE /api/account", h.sessions.RequireUser(h.deleteAccount))
}

// RegisterAdminRoutes mounts the service-role routes. They carry no session.
func (h *Handlers) RegisterAdminRoutes(mux *http.ServeMux) {
	requireService := apikey.Require(h.apiSecret, apikey.RoleService)
	mux.Handle("PUT /admin/v1/users/{id}/password", requireService(http.HandlerFunc(h.adminSetPassword)))
}

func (h *Handlers) profileOf(r *http.Request, userID string) *store.Profile {
	p, err := h.svc.store.GetProfile(r.Context(), userID)
	if err != nil {
		return nil
	}
	return p
}

func (h *Handlers) signUp(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.WriteError(w, r, err)
		return
	}
	a, err := h.svc.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	if err := h.sessions.Login(r.Context(), a.ID); err != nil {
		web.WriteError(w, r, apperr.Internal("Failed to start session", err))
		return
	}
	web.WriteJSON(w, http.StatusCreated, session{User: a, Profile: h.profileOf(r, a.ID)})
}

func (h *Handlers) signIn(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.WriteError(w, r, err)
		return
	}
	a, err := h.svc.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	if err := h.sessions.Login(r.Context(), a.ID); err != nil {
		web.WriteError(w, r, apperr.Internal("Failed to start session", err))
		return
	}
	web.WriteJSON(w, http.StatusOK, session{User: a, Profile: h.profileOf(r, a.ID)})
}

func (h *Handlers) signOut(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		web.WriteError(w, r, apperr.Internal("Failed to sign out", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	userID := h.sessions.UserID(r.Context())
	a, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeNotFound {
			_ = h.sessions.Logout(r.Context())
			err = apperr.Unauthorized("Authentication required")
		}
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, session{User: a, Profile: h.profileOf(r, userID)})
}

func (h *Handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.WriteError(w, r, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), h.sessions.UserID(r.Context()), req.Password); err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Password updated successfully"})
}

func (h *Handlers) deleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), h.sessions.UserID(r.Context())); err != nil {
		web.WriteError(w, r, err)
		return
	}
	if err := h.sessions.Logout(r.Context()); err != nil {
		h.svc.logger.Printf("logout after delete: %v", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) adminSetPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.WriteError(w, r, err)
		return
	}
	if err := h.svc.SetPasswordAdmin(r.Context(), r.PathValue("id"), req.Password); err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}
