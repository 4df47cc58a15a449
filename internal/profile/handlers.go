// internal/profile/handlers.go
package profile

import (
	"net/http"

	"github.com/rexlx/mindhaven/internal/apperr"
	"github.com/rexlx/mindhaven/internal/blob"
	"github.com/rexlx/mindhaven/internal/reset"
	"github.com/rexlx/mindhaven/internal/web"
)

// securityView is what the settings page sees of the security questions.
type securityView struct {
	HasQuestions bool     `json:"has_questions"`
	Question1    string   `json:"question1,omitempty"`
	Question2    string   `json:"question2,omitempty"`
	Options      []string `json:"options"`
}

type Handlers struct {
	svc      *Service
	security *reset.Security
	sessions *web.Sessions
}

func NewHandlers(svc *Service, security *reset.Security, sessions *web.Sessions) *Handlers {
	return &Handlers{svc: svc, security: security, sessions: sessions}
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/profile", h.sessions.RequireUser(h.get))
	mux.HandleFunc("PUT /api/profile", h.sessions.RequireUser(h.update))
	mux.HandleFunc("POST /api/profile/avatar", h.sessions.RequireUser(h.uploadAvatar))
	mux.HandleFunc("GET /api/profiles/search", h.sessions.RequireUser(h.search))
	mux.HandleFunc("GET /api/dashboard", h.sessions.RequireUser(h.dashboard))
	mux.HandleFunc("GET /api/security-questions", h.sessions.RequireUser(h.getSecurity))
	mux.HandleFunc("PUT /api/security-questions", h.sessions.RequireUser(h.saveSecurity))
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), h.sessions.UserID(r.Context()))
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, p)
}

func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	var u Update
	if err := web.DecodeJSON(w, r, &u); err != nil {
		web.WriteError(w, r, err)
		return
	}
	p, err := h.svc.Update(r.Context(), h.sessions.UserID(r.Context()), u)
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, p)
}

func (h *Handlers) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, blob.MaxImageSize+web.MaxRequestBodySize)
	url, err := h.svc.UploadAvatar(r, h.sessions.UserID(r.Context()))
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, map[string]string{"avatar_url": url})
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Search(r.Context(), h.sessions.UserID(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, list)
}

func (h *Handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard(r.Context(), h.sessions.UserID(r.Context()))
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, d)
}

func (h *Handlers) getSecurity(w http.ResponseWriter, r *http.Request) {
	view := securityView{Options: reset.Questions}
	q, err := h.security.ForUser(r.Context(), h.sessions.UserID(r.Context()))
	switch {
	case apperr.CodeOf(err) == apperr.CodeNotFound:
	case err != nil:
		web.WriteError(w, r, err)
		return
	default:
		view.HasQuestions = true
		view.Question1, view.Question2 = q.Question1, q.Question2
	}
	web.WriteJSON(w, http.StatusOK, view)
}

func (h *Handlers) saveSecurity(w http.ResponseWriter, r *http.Request) {
	var q reset.QuestionSet
	if err := web.DecodeJSON(w, r, &q); err != nil {
		web.WriteError(w, r, err)
		return
	}
	if err := h.security.Save(r.Context(), h.sessions.UserID(r.Context()), q); err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Security questions saved"})
}
