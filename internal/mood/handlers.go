// internal/mood/handlers.go
package mood

import (
	"net/http"

	"github.com/rexlx/mindhaven/internal/web"
)

type logRequest struct {
	Mood  string `json:"mood"`
	Notes string `json:"notes"`
}

type Handlers struct {
	svc      *Service
	sessions *web.Sessions
}

func NewHandlers(svc *Service, sessions *web.Sessions) *Handlers {
	return &Handlers{svc: svc, sessions: sessions}
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/moods", h.sessions.RequireUser(h.list))
	mux.HandleFunc("POST /api/moods", h.sessions.RequireUser(h.create))
	mux.HandleFunc("DELETE /api/moods/{id}", h.sessions.RequireUser(h.delete))
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	logs, err := h.svc.List(r.Context(), h.sessions.UserID(r.Context()))
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, logs)
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	var req logRequest
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.WriteError(w, r, err)
		return
	}
	m, err := h.svc.Log(r.Context(), h.sessions.UserID(r.Context()), req.Mood, req.Notes)
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), h.sessions.UserID(r.Context()), r.PathValue("id")); err != nil {
		web.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
