// internal/notify/handlers.go
package notify

import (
	"net/http"

	"github.com/rexlx/mindhaven/internal/web"
)

type Handlers struct {
	svc      *Service
	sessions *web.Sessions
}

func NewHandlers(svc *Service, sessions *web.Sessions) *Handlers {
	return &Handlers{svc: svc, sessions: sessions}
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/notifications", h.sessions.RequireUser(h.list))
	mux.HandleFunc("GET /api/notifications/unread-count", h.sessions.RequireUser(h.unreadCount))
	mux.HandleFunc("POST /api/notifications/read-all", h.sessions.RequireUser(h.markAllRead))
	mux.HandleFunc("POST /api/notifications/{id}/read", h.sessions.RequireUser(h.markRead))
	mux.HandleFunc("DELETE /api/notifications/{id}", h.sessions.RequireUser(h.delete))
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), h.sessions.UserID(r.Context()))
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, list)
}

func (h *Handlers) unreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.UnreadCount(r.Context(), h.sessions.UserID(r.Context()))
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]int{"unread": n})
}

func (h *Handlers) markRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkRead(r.Context(), h.sessions.UserID(r.Context()), r.PathValue("id")); err != nil {
		web.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) markAllRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkAllRead(r.Context(), h.sessions.UserID(r.Context())); err != nil {
		web.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), h.sessions.UserID(r.Context()), r.PathValue("id")); err != nil {
		web.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
