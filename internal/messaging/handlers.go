// internal/messaging/handlers.go
package messaging

import (
	"mime"
	"net/http"

	"github.com/rexlx/mindhaven/internal/blob"
	"github.com/rexlx/mindhaven/internal/web"
)

type startRequest struct {
	UserID string `json:"user_id"`
}

type sendRequest struct {
	Content string `json:"content"`
}

// Delete scopes accepted by DELETE /api/messages/{id}.
const (
	ScopeMe       = "me"
	ScopeEveryone = "everyone"
)

type Handlers struct {
	svc      *Service
	blobs    *blob.Store
	sessions *web.Sessions
}

func NewHandlers(svc *Service, blobs *blob.Store, sessions *web.Sessions) *Handlers {
	return &Handlers{svc: svc, blobs: blobs, sessions: sessions}
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/conversations", h.sessions.RequireUser(h.list))
	mux.HandleFunc("POST /api/conversations", h.sessions.RequireUser(h.start))
	mux.HandleFunc("DELETE /api/conversations", h.sessions.RequireUser(h.clearAll))
	mux.HandleFunc("DELETE /api/conversations/{id}", h.sessions.RequireUser(h.hide))
	mux.HandleFunc("GET /api/conversations/{id}/messages", h.sessions.RequireUser(h.messages))
	mux.HandleFunc("POST /api/conversations/{id}/messages", h.sessions.RequireUser(h.send))
	mux.HandleFunc("DELETE /api/messages/{id}", h.sessions.RequireUser(h.deleteMessage))
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	convs, err := h.svc.List(r.Context(), h.sessions.UserID(r.Context()))
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, convs)
}

func (h *Handlers) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.WriteError(w, r, err)
		return
	}
	c, err := h.svc.Start(r.Context(), h.sessions.UserID(r.Context()), req.UserID)
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, c)
}

func (h *Handlers) clearAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ClearAll(r.Context(), h.sessions.UserID(r.Context()))
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

func (h *Handlers) hide(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Hide(r.Context(), h.sessions.UserID(r.Context()), r.PathValue("id")); err != nil {
		web.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) messages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.svc.Messages(r.Context(), h.sessions.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, msgs)
}

// send accepts JSON for text messages, or a multipart form with an optional
// "content" field and a "file" field for media.
func (h *Handlers) send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := h.sessions.UserID(ctx)
	chatID := r.PathValue("id")

	var out Outgoing
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		// Membership is checked before anything is written to storage.
		if _, err := h.svc.member(ctx, userID, chatID); err != nil {
			web.WriteError(w, r, err)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, blob.MaxVideoSize+web.MaxRequestBodySize)
		up, err := h.blobs.SaveForm(r, blob.BucketMessages, userID, blob.MessageLimits)
		if err != nil {
			web.WriteError(w, r, err)
			return
		}
		out = Outgoing{Content: r.FormValue("content"), Media: up}
	} else {
		var req sendRequest
		if err := web.DecodeJSON(w, r, &req); err != nil {
			web.WriteError(w, r, err)
			return
		}
		out.Content = req.Content
	}

	m, err := h.svc.Send(ctx, userID, chatID, out)
	if err != nil {
		if out.Media != nil {
			h.svc.discard(out.Media)
		}
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, m)
}

// deleteMessage removes a message for the sender, or for everyone with ?scope=everyone.
func (h *Handlers) deleteMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := h.sessions.UserID(ctx)
	var err error
	switch r.URL.Query().Get("scope") {
	case ScopeEveryone:
		err = h.svc.DeleteForEveryone(ctx, userID, r.PathValue("id"))
	case ScopeMe, "":
		err = h.svc.DeleteForMe(ctx, userID, r.PathValue("id"))
	default:
		web.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid scope"})
		return
	}
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
