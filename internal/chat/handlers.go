// internal/chat/handlers.go
package chat

import (
	"errors"
	"io"
	"net/http"

	"github.com/rexlx/mindhaven/internal/apikey"
	"github.com/rexlx/mindhaven/internal/completion"
	"github.com/rexlx/mindhaven/internal/web"
)

type relayRequest struct {
	Messages []completion.Message `json:"messages"`
	Stream   *bool                `json:"stream"`
}

type titleRequest struct {
	Title string `json:"title"`
}

type sendRequest struct {
	Content string `json:"content"`
	Stream  *bool  `json:"stream"`
}

// eventStream sets the SSE headers on first write and flushes after every write.
type eventStream struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func newEventStream(w http.ResponseWriter) *eventStream {
	return &eventStream{w: w, rc: http.NewResponseController(w)}
}

func (e *eventStream) Write(p []byte) (int, error) {
	if !e.started {
		e.started = true
		h := e.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		e.w.WriteHeader(http.StatusOK)
	}
	n, err := e.w.Write(p)
	if err != nil {
		return n, err
	}
	if ferr := e.rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
		return n, ferr
	}
	return n, nil
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
	mux.HandleFunc("GET /api/chats", h.sessions.RequireUser(h.list))
	mux.HandleFunc("POST /api/chats", h.sessions.RequireUser(h.create))
	mux.HandleFunc("PATCH /api/chats/{id}", h.sessions.RequireUser(h.rename))
	mux.HandleFunc("DELETE /api/chats/{id}", h.sessions.RequireUser(h.delete))
	mux.HandleFunc("GET /api/chats/{id}/messages", h.sessions.RequireUser(h.messages))
	mux.HandleFunc("POST /api/chats/{id}/messages", h.sessions.RequireUser(h.send))
}

// RegisterFunctionRoutes mounts the stateless relay. It carries no session.
func (h *Handlers) RegisterFunctionRoutes(mux *http.ServeMux) {
	requireKey := apikey.Require(h.apiSecret, apikey.RoleAnon, apikey.RoleService)
	mux.Handle("POST /functions/v1/ai-chat", requireKey(http.HandlerFunc(h.relay)))
}

func (h *Handlers) relay(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, completion.MaxRequestBodySize)
	var req relayRequest
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.WriteError(w, r, err)
		return
	}
	stream := req.Stream == nil || *req.Stream

	body, text, err := h.svc.Relay(r.Context(), req.Messages, stream)
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	if !stream {
		web.WriteJSON(w, http.StatusOK, map[string]string{"content": text})
		return
	}
	defer body.Close()
	out := newEventStream(w)
	if _, err := io.Copy(out, body); err != nil {
		h.svc.logger.Printf("ai-chat relay: %v", err)
	}
	if !out.started {
		out.Write(nil)
	}
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), h.sessions.UserID(r.Context()))
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, list)
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Create(r.Context(), h.sessions.UserID(r.Context()))
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handlers) rename(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.WriteError(w, r, err)
		return
	}
	c, err := h.svc.Rename(r.Context(), h.sessions.UserID(r.Context()), r.PathValue("id"), req.Title)
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, c)
}

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), h.sessions.UserID(r.Context()), r.PathValue("id")); err != nil {
		web.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) messages(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Messages(r.Context(), h.sessions.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, list)
}

// send streams the reply as SSE by default. With "stream": false it answers with the
// stored exchange as JSON.
func (h *Handlers) send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.WriteError(w, r, err)
		return
	}
	userID, chatID := h.sessions.UserID(r.Context()), r.PathValue("id")

	if req.Stream != nil && !*req.Stream {
		ex, err := h.svc.Send(r.Context(), userID, chatID, req.Content, nil)
		if err != nil {
			web.WriteError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusCreated, ex)
		return
	}

	out := newEventStream(w)
	if _, err := h.svc.Send(r.Context(), userID, chatID, req.Content, out); err != nil {
		if !out.started {
			web.WriteError(w, r, err)
			return
		}
		h.svc.logger.Printf("chat %s: %v", chatID, err)
		return
	}
	if !out.started {
		out.Write(nil)
	}
}
