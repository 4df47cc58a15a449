// internal/forum/handlers.go
package forum

import (
	"net/http"
	"strconv"

	"github.com/rexlx/mindhaven/internal/web"
)

type postRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

type replyRequest struct {
	Content string `json:"content"`
}

type Handlers struct {
	svc      *Service
	sessions *web.Sessions
}

func NewHandlers(svc *Service, sessions *web.Sessions) *Handlers {
	return &Handlers{svc: svc, sessions: sessions}
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/forum/categories", h.sessions.RequireUser(h.categories))
	mux.HandleFunc("GET /api/forum/posts", h.sessions.RequireUser(h.listPosts))
	mux.HandleFunc("POST /api/forum/posts", h.sessions.RequireUser(h.createPost))
	mux.HandleFunc("GET /api/forum/posts/{id}", h.sessions.RequireUser(h.showPost))
	mux.HandleFunc("DELETE /api/forum/posts/{id}", h.sessions.RequireUser(h.deletePost))
	mux.HandleFunc("POST /api/forum/posts/{id}/replies", h.sessions.RequireUser(h.createReply))
	mux.HandleFunc("DELETE /api/forum/replies/{id}", h.sessions.RequireUser(h.deleteReply))
}

func (h *Handlers) categories(w http.ResponseWriter, r *http.Request) {
	web.WriteJSON(w, http.StatusOK, Categories)
}

// listPosts handles filtering, searching and paginating the board.
func (h *Handlers) listPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	view, err := h.svc.ListPosts(r.Context(), q.Get("category"), q.Get("q"), page)
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, view)
}

// showPost returns a single post with its replies.
func (h *Handlers) showPost(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetPost(r.Context(), r.PathValue("id"))
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, view)
}

func (h *Handlers) createPost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.WriteError(w, r, err)
		return
	}
	p, err := h.svc.CreatePost(r.Context(), h.sessions.UserID(r.Context()), req.Title, req.Content, req.Category)
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handlers) deletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePost(r.Context(), h.sessions.UserID(r.Context()), r.PathValue("id")); err != nil {
		web.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) createReply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := web.DecodeJSON(w, r, &req); err != nil {
		web.WriteError(w, r, err)
		return
	}
	reply, err := h.svc.CreateReply(r.Context(), h.sessions.UserID(r.Context()), r.PathValue("id"), req.Content)
	if err != nil {
		web.WriteError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, reply)
}

func (h *Handlers) deleteReply(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteReply(r.Context(), h.sessions.UserID(r.Context()), r.PathValue("id")); err != nil {
		web.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
