package forum

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexlx/mindhaven/internal/apperr"
	"github.com/rexlx/mindhaven/internal/notify"
	"github.com/rexlx/mindhaven/internal/store"
	"github.com/rexlx/mindhaven/internal/store/sqlite"
	"github.com/rexlx/mindhaven/internal/testutil"
	"github.com/rexlx/mindhaven/internal/web"
)

func newService(t *testing.T) (*Service, *sqlite.Store) {
	t.Helper()
	s := testutil.NewStore(t)
	logger := log.New(io.Discard, "", 0)
	return NewService(s, notify.NewService(s, logger), logger), s
}

func TestCreatePostValidation(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()
	me := testutil.SeedUser(t, s, "a@x.com", "Fox")

	_, err := svc.CreatePost(ctx, me, " ", "body", "stress")
	assert.Equal(t, "Title and content are required", apperr.MessageOf(err))
	_, err = svc.CreatePost(ctx, me, "title", "body", "gossip")
	assert.Equal(t, apperr.CodeInvalid, apperr.CodeOf(err))

	p, err := svc.CreatePost(ctx, me, " Exams ", "so much pressure", "")
	require.NoError(t, err)
	assert.Equal(t, "Exams", p.Title)
	assert.Equal(t, "general", p.Category)
	assert.Equal(t, "Fox", p.AuthorAlias)
}

func TestListPostsFilterAndPagination(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()
	me := testutil.SeedUser(t, s, "a@x.com", "Fox")

	for i := range web.PageSize + 3 {
		_, err := svc.CreatePost(ctx, me, fmt.Sprintf("post %d", i), "content", "stress")
		require.NoError(t, err)
	}
	_, err := svc.CreatePost(ctx, me, "Sleepless", "cannot sleep before exams", "anxiety")
	require.NoError(t, err)

	view, err := svc.ListPosts(ctx, "all", "", 1)
	require.NoError(t, err)
	assert.Len(t, view.Posts, web.PageSize)
	assert.Equal(t, web.PageSize+4, view.Pagination.Total)
	assert.Equal(t, 2, view.Pagination.TotalPages)
	assert.True(t, view.Pagination.HasNext)
	assert.Equal(t, "Sleepless", view.Posts[0].Title)

	view, err = svc.ListPosts(ctx, "stress", "", 2)
	require.NoError(t, err)
	assert.Len(t, view.Posts, 3)
	assert.True(t, view.Pagination.HasPrev)

	view, err = svc.ListPosts(ctx, "", "EXAMS", 1)
	require.NoError(t, err)
	require.Len(t, view.Posts, 1)
	assert.Equal(t, "Sleepless", view.Posts[0].Title)

	_, err = svc.ListPosts(ctx, "gossip", "", 1)
	assert.Equal(t, apperr.CodeInvalid, apperr.CodeOf(err))
}

func TestRepliesNotifyAuthor(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()
	author := testutil.SeedUser(t, s, "a@x.com", "Fox")
	replier := testutil.SeedUser(t, s, "b@x.com", "Owl")

	p, err := svc.CreatePost(ctx, author, "Need advice", "How do you cope?", "general")
	require.NoError(t, err)

	_, err = svc.CreateReply(ctx, author, p.ID, "bump")
	require.NoError(t, err)
	list, err := s.ListNotifications(ctx, author)
	require.NoError(t, err)
	assert.Empty(t, list)

	r, err := svc.CreateReply(ctx, replier, p.ID, "Walks help me")
	require.NoError(t, err)
	assert.Equal(t, "Owl", r.AuthorAlias)

	list, err = s.ListNotifications(ctx, author)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, notify.TypeForum, list[0].Type)
	assert.Equal(t, `Owl replied to "Need advice"`, list[0].Message)
	require.NotNil(t, list[0].ReferenceID)
	assert.Equal(t, p.ID, *list[0].ReferenceID)

	view, err := svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, view.Replies, 2)
	assert.Equal(t, "bump", view.Replies[0].Content)
	assert.Equal(t, 2, view.Post.ReplyCount)
}

func TestReplyRespectsNotificationPreference(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()
	author := testutil.SeedUser(t, s, "a@x.com", "Fox")
	replier := testutil.SeedUser(t, s, "b@x.com", "Owl")

	prof, err := s.GetProfile(ctx, author)
	require.NoError(t, err)
	prof.NotificationsEnabled = false
	require.NoError(t, s.UpsertProfile(ctx, prof))

	p, err := svc.CreatePost(ctx, author, "Quiet please", "no pings", "general")
	require.NoError(t, err)
	_, err = svc.CreateReply(ctx, replier, p.ID, "ok")
	require.NoError(t, err)

	n, err := s.CountUnreadNotifications(ctx, author)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteOwnOnly(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()
	author := testutil.SeedUser(t, s, "a@x.com", "Fox")
	other := testutil.SeedUser(t, s, "b@x.com", "Owl")

	p, err := svc.CreatePost(ctx, author, "t", "c", "general")
	require.NoError(t, err)
	r, err := svc.CreateReply(ctx, other, p.ID, "reply")
	require.NoError(t, err)

	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(svc.DeleteReply(ctx, author, r.ID)))
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(svc.DeletePost(ctx, other, p.ID)))

	require.NoError(t, svc.DeletePost(ctx, author, p.ID))
	_, err = s.GetReply(ctx, r.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(svc.DeletePost(ctx, author, p.ID)))
	_, err = svc.CreateReply(ctx, other, p.ID, "late")
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestHandlers(t *testing.T) {
	svc, s := newService(t)
	author := testutil.SeedUser(t, s, "a@x.com", "Fox")
	other := testutil.SeedUser(t, s, "b@x.com", "Owl")
	h := testutil.NewHarness(t, func(mux *http.ServeMux, sessions *web.Sessions) {
		NewHandlers(svc, sessions).RegisterRoutes(mux)
	})
	a, b := h.Client(t, author), h.Client(t, other)

	status, body := h.Do(t, a, http.MethodPost, "/api/forum/posts", postRequest{Title: "Hi", Content: "First", Category: "academics"})
	require.Equal(t, http.StatusCreated, status, string(body))
	post := testutil.Decode[store.ForumPost](t, body)

	status, body = h.Do(t, b, http.MethodPost, "/api/forum/posts/"+post.ID+"/replies", replyRequest{Content: "Welcome"})
	require.Equal(t, http.StatusCreated, status, string(body))
	reply := testutil.Decode[store.ForumReply](t, body)

	status, body = h.Do(t, a, http.MethodGet, "/api/forum/posts?category=academics", nil)
	require.Equal(t, http.StatusOK, status)
	view := testutil.Decode[PostsView](t, body)
	require.Len(t, view.Posts, 1)
	assert.Equal(t, 1, view.Posts[0].ReplyCount)
	assert.Equal(t, "Fox", view.Posts[0].AuthorAlias)

	status, body = h.Do(t, a, http.MethodGet, "/api/forum/posts/"+post.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, testutil.Decode[PostView](t, body).Replies, 1)

	status, _ = h.Do(t, a, http.MethodDelete, "/api/forum/replies/"+reply.ID, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = h.Do(t, b, http.MethodDelete, "/api/forum/replies/"+reply.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = h.Do(t, a, http.MethodGet, "/api/forum/categories", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, Categories, testutil.Decode[[]string](t, body))

	status, _ = h.Do(t, a, http.MethodGet, "/api/forum/posts/"+store.NewID(), nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListPostsHugePage(t *testing.T) {
	svc, s := newService(t)
	me := testutil.SeedUser(t, s, "a@x.com", "Fox")
	_, err := svc.CreatePost(context.Background(), me, "Hi", "First", "academics")
	require.NoError(t, err)
	h := testutil.NewHarness(t, func(mux *http.ServeMux, sessions *web.Sessions) {
		NewHandlers(svc, sessions).RegisterRoutes(mux)
	})

	status, body := h.Do(t, h.Client(t, me), http.MethodGet, "/api/forum/posts?page=99999999999999", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	view := testutil.Decode[PostsView](t, body)
	assert.Empty(t, view.Posts)
	assert.Equal(t, web.MaxPage, view.Pagination.CurrentPage)
	assert.Equal(t, 1, view.Pagination.Total)
}
