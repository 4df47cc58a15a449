// Package forum serves the anonymous community board: posts, replies and reply notifications.
package forum

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/rexlx/mindhaven/internal/apperr"
	"github.com/rexlx/mindhaven/internal/notify"
	"github.com/rexlx/mindhaven/internal/store"
	"github.com/rexlx/mindhaven/internal/web"
)

// Categories a post may be filed under.
var Categories = []string{"general", "stress", "anxiety", "depression", "relationships", "academics"}

// CategoryAll disables the category filter.
const CategoryAll = "all"

const (
	MaxTitleLength   = 200
	MaxContentLength = 10000
)

type Store interface {
	store.ForumStore
	GetProfile(ctx context.Context, userID string) (*store.Profile, error)
}

// PostsView is one page of the board.
type PostsView struct {
	Posts       []store.ForumPost `json:"posts"`
	Pagination  web.Pagination    `json:"pagination"`
	SearchQuery string            `json:"search_query"`
	Category    string            `json:"category"`
}

// PostView is a post with its replies, oldest first.
type PostView struct {
	Post    store.ForumPost    `json:"post"`
	Replies []store.ForumReply `json:"replies"`
}

type Service struct {
	store    Store
	notifier *notify.Service
	logger   *log.Logger
}

func NewService(s Store, notifier *notify.Service, logger *log.Logger) *Service {
	return &Service{store: s, notifier: notifier, logger: logger}
}

func validCategory(c string) bool {
	return slices.Contains(Categories, c)
}

// --- Post Functions ---

// ListPosts returns page (1-based) of posts, filtered by category and a search over title and content.
func (s *Service) ListPosts(ctx context.Context, category, query string, page int) (*PostsView, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = CategoryAll
	}
	if category != CategoryAll && !validCategory(category) {
		return nil, apperr.Invalid("Unknown category")
	}
	page = web.ClampPage(page)
	f := store.PostFilter{Query: strings.TrimSpace(query), Limit: web.PageSize, Offset: (page - 1) * web.PageSize}
	if category != CategoryAll {
		f.Category = category
	}

	posts, err := s.store.ListPosts(ctx, f)
	if err != nil {
		return nil, apperr.Internal("Failed to retrieve posts", err)
	}
	total, err := s.store.CountPosts(ctx, f)
	if err != nil {
		return nil, apperr.Internal("Failed to retrieve posts", err)
	}
	if posts == nil {
		posts = []store.ForumPost{}
	}
	return &PostsView{
		Posts:       posts,
		Pagination:  web.NewPagination(page, total),
		SearchQuery: f.Query,
		Category:    category,
	}, nil
}

func (s *Service) GetPost(ctx context.Context, postID string) (*PostView, error) {
	p, err := s.store.GetPost(ctx, postID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Post not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to retrieve post", err)
	}
	replies, err := s.store.ListReplies(ctx, postID)
	if err != nil {
		return nil, apperr.Internal("Failed to retrieve replies", err)
	}
	if replies == nil {
		replies = []store.ForumReply{}
	}
	return &PostView{Post: *p, Replies: replies}, nil
}

func (s *Service) CreatePost(ctx context.Context, userID, title, content, category string) (*store.ForumPost, error) {
	title, content = strings.TrimSpace(title), strings.TrimSpace(content)
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = "general"
	}
	switch {
	case title == "" || content == "":
		return nil, apperr.Invalid("Title and content are required")
	case utf8.RuneCountInString(title) > MaxTitleLength:
		return nil, apperr.Invalid("Title must be at most 200 characters")
	case utf8.RuneCountInString(content) > MaxContentLength:
		return nil, apperr.Invalid("Content must be at most 10000 characters")
	case !validCategory(category):
		return nil, apperr.Invalid("Unknown category")
	}

	p := &store.ForumPost{
		ID:        store.NewID(),
		UserID:    userID,
		Title:     title,
		Content:   content,
		Category:  category,
		CreatedAt: store.Now(),
	}
	if err := s.store.CreatePost(ctx, p); err != nil {
		return nil, apperr.Internal("Failed to create post", err)
	}
	p.AuthorAlias = s.alias(ctx, userID)
	return p, nil
}

// DeletePost removes the caller's own post and its replies.
func (s *Service) DeletePost(ctx context.Context, userID, postID string) error {
	p, err := s.store.GetPost(ctx, postID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("Post not found")
	}
	if err != nil {
		return apperr.Internal("Failed to delete post", err)
	}
	if p.UserID != userID {
		return apperr.Forbidden("You can only delete your own posts")
	}
	if err := s.store.DeletePost(ctx, postID); err != nil {
		return apperr.Internal("Failed to delete post", err)
	}
	return nil
}

// --- Reply Functions ---

// CreateReply adds a reply and notifies the post author unless they replied to themselves.
func (s *Service) CreateReply(ctx context.Context, userID, postID, content string) (*store.ForumReply, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Invalid("Reply content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, apperr.Invalid("Content must be at most 10000 characters")
	}
	post, err := s.store.GetPost(ctx, postID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Post not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to create reply", err)
	}

	r := &store.ForumReply{ID: store.NewID(), PostID: postID, UserID: userID, Content: content, CreatedAt: store.Now()}
	if err := s.store.CreateReply(ctx, r); err != nil {
		return nil, apperr.Internal("Failed to create reply", err)
	}
	r.AuthorAlias = s.alias(ctx, userID)

	if post.UserID != userID {
		refType := notify.RefForumPost
		s.notifier.NotifyQuietly(ctx, store.Notification{
			UserID:        post.UserID,
			Type:          notify.TypeForum,
			Title:         "New reply to your post",
			Message:       fmt.Sprintf("%s replied to %q", r.AuthorAlias, post.Title),
			ReferenceID:   &post.ID,
			ReferenceType: &refType,
		})
	}
	return r, nil
}

func (s *Service) DeleteReply(ctx context.Context, userID, replyID string) error {
	r, err := s.store.GetReply(ctx, replyID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("Reply not found")
	}
	if err != nil {
		return apperr.Internal("Failed to delete reply", err)
	}
	if r.UserID != userID {
		return apperr.Forbidden("You can only delete your own replies")
	}
	if err := s.store.DeleteReply(ctx, replyID); err != nil {
		return apperr.Internal("Failed to delete reply", err)
	}
	return nil
}

func (s *Service) alias(ctx context.Context, userID string) string {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return "Anonymous"
	}
	return p.Alias
}
