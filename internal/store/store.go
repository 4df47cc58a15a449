// Package store defines the persisted rows and the storage contract implemented by
// the postgres and sqlite backends.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates a requested row is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a uniqueness constraint was violated.
	ErrConflict = errors.New("record already exists")
)

// NewID returns a new random row id.
func NewID() string {
	return uuid.New().String()
}

// Now returns the current time truncated to microseconds, the precision both backends keep.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE wildcards in user input. Patterns must use ESCAPE '\'.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type AccountStore interface {
	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	UpdatePasswordHash(ctx context.Context, id string, hash []byte) error
	// DeleteUserData removes the account and every row owned by it.
	DeleteUserData(ctx context.Context, userID string) error
}

type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpsertProfile(ctx context.Context, p *Profile) error
	ListProfiles(ctx context.Context, userIDs []string) ([]Profile, error)
	SearchProfiles(ctx context.Context, excludeUserID, query string, limit int) ([]Profile, error)
}

type ChatStore interface {
	CreateChat(ctx context.Context, c *AIChat) error
	GetChat(ctx context.Context, id string) (*AIChat, error)
	ListChats(ctx context.Context, userID string) ([]AIChat, error)
	UpdateChatTitle(ctx context.Context, id, title string) error
	TouchChat(ctx context.Context, id string, at time.Time) error
	DeleteChat(ctx context.Context, id string) error
	AddChatMessage(ctx context.Context, m *AIMessage) error
	ListChatMessages(ctx context.Context, chatID string) ([]AIMessage, error)
}

type ForumStore interface {
	CreatePost(ctx context.Context, p *ForumPost) error
	GetPost(ctx context.Context, id string) (*ForumPost, error)
	ListPosts(ctx context.Context, f PostFilter) ([]ForumPost, error)
	CountPosts(ctx context.Context, f PostFilter) (int, error)
	DeletePost(ctx context.Context, id string) error
	CreateReply(ctx context.Context, r *ForumReply) error
	GetReply(ctx context.Context, id string) (*ForumReply, error)
	ListReplies(ctx context.Context, postID string) ([]ForumReply, error)
	DeleteReply(ctx context.Context, id string) error
}

type PeerStore interface {
	CreatePeerChat(ctx context.Context, c *PeerChat) error
	GetPeerChat(ctx context.Context, id string) (*PeerChat, error)
	FindPeerChat(ctx context.Context, userA, userB string) (*PeerChat, error)
	// ListPeerChats returns the user's chats that they have not hidden, newest activity first.
	ListPeerChats(ctx context.Context, userID string) ([]PeerChat, error)
	TouchPeerChat(ctx context.Context, id string, at time.Time) error
	HideConversation(ctx context.Context, userID, chatID string) error
	UnhideConversation(ctx context.Context, userID, chatID string) error
	AddPeerMessage(ctx context.Context, m *PeerMessage) error
	GetPeerMessage(ctx context.Context, id string) (*PeerMessage, error)
	// ListPeerMessages returns the messages viewerID may see, oldest first.
	ListPeerMessages(ctx context.Context, chatID, viewerID string) ([]PeerMessage, error)
	// LastPeerMessages returns the newest message per chat, skipping messages deleted for everyone.
	LastPeerMessages(ctx context.Context, chatIDs []string) (map[string]PeerMessage, error)
	MarkDeletedForSender(ctx context.Context, messageID string) error
	MarkDeletedForEveryone(ctx context.Context, messageID string) error
}

type MoodStore interface {
	AddMood(ctx context.Context, m *MoodLog) error
	GetMood(ctx context.Context, id string) (*MoodLog, error)
	ListMoods(ctx context.Context, userID string) ([]MoodLog, error)
	DeleteMood(ctx context.Context, id string) error
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *Notification) error
	GetNotification(ctx context.Context, id string) (*Notification, error)
	ListNotifications(ctx context.Context, userID string) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	DeleteNotification(ctx context.Context, id string) error
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
}

type ResetStore interface {
	UpsertSecurityQuestions(ctx context.Context, q *SecurityQuestions) error
	GetSecurityQuestions(ctx context.Context, userID string) (*SecurityQuestions, error)
	// InvalidateResetCodes marks every unused code for email as used.
	InvalidateResetCodes(ctx context.Context, email string) error
	CreateResetCode(ctx context.Context, c *ResetCode) error
	// FindActiveResetCode returns the newest unused, unexpired code matching email and hash.
	FindActiveResetCode(ctx context.Context, email string, codeHash []byte, now time.Time) (*ResetCode, error)
	// ConsumeResetCode marks the code used. It reports false when the code was already used.
	ConsumeResetCode(ctx context.Context, id string) (bool, error)
	// PurgeResetCodes deletes used codes and codes that expired before the cutoff.
	PurgeResetCodes(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store is the full storage contract of the server.
type Store interface {
	AccountStore
	ProfileStore
	ChatStore
	ForumStore
	PeerStore
	MoodStore
	NotificationStore
	ResetStore
	Close() error
}
