// internal/store/models.go
package store

import (
	"time"
)

// Account is the credential record behind a user. The password hash never leaves the server.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is the public, anonymous face of a user.
type Profile struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	Alias                string    `json:"anonymous_alias"`
	AvatarURL            *string   `json:"avatar_url"`
	Bio                  *string   `json:"bio"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// AIChat is one conversation with the assistant.
type AIChat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AIMessage roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// AIMessage is a single turn in an AIChat.
type AIMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ForumPost is a community discussion. AuthorAlias and ReplyCount are filled on reads.
type ForumPost struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
	AuthorAlias string    `json:"author_alias,omitempty"`
	ReplyCount  int       `json:"reply_count"`
}

// ForumReply answers a ForumPost.
type ForumReply struct {
	ID          string    `json:"id"`
	PostID      string    `json:"post_id"`
	UserID      string    `json:"user_id"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	AuthorAlias string    `json:"author_alias,omitempty"`
}

// PostFilter narrows ListPosts and CountPosts.
type PostFilter struct {
	Category string
	Query    string
	Limit    int
	Offset   int
}

// PeerChat is a two-party conversation.
type PeerChat struct {
	ID             string    `json:"id"`
	Participant1ID string    `json:"participant1_id"`
	Participant2ID string    `json:"participant2_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Other returns the participant that is not userID.
func (c PeerChat) Other(userID string) string {
	if c.Participant1ID == userID {
		return c.Participant2ID
	}
	return c.Participant1ID
}

// Has reports whether userID takes part in the chat.
func (c PeerChat) Has(userID string) bool {
	return c.Participant1ID == userID || c.Participant2ID == userID
}

// PeerMessage is a message in a PeerChat, optionally carrying one media URL.
type PeerMessage struct {
	ID                 string    `json:"id"`
	ChatID             string    `json:"chat_id"`
	SenderID           string    `json:"sender_id"`
	Content            string    `json:"content"`
	ImageURL           *string   `json:"image_url"`
	VideoURL           *string   `json:"video_url"`
	DeletedForSender   bool      `json:"deleted_for_sender"`
	DeletedForEveryone bool      `json:"deleted_for_everyone"`
	CreatedAt          time.Time `json:"created_at"`
}

// MoodLog is a mood journal entry.
type MoodLog struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Mood      string    `json:"mood"`
	Notes     *string   `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is an in-app notice addressed to one user.
type Notification struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	Read          bool      `json:"read"`
	ReferenceID   *string   `json:"reference_id"`
	ReferenceType *string   `json:"reference_type"`
	CreatedAt     time.Time `json:"created_at"`
}

// SecurityQuestions holds a user's two recovery questions and salted answer hashes.
type SecurityQuestions struct {
	UserID      string    `json:"user_id"`
	Question1   string    `json:"question1"`
	Answer1Hash []byte    `json:"-"`
	Question2   string    `json:"question2"`
	Answer2Hash []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ResetCode is a one-time password reset code. Only its hash is stored.
type ResetCode struct {
	ID        string
	Email     string
	CodeHash  []byte
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}
