// Package messaging implements private conversations between two users, with optional media.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rexlx/mindhaven/internal/apperr"
	"github.com/rexlx/mindhaven/internal/blob"
	"github.com/rexlx/mindhaven/internal/notify"
	"github.com/rexlx/mindhaven/internal/store"
)

// Preview texts for media-only messages.
const (
	PreviewVideo = "🎥 Video"
	PreviewImage = "📷 Image"
)

const MaxContentLength = 5000

type Store interface {
	store.PeerStore
	GetProfile(ctx context.Context, userID string) (*store.Profile, error)
	ListProfiles(ctx context.Context, userIDs []string) ([]store.Profile, error)
}

// Participant is the public view of the other side of a conversation.
type Participant struct {
	UserID    string  `json:"user_id"`
	Alias     string  `json:"anonymous_alias"`
	AvatarURL *string `json:"avatar_url"`
}

// Conversation is a chat as listed for one of its participants.
type Conversation struct {
	store.PeerChat
	OtherUser     Participant `json:"other_user"`
	LastMessage   string      `json:"last_message"`
	LastMessageAt *time.Time  `json:"last_message_at"`
}

// Outgoing is a message about to be sent. Media is set when a file was uploaded.
type Outgoing struct {
	Content string
	Media   *blob.Upload
}

type Service struct {
	store    Store
	blobs    *blob.Store
	notifier *notify.Service
	logger   *log.Logger
}

func NewService(s Store, blobs *blob.Store, notifier *notify.Service, logger *log.Logger) *Service {
	return &Service{store: s, blobs: blobs, notifier: notifier, logger: logger}
}

// Preview summarises a message for the conversation list.
func Preview(m store.PeerMessage) string {
	switch {
	case m.VideoURL != nil:
		return PreviewVideo
	case m.ImageURL != nil:
		return PreviewImage
	}
	return m.Content
}

func participantFrom(userID string, p *store.Profile) Participant {
	if p == nil {
		return Participant{UserID: userID, Alias: "Anonymous"}
	}
	return Participant{UserID: userID, Alias: p.Alias, AvatarURL: p.AvatarURL}
}

// member loads a chat the user takes part in. Other chats look missing.
func (s *Service) member(ctx context.Context, userID, chatID string) (*store.PeerChat, error) {
	c, err := s.store.GetPeerChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !c.Has(userID)) {
		return nil, apperr.NotFound("Conversation not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load conversation", err)
	}
	return c, nil
}

// --- Conversation Functions ---

// Start returns the conversation between userID and otherID, restoring it for the
// caller if they had hidden it, or creates one.
func (s *Service) Start(ctx context.Context, userID, otherID string) (*store.PeerChat, error) {
	if otherID == "" || otherID == userID {
		return nil, apperr.Invalid("Choose someone else to message")
	}
	if _, err := s.store.GetProfile(ctx, otherID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal("Failed to start conversation", err)
	}

	c, err := s.store.FindPeerChat(ctx, userID, otherID)
	switch {
	case err == nil:
		if err := s.store.UnhideConversation(ctx, userID, c.ID); err != nil {
			return nil, apperr.Internal("Failed to start conversation", err)
		}
		return c, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, apperr.Internal("Failed to start conversation", err)
	}

	now := store.Now()
	c = &store.PeerChat{ID: store.NewID(), Participant1ID: userID, Participant2ID: otherID, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreatePeerChat(ctx, c); err != nil {
		return nil, apperr.Internal("Failed to start conversation", err)
	}
	return c, nil
}

// List returns the caller's visible conversations, most recent activity first.
func (s *Service) List(ctx context.Context, userID string) ([]Conversation, error) {
	chats, err := s.store.ListPeerChats(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("Failed to load conversations", err)
	}
	out := make([]Conversation, 0, len(chats))
	if len(chats) == 0 {
		return out, nil
	}

	ids := make([]string, len(chats))
	others := make([]string, len(chats))
	for i, c := range chats {
		ids[i] = c.ID
		others[i] = c.Other(userID)
	}
	profiles, err := s.store.ListProfiles(ctx, others)
	if err != nil {
		return nil, apperr.Internal("Failed to load conversations", err)
	}
	byUser := make(map[string]*store.Profile, len(profiles))
	for i := range profiles {
		byUser[profiles[i].UserID] = &profiles[i]
	}
	last, err := s.store.LastPeerMessages(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("Failed to load conversations", err)
	}

	for _, c := range chats {
		other := c.Other(userID)
		conv := Conversation{PeerChat: c, OtherUser: participantFrom(other, byUser[other])}
		if m, ok := last[c.ID]; ok {
			conv.LastMessage = Preview(m)
			at := m.CreatedAt
			conv.LastMessageAt = &at
		}
		out = append(out, conv)
	}
	return out, nil
}

// Hide removes a conversation from the caller's list. The other participant keeps it.
func (s *Service) Hide(ctx context.Context, userID, chatID string) error {
	if _, err := s.member(ctx, userID, chatID); err != nil {
		return err
	}
	if err := s.store.HideConversation(ctx, userID, chatID); err != nil {
		return apperr.Internal("Failed to delete conversation", err)
	}
	return nil
}

// ClearAll hides every conversation currently in the caller's list.
func (s *Service) ClearAll(ctx context.Context, userID string) (int, error) {
	chats, err := s.store.ListPeerChats(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("Failed to clear conversations", err)
	}
	for _, c := range chats {
		if err := s.store.HideConversation(ctx, userID, c.ID); err != nil {
			return 0, apperr.Internal("Failed to clear conversations", err)
		}
	}
	return len(chats), nil
}

// --- Message Functions ---

func (s *Service) Messages(ctx context.Context, userID, chatID string) ([]store.PeerMessage, error) {
	if _, err := s.member(ctx, userID, chatID); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListPeerMessages(ctx, chatID, userID)
	if err != nil {
		return nil, apperr.Internal("Failed to load messages", err)
	}
	if msgs == nil {
		msgs = []store.PeerMessage{}
	}
	return msgs, nil
}

// Send stores a message, restores the conversation for the recipient and notifies them.
func (s *Service) Send(ctx context.Context, userID, chatID string, out Outgoing) (*store.PeerMessage, error) {
	content := strings.TrimSpace(out.Content)
	if content == "" && out.Media == nil {
		return nil, apperr.Invalid("Message must have text or media")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, apperr.Invalid("Message is too long")
	}
	c, err := s.member(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	m := &store.PeerMessage{ID: store.NewID(), ChatID: chatID, SenderID: userID, Content: content, CreatedAt: store.Now()}
	if out.Media != nil {
		url := out.Media.URL
		if out.Media.Kind == blob.KindVideo {
			m.VideoURL = &url
		} else {
			m.ImageURL = &url
		}
	}
	if err := s.store.AddPeerMessage(ctx, m); err != nil {
		return nil, apperr.Internal("Failed to send message", err)
	}
	if err := s.store.TouchPeerChat(ctx, chatID, m.CreatedAt); err != nil {
		s.logger.Printf("peer chat %s: touch: %v", chatID, err)
	}

	recipient := c.Other(userID)
	if err := s.store.UnhideConversation(ctx, recipient, chatID); err != nil {
		s.logger.Printf("peer chat %s: unhide for recipient: %v", chatID, err)
	}
	sender := "Someone"
	if p, err := s.store.GetProfile(ctx, userID); err == nil {
		sender = p.Alias
	}
	refType := notify.RefPeerChat
	s.notifier.NotifyQuietly(ctx, store.Notification{
		UserID:        recipient,
		Type:          notify.TypeMessage,
		Title:         "New message",
		Message:       fmt.Sprintf("%s sent you a message", sender),
		ReferenceID:   &c.ID,
		ReferenceType: &refType,
	})
	return m, nil
}

// discard removes an uploaded file whose message could not be stored.
func (s *Service) discard(up *blob.Upload) {
	if err := s.blobs.Delete(blob.BucketMessages, up.Name); err != nil {
		s.logger.Printf("discard upload %s: %v", up.Name, err)
	}
}

// ownMessage loads a message the caller sent.
func (s *Service) ownMessage(ctx context.Context, userID, messageID string) (*store.PeerMessage, error) {
	m, err := s.store.GetPeerMessage(ctx, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Message not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load message", err)
	}
	if m.SenderID != userID {
		if _, err := s.member(ctx, userID, m.ChatID); err != nil {
			return nil, apperr.NotFound("Message not found")
		}
		return nil, apperr.Forbidden("You can only delete your own messages")
	}
	return m, nil
}

// DeleteForMe hides a message from its sender only.
func (s *Service) DeleteForMe(ctx context.Context, userID, messageID string) error {
	if _, err := s.ownMessage(ctx, userID, messageID); err != nil {
		return err
	}
	if err := s.store.MarkDeletedForSender(ctx, messageID); err != nil {
		return apperr.Internal("Failed to delete message", err)
	}
	return nil
}

// DeleteForEveryone hides a message from both participants and from previews.
func (s *Service) DeleteForEveryone(ctx context.Context, userID, messageID string) error {
	if _, err := s.ownMessage(ctx, userID, messageID); err != nil {
		return err
	}
	if err := s.store.MarkDeletedForEveryone(ctx, messageID); err != nil {
		return apperr.Internal("Failed to delete message", err)
	}
	return nil
}
