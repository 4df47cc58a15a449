// Package chat stores AI support conversations and relays them to the completion API.
package chat

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/rexlx/mindhaven/internal/apperr"
	"github.com/rexlx/mindhaven/internal/completion"
	"github.com/rexlx/mindhaven/internal/sse"
	"github.com/rexlx/mindhaven/internal/store"
)

const (
	DefaultTitle = "New Chat"
	// titleLength is how much of the first message becomes the chat title.
	titleLength    = 30
	MaxTitleLength = 100
	// MaxContentLength bounds one user message in characters.
	MaxContentLength = 8000
)

// Completer is the upstream the service streams from. *completion.Client implements it.
type Completer interface {
	Stream(ctx context.Context, messages []completion.Message) (io.ReadCloser, error)
	Complete(ctx context.Context, messages []completion.Message) (string, error)
}

// Exchange is the outcome of Send.
type Exchange struct {
	Chat      *store.AIChat    `json:"chat"`
	User      *store.AIMessage `json:"user_message"`
	Assistant *store.AIMessage `json:"assistant_message"`
}

type Service struct {
	store  store.ChatStore
	ai     Completer
	logger *log.Logger
}

func NewService(s store.ChatStore, ai Completer, logger *log.Logger) *Service {
	return &Service{store: s, ai: ai, logger: logger}
}

// TitleFrom derives a chat title from the first user message.
func TitleFrom(content string) string {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) <= titleLength {
		return content
	}
	return string([]rune(content)[:titleLength]) + "..."
}

func (s *Service) Create(ctx context.Context, userID string) (*store.AIChat, error) {
	now := store.Now()
	c := &store.AIChat{ID: store.NewID(), UserID: userID, Title: DefaultTitle, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateChat(ctx, c); err != nil {
		return nil, apperr.Internal("Failed to create chat", err)
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]store.AIChat, error) {
	list, err := s.store.ListChats(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("Failed to load chats", err)
	}
	if list == nil {
		list = []store.AIChat{}
	}
	return list, nil
}

// owned loads a chat the user owns. Chats of other users look missing.
func (s *Service) owned(ctx context.Context, userID, chatID string) (*store.AIChat, error) {
	c, err := s.store.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && c.UserID != userID) {
		return nil, apperr.NotFound("Chat not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load chat", err)
	}
	return c, nil
}

func (s *Service) Rename(ctx context.Context, userID, chatID, title string) (*store.AIChat, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.Invalid("Title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, apperr.Invalid("Title must be at most 100 characters")
	}
	c, err := s.owned(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateChatTitle(ctx, chatID, title); err != nil {
		return nil, apperr.Internal("Failed to rename chat", err)
	}
	c.Title = title
	return c, nil
}

func (s *Service) Delete(ctx context.Context, userID, chatID string) error {
	if _, err := s.owned(ctx, userID, chatID); err != nil {
		return err
	}
	if err := s.store.DeleteChat(ctx, chatID); err != nil {
		return apperr.Internal("Failed to delete chat", err)
	}
	return nil
}

func (s *Service) Messages(ctx context.Context, userID, chatID string) ([]store.AIMessage, error) {
	if _, err := s.owned(ctx, userID, chatID); err != nil {
		return nil, err
	}
	list, err := s.store.ListChatMessages(ctx, chatID)
	if err != nil {
		return nil, apperr.Internal("Failed to load messages", err)
	}
	if list == nil {
		list = []store.AIMessage{}
	}
	return list, nil
}

// history converts stored messages to the upstream form, keeping the newest MaxMessages.
func history(msgs []store.AIMessage) []completion.Message {
	if len(msgs) > completion.MaxMessages {
		msgs = msgs[len(msgs)-completion.MaxMessages:]
	}
	out := make([]completion.Message, len(msgs))
	for i, m := range msgs {
		out[i] = completion.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

func (s *Service) addMessage(ctx context.Context, chatID, role, content string) (*store.AIMessage, error) {
	m := &store.AIMessage{ID: store.NewID(), ChatID: chatID, Role: role, Content: content, CreatedAt: store.Now()}
	if err := s.store.AddChatMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Send stores the user's message, streams the reply through out as raw SSE and stores
// the assistant message once the stream ends. The user message is kept when the
// upstream fails.
func (s *Service) Send(ctx context.Context, userID, chatID, content string, out io.Writer) (*Exchange, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Invalid("Message content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, apperr.Invalid("Message is too long")
	}
	c, err := s.owned(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	prior, err := s.store.ListChatMessages(ctx, chatID)
	if err != nil {
		return nil, apperr.Internal("Failed to load messages", err)
	}
	userMsg, err := s.addMessage(ctx, chatID, store.RoleUser, content)
	if err != nil {
		return nil, apperr.Internal("Failed to save message", err)
	}

	body, err := s.ai.Stream(ctx, history(append(prior, *userMsg)))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if out == nil {
		out = io.Discard
	}
	reply, err := sse.Collect(io.TeeReader(body, out))
	if err != nil {
		s.logger.Printf("chat %s: stream interrupted after %d bytes: %v", chatID, len(reply), err)
		return nil, apperr.Unavailable(completion.MsgUnavailable, err)
	}
	// forward anything the upstream sends after the sentinel
	if _, err := io.Copy(out, body); err != nil {
		s.logger.Printf("chat %s: forward tail: %v", chatID, err)
	}

	assistant, err := s.addMessage(ctx, chatID, store.RoleAssistant, reply)
	if err != nil {
		return nil, apperr.Internal("Failed to save reply", err)
	}
	if len(prior) == 0 {
		c.Title = TitleFrom(content)
		if err := s.store.UpdateChatTitle(ctx, chatID, c.Title); err != nil {
			s.logger.Printf("chat %s: retitle: %v", chatID, err)
		}
	}
	c.UpdatedAt = store.Now()
	if err := s.store.TouchChat(ctx, chatID, c.UpdatedAt); err != nil {
		s.logger.Printf("chat %s: touch: %v", chatID, err)
	}
	return &Exchange{Chat: c, User: userMsg, Assistant: assistant}, nil
}

// Relay answers a stateless completion request. With stream set the raw SSE body is
// returned for the caller to forward; otherwise the full reply text.
func (s *Service) Relay(ctx context.Context, messages []completion.Message, stream bool) (io.ReadCloser, string, error) {
	if err := completion.Validate(messages); err != nil {
		return nil, "", err
	}
	if stream {
		body, err := s.ai.Stream(ctx, messages)
		return body, "", err
	}
	text, err := s.ai.Complete(ctx, messages)
	return nil, text, err
}
