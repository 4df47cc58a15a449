// Package completion calls an OpenAI-compatible chat/completions endpoint on
// behalf of the support chat.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rexlx/mindhaven/internal/apperr"
	"github.com/rexlx/mindhaven/internal/store"
)

const (
	DefaultURL   = "https://api.openai.com/v1/chat/completions"
	DefaultModel = "gpt-3.5-turbo"

	// MaxMessages bounds the history a caller may send in one request.
	MaxMessages = 100
	// MaxRequestBodySize bounds relay request bodies.
	MaxRequestBodySize = 1 << 20
)

// SystemPrompt is prepended to every conversation.
const SystemPrompt = `You are a compassionate and supportive AI assistant for Mindful Heaven, a mental health support platform. Your role is to:

1. Provide empathetic, non-judgmental support to users discussing mental health topics
2. Suggest coping strategies, relaxation techniques, and self-care practices
3. Recommend relevant mental health resources when appropriate
4. Recognize signs of crisis and immediately redirect users to professional help

IMPORTANT GUIDELINES:
- Never diagnose mental health conditions
- Never prescribe or recommend specific medications
- Always encourage users to seek professional help for serious concerns
- Be warm, supportive, and understanding
- Validate users' feelings and experiences
- If a user mentions self-harm, suicide, or immediate danger, immediately provide crisis hotline information:
  * India: iCall (9152987821), Vandrevala Foundation (1860-2662-345)
  * International: Your local emergency services

Remember: You are a supportive companion, not a replacement for professional mental health care.`

// Error messages surfaced to callers.
const (
	MsgRateLimited     = "Rate limits exceeded, please try again later."
	MsgPaymentRequired = "Payment required, please add funds."
	MsgUnavailable     = "AI service temporarily unavailable"
	MsgNoAPIKey        = "API_KEY is not configured"
)

var tracer = otel.Tracer("github.com/rexlx/mindhaven/internal/completion")

// Message is one turn of the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

var validRoles = map[string]bool{
	store.RoleUser:      true,
	store.RoleAssistant: true,
}

// Validate checks a caller-supplied history.
func Validate(messages []Message) error {
	if len(messages) == 0 {
		return apperr.Invalid("messages are required")
	}
	if len(messages) > MaxMessages {
		return apperr.Invalid(fmt.Sprintf("too many messages (max %d)", MaxMessages))
	}
	for i, m := range messages {
		if !validRoles[m.Role] {
			return apperr.Invalid(fmt.Sprintf("message %d has invalid role %q", i, m.Role))
		}
	}
	return nil
}

type request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type response struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Config configures a Client.
type Config struct {
	URL        string
	Model      string
	APIKey     string
	HTTPClient *http.Client
	// Logger receives upstream failures. Nil means log.Default().
	Logger *log.Logger
}

// Client talks to the upstream completion API. It never retries.
type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = DefaultURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.HTTPClient == nil {
		// Streams can run long; the request context bounds them instead.
		cfg.HTTPClient = &http.Client{Timeout: 0}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Client{cfg: cfg}
}

// Stream starts a streamed completion and returns the raw SSE body. The caller closes it.
func (c *Client) Stream(ctx context.Context, messages []Message) (io.ReadCloser, error) {
	ctx, span := tracer.Start(ctx, "completion.stream")
	defer span.End()
	span.SetAttributes(attribute.Int("completion.messages", len(messages)))

	res, err := c.do(ctx, messages, true)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return res.Body, nil
}

// Complete runs a non-streamed completion and returns the assistant text.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, span := tracer.Start(ctx, "completion.complete")
	defer span.End()
	span.SetAttributes(attribute.Int("completion.messages", len(messages)))

	res, err := c.do(ctx, messages, false)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	defer res.Body.Close()

	var decoded response
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		c.cfg.Logger.Printf("completion: decode response: %v", err)
		return "", apperr.Unavailable(MsgUnavailable, err)
	}
	if len(decoded.Choices) == 0 {
		return "", nil
	}
	return decoded.Choices[0].Message.Content, nil
}

func (c *Client) do(ctx context.Context, messages []Message, stream bool) (*http.Response, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, apperr.Internal(MsgNoAPIKey, nil)
	}
	if err := Validate(messages); err != nil {
		return nil, err
	}

	body, err := json.Marshal(request{
		Model:    c.cfg.Model,
		Messages: append([]Message{{Role: "system", Content: SystemPrompt}}, messages...),
		Stream:   stream,
	})
	if err != nil {
		return nil, apperr.Internal("encode completion request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Internal("build completion request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	start := time.Now()
	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		c.cfg.Logger.Printf("completion: request failed: %v", err)
		return nil, apperr.Unavailable(MsgUnavailable, err)
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return res, nil
	}

	defer res.Body.Close()
	detail, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	c.cfg.Logger.Printf("completion: upstream status %d after %s: %s", res.StatusCode, time.Since(start), strings.TrimSpace(string(detail)))
	switch res.StatusCode {
	case http.StatusTooManyRequests:
		return nil, apperr.RateLimited(MsgRateLimited)
	case http.StatusPaymentRequired:
		return nil, apperr.PaymentRequired(MsgPaymentRequired)
	default:
		return nil, apperr.Unavailable(MsgUnavailable, fmt.Errorf("upstream status %d", res.StatusCode))
	}
}
