package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexlx/mindhaven/internal/apperr"
	"github.com/rexlx/mindhaven/internal/sse"
)

func hi() []Message {
	return []Message{{Role: "user", Content: "hi"}}
}

func TestStreamPrependsSystemPrompt(t *testing.T) {
	var got request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, APIKey: "key"})
	body, err := c.Stream(context.Background(), hi())
	require.NoError(t, err)
	defer body.Close()

	text, err := sse.Collect(body)
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, SystemPrompt, got.Messages[0].Content)
	assert.Equal(t, "hi", got.Messages[1].Content)
	assert.True(t, got.Stream)
	assert.Equal(t, DefaultModel, got.Model)
}

func TestCompleteReturnsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"I'm here for you."}}]}`)
	}))
	defer srv.Close()

	text, err := New(Config{URL: srv.URL, APIKey: "key"}).Complete(context.Background(), hi())
	require.NoError(t, err)
	assert.Equal(t, "I'm here for you.", text)
}

func TestUpstreamStatusMapping(t *testing.T) {
	cases := []struct {
		status  int
		code    apperr.Code
		message string
	}{
		{http.StatusTooManyRequests, apperr.CodeRateLimited, MsgRateLimited},
		{http.StatusPaymentRequired, apperr.CodePaymentRequired, MsgPaymentRequired},
		{http.StatusInternalServerError, apperr.CodeUnavailable, MsgUnavailable},
		{http.StatusUnauthorized, apperr.CodeUnavailable, MsgUnavailable},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		}))
		_, err := New(Config{URL: srv.URL, APIKey: "key"}).Stream(context.Background(), hi())
		srv.Close()

		require.Error(t, err)
		assert.Equal(t, tc.code, apperr.CodeOf(err), "status %d", tc.status)
		assert.Equal(t, tc.message, apperr.MessageOf(err))
	}
}

func TestUpstreamFailuresGoToConfiguredLogger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota gone", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	c := New(Config{URL: srv.URL, APIKey: "key", Logger: log.New(&buf, "", 0)})
	_, err := c.Complete(context.Background(), hi())
	require.Error(t, err)
	assert.Contains(t, buf.String(), "completion: upstream status 429")
	assert.Contains(t, buf.String(), "quota gone")
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(Config{URL: url, APIKey: "key"}).Complete(context.Background(), hi())
	assert.Equal(t, apperr.CodeUnavailable, apperr.CodeOf(err))
	assert.Equal(t, MsgUnavailable, apperr.MessageOf(err))
}

func TestMissingAPIKey(t *testing.T) {
	_, err := New(Config{URL: "http://127.0.0.1:1"}).Stream(context.Background(), hi())
	assert.Equal(t, apperr.CodeInternal, apperr.CodeOf(err))
	assert.Equal(t, MsgNoAPIKey, apperr.MessageOf(err))
}

func TestValidate(t *testing.T) {
	assert.Error(t, Validate(nil))
	assert.Error(t, Validate([]Message{{Role: "system", Content: "x"}}))
	assert.NoError(t, Validate([]Message{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}}))

	many := make([]Message, MaxMessages+1)
	for i := range many {
		many[i] = Message{Role: "user", Content: "x"}
	}
	assert.Equal(t, apperr.CodeInvalid, apperr.CodeOf(Validate(many)))
}
