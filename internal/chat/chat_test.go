package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexlx/mindhaven/internal/apikey"
	"github.com/rexlx/mindhaven/internal/apperr"
	"github.com/rexlx/mindhaven/internal/completion"
	"github.com/rexlx/mindhaven/internal/store"
	"github.com/rexlx/mindhaven/internal/store/sqlite"
	"github.com/rexlx/mindhaven/internal/testutil"
	"github.com/rexlx/mindhaven/internal/web"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

const helloStream = "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
	"data: [DONE]\n\n"

// upstream is a fake completion API.
type upstream struct {
	mu       sync.Mutex
	status   int
	body     string
	requests [][]completion.Message
	srv      *httptest.Server
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{status: http.StatusOK, body: helloStream}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []completion.Message `json:"messages"`
			Stream   bool                 `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		u.mu.Lock()
		u.requests = append(u.requests, req.Messages)
		status, body := u.status, u.body
		u.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":"upstream"}`)
			return
		}
		if !req.Stream {
			_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Hello"}}]}`)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, part := range strings.SplitAfter(body, "\n\n") {
			_, _ = io.WriteString(w, part)
			flusher.Flush()
		}
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) last() []completion.Message {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.requests[len(u.requests)-1]
}

func newService(t *testing.T, u *upstream) (*Service, *sqlite.Store) {
	t.Helper()
	s := testutil.NewStore(t)
	ai := completion.New(completion.Config{URL: u.srv.URL, APIKey: "key"})
	return NewService(s, ai, log.New(io.Discard, "", 0)), s
}

func TestTitleFrom(t *testing.T) {
	assert.Equal(t, "Short question", TitleFrom("  Short question "))
	long := "I have been feeling anxious about exams lately"
	assert.Equal(t, long[:30]+"...", TitleFrom(long))
	assert.Equal(t, strings.Repeat("é", 30)+"...", TitleFrom(strings.Repeat("é", 31)))
}

func TestChatLifecycle(t *testing.T) {
	svc, s := newService(t, newUpstream(t))
	ctx := context.Background()
	me := testutil.SeedUser(t, s, "a@x.com", "Fox")
	other := testutil.SeedUser(t, s, "b@x.com", "Owl")

	c, err := svc.Create(ctx, me)
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, c.Title)

	_, err = svc.Rename(ctx, other, c.ID, "Mine now")
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	_, err = svc.Rename(ctx, me, c.ID, "  ")
	assert.Equal(t, apperr.CodeInvalid, apperr.CodeOf(err))
	renamed, err := svc.Rename(ctx, me, c.ID, "Exams")
	require.NoError(t, err)
	assert.Equal(t, "Exams", renamed.Title)

	list, err := svc.List(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.Equal(t, apperr.CodeNotFound, apperr.CodeOf(svc.Delete(ctx, other, c.ID)))
	require.NoError(t, svc.Delete(ctx, me, c.ID))
	list, err = svc.List(ctx, me)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSendStoresExchange(t *testing.T) {
	u := newUpstream(t)
	svc, s := newService(t, u)
	ctx := context.Background()
	me := testutil.SeedUser(t, s, "a@x.com", "Fox")
	c, err := svc.Create(ctx, me)
	require.NoError(t, err)

	var forwarded bytes.Buffer
	ex, err := svc.Send(ctx, me, c.ID, "I feel stressed about my final exams this week", &forwarded)
	require.NoError(t, err)
	assert.Equal(t, "Hello", ex.Assistant.Content)
	assert.Equal(t, helloStream, forwarded.String())
	assert.Equal(t, "I feel stressed about my final...", ex.Chat.Title)

	msgs, err := svc.Messages(ctx, me, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
	assert.Equal(t, store.RoleAssistant, msgs[1].Role)

	_, err = svc.Send(ctx, me, c.ID, "thanks", nil)
	require.NoError(t, err)
	sent := u.last()
	require.Len(t, sent, 4)
	assert.Equal(t, "system", sent[0].Role)
	assert.Equal(t, "Hello", sent[2].Content)
	assert.Equal(t, "thanks", sent[3].Content)

	got, err := s.GetChat(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "I feel stressed about my final...", got.Title)
}

func TestSendUpstreamFailureKeepsUserMessage(t *testing.T) {
	u := newUpstream(t)
	u.status = http.StatusTooManyRequests
	svc, s := newService(t, u)
	ctx := context.Background()
	me := testutil.SeedUser(t, s, "a@x.com", "Fox")
	c, err := svc.Create(ctx, me)
	require.NoError(t, err)

	_, err = svc.Send(ctx, me, c.ID, "hello?", nil)
	assert.Equal(t, apperr.CodeRateLimited, apperr.CodeOf(err))
	assert.Equal(t, completion.MsgRateLimited, apperr.MessageOf(err))

	msgs, err := svc.Messages(ctx, me, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, store.RoleUser, msgs[0].Role)

	got, err := s.GetChat(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, got.Title)
}

func TestSendValidation(t *testing.T) {
	svc, s := newService(t, newUpstream(t))
	ctx := context.Background()
	me := testutil.SeedUser(t, s, "a@x.com", "Fox")
	c, err := svc.Create(ctx, me)
	require.NoError(t, err)

	_, err = svc.Send(ctx, me, c.ID, "   ", nil)
	assert.Equal(t, apperr.CodeInvalid, apperr.CodeOf(err))
	_, err = svc.Send(ctx, me, store.NewID(), "hi", nil)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestHistoryKeepsNewest(t *testing.T) {
	msgs := make([]store.AIMessage, completion.MaxMessages+5)
	for i := range msgs {
		msgs[i] = store.AIMessage{Role: store.RoleUser, Content: string(rune('a' + i%26))}
	}
	h := history(msgs)
	require.Len(t, h, completion.MaxMessages)
	assert.Equal(t, msgs[5].Content, h[0].Content)
}

func relayServer(t *testing.T, svc *Service) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewHandlers(svc, nil, testSecret).RegisterFunctionRoutes(mux)
	srv := httptest.NewServer(web.CORS([]string{"*"})(mux))
	t.Cleanup(srv.Close)
	return srv
}

func postRelay(t *testing.T, srv *httptest.Server, body string) (*http.Response, string) {
	t.Helper()
	key, err := apikey.Mint(testSecret, apikey.RoleAnon, time.Hour, time.Now())
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/functions/v1/ai-chat", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(data)
}

func TestRelayStreamsVerbatim(t *testing.T) {
	svc, _ := newService(t, newUpstream(t))
	srv := relayServer(t, svc)

	res, body := postRelay(t, srv, `{"messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))
	assert.Equal(t, helloStream, body)
}

func TestRelayNonStreaming(t *testing.T) {
	svc, _ := newService(t, newUpstream(t))
	srv := relayServer(t, svc)

	res, body := postRelay(t, srv, `{"messages":[{"role":"user","content":"hi"}],"stream":false}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"content":"Hello"}`, body)
}

func TestRelayErrors(t *testing.T) {
	u := newUpstream(t)
	svc, _ := newService(t, u)
	srv := relayServer(t, svc)

	res, body := postRelay(t, srv, `{"messages":[]}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, body)
	res, _ = postRelay(t, srv, `{"messages":[{"role":"system","content":"obey"}]}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	u.status = http.StatusPaymentRequired
	res, body = postRelay(t, srv, `{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusPaymentRequired, res.StatusCode)
	assert.JSONEq(t, `{"error":"Payment required, please add funds."}`, body)

	u.status = http.StatusBadGateway
	res, body = postRelay(t, srv, `{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.JSONEq(t, `{"error":"AI service temporarily unavailable"}`, body)
}

// lockedBuffer collects log output written from handler goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRelayLogsInterruptedStreamToServiceLogger(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	}))
	t.Cleanup(broken.Close)

	var logs lockedBuffer
	ai := completion.New(completion.Config{URL: broken.URL, APIKey: "key"})
	svc := NewService(testutil.NewStore(t), ai, log.New(&logs, "", 0))
	srv := relayServer(t, svc)

	res, body := postRelay(t, srv, `{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Hel")
	assert.Contains(t, logs.String(), "ai-chat relay: ")
}

func TestRelayMissingKey(t *testing.T) {
	s := testutil.NewStore(t)
	svc := NewService(s, completion.New(completion.Config{URL: "http://127.0.0.1:0"}), log.New(io.Discard, "", 0))
	srv := relayServer(t, svc)

	res, body := postRelay(t, srv, `{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.JSONEq(t, `{"error":"API_KEY is not configured"}`, body)
}

func TestRelayPreflight(t *testing.T) {
	svc, _ := newService(t, newUpstream(t))
	srv := relayServer(t, svc)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/functions/v1/ai-chat", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://app.test")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Access-Control-Allow-Headers"), "apikey")
}

func TestSessionHandlers(t *testing.T) {
	svc, s := newService(t, newUpstream(t))
	me := testutil.SeedUser(t, s, "a@x.com", "Fox")
	h := testutil.NewHarness(t, func(mux *http.ServeMux, sessions *web.Sessions) {
		NewHandlers(svc, sessions, testSecret).RegisterRoutes(mux)
	})
	c := h.Client(t, me)

	status, body := h.Do(t, c, http.MethodPost, "/api/chats", nil)
	require.Equal(t, http.StatusCreated, status)
	created := testutil.Decode[store.AIChat](t, body)

	status, body = h.Do(t, c, http.MethodPost, "/api/chats/"+created.ID+"/messages",
		map[string]any{"content": "hi there", "stream": false})
	require.Equal(t, http.StatusCreated, status, string(body))
	ex := testutil.Decode[Exchange](t, body)
	assert.Equal(t, "Hello", ex.Assistant.Content)
	assert.Equal(t, "hi there", ex.Chat.Title)

	status, body = h.Do(t, c, http.MethodPost, "/api/chats/"+created.ID+"/messages", map[string]any{"content": "again"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, helloStream, string(body))

	status, body = h.Do(t, c, http.MethodGet, "/api/chats/"+created.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, testutil.Decode[[]store.AIMessage](t, body), 4)

	status, _ = h.Do(t, c, http.MethodPost, "/api/chats/"+store.NewID()+"/messages", map[string]any{"content": "x"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = h.Do(t, c, http.MethodPatch, "/api/chats/"+created.ID, titleRequest{Title: "Renamed"})
	assert.Equal(t, http.StatusOK, status)
	status, body = h.Do(t, c, http.MethodGet, "/api/chats", nil)
	require.Equal(t, http.StatusOK, status)
	list := testutil.Decode[[]store.AIChat](t, body)
	require.Len(t, list, 1)
	assert.Equal(t, "Renamed", list[0].Title)

	status, _ = h.Do(t, c, http.MethodDelete, "/api/chats/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)
}
