package web

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexlx/mindhaven/internal/apperr"
)

func TestWriteErrorMapsCodes(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	WriteError(rec, req, apperr.PaymentRequired("Payment required, please add funds."))

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Payment required, please add funds.", body["error"])
}

func TestDecodeJSONRejectsLargeBodies(t *testing.T) {
	big := `{"x":"` + strings.Repeat("a", MaxRequestBodySize) + `"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))

	var v map[string]string
	err := DecodeJSON(rec, req, &v)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalid, apperr.CodeOf(err))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	assert.Error(t, DecodeJSON(rec, req, &v))
}

func TestPagination(t *testing.T) {
	p := NewPagination(1, PageSize+1)
	assert.Equal(t, 2, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.False(t, p.HasPrev)

	req := httptest.NewRequest(http.MethodGet, "/?page=3", nil)
	page, limit, offset := Page(req)
	assert.Equal(t, 3, page)
	assert.Equal(t, PageSize, limit)
	assert.Equal(t, 2*PageSize, offset)
}

func TestPageClampsHugeValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=99999999999999", nil)
	page, _, offset := Page(req)
	assert.Equal(t, MaxPage, page)
	assert.GreaterOrEqual(t, offset, 0)
	assert.LessOrEqual(t, offset, math.MaxInt32)

	assert.Equal(t, 1, ClampPage(-5))
	assert.Equal(t, 1, ClampPage(0))
	assert.Equal(t, 7, ClampPage(7))
	assert.Equal(t, MaxPage, ClampPage(math.MaxInt))
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/functions/v1/ai-chat", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, called)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "apikey")
}

func TestCORSAllowList(t *testing.T) {
	h := CORS([]string{"https://app.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	assert.True(t, rl.Allow("10.0.0.2"))
	assert.Equal(t, 0, rl.Sweep(time.Hour))
	assert.Equal(t, 2, rl.Sweep(-time.Second))
}

func TestChainOrderAndRecovery(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	var logs bytes.Buffer
	logger := log.New(&logs, "", 0)
	h := Chain(mark("a"), mark("b"), Logging(logger), Recovery(logger))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, logs.String(), "panic recovered")
	assert.Contains(t, logs.String(), "GET /x | 500")
}

func TestSessionsRequireUser(t *testing.T) {
	s := &Sessions{Manager: NewSessionManager(time.Hour, false)}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, s.Login(r.Context(), "user-1"))
	})
	mux.HandleFunc("GET /me", s.RequireUser(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, s.UserID(r.Context()))
	}))
	srv := httptest.NewServer(s.Manager.LoadAndSave(mux))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/me")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, err = http.Post(srv.URL+"/login", "application/json", nil)
	require.NoError(t, err)
	res.Body.Close()
	cookies := res.Cookies()
	require.NotEmpty(t, cookies)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "user-1", string(body))
}
