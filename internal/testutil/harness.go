package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rexlx/mindhaven/internal/web"
)

// Harness serves routes behind a real session manager.
type Harness struct {
	Server   *httptest.Server
	Sessions *web.Sessions
}

// NewHarness registers routes on a fresh mux and adds POST /test/login/{id}.
func NewHarness(t *testing.T, register func(mux *http.ServeMux, sessions *web.Sessions)) *Harness {
	t.Helper()
	sessions := &web.Sessions{Manager: web.NewSessionManager(time.Hour, false)}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /test/login/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := sessions.Login(r.Context(), r.PathValue("id")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	register(mux, sessions)
	srv := httptest.NewServer(sessions.Manager.LoadAndSave(mux))
	t.Cleanup(srv.Close)
	return &Harness{Server: srv, Sessions: sessions}
}

// Client returns a cookie-carrying client, signed in as userID unless it is empty.
func (h *Harness) Client(t *testing.T, userID string) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	c := &http.Client{Jar: jar}
	if userID != "" {
		res, err := c.Post(h.Server.URL+"/test/login/"+userID, "application/json", nil)
		require.NoError(t, err)
		res.Body.Close()
		require.Equal(t, http.StatusNoContent, res.StatusCode)
	}
	return c
}

// Do sends body as JSON (or raw when it is a []byte) and returns the status and response body.
func (h *Harness) Do(t *testing.T, c *http.Client, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, h.Server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, data
}

// Decode unmarshals data into a T.
func Decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}
