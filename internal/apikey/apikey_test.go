package apikey

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexlx/mindhaven/internal/apperr"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

func TestMintAndVerify(t *testing.T) {
	key, err := Mint(secret, RoleService, 0, time.Now())
	require.NoError(t, err)

	role, err := Verify(secret, key)
	require.NoError(t, err)
	assert.Equal(t, RoleService, role)

	_, err = Verify([]byte("another-secret-another-secret-xx"), key)
	assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))

	_, err = Mint(secret, Role("root"), 0, time.Now())
	assert.Error(t, err)
}

func TestExpiredKeyRejected(t *testing.T) {
	key, err := Mint(secret, RoleAnon, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = Verify(secret, key)
	assert.Error(t, err)
}

func TestRequire(t *testing.T) {
	anon, err := Mint(secret, RoleAnon, 0, time.Now())
	require.NoError(t, err)
	service, err := Mint(secret, RoleService, 0, time.Now())
	require.NoError(t, err)

	var seen Role
	h := Require(secret, RoleService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RoleFrom(r.Context())
	}))

	cases := []struct {
		name   string
		header string
		value  string
		status int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"garbage", "apikey", "nope", http.StatusUnauthorized},
		{"wrong role", "apikey", anon, http.StatusForbidden},
		{"bearer service", "Authorization", "Bearer " + service, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
	assert.Equal(t, RoleService, seen)
}
