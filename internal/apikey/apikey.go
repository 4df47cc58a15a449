// Package apikey mints and verifies the signed project keys that gate the
// /functions and /admin routes.
package apikey

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rexlx/mindhaven/internal/apperr"
	"github.com/rexlx/mindhaven/internal/store"
	"github.com/rexlx/mindhaven/internal/web"
)

// Issuer is stamped on every key.
const Issuer = "mindhaven"

type Role string

const (
	// RoleAnon is the public key shipped with clients.
	RoleAnon Role = "anon"
	// RoleService may call the account administration routes.
	RoleService Role = "service_role"
)

func (r Role) Valid() bool {
	return r == RoleAnon || r == RoleService
}

type claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// Mint signs a key for role. A zero ttl yields a key without expiry.
func Mint(secret []byte, role Role, ttl time.Duration, now time.Time) (string, error) {
	if !role.Valid() {
		return "", errors.New("unknown role " + string(role))
	}
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   Issuer,
			ID:       store.NewID(),
			IssuedAt: jwt.NewNumericDate(now),
		},
		Role: role,
	}
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}

// Verify checks the signature, issuer and expiry of key and returns its role.
func Verify(secret []byte, key string) (Role, error) {
	var parsed claims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(key), &parsed, func(token *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
	)
	if err != nil {
		return "", apperr.Unauthorized("Invalid API key")
	}
	if !parsed.Role.Valid() {
		return "", apperr.Unauthorized("Invalid API key")
	}
	return parsed.Role, nil
}

type ctxKey struct{}

// RoleFrom returns the role bound by Require, or "".
func RoleFrom(ctx context.Context) Role {
	role, _ := ctx.Value(ctxKey{}).(Role)
	return role
}

// FromRequest reads the key from the apikey header or a bearer token.
func FromRequest(r *http.Request) string {
	if key := r.Header.Get("apikey"); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return after
	}
	return ""
}

// Require rejects requests without a valid key whose role is in roles.
func Require(secret []byte, roles ...Role) web.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := FromRequest(r)
			if key == "" {
				web.WriteError(w, r, apperr.Unauthorized("Missing API key"))
				return
			}
			role, err := Verify(secret, key)
			if err != nil {
				web.WriteError(w, r, err)
				return
			}
			allowed := false
			for _, want := range roles {
				if role == want {
					allowed = true
					break
				}
			}
			if !allowed {
				web.WriteError(w, r, apperr.Forbidden("API key lacks the required role"))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, role)))
		})
	}
}
