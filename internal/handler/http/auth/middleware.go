// Package auth authenticates internal callers of the notification API with
// HS256 service tokens.
package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gift-notify/internal/handler/http/respond"
)

// ScopeNotify allows sending notifications and managing push subscriptions.
const ScopeNotify = "notify"

type ctxKey string

const ctxCaller ctxKey = "caller"

var (
	errMissingToken  = errors.New("missing bearer token")
	errInvalidToken  = errors.New("invalid token")
	errMissingScope  = errors.New("missing scope")
	errNotConfigured = errors.New("authentication not configured")
)

// Claims is the payload of a service token. Scope is space separated.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// HasScope reports whether the token grants scope.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(strings.Fields(c.Scope), scope)
}

// Authz rejects requests without a valid token carrying scope. An empty
// secret rejects everything.
func Authz(secret []byte, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			claims, err := validateJWT(r.Header.Get("Authorization"), secret)
			if err != nil {
				RecordAuthRequest("failure")
				respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			if !claims.HasScope(scope) {
				RecordAuthRequest("forbidden")
				respond.JSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
				return
			}
			RecordAuthRequest("success")
			RecordAuthDuration(time.Since(start).Seconds())

			ctx := context.WithValue(r.Context(), ctxCaller, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFromContext returns the authenticated token subject.
func CallerFromContext(ctx context.Context) string {
	caller, _ := ctx.Value(ctxCaller).(string)
	return caller
}

func validateJWT(authz string, secret []byte) (*Claims, error) {
	if len(secret) == 0 {
		return nil, errNotConfigured
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return nil, errMissingToken
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(strings.TrimPrefix(authz, prefix), claims,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return nil, errInvalidToken
	}
	if claims.Subject == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

// IssueToken signs a service token for subject.
func IssueToken(secret []byte, subject string, scopes []string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errNotConfigured
	}
	if len(scopes) == 0 {
		return "", errMissingScope
	}
	now := time.Now()
	claims := Claims{
		Scope: strings.Join(scopes, " "),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
