// Package requestid carries the request id through contexts. The id doubles
// as the notification request id under which delivery attempts are stored.
package requestid

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

type contextKey struct{}

// Header is the HTTP header carrying the request id in both directions.
const Header = "X-Request-ID"

// inbound ids end up in the attempts table and in log lines
var validID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)

// New returns a fresh random id.
func New() string {
	return uuid.NewString()
}

// Valid reports whether id may be accepted from a caller.
func Valid(id string) bool {
	return validID.MatchString(id)
}

// FromContext returns the id stored in ctx, or "".
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID stores id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// Middleware adopts a valid inbound X-Request-ID or generates one, echoes it
// in the response and stores it in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if !Valid(id) {
			id = New()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}
