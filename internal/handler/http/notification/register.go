// Package notification exposes the notification engine over HTTP.
package notification

import (
	"net/http"

	httph "gift-notify/internal/handler/http"
	"gift-notify/internal/handler/http/auth"
	"gift-notify/internal/usecase/notify"
)

// Options configures the notification routes.
type Options struct {
	VAPIDPublicKey string
	JWTSecret      []byte
	// Limiter throttles each authenticated caller; nil disables throttling.
	Limiter *httph.CallerLimiter
}

// Register mounts the notification routes on mux. Every route except the
// VAPID key requires a service token with the notify scope; with an empty
// secret those routes answer 401.
func Register(mux *http.ServeMux, svc notify.Service, opts Options) {
	v := NewValidator()
	authz := auth.Authz(opts.JWTSecret, auth.ScopeNotify)
	protect := func(pattern string, h http.Handler) http.Handler {
		limit := httph.RateLimit(pattern, opts.Limiter, func(r *http.Request) string {
			return auth.CallerFromContext(r.Context())
		})
		return authz(limit(h))
	}

	routes := []struct {
		pattern string
		handler http.Handler
	}{
		{"POST /v1/notifications", httph.RequireJSON(SendHandler{Svc: svc, Validate: v})},
		{"GET /v1/notifications/{request_id}/attempts", AttemptsHandler{Svc: svc}},
		{"POST /v1/push/subscriptions", httph.RequireJSON(SubscribeHandler{Svc: svc, Validate: v})},
	}
	for _, rt := range routes {
		mux.Handle(rt.pattern, httph.Instrument(rt.pattern, protect(rt.pattern, rt.handler)))
	}

	const vapidRoute = "GET /v1/push/vapid-key"
	mux.Handle(vapidRoute, httph.Instrument(vapidRoute, VAPIDKeyHandler{PublicKey: opts.VAPIDPublicKey}))
}
