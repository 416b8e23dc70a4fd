package notification

import (
	"errors"
	"net/http"

	"gift-notify/internal/handler/http/respond"
	"gift-notify/internal/usecase/notify"
)

// SubscribeHandler serves POST /v1/push/subscriptions.
type SubscribeHandler struct {
	Svc      notify.Service
	Validate *Validator
}

func (h SubscribeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if !decode(w, r, &req) {
		return
	}
	if fields := h.Validate.Struct(&req); fields != nil {
		respond.ValidationFailed(w, fields)
		return
	}

	sub, err := h.Svc.RegisterSubscription(r.Context(), req.UserID, req.Subscription)
	switch {
	case errors.Is(err, notify.ErrInvalidSubscription):
		respond.SafeError(w, http.StatusBadRequest, err)
	case errors.Is(err, notify.ErrPushUnavailable):
		respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case err != nil:
		respond.SafeError(w, http.StatusInternalServerError, err)
	default:
		respond.JSON(w, http.StatusCreated, subscriptionDTO(sub))
	}
}

// VAPIDKeyHandler serves GET /v1/push/vapid-key, the application server key
// browsers pass to pushManager.subscribe.
type VAPIDKeyHandler struct{ PublicKey string }

func (h VAPIDKeyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	if h.PublicKey == "" {
		respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"error": notify.ErrPushUnavailable.Error()})
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	respond.JSON(w, http.StatusOK, map[string]string{"public_key": h.PublicKey})
}
