package notification

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"gift-notify/internal/handler/http/respond"
	"gift-notify/internal/observability/logging"
	"gift-notify/internal/usecase/notify"
)

// SendHandler serves POST /v1/notifications. Delivery outcomes, including
// skipped and failed, are answered with 200; only malformed requests get 400.
type SendHandler struct {
	Svc      notify.Service
	Validate *Validator
}

func (h SendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if !decode(w, r, &req) {
		return
	}
	if fields := h.Validate.Struct(&req); fields != nil {
		respond.ValidationFailed(w, fields)
		return
	}

	report, err := h.Svc.Notify(r.Context(), req.toEntity())
	if err != nil {
		if errors.Is(err, notify.ErrInvalidRequest) {
			respond.SafeError(w, http.StatusBadRequest, err)
			return
		}
		logging.FromContext(r.Context()).Error("notify failed", slog.Any("error", err))
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, reportDTO(report))
}

// decode reads a single JSON object, rejecting unknown fields. It writes the
// error response itself and reports whether decoding succeeded.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.JSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return false
		}
		respond.JSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	if dec.More() {
		respond.JSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}
