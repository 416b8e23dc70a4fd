package notification

import (
	"net/http"

	"gift-notify/internal/handler/http/requestid"
	"gift-notify/internal/handler/http/respond"
	"gift-notify/internal/usecase/notify"
)

// AttemptsHandler serves GET /v1/notifications/{request_id}/attempts.
// An unknown id yields an empty list.
type AttemptsHandler struct{ Svc notify.Service }

func (h AttemptsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("request_id")
	if !requestid.Valid(id) {
		respond.JSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request_id"})
		return
	}

	attempts, err := h.Svc.Attempts(r.Context(), id)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]AttemptDTO, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, attemptDTO(a))
	}
	respond.JSON(w, http.StatusOK, map[string]any{"request_id": id, "attempts": out})
}
