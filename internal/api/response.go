package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jongsul/lostfound/internal/service"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response failed", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// serviceError maps the lifecycle failure taxonomy onto HTTP statuses.
// Guard violations get their own messages; everything unmatched is an
// infrastructure failure the client should retry.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		jsonError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, service.ErrInvalidCode):
		jsonError(w, http.StatusNotFound, "invalid or expired pickup code")
	case errors.Is(err, service.ErrAlreadyClaimed):
		jsonError(w, http.StatusConflict, "item is not claimable")
	case errors.Is(err, service.ErrAlreadyPickedUp):
		jsonError(w, http.StatusConflict, "item already picked up")
	case errors.Is(err, service.ErrNotReserved):
		jsonError(w, http.StatusConflict, "item is not reserved")
	case errors.Is(err, service.ErrNotReservedByCaller):
		jsonError(w, http.StatusConflict, "item is reserved by another user")
	case errors.Is(err, service.ErrAlreadyUsed):
		jsonError(w, http.StatusConflict, "pickup code already used")
	case errors.Is(err, service.ErrAlreadyCancelled):
		jsonError(w, http.StatusConflict, "reservation already cancelled")
	case errors.Is(err, service.ErrForbidden):
		jsonError(w, http.StatusForbidden, "not your reservation")
	case errors.Is(err, service.ErrCodeNotFound):
		slog.Error("data integrity violation", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	default:
		slog.Error("request failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
