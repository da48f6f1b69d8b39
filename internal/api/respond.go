package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/parcelstack-labs/parcelboard/internal/layout"
	"github.com/parcelstack-labs/parcelboard/internal/panel"
	"github.com/parcelstack-labs/parcelboard/internal/state"
)

// errorResponse is the JSON body for failed requests.
type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// respondError maps domain errors to HTTP statuses and typed codes.
// Corrupt or too-new stored layouts map to 422 so clients can show
// "layout unavailable, falling back to default" instead of a blank screen.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, state.ErrNotFound), errors.Is(err, panel.ErrNotFound):
		respondJSON(w, http.StatusNotFound, errorResponse{Code: "not_found", Error: err.Error()})
	case errors.Is(err, state.ErrPermissionDenied):
		respondJSON(w, http.StatusForbidden, errorResponse{Code: "permission_denied", Error: err.Error()})
	case errors.Is(err, layout.ErrUnsupportedVersion):
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Code: "unsupported_version", Error: err.Error()})
	case errors.Is(err, layout.ErrCorruptLayout):
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Code: "corrupt_layout", Error: err.Error()})
	default:
		respondJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Error: err.Error()})
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
