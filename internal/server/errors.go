package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jayppatell1996-lgtm/cricket-auction/internal/engine"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/franchise"
	"github.com/jayppatell1996-lgtm/cricket-auction/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// decodeJSON parses the request body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeEngineError translates domain errors into HTTP responses. Contention
// answers 429 so clients retry; superseded races answer 409 so clients
// refresh and move on.
func (s *Server) writeEngineError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, franchise.ErrOwnerHasTeam):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, store.ErrInsufficientPurse):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	switch engine.Classify(err) {
	case engine.KindValidation:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case engine.KindContention:
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, err.Error())
	case engine.KindSuperseded:
		writeError(w, http.StatusConflict, err.Error())
	case engine.KindInvariant:
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.ErrorContext(ctx, "request failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
