package webserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ichi0g0y/slot-roulette/internal/session"
	"github.com/ichi0g0y/slot-roulette/internal/shared/logger"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write JSON response", zap.Error(err))
	}
}

// writeError maps engine errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error, fallback string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, session.ErrRateLimited):
		status = http.StatusTooManyRequests
	}

	if status == http.StatusInternalServerError {
		logger.Error(fallback, zap.Error(err))
		writeJSON(w, status, map[string]interface{}{"error": fallback})
		return
	}

	body := map[string]interface{}{"error": err.Error()}
	if code := session.CodeOf(err); code != "" {
		body["code"] = code
	}
	writeJSON(w, status, body)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": msg})
}
