package webserver

import (
	"net/http"

	"github.com/ichi0g0y/slot-roulette/internal/version"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"version":      version.Current(),
		"subscribers":  s.hub.Count(),
		"commitSeq":    s.store.Seq(),
		"persistDirty": s.store.Dirty(),
	})
}
