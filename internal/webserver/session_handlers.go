package webserver

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) handleGetGames(w http.ResponseWriter, r *http.Request) {
	view := s.engine.GamesView(deviceIDFromRequest(r), s.hub.DeviceIDs())
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		writeBadRequest(w, invalidBodyMessage)
		return
	}

	res, err := s.engine.RegisterParticipant(r.Context(), body.str("name"), body.str("deviceId"))
	if err != nil {
		writeError(w, err, "Failed to create user.")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": s.engine.Leaderboard(),
	})
}

func (s *Server) handleAdminCreateUser(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		writeBadRequest(w, invalidBodyMessage)
		return
	}

	res, err := s.engine.CreateParticipant(r.Context(), body.str("name"))
	if err != nil {
		writeError(w, err, "Failed to create user.")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleAdminEnqueueGame(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		writeBadRequest(w, invalidBodyMessage)
		return
	}

	item, err := s.engine.EnqueueItemForParticipant(r.Context(), body.str("userId"), body.str("name"))
	if err != nil {
		writeError(w, err, "Failed to add game.")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"game": item})
}

func (s *Server) handleEnqueueGame(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		writeBadRequest(w, invalidBodyMessage)
		return
	}

	deviceID := body.str("deviceId")
	if deviceID == "" {
		deviceID = deviceIDFromRequest(r)
	}

	item, err := s.engine.EnqueueItem(r.Context(), body.str("name"), deviceID, body.str("userId"))
	if err != nil {
		writeError(w, err, "Failed to add game.")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"game": item})
}

func (s *Server) handleRemoveGame(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RemoveItem(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err, "Failed to remove game.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearGames(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ClearQueue(r.Context()); err != nil {
		writeError(w, err, "Failed to clear games.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSpin(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		writeBadRequest(w, invalidBodyMessage)
		return
	}

	locked, ok := body.boolean("locked")
	if !ok {
		writeBadRequest(w, "locked flag is required.")
		return
	}

	state, err := s.engine.SetLock(r.Context(), locked)
	if err != nil {
		writeError(w, err, "Failed to update spin state.")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleRecordResult(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		writeBadRequest(w, invalidBodyMessage)
		return
	}

	out, err := s.engine.RecordResult(r.Context(), body.str("gameId"), body.number("before"), body.number("after"))
	if err != nil {
		writeError(w, err, "Failed to record result.")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBonusCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.CheckBonus(r.Context()))
}

func (s *Server) handleBonusSpin(w http.ResponseWriter, r *http.Request) {
	draw, err := s.engine.DrawBonus(r.Context())
	if err != nil {
		writeError(w, err, "Failed to spin bonus.")
		return
	}
	writeJSON(w, http.StatusOK, draw)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": s.engine.History(),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ResetSession(r.Context()); err != nil {
		writeError(w, err, "Failed to reset system.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "System has been reset successfully",
	})
}
