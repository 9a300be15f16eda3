package webserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ichi0g0y/slot-roulette/internal/catalog"
	"github.com/ichi0g0y/slot-roulette/internal/shared/logger"
	"go.uber.org/zap"
)

// handleCatalogMerge はスクレイプ済みのゲーム一覧をカタログにマージする
// body: {"providers": {"<providerId>": ["Game", ...]}}
func (s *Server) handleCatalogMerge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Providers map[string][]string `json:"providers"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeBadRequest(w, invalidBodyMessage)
		return
	}
	if len(req.Providers) == 0 {
		writeBadRequest(w, "providers is required.")
		return
	}

	persisted := true
	result, err := s.catalog.MergeAndSave(req.Providers)
	if errors.Is(err, catalog.ErrNoCatalogFile) {
		// ファイル無しのカタログはメモリ上だけ更新される
		persisted = false
	} else if err != nil {
		logger.Error("Failed to update catalog", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "Failed to update game providers file",
		})
		return
	}

	logger.Info("Catalog merged",
		zap.Int("providers", len(req.Providers)),
		zap.Bool("persisted", persisted),
		zap.Int("games", s.catalog.GameCount()))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"updateStats": result.Stats,
		"backupPath":  result.BackupPath,
		"persisted":   persisted,
		"gameCount":   s.catalog.GameCount(),
	})
}
