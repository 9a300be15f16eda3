package webserver

import (
	"fmt"
	"io"
	"net/http"

	"github.com/ichi0g0y/slot-roulette/internal/broadcast"
	"github.com/ichi0g0y/slot-roulette/internal/shared/logger"
	"go.uber.org/zap"
)

// handleEvents は Server-Sent Events で同期イベントを配信する
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub, err := s.hub.Subscribe(r.Context(), deviceIDFromRequest(r))
	if err != nil {
		logger.Warn("Failed to subscribe event stream", zap.Error(err))
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}
	// 切断時は次のハートビートを待たずに即解除する
	defer s.hub.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case ev := <-sub.Events():
			if err := writeSSE(w, ev); err != nil {
				logger.Warn("Failed to write event, dropping subscriber",
					zap.String("subscriber_id", sub.ID),
					zap.Error(err))
				return
			}
			flusher.Flush()
		case <-sub.Done():
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeSSE(w io.Writer, ev broadcast.Event) error {
	var err error
	switch ev.Type {
	case broadcast.EventPing:
		_, err = fmt.Fprint(w, "event: ping\ndata: {}\n\n")
	default:
		_, err = fmt.Fprintf(w, "data: %s\n\n", ev.Data)
	}
	return err
}
