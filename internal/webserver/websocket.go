package webserver

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ichi0g0y/slot-roulette/internal/broadcast"
	"github.com/ichi0g0y/slot-roulette/internal/shared/logger"
	"go.uber.org/zap"
)

const wsWriteWait = 10 * time.Second

// wsClient は1つのWebSocket接続とそのサブスクリプション
type wsClient struct {
	conn     *websocket.Conn
	sub      *broadcast.Subscriber
	hub      *broadcast.Hub
	pongWait time.Duration
}

// handleWS WebSocket接続を処理
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	deviceID := deviceIDFromRequest(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade to WebSocket", zap.Error(err))
		return
	}

	sub, err := s.hub.Subscribe(r.Context(), deviceID)
	if err != nil {
		logger.Warn("Failed to subscribe WebSocket client", zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server shutting down"),
			time.Now().Add(wsWriteWait))
		conn.Close()
		return
	}

	c := &wsClient{
		conn:     conn,
		sub:      sub,
		hub:      s.hub,
		pongWait: 3 * s.hub.HeartbeatInterval(),
	}

	go c.readPump()
	c.writePump()
}

// readPump はクライアントからの切断を検知するためだけに読み続ける
func (c *wsClient) readPump() {
	defer c.hub.Unsubscribe(c.sub)

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket read error", zap.String("subscriber_id", c.sub.ID), zap.Error(err))
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	defer func() {
		c.hub.Unsubscribe(c.sub)
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.sub.Events():
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))

			var err error
			if ev.Type == broadcast.EventPing {
				err = c.conn.WriteMessage(websocket.PingMessage, nil)
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, ev.Data)
			}
			if err != nil {
				logger.Warn("Failed to write WebSocket message, dropping subscriber",
					zap.String("subscriber_id", c.sub.ID),
					zap.Error(err))
				return
			}

		case <-c.sub.Done():
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
