package webserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/ichi0g0y/slot-roulette/internal/broadcast"
	"github.com/ichi0g0y/slot-roulette/internal/catalog"
	"github.com/ichi0g0y/slot-roulette/internal/session"
	"github.com/ichi0g0y/slot-roulette/internal/shared/logger"
	"github.com/ichi0g0y/slot-roulette/internal/store"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// deviceIDHeader はクライアントがデバイスIDを送るヘッダー
const deviceIDHeader = "x-device-id"

// Server は HTTP API と購読エンドポイントをまとめる
type Server struct {
	engine  *session.Engine
	hub     *broadcast.Hub
	catalog *catalog.Catalog
	store   *store.Store

	router     *mux.Router
	handler    http.Handler
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// Config holds the collaborators of the server.
type Config struct {
	Engine  *session.Engine
	Hub     *broadcast.Hub
	Catalog *catalog.Catalog
	Store   *store.Store
}

func New(cfg Config) *Server {
	s := &Server{
		engine:  cfg.Engine,
		hub:     cfg.Hub,
		catalog: cfg.Catalog,
		store:   cfg.Store,
		router:  mux.NewRouter(),
		upgrader: websocket.Upgrader{
			// 認証はデバイスIDの自己申告のみなので全オリジンを許可
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	s.setupRoutes()

	s.handler = cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Content-Type", deviceIDHeader},
		AllowCredentials: false,
	}).Handler(s.router)

	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// Queue
	r.HandleFunc("/games", s.handleGetGames).Methods(http.MethodGet)
	r.HandleFunc("/games", s.handleEnqueueGame).Methods(http.MethodPost)
	r.HandleFunc("/games/clear", s.handleClearGames).Methods(http.MethodPost)
	r.HandleFunc("/games/{id}", s.handleRemoveGame).Methods(http.MethodDelete)
	r.HandleFunc("/spin", s.handleSpin).Methods(http.MethodPost)
	r.HandleFunc("/results", s.handleRecordResult).Methods(http.MethodPost)

	// Participants
	r.HandleFunc("/users", s.handleGetUsers).Methods(http.MethodGet)
	r.HandleFunc("/users", s.handleRegisterUser).Methods(http.MethodPost)

	// Operator
	r.HandleFunc("/admin/users", s.handleAdminCreateUser).Methods(http.MethodPost)
	r.HandleFunc("/admin/games", s.handleAdminEnqueueGame).Methods(http.MethodPost)
	r.HandleFunc("/admin/catalog/merge", s.handleCatalogMerge).Methods(http.MethodPost)
	r.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)

	// Bonus
	r.HandleFunc("/bonus/check", s.handleBonusCheck).Methods(http.MethodGet)
	r.HandleFunc("/bonus/spin", s.handleBonusSpin).Methods(http.MethodPost)

	r.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)

	// Subscriptions
	r.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
}

// Handler returns the CORS-wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on port in the background. Binding errors are returned.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting web server", zap.String("address", addr))

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.handler,
		// SSE/WS は長時間接続なので WriteTimeout は設定しない
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	// 起動直後のバインドエラーだけ待つ
	select {
	case err := <-errChan:
		if err != nil {
			logger.Error("Failed to start web server", zap.Error(err))
			return fmt.Errorf("failed to start web server on port %d: %w", port, err)
		}
	case <-time.After(100 * time.Millisecond):
	}

	return nil
}

// Shutdown gracefully shuts down the web server.
func (s *Server) Shutdown(ctx context.Context) {
	if s.httpServer == nil {
		return
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown web server gracefully", zap.Error(err))
	} else {
		logger.Info("Web server shutdown complete")
	}
}
