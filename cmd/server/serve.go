package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ichi0g0y/slot-roulette/internal/broadcast"
	"github.com/ichi0g0y/slot-roulette/internal/catalog"
	"github.com/ichi0g0y/slot-roulette/internal/env"
	"github.com/ichi0g0y/slot-roulette/internal/eventbus"
	"github.com/ichi0g0y/slot-roulette/internal/localdb"
	"github.com/ichi0g0y/slot-roulette/internal/session"
	"github.com/ichi0g0y/slot-roulette/internal/shared/logger"
	"github.com/ichi0g0y/slot-roulette/internal/shared/paths"
	"github.com/ichi0g0y/slot-roulette/internal/store"
	"github.com/ichi0g0y/slot-roulette/internal/version"
	"github.com/ichi0g0y/slot-roulette/internal/webserver"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP / SSE / WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger.Info("Starting slot-roulette server",
		zap.String("version", version.String()),
		zap.String("dataDir", cfg.DataDir),
		zap.String("backend", cfg.StateBackend))

	if err := paths.EnsureDataDirs(); err != nil {
		return err
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	persister, db, err := openPersister(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer closeDB(db)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := store.New(persister, cat)
	st.Load(ctx)

	engine := session.New(st, cat)
	hub := broadcast.NewHub(engine,
		broadcast.WithHeartbeatInterval(cfg.HeartbeatInterval),
		broadcast.WithBufferSize(cfg.SubscriberBuffer))
	engine.AddNotifier(hub)

	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(hubCtx)
	}()

	var publisher *eventbus.Publisher
	if cfg.NATSURL != "" {
		publisher, err = connectEventBus(ctx, cfg)
		if err != nil {
			// ミラーは任意機能なので起動は続ける
			logger.Warn("Event mirror disabled", zap.Error(err))
		} else {
			engine.AddNotifier(publisher)
		}
	}

	srv := webserver.New(webserver.Config{
		Engine:  engine,
		Hub:     hub,
		Catalog: cat,
		Store:   st,
	})
	if err := srv.Start(cfg.ServerPort); err != nil {
		stopHub()
		return err
	}

	logger.Info("Server started",
		zap.Int("port", cfg.ServerPort),
		zap.String("url", fmt.Sprintf("http://localhost:%d/", cfg.ServerPort)))

	<-ctx.Done()
	logger.Info("Shutting down...")

	// 先に購読者を閉じないと SSE/WS の接続が Shutdown を塞ぐ
	stopHub()
	<-hubDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	srv.Shutdown(shutdownCtx)

	if err := st.Flush(shutdownCtx); err != nil {
		logger.Error("Failed to persist session state on shutdown", zap.Error(err))
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Warn("Failed to close event mirror", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return nil
}

// openPersister は STATE_BACKEND に応じた永続化先を返す。sqlite の場合は DB も返す。
func openPersister(cfg env.Config) (store.Persister, *sql.DB, error) {
	if cfg.StateBackend != env.BackendSQLite {
		return store.NewFilePersister(paths.GetStatePath()), nil, nil
	}

	db, err := localdb.SetupDB(paths.GetDBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup database: %w", err)
	}
	return localdb.NewSnapshotStore(db), db, nil
}

func closeDB(db *sql.DB) {
	if err := localdb.Checkpoint(db); err != nil {
		logger.Warn("Failed to checkpoint database", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		logger.Warn("Failed to close database", zap.Error(err))
	}
}

func connectEventBus(ctx context.Context, cfg env.Config) (*eventbus.Publisher, error) {
	busCfg := eventbus.DefaultConfig()
	busCfg.URL = cfg.NATSURL
	busCfg.StreamName = cfg.NATSStream
	busCfg.SubjectPrefix = cfg.NATSSubjectPrefix

	connectCtx, cancel := context.WithTimeout(ctx, busCfg.PublishTimeout)
	defer cancel()
	return eventbus.Connect(connectCtx, busCfg)
}
