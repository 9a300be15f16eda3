package localdb

import (
	"database/sql"
	"fmt"

	"github.com/ichi0g0y/slot-roulette/internal/shared/logger"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SetupDB opens the sqlite database at dbPath and creates the tables.
func SetupDB(dbPath string) (*sql.DB, error) {
	// WALモードとBusy Timeoutを設定（Race Condition対策）
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// SQLiteは単一ライターなので接続プールを1に制限
	db.SetMaxOpenConns(1)

	if err := SetupSnapshotTable(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// SetupSnapshotTable creates the session_snapshots table.
func SetupSnapshotTable(db *sql.DB) error {
	// 状態ドキュメントは常に1行だけ
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS session_snapshots (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			document TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		logger.Error("Failed to create session_snapshots table", zap.Error(err))
		return fmt.Errorf("failed to create session_snapshots table: %w", err)
	}
	return nil
}

// Checkpoint は WAL をメインDBに書き戻す。シャットダウン時に呼ぶ。
func Checkpoint(db *sql.DB) error {
	if _, err := db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		logger.Warn("Failed to checkpoint WAL", zap.Error(err))
		return fmt.Errorf("failed to checkpoint wal: %w", err)
	}
	return nil
}
