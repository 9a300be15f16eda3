package localdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ichi0g0y/slot-roulette/internal/store"
)

// SnapshotStore keeps the session document in sqlite. It satisfies
// store.Persister.
type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) Load(ctx context.Context) ([]byte, error) {
	var document string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM session_snapshots WHERE id = 1`).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session snapshot: %w", err)
	}
	return []byte(document), nil
}

// Save upserts the single snapshot row. 1文なのでsqlite側で原子的に置き換わる。
func (s *SnapshotStore) Save(ctx context.Context, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_snapshots (id, document, updated_at)
		VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			document = excluded.document,
			updated_at = CURRENT_TIMESTAMP
	`, string(data))
	if err != nil {
		return fmt.Errorf("failed to save session snapshot: %w", err)
	}
	return nil
}
