package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ichi0g0y/slot-roulette/internal/shared/logger"
	"github.com/ichi0g0y/slot-roulette/internal/types"
	"github.com/jonboulle/clockwork"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

// Catalog resolves a game name to its category.
type Catalog interface {
	Lookup(name string) string
}

// Mutator mutates a working copy of the state. Returning an error discards
// every change it made.
type Mutator func(s *types.SessionState) error

// Store はセッション状態の唯一の持ち主。書き込みは常に1つずつ実行される。
type Store struct {
	mu        sync.RWMutex
	state     *types.SessionState
	seq       uint64
	dirty     bool
	lastErr   error
	persister Persister
	catalog   Catalog
	clock     clockwork.Clock
	newID     func() string
}

type Option func(*Store)

// WithClock sets the clock used for timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithIDGenerator overrides entity id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

func New(p Persister, c Catalog, opts ...Option) *Store {
	s := &Store{
		state:     types.NewSessionState(),
		persister: p,
		catalog:   c,
		clock:     clockwork.NewRealClock(),
		newID:     NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewID generates a nanoid. 生成に失敗した場合は時刻ベースのIDにする。
func NewID() string {
	id, err := gonanoid.New()
	if err != nil {
		logger.Warn("Failed to generate nanoid, falling back to timestamp id", zap.Error(err))
		return fmt.Sprintf("id-%d", time.Now().UnixNano())
	}
	return id
}

// Load reads the last snapshot. Missing or unreadable snapshots fall back to
// defaults; Load never fails startup.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.persister.Load(ctx)
	switch {
	case errors.Is(err, ErrNoSnapshot):
		logger.Info("No saved session state, initializing defaults")
		s.state = types.NewSessionState()
		s.persistLocked(ctx)
		return
	case err != nil:
		logger.Error("Failed to load session state, using defaults", zap.Error(err))
		s.state = types.NewSessionState()
		return
	}

	z := sanitizer{newID: s.newID, now: s.clock.Now().UTC()}
	state, err := z.decode(data)
	if err != nil {
		logger.Error("Session state is corrupt, using defaults", zap.Error(err))
		s.state = types.NewSessionState()
		return
	}
	s.state = state

	if backfillCategories(s.state, s.catalog) {
		logger.Info("Migrated old data with provider information")
		s.persistLocked(ctx)
	}

	logger.Info("Session state loaded",
		zap.Int("games", len(s.state.Games)),
		zap.Int("users", len(s.state.Users)),
		zap.Int("history", len(s.state.History)),
		zap.Int("spin_count", s.state.SpinCount))
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() *types.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Read runs fn against the current state under the read lock. fn must not
// modify the state or keep references to it after returning.
func (s *Store) Read(fn func(s *types.SessionState)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}

// Commit applies m atomically and persists the result. The returned sequence
// increases by one per successful commit. A persistence failure is logged and
// retried on the next commit; it does not fail the commit.
func (s *Store) Commit(ctx context.Context, m Mutator) (uint64, error) {
	return s.CommitThen(ctx, m, nil)
}

// CommitThen is Commit with a callback that runs after a successful commit
// while the write lock is still held, so callbacks observe commits in
// sequence order. after must not block or call back into the store.
func (s *Store) CommitThen(ctx context.Context, m Mutator, after func(seq uint64)) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.Clone()
	if err := m(work); err != nil {
		return s.seq, err
	}

	s.state = work
	s.seq++
	s.persistLocked(ctx)
	if after != nil {
		after(s.seq)
	}
	return s.seq, nil
}

// Seq returns the sequence number of the last successful commit.
func (s *Store) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Dirty reports whether the last write failed and has not been retried yet.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// LastPersistError returns the error of the last failed write, if still dirty.
func (s *Store) LastPersistError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Flush retries a pending write. It is a no-op when nothing is pending.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	s.persistLocked(ctx)
	return s.lastErr
}

// Now returns the store clock time in UTC.
func (s *Store) Now() time.Time {
	return s.clock.Now().UTC()
}

// GenerateID returns a new entity id.
func (s *Store) GenerateID() string {
	return s.newID()
}

// Lookup resolves a category through the store catalog.
func (s *Store) Lookup(name string) string {
	return s.catalog.Lookup(name)
}

func (s *Store) persistLocked(ctx context.Context) {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err == nil {
		err = s.persister.Save(ctx, data)
	}
	if err != nil {
		s.dirty = true
		s.lastErr = err
		logger.Error("Failed to persist session state (in-memory state kept)",
			zap.Uint64("seq", s.seq),
			zap.Error(err))
		return
	}

	if s.dirty {
		logger.Info("Session state persisted after earlier failure", zap.Uint64("seq", s.seq))
	}
	s.dirty = false
	s.lastErr = nil
}
