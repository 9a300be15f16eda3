package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ichi0g0y/slot-roulette/internal/types"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCatalog map[string]string

func (m mapCatalog) Lookup(name string) string {
	if c, ok := m[types.NameKey(name)]; ok {
		return c
	}
	return "Unknown"
}

var testCatalog = mapCatalog{"book of dead": "Play'n GO", "starburst": "NetEnt"}

type memPersister struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	failErr error
	loadErr error
}

func (m *memPersister) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.data == nil {
		return nil, ErrNoSnapshot
	}
	return append([]byte{}, m.data...), nil
}

func (m *memPersister) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.saves++
	m.data = append([]byte{}, data...)
	return nil
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("gen-%d", n)
	}
}

func newTestStore(p Persister) *Store {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return New(p, testCatalog, WithClock(clock), WithIDGenerator(sequentialIDs()))
}

func TestLoad_NoSnapshotWritesDefaults(t *testing.T) {
	p := &memPersister{}
	s := newTestStore(p)

	s.Load(context.Background())

	assert.Equal(t, types.NewSessionState(), s.Snapshot())
	require.Equal(t, 1, p.saves)
	assert.JSONEq(t, `{"games":[],"isLocked":false,"submissionsByDevice":{},"users":[],"history":[],"spinCount":0,"lastBonusAt":0}`, string(p.data))
}

func TestLoad_CorruptUsesDefaults(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: "{{{"},
		{name: "array document", data: "[1,2,3]"},
		{name: "empty", data: ""},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			p := &memPersister{data: []byte(tc.data)}
			s := newTestStore(p)

			s.Load(context.Background())

			assert.Equal(t, types.NewSessionState(), s.Snapshot())
			assert.Equal(t, 0, p.saves)
		})
	}
}

func TestLoad_ReadErrorUsesDefaults(t *testing.T) {
	p := &memPersister{loadErr: errors.New("disk gone")}
	s := newTestStore(p)

	s.Load(context.Background())

	assert.Equal(t, types.NewSessionState(), s.Snapshot())
}

func TestLoad_SanitizesLegacyRecords(t *testing.T) {
	legacy := `{
	  "games": [
	    {"id": "g1", "name": " Book of Dead ", "deviceId": "d1", "userId": "u1", "createdAt": "2024-04-01T10:00:00.000Z"},
	    "not an object",
	    {"name": 42}
	  ],
	  "isLocked": "yes",
	  "submissionsByDevice": {"d1": "g1", "d2": 7},
	  "users": [
	    {"id": "u1", "name": "  ", "deviceIds": ["d1", "", 5], "totalProfit": "120.5",
	     "rounds": [{"gameName": "Starburst", "before": "100", "after": 50, "delta": -50}]},
	    {"name": "Bob", "deviceIds": "d9", "totalProfit": null}
	  ],
	  "history": [{"id": "r1", "gameName": "Starburst", "delta": -50}, null],
	  "spinCount": 7,
	  "lastBonusAt": "3"
	}`
	p := &memPersister{data: []byte(legacy)}
	s := newTestStore(p)

	s.Load(context.Background())
	got := s.Snapshot()

	require.Len(t, got.Games, 2)
	assert.Equal(t, "Book of Dead", got.Games[0].Name)
	assert.Equal(t, "Play'n GO", got.Games[0].Provider)
	assert.True(t, got.Games[0].CreatedAt.Equal(time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Okänt spel", got.Games[1].Name)
	assert.NotEmpty(t, got.Games[1].ID)
	assert.Equal(t, "Unknown", got.Games[1].Provider)

	assert.False(t, got.IsLocked)
	assert.Equal(t, map[string]string{"d1": "g1"}, got.SubmissionsByDevice)

	require.Len(t, got.Users, 2)
	assert.Equal(t, "Spelare", got.Users[0].Name)
	assert.Equal(t, []string{"d1"}, got.Users[0].DeviceIDs)
	assert.Equal(t, 120.5, got.Users[0].TotalProfit)
	require.Len(t, got.Users[0].Rounds, 1)
	assert.Equal(t, 100.0, got.Users[0].Rounds[0].Before)
	assert.Equal(t, "NetEnt", got.Users[0].Rounds[0].Provider)
	assert.NotEmpty(t, got.Users[1].ID)
	assert.Empty(t, got.Users[1].DeviceIDs)
	assert.Equal(t, 0.0, got.Users[1].TotalProfit)

	require.Len(t, got.History, 1)
	assert.Equal(t, "NetEnt", got.History[0].Provider)

	assert.Equal(t, 7, got.SpinCount)
	assert.Equal(t, 0, got.LastBonusAt)

	owner := got.ParticipantByDevice("d1")
	require.NotNil(t, owner)
	assert.Equal(t, "u1", owner.ID)

	// 補完したので1回だけ保存される
	assert.Equal(t, 1, p.saves)
}

func TestLoad_NoMigrationNoWrite(t *testing.T) {
	doc := `{"games":[{"id":"g1","name":"Starburst","provider":"NetEnt","deviceId":"d1","userId":"u1"}],
	  "users":[{"id":"u1","name":"Alice","deviceIds":["d1"],"totalProfit":0,"rounds":[]}],
	  "history":[],"spinCount":0,"lastBonusAt":0}`
	p := &memPersister{data: []byte(doc)}
	s := newTestStore(p)

	s.Load(context.Background())

	assert.Equal(t, 0, p.saves)
	assert.Len(t, s.Snapshot().Games, 1)
}

func TestCommit_ErrorDiscardsChanges(t *testing.T) {
	p := &memPersister{}
	s := newTestStore(p)
	s.Load(context.Background())
	savesBefore := p.saves

	errBoom := errors.New("boom")
	_, err := s.Commit(context.Background(), func(st *types.SessionState) error {
		st.SpinCount = 99
		st.Users = append(st.Users, types.Participant{ID: "u1", Name: "Alice"})
		return errBoom
	})

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, s.Snapshot().SpinCount)
	assert.Empty(t, s.Snapshot().Users)
	assert.Equal(t, uint64(0), s.Seq())
	assert.Equal(t, savesBefore, p.saves)
}

func TestCommit_PersistsAndIncrementsSeq(t *testing.T) {
	p := &memPersister{}
	s := newTestStore(p)
	s.Load(context.Background())

	seq, err := s.Commit(context.Background(), func(st *types.SessionState) error {
		st.SpinCount++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	var saved types.SessionState
	require.NoError(t, json.Unmarshal(p.data, &saved))
	assert.Equal(t, 1, saved.SpinCount)
}

func TestCommit_PersistenceFailureIsNotFatal(t *testing.T) {
	p := &memPersister{}
	s := newTestStore(p)
	s.Load(context.Background())

	p.failErr = errors.New("disk full")
	_, err := s.Commit(context.Background(), func(st *types.SessionState) error {
		st.SpinCount = 1
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Snapshot().SpinCount)
	assert.True(t, s.Dirty())
	assert.Error(t, s.LastPersistError())

	// 次のコミットで現在の状態を書き直す
	p.failErr = nil
	_, err = s.Commit(context.Background(), func(st *types.SessionState) error {
		st.SpinCount = 2
		return nil
	})
	require.NoError(t, err)
	assert.False(t, s.Dirty())

	var saved types.SessionState
	require.NoError(t, json.Unmarshal(p.data, &saved))
	assert.Equal(t, 2, saved.SpinCount)
}

func TestFlush_RetriesPendingWrite(t *testing.T) {
	p := &memPersister{}
	s := newTestStore(p)
	s.Load(context.Background())

	require.NoError(t, s.Flush(context.Background()))
	saves := p.saves

	p.failErr = errors.New("disk full")
	_, err := s.Commit(context.Background(), func(st *types.SessionState) error {
		st.IsLocked = true
		return nil
	})
	require.NoError(t, err)
	assert.Error(t, s.Flush(context.Background()))

	p.failErr = nil
	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, saves+1, p.saves)
	assert.False(t, s.Dirty())
}

func TestSnapshot_IsolatedFromCommits(t *testing.T) {
	s := newTestStore(&memPersister{})
	s.Load(context.Background())

	snap := s.Snapshot()
	_, err := s.Commit(context.Background(), func(st *types.SessionState) error {
		st.Games = append(st.Games, types.QueueItem{ID: "g1", Name: "Hugo"})
		return nil
	})
	require.NoError(t, err)

	assert.Empty(t, snap.Games)
	snap.SpinCount = 50
	assert.Equal(t, 0, s.Snapshot().SpinCount)
}

func TestCommit_ConcurrentWritersDoNotLoseUpdates(t *testing.T) {
	s := newTestStore(&memPersister{})
	s.Load(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Commit(context.Background(), func(st *types.SessionState) error {
				st.SpinCount++
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Snapshot().SpinCount)
	assert.Equal(t, uint64(50), s.Seq())
}

func TestCommitThen_CallbackRunsInSequenceOrder(t *testing.T) {
	s := newTestStore(&memPersister{})
	s.Load(context.Background())

	var (
		mu   sync.Mutex
		seqs []uint64
		wg   sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.CommitThen(context.Background(), func(st *types.SessionState) error {
				st.SpinCount++
				return nil
			}, func(seq uint64) {
				mu.Lock()
				seqs = append(seqs, seq)
				mu.Unlock()
			})
		}()
	}
	wg.Wait()

	require.Len(t, seqs, 50)
	for i, seq := range seqs {
		assert.Equal(t, uint64(i+1), seq)
	}

	called := false
	_, err := s.CommitThen(context.Background(), func(*types.SessionState) error {
		return errors.New("rejected")
	}, func(uint64) { called = true })
	require.Error(t, err)
	assert.False(t, called, "callback must not run for a failed commit")
}

func TestFilePersister_RoundTripAndAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")
	p := NewFilePersister(path)

	_, err := p.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)

	require.NoError(t, p.Save(context.Background(), []byte(`{"spinCount":1}`)))
	require.NoError(t, p.Save(context.Background(), []byte(`{"spinCount":2}`)))

	data, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"spinCount":2}`, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files should not be left behind")
}

func TestFilePersister_CanceledContext(t *testing.T) {
	p := NewFilePersister(filepath.Join(t.TempDir(), "state.json"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Save(ctx, []byte("{}")), context.Canceled)
}

func TestStore_FileBackedReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	first := newTestStore(NewFilePersister(path))
	first.Load(context.Background())
	_, err := first.Commit(context.Background(), func(st *types.SessionState) error {
		st.Users = append(st.Users, types.Participant{ID: "u1", Name: "Alice", DeviceIDs: []string{"d1"}, Rounds: []types.RoundResult{}})
		st.SpinCount = 4
		return nil
	})
	require.NoError(t, err)

	second := newTestStore(NewFilePersister(path))
	second.Load(context.Background())
	got := second.Snapshot()

	require.Len(t, got.Users, 1)
	assert.Equal(t, "Alice", got.Users[0].Name)
	assert.Equal(t, 4, got.SpinCount)
	require.NotNil(t, got.ParticipantByDevice("d1"))
}
