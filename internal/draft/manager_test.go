package draft

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krasl809/tradedesk/internal/timing"
)

type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(key string) ([]byte, error) {
	value, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

func (s *memStore) Set(key string, value []byte) error {
	s.data[key] = value
	return nil
}

func (s *memStore) Remove(key string) error {
	delete(s.data, key)
	return nil
}

func (s *memStore) Close() error { return nil }

func newManager(t *testing.T) (*Manager, *memStore, *timing.ManualScheduler, *timing.ManualClock) {
	t.Helper()
	store := newMemStore()
	sched := timing.NewManualScheduler()
	clock := timing.NewManualClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	m := NewManager(store, "export", zerolog.Nop(), ManagerConfig{Scheduler: sched, Clock: clock})
	return m, store, sched, clock
}

func TestTouch_PersistsLastSnapshotAfterIdleWindow(t *testing.T) {
	m, store, sched, clock := newManager(t)

	m.Touch(Snapshot{FormData: map[string]any{"incoterm": "CIF"}})
	m.Touch(Snapshot{FormData: map[string]any{"incoterm": "FOB"}})
	assert.Equal(t, DefaultDebounce, sched.LastDelay)
	assert.Empty(t, store.data)

	sched.Fire()
	require.Contains(t, store.data, Key("export"))

	snap, ok, err := m.Restore()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "FOB", snap.FormData["incoterm"])
	assert.Equal(t, clock.Now(), snap.Timestamp)
}

func TestRestore_NothingStored(t *testing.T) {
	m, _, _, _ := newManager(t)

	snap, ok, err := m.Restore()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, snap)
}

func TestRestore_StaleSnapshotIgnoredButNotDeleted(t *testing.T) {
	m, store, sched, clock := newManager(t)

	m.Touch(Snapshot{FormData: map[string]any{"buyer": "acme"}})
	sched.Fire()

	clock.Advance(24*time.Hour + time.Minute)

	snap, ok, err := m.Restore()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, snap)
	// Stale drafts are skipped, never proactively deleted.
	assert.Contains(t, store.data, Key("export"))
}

func TestRestore_WithinAgeBound(t *testing.T) {
	m, _, sched, clock := newManager(t)

	m.Touch(Snapshot{FormData: map[string]any{"buyer": "acme"}})
	sched.Fire()

	clock.Advance(23 * time.Hour)

	_, ok, err := m.Restore()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDiscard_RemovesSnapshotAndPendingWrite(t *testing.T) {
	m, store, sched, _ := newManager(t)

	m.Touch(Snapshot{FormData: map[string]any{"buyer": "acme"}})
	sched.Fire()
	require.Contains(t, store.data, Key("export"))

	m.Touch(Snapshot{FormData: map[string]any{"buyer": "acme 2"}})
	require.NoError(t, m.Discard())

	assert.NotContains(t, store.data, Key("export"))
	assert.False(t, sched.Pending())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "contract_temp_import_new", Key("import"))
}
