package draft

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/krasl809/tradedesk/internal/timing"
)

const (
	// DefaultDebounce is the snapshot idle window. Shorter than the
	// autosave window on purpose: drafts have no server copy to fall
	// back on.
	DefaultDebounce = 5 * time.Second

	// DefaultMaxAge bounds recovery: older snapshots are ignored at
	// read time but left in the store.
	DefaultMaxAge = 24 * time.Hour
)

type Manager struct {
	store    Store
	sched    timing.Scheduler
	clock    timing.Clock
	log      zerolog.Logger
	key      string
	debounce time.Duration
	maxAge   time.Duration
}

type ManagerConfig struct {
	Debounce  time.Duration
	MaxAge    time.Duration
	Scheduler timing.Scheduler
	Clock     timing.Clock
}

func NewManager(store Store, mode string, log zerolog.Logger, cfg ManagerConfig) *Manager {
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = timing.NewTimerScheduler()
	}
	if cfg.Clock == nil {
		cfg.Clock = timing.SystemClock
	}
	return &Manager{
		store:    store,
		sched:    cfg.Scheduler,
		clock:    cfg.Clock,
		log:      log,
		key:      Key(mode),
		debounce: cfg.Debounce,
		maxAge:   cfg.MaxAge,
	}
}

// Touch records the latest form state and restarts the snapshot window.
// Only the state captured by the last call in a burst is persisted.
func (m *Manager) Touch(snap Snapshot) {
	m.sched.Schedule(m.debounce, func() {
		snap.Timestamp = m.clock.Now()
		raw, err := json.Marshal(snap)
		if err != nil {
			m.log.Error().Err(err).Msg("marshal draft snapshot")
			return
		}
		if err := m.store.Set(m.key, raw); err != nil {
			m.log.Error().Err(err).Msg("persist draft snapshot")
			return
		}
		m.log.Debug().Str("key", m.key).Msg("draft snapshot written")
	})
}

// Restore reads the snapshot once, on mount of a fresh new-contract
// screen. A snapshot past its age bound is not offered, and also not
// deleted; it only disappears on create or explicit discard.
func (m *Manager) Restore() (*Snapshot, bool, error) {
	raw, err := m.store.Get(m.key)
	if err == ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false, err
	}
	if m.clock.Now().Sub(snap.Timestamp) > m.maxAge {
		m.log.Debug().Str("key", m.key).Time("timestamp", snap.Timestamp).Msg("draft snapshot too old, ignored")
		return nil, false, nil
	}
	return &snap, true, nil
}

// Discard removes the snapshot, after successful creation or an
// explicit user discard.
func (m *Manager) Discard() error {
	m.sched.Cancel()
	return m.store.Remove(m.key)
}

// Stop cancels a pending snapshot without touching the stored one.
func (m *Manager) Stop() {
	m.sched.Cancel()
}
