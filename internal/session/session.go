package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/MikeSquared-Agency/intake/internal/extractor"
)

// ErrUnknownSession is returned by Get when no state exists for the id.
var ErrUnknownSession = errors.New("unknown session")

// Manager keeps one conversation state per session id. Entries expire ttl
// after their last write.
type Manager struct {
	cache *bigcache.BigCache

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock lives in Manager.locks only while someone holds or waits on it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewManager(ctx context.Context, ttl time.Duration) (*Manager, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.CleanWindow = time.Minute
	if ttl < cfg.CleanWindow {
		cfg.CleanWindow = ttl
	}
	cache, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &Manager{cache: cache, locks: make(map[string]*sessionLock)}, nil
}

// Start resets the session to a fresh greeting state.
func (m *Manager) Start(id string) (*extractor.State, error) {
	defer m.lock(id)()

	state := extractor.NewState()
	if err := m.save(id, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Get returns a copy of the last stored session state.
func (m *Manager) Get(id string) (*extractor.State, error) {
	return m.load(id)
}

// Update loads the state, applies fn and stores the result, holding the
// session lock throughout. A missing session starts fresh. If fn returns an
// error nothing is stored.
func (m *Manager) Update(id string, fn func(*extractor.State) error) (*extractor.State, error) {
	return m.update(id, true, fn)
}

// UpdateExisting is Update for sessions that must already exist. An unknown
// session returns ErrUnknownSession and fn is not called.
func (m *Manager) UpdateExisting(id string, fn func(*extractor.State) error) (*extractor.State, error) {
	return m.update(id, false, fn)
}

func (m *Manager) update(id string, create bool, fn func(*extractor.State) error) (*extractor.State, error) {
	defer m.lock(id)()

	state, err := m.load(id)
	if errors.Is(err, ErrUnknownSession) && create {
		state = extractor.NewState()
	} else if err != nil {
		return nil, err
	}

	if err := fn(state); err != nil {
		return state, err
	}
	if err := m.save(id, state); err != nil {
		return nil, err
	}
	return state, nil
}

// End drops the session. Ending an unknown session is not an error.
func (m *Manager) End(id string) error {
	defer m.lock(id)()

	if err := m.cache.Delete(id); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	return m.cache.Len()
}

func (m *Manager) Close() error {
	return m.cache.Close()
}

// lock acquires the per-session lock and returns its release func.
func (m *Manager) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sessionLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

func (m *Manager) load(id string) (*extractor.State, error) {
	b, err := m.cache.Get(id)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, ErrUnknownSession
	}
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}
	var state extractor.State
	if err := json.Unmarshal(b, &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &state, nil
}

func (m *Manager) save(id string, state *extractor.State) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}
	if err := m.cache.Set(id, b); err != nil {
		return fmt.Errorf("write session %s: %w", id, err)
	}
	return nil
}
