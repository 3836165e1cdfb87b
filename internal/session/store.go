package session

import (
	"sync"

	"github.com/HVML/purcmc-renderer/internal/model"
)

// Manager owns every live Session, keyed by its handle. Sharded by handle
// to bound per-shard lock contention, the same shape as the teacher's
// hioload-ws session store — though at renderer scale (MAX_CLIENTS_EACH
// bounds live sessions to a few hundred) a handful of shards is already
// generous headroom rather than a load-bearing optimization.
type Manager struct {
	shards []*shard
	mask   uint64
}

type shard struct {
	mu       sync.RWMutex
	sessions map[model.Handle]*Session
}

// NewManager builds a Manager with shardCount shards, rounded up to the
// next power of two.
func NewManager(shardCount int) *Manager {
	if shardCount <= 0 {
		shardCount = 8
	}
	n := nextPowerOfTwo(uint64(shardCount))
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{sessions: make(map[model.Handle]*Session)}
	}
	return &Manager{shards: shards, mask: n - 1}
}

func (m *Manager) shardFor(h model.Handle) *shard {
	return m.shards[uint64(h)&m.mask]
}

// Put installs a freshly created session.
func (m *Manager) Put(s *Session) {
	sh := m.shardFor(s.Handle)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.sessions[s.Handle] = s
}

// Get looks up a session by handle.
func (m *Manager) Get(h model.Handle) (*Session, bool) {
	sh := m.shardFor(h)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.sessions[h]
	return s, ok
}

// Delete tears down and removes a session.
func (m *Manager) Delete(h model.Handle) {
	sh := m.shardFor(h)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if s, ok := sh.sessions[h]; ok {
		s.Close()
		delete(sh.sessions, h)
	}
}

// Range applies fn to every live session. fn must not call back into the
// Manager.
func (m *Manager) Range(fn func(*Session)) {
	for _, sh := range m.shards {
		sh.mu.RLock()
		for _, s := range sh.sessions {
			fn(s)
		}
		sh.mu.RUnlock()
	}
}

func nextPowerOfTwo(v uint64) uint64 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	v++
	return v
}
