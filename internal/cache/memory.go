package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 32

type entry struct {
	value     []byte
	expiresAt time.Time // zero = no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type shard struct {
	mu    sync.RWMutex
	items map[string]entry
}

// Memory is an in-process Cache striped over shardCount RWMutex-guarded maps.
// Keys hash to a shard with xxhash so unrelated keys never contend.
type Memory struct {
	shards      [shardCount]*shard
	perShardCap int
	now         func() time.Time
}

// NewMemory creates a cache holding roughly capacity entries. capacity <= 0 means unbounded.
func NewMemory(capacity int) *Memory {
	m := &Memory{now: time.Now}
	if capacity > 0 {
		m.perShardCap = (capacity + shardCount - 1) / shardCount
	}
	for i := range m.shards {
		m.shards[i] = &shard{items: make(map[string]entry)}
	}
	return m
}

func (m *Memory) shardFor(key string) *shard {
	return m.shards[xxhash.Sum64String(key)%shardCount]
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	s := m.shardFor(key)
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if e.expired(m.now()) {
		s.mu.Lock()
		// Re-check: a concurrent Put may have refreshed it.
		if cur, still := s.items[key]; still && cur.expired(m.now()) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}

	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[key]; !exists && m.perShardCap > 0 && len(s.items) >= m.perShardCap {
		m.evictOne(s)
	}
	s.items[key] = e
	return nil
}

// evictOne drops an expired entry if any, otherwise the one closest to expiry.
// Caller holds s.mu.
func (m *Memory) evictOne(s *shard) {
	now := m.now()
	var (
		victim   string
		earliest time.Time
		found    bool
	)
	for k, e := range s.items {
		if e.expired(now) {
			delete(s.items, k)
			return
		}
		if !found || (!e.expiresAt.IsZero() && (earliest.IsZero() || e.expiresAt.Before(earliest))) {
			victim, earliest, found = k, e.expiresAt, true
		}
	}
	if found {
		delete(s.items, victim)
	}
}

func (m *Memory) Evict(_ context.Context, key string) error {
	s := m.shardFor(key)
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

func (m *Memory) EvictPrefix(_ context.Context, prefix string) error {
	for _, s := range m.shards {
		s.mu.Lock()
		for k := range s.items {
			if strings.HasPrefix(k, prefix) {
				delete(s.items, k)
			}
		}
		s.mu.Unlock()
	}
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// Len counts live and not-yet-collected entries.
func (m *Memory) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}
