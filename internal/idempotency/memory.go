package idempotency

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultTTL     = 24 * time.Hour
	DefaultMaxKeys = 10000
)

type state int

const (
	inFlight state = iota
	dispatched
)

type entry struct {
	state state
	at    time.Time
}

// MemoryStore is a process-local Store. Dispatched keys expire after ttl and
// the oldest dispatched key is evicted once maxKeys is reached. In-flight
// keys are never evicted.
type MemoryStore struct {
	mu      sync.Mutex
	keys    map[string]entry
	ttl     time.Duration
	maxKeys int
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

func NewMemoryStore(ttl time.Duration, maxKeys int) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	s := &MemoryStore{
		keys:    make(map[string]entry),
		ttl:     ttl,
		maxKeys: maxKeys,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go s.cleanupLoop(cleanupInterval(ttl))
	return s
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl < 5*time.Minute {
		return ttl
	}
	return 5 * time.Minute
}

func (s *MemoryStore) Reserve(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.keys[key]; ok {
		if e.state == inFlight || now.Sub(e.at) <= s.ttl {
			return false, nil
		}
		delete(s.keys, key)
	}
	if len(s.keys) >= s.maxKeys {
		s.evictLocked(now)
	}
	s.keys[key] = entry{state: inFlight, at: now}
	return true, nil
}

func (s *MemoryStore) Commit(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = entry{state: dispatched, at: s.now()}
	return nil
}

func (s *MemoryStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.keys[key]; ok && e.state == inFlight {
		delete(s.keys, key)
	}
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Stop ends the cleanup goroutine.
func (s *MemoryStore) Stop() {
	s.once.Do(func() { close(s.stop) })
}

func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Cleanup()
		case <-s.stop:
			return
		}
	}
}

// Cleanup drops expired dispatched keys.
func (s *MemoryStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.keys {
		if e.state == dispatched && now.Sub(e.at) > s.ttl {
			delete(s.keys, k)
		}
	}
}

func (s *MemoryStore) evictLocked(now time.Time) {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, e := range s.keys {
		if e.state != dispatched {
			continue
		}
		if now.Sub(e.at) > s.ttl {
			delete(s.keys, k)
			continue
		}
		if !found || e.at.Before(oldestAt) {
			oldestKey, oldestAt, found = k, e.at, true
		}
	}
	if len(s.keys) >= s.maxKeys && found {
		delete(s.keys, oldestKey)
	}
}
