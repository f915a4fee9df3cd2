// Package memstore keeps tokens in process memory. It backs the session store
// outside a browser request, such as in tests or a long-lived refresh loop.
package memstore

import (
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Storage is safe for concurrent use
type Storage struct {
	mu     sync.RWMutex
	values map[string]entry
	now    func() time.Time
}

func New() *Storage {
	return &Storage{
		values: make(map[string]entry),
		now:    time.Now,
	}
}

// WithClock replaces the clock used for expiry
func (s *Storage) WithClock(now func() time.Time) *Storage {
	s.now = now
	return s
}

func (s *Storage) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.values[name]
	if !ok {
		return "", false
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		return "", false
	}
	return e.value, true
}

func (s *Storage) Set(name, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.values[name] = e
}

func (s *Storage) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, name)
}

// ExpiresAt returns when name expires, zero if it never does or is absent
func (s *Storage) ExpiresAt(name string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[name].expiresAt
}
