package usercache

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/scan-portal/internal/errors"
	"github.com/jrsteele09/scan-portal/session"
	"github.com/jrsteele09/scan-portal/users"
	"github.com/rs/zerolog/log"
)

var _ session.UserCache = (*InMemory)(nil)

type entry struct {
	user      *users.User
	expiresAt time.Time
}

// InMemory is a process local cache
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// WithClock replaces the clock used for expiry
func (c *InMemory) WithClock(now func() time.Time) *InMemory {
	c.now = now
	return c
}

func (c *InMemory) Get(_ context.Context, accessToken string) (*users.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[Key(accessToken)]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, errors.ErrNotFound
	}
	return e.user.Clone(), nil
}

func (c *InMemory) Put(_ context.Context, accessToken string, user *users.User, ttl time.Duration) error {
	if user == nil {
		return errors.New("user is required")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Store a copy so callers can't modify the cached record
	c.entries[Key(accessToken)] = entry{user: user.Clone(), expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *InMemory) Delete(_ context.Context, accessToken string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, Key(accessToken))
	return nil
}

// DeleteExpired drops expired entries and returns how many were removed
func (c *InMemory) DeleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *InMemory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RunJanitor calls DeleteExpired every interval until ctx is done
func (c *InMemory) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.DeleteExpired(); removed > 0 {
				log.Debug().Int("removed", removed).Msg("[UserCache] expired entries removed")
			}
		}
	}
}
