// Package ratelimit provides fixed-window counters for throttling the
// credential endpoints, either per process or shared through redis.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store counts one hit against key and reports whether it is within limit.
// When it is not, retryAfter is the time left in the current window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration, err error)
}

type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	clients map[string]*bucket
}

type bucket struct {
	count     int
	windowEnd time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:     time.Now,
		clients: make(map[string]*bucket),
	}
}

// WithClock overrides the time source, for tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.clients[key]
	if !ok || !now.Before(b.windowEnd) {
		s.clients[key] = &bucket{count: 1, windowEnd: now.Add(window)}
		s.sweep(now)
		return true, 0, nil
	}

	if b.count >= limit {
		return false, b.windowEnd.Sub(now), nil
	}

	b.count++
	return true, 0, nil
}

// sweep drops expired buckets once the map grows, so one-off clients do
// not accumulate forever.
func (s *MemoryStore) sweep(now time.Time) {
	if len(s.clients) < 1024 {
		return
	}
	for k, b := range s.clients {
		if !now.Before(b.windowEnd) {
			delete(s.clients, k)
		}
	}
}
