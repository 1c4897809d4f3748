// Package cache provides a generic in-memory TTL store and the fingerprint
// derivation for search criteria. Entries are never served past expiry:
// reads evict lazily and a background sweep bounds memory for keys that are
// never re-read.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	createdAt time.Time
	expiresAt time.Time
}

// Stats reports observability data about a store.
type Stats struct {
	Size int           `json:"size"`
	TTL  time.Duration `json:"ttl"`
}

// Store is a concurrency-safe string-keyed TTL cache.
type Store[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Store.
type Option[T any] func(*Store[T])

// WithSweepInterval overrides the background sweep interval. It should be
// smaller than or comparable to the TTL to keep staleness bounded.
func WithSweepInterval[T any](interval time.Duration) Option[T] {
	return func(s *Store[T]) {
		s.sweepInterval = interval
	}
}

// WithClock injects the time source. Used by tests.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(s *Store[T]) {
		s.now = now
	}
}

// WithLogger sets the logger used to report sweep activity.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(s *Store[T]) {
		s.logger = logger
	}
}

// New creates a Store with a fixed per-write TTL and starts the background
// sweep. Call Stop for a clean shutdown.
func New[T any](ttl time.Duration, opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		entries:       make(map[string]entry[T]),
		ttl:           ttl,
		sweepInterval: ttl / 2,
		now:           time.Now,
		logger:        slog.Default(),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.sweepLoop()
	return s
}

// Get returns the value for key if present and unexpired. An expired entry is
// removed and reported absent; stale data is never returned.
func (s *Store[T]) Get(key string) (T, bool) {
	var zero T

	s.mu.RLock()
	ent, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return zero, false
	}

	if s.now().After(ent.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if current, ok := s.entries[key]; ok && s.now().After(current.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return zero, false
	}

	return ent.value, true
}

// Set stores value under key with expiry now + TTL.
func (s *Store[T]) Set(key string, value T) {
	now := s.now()
	s.mu.Lock()
	s.entries[key] = entry[T]{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(s.ttl),
	}
	s.mu.Unlock()
}

// Has reports whether key is present and unexpired.
func (s *Store[T]) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Delete removes key, reporting whether it was present.
func (s *Store[T]) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok
}

// Clear removes all entries.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]entry[T])
	s.mu.Unlock()
}

// Size returns the number of entries, including any not yet swept.
func (s *Store[T]) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats returns current size and the configured TTL.
func (s *Store[T]) Stats() Stats {
	return Stats{Size: s.Size(), TTL: s.ttl}
}

// Stop cancels the background sweep. Safe to call more than once.
func (s *Store[T]) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *Store[T]) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if removed := s.sweep(); removed > 0 {
				s.logger.Debug("cache sweep removed expired entries", slog.Int("removed", removed))
			}
		}
	}
}

// sweep evicts every expired entry and returns how many were removed.
func (s *Store[T]) sweep() int {
	now := s.now()
	removed := 0

	s.mu.Lock()
	for key, ent := range s.entries {
		if now.After(ent.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	s.mu.Unlock()

	return removed
}
