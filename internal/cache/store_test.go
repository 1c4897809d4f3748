package cache

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source safe for concurrent reads.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, time.November, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, ttl time.Duration) (*Store[string], *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	store := New[string](ttl, WithClock[string](clock.Now))
	t.Cleanup(store.Stop)
	return store, clock
}

func TestStore_SetGet(t *testing.T) {
	store, _ := newTestStore(t, 10*time.Minute)

	store.Set("k", "v")

	got, ok := store.Get("k")
	if !ok {
		t.Fatal("Get() reported absent for a fresh entry")
	}
	if got != "v" {
		t.Errorf("Get() = %q, want %q", got, "v")
	}
}

func TestStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t, 10*time.Minute)

	if _, ok := store.Get("missing"); ok {
		t.Error("Get() reported present for a missing key")
	}
}

func TestStore_ExpiryOnGet(t *testing.T) {
	store, clock := newTestStore(t, 10*time.Minute)

	store.Set("k", "v")
	if store.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", store.Size())
	}

	clock.Advance(10*time.Minute + time.Second)

	if _, ok := store.Get("k"); ok {
		t.Error("Get() returned a value past expiry")
	}
	// Lazy expiry removes the entry
	if store.Size() != 0 {
		t.Errorf("Size() after expired Get = %d, want 0", store.Size())
	}
}

func TestStore_SetRefreshesExpiry(t *testing.T) {
	store, clock := newTestStore(t, 10*time.Minute)

	store.Set("k", "v1")
	clock.Advance(9 * time.Minute)
	store.Set("k", "v2")
	clock.Advance(9 * time.Minute)

	got, ok := store.Get("k")
	if !ok {
		t.Fatal("Get() reported absent for a refreshed entry")
	}
	if got != "v2" {
		t.Errorf("Get() = %q, want %q", got, "v2")
	}
}

func TestStore_Sweep(t *testing.T) {
	store, clock := newTestStore(t, 10*time.Minute)

	store.Set("a", "1")
	store.Set("b", "2")
	clock.Advance(5 * time.Minute)
	store.Set("c", "3")
	clock.Advance(6 * time.Minute) // a and b are now expired, c is not

	removed := store.sweep()
	if removed != 2 {
		t.Errorf("sweep() removed %d entries, want 2", removed)
	}
	if store.Size() != 1 {
		t.Errorf("Size() after sweep = %d, want 1", store.Size())
	}
	if !store.Has("c") {
		t.Error("sweep() evicted an unexpired entry")
	}
}

func TestStore_DeleteClear(t *testing.T) {
	store, _ := newTestStore(t, 10*time.Minute)

	store.Set("a", "1")
	store.Set("b", "2")

	if !store.Delete("a") {
		t.Error("Delete() = false for a present key")
	}
	if store.Delete("a") {
		t.Error("Delete() = true for an absent key")
	}

	store.Clear()
	if store.Size() != 0 {
		t.Errorf("Size() after Clear = %d, want 0", store.Size())
	}
}

func TestStore_Stats(t *testing.T) {
	store, _ := newTestStore(t, 10*time.Minute)

	store.Set("a", "1")

	stats := store.Stats()
	if stats.Size != 1 {
		t.Errorf("Stats().Size = %d, want 1", stats.Size)
	}
	if stats.TTL != 10*time.Minute {
		t.Errorf("Stats().TTL = %v, want 10m", stats.TTL)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store, _ := newTestStore(t, 10*time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.Set("shared", "v")
				store.Get("shared")
				store.Size()
			}
		}()
	}
	wg.Wait()

	if got, ok := store.Get("shared"); !ok || got != "v" {
		t.Errorf("Get() after concurrent writes = %q, %v; want %q, true", got, ok, "v")
	}
}

func TestStore_StopIsIdempotent(t *testing.T) {
	store := New[string](time.Minute)
	store.Stop()
	store.Stop()
}
