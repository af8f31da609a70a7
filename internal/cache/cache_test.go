package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T, ttl time.Duration, size int) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 9, 26, 12, 0, 0, 0, time.UTC)}
	return New(ttl, size, WithClock(clock.Now)), clock
}

func TestCache_GetMiss(t *testing.T) {
	c, _ := newTestCache(t, 5*time.Minute, 4)

	_, ok := c.Get("https://anchor.fm/feed")
	assert.False(t, ok)
}

func TestCache_HitWithinTTL(t *testing.T) {
	c, clock := newTestCache(t, 5*time.Minute, 4)

	stored := c.Set("https://anchor.fm/feed", []byte("<rss/>"))
	assert.Equal(t, "https://anchor.fm/feed", stored.SourceURL)
	assert.Equal(t, clock.Now(), stored.FetchedAt)

	clock.Advance(4*time.Minute + 59*time.Second)

	entry, ok := c.Get("https://anchor.fm/feed")
	require.True(t, ok)
	assert.Equal(t, []byte("<rss/>"), entry.Body)
	assert.Equal(t, 4*time.Minute+59*time.Second, entry.Age(clock.Now()))
}

func TestCache_ExpiresAtTTL(t *testing.T) {
	c, clock := newTestCache(t, 5*time.Minute, 4)

	c.Set("https://anchor.fm/feed", []byte("<rss/>"))
	clock.Advance(5 * time.Minute)

	_, ok := c.Get("https://anchor.fm/feed")
	assert.False(t, ok, "entry aged exactly TTL must be stale")
	assert.Equal(t, 0, c.Len(), "stale entry should be dropped on access")
}

func TestCache_KeysAreIndependent(t *testing.T) {
	c, clock := newTestCache(t, 5*time.Minute, 4)

	c.Set("https://anchor.fm/a", []byte("a"))
	clock.Advance(3 * time.Minute)
	c.Set("https://anchor.fm/b", []byte("b"))
	clock.Advance(3 * time.Minute)

	_, okA := c.Get("https://anchor.fm/a")
	b, okB := c.Get("https://anchor.fm/b")

	assert.False(t, okA)
	require.True(t, okB)
	assert.Equal(t, []byte("b"), b.Body)
}

func TestCache_SetOverwrites(t *testing.T) {
	c, clock := newTestCache(t, 5*time.Minute, 4)

	c.Set("https://anchor.fm/feed", []byte("old"))
	clock.Advance(4 * time.Minute)
	c.Set("https://anchor.fm/feed", []byte("new"))
	clock.Advance(4 * time.Minute)

	entry, ok := c.Get("https://anchor.fm/feed")
	require.True(t, ok, "overwrite must refresh FetchedAt")
	assert.Equal(t, []byte("new"), entry.Body)
	assert.Equal(t, 1, c.Len())
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(t, time.Hour, 2)

	c.Set("a", []byte("a"))
	c.Set("b", []byte("b"))
	_, _ = c.Get("a") // a is now most recent
	c.Set("c", []byte("c"))

	_, okA := c.Get("a")
	_, okB := c.Get("b")
	_, okC := c.Get("c")

	assert.True(t, okA)
	assert.False(t, okB, "b was least recently used")
	assert.True(t, okC)
	assert.Equal(t, 2, c.Len())
}

func TestCache_Unbounded(t *testing.T) {
	c, _ := newTestCache(t, time.Hour, 0)
	for i := 0; i < 100; i++ {
		c.Set(fmt.Sprintf("k%d", i), nil)
	}
	assert.Equal(t, 100, c.Len())
}

func TestCache_DeleteAndReset(t *testing.T) {
	c, _ := newTestCache(t, time.Hour, 4)

	c.Set("a", []byte("a"))
	c.Set("b", []byte("b"))

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Reset()
	assert.Equal(t, 0, c.Len())
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(time.Minute, 8)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%10)
			c.Set(key, []byte(key))
			_, _ = c.Get(key)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 8)
}
