package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[string](3, time.Hour)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")
	c.Get("key1") // key2 becomes least recently used
	c.Set("key4", "value4")

	if _, found := c.Get("key2"); found {
		t.Error("key2 should have been evicted")
	}
	for _, k := range []string{"key1", "key3", "key4"} {
		if _, found := c.Get(k); !found {
			t.Errorf("%s should still exist", k)
		}
	}
}

func TestLRUCacheTTLExpiration(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](100, time.Minute, WithClock(clock.now))

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	if _, found := c.Get("key1"); !found {
		t.Fatal("key1 should exist immediately")
	}

	clock.advance(30 * time.Second)
	c.Set("key2", "refreshed")
	clock.advance(45 * time.Second)

	if _, found := c.Get("key1"); found {
		t.Error("key1 should have expired")
	}
	if v, found := c.Get("key2"); !found || v != "refreshed" {
		t.Errorf("key2 = %q, %v; want refreshed entry", v, found)
	}
}

func TestLRUCacheZeroTTLNeverExpires(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := NewLRUCache[int](0, 0, WithClock(clock.now))
	c.Set("a", 1)
	clock.advance(24 * 365 * time.Hour)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get = %d, %v", v, ok)
	}
}
