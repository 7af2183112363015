// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestLRUAddGet(t *testing.T) {
	c := NewLRU[float64](10, time.Minute)

	c.Add("a", 0.5)
	got, ok := c.Get("a")
	if !ok || got != 0.5 {
		t.Errorf("Get(a) = %v, %v; want 0.5, true", got, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should report absent")
	}
}

func TestLRUUpdateExisting(t *testing.T) {
	c := NewLRU[int](10, time.Minute)

	c.Add("k", 1)
	c.Add("k", 2)

	if got, _ := c.Get("k"); got != 2 {
		t.Errorf("Get(k) = %v, want updated value 2", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](3, time.Minute)

	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	// Touch "a" so "b" becomes the eviction victim.
	c.Get("a")
	c.Add("d", 4)

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry should have been evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("entry %q unexpectedly evicted", key)
		}
	}
}

func TestLRUExpiration(t *testing.T) {
	c := NewLRU[int](10, 10*time.Millisecond)

	c.Add("k", 1)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expired entry should not be returned")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after lazy expiration", c.Len())
	}
}

func TestLRURemoveAndClear(t *testing.T) {
	c := NewLRU[int](10, time.Minute)

	c.Add("a", 1)
	c.Add("b", 2)

	if !c.Remove("a") {
		t.Error("Remove(a) should report removed")
	}
	if c.Remove("a") {
		t.Error("second Remove(a) should report absent")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
}

func TestLRUStats(t *testing.T) {
	c := NewLRU[int](10, time.Minute)

	c.Add("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	hits, misses, size := c.Stats()
	if hits != 2 || misses != 1 || size != 1 {
		t.Errorf("Stats() = %d hits, %d misses, %d size; want 2, 1, 1", hits, misses, size)
	}
}

func TestLRUCapacityBound(t *testing.T) {
	c := NewLRU[int](100, time.Minute)

	for i := 0; i < 1000; i++ {
		c.Add(fmt.Sprintf("k%d", i), i)
	}
	if c.Len() != 100 {
		t.Errorf("Len() = %d, want capped at 100", c.Len())
	}
}
