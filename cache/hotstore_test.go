package cache

import (
	"context"
	"testing"
	"time"

	"github.com/sharedcode/strata"
)

var ctx = context.Background()

func TestSetGetRoundTrip(t *testing.T) {
	c := NewHotStore()
	if err := c.Set(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatal(err)
	}
	found, v, err := c.Get(ctx, "k1")
	if err != nil || !found {
		t.Fatalf("got found=%v err=%v, want a hit", found, err)
	}
	if string(v) != "v1" {
		t.Errorf("got %s, want v1", v)
	}
	if found, _, _ := c.Get(ctx, "absent"); found {
		t.Error("missing key should report found=false")
	}
}

func TestExpiredEntryIsDropped(t *testing.T) {
	base := time.UnixMilli(1_000_000)
	prev := strata.Now
	strata.Now = func() time.Time { return base }
	t.Cleanup(func() { strata.Now = prev })

	c := NewHotStore()
	c.Set(ctx, "k1", []byte("v1"), time.Minute)

	strata.Now = func() time.Time { return base.Add(2 * time.Minute) }
	if found, _, _ := c.Get(ctx, "k1"); found {
		t.Error("expired entry should be dropped on read")
	}
	if c.Count() != 0 {
		t.Errorf("got %d entries, want 0 after expiry drop", c.Count())
	}
}

func TestItemCapEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewHotStoreExt(2, 0)
	c.Set(ctx, "a", []byte("1"), 0)
	c.Set(ctx, "b", []byte("2"), 0)
	c.Get(ctx, "a") // a is now the most recently used
	c.Set(ctx, "c", []byte("3"), 0)

	if found, _, _ := c.Get(ctx, "b"); found {
		t.Error("least recently used entry should have been evicted")
	}
	if found, _, _ := c.Get(ctx, "a"); !found {
		t.Error("recently used entry should survive")
	}
	if c.Count() != 2 {
		t.Errorf("got %d entries, want 2", c.Count())
	}
}

func TestByteBudgetReturnsCapacityError(t *testing.T) {
	c := NewHotStoreExt(100, 10)
	if err := c.Set(ctx, "a", []byte("12345"), 0); err != nil {
		t.Fatal(err)
	}
	err := c.Set(ctx, "b", []byte("123456789"), 0)
	if err == nil {
		t.Fatal("write past the byte budget should fail")
	}
	if !strata.IsCapacityExhausted(err) {
		t.Errorf("got %v, want a typed CapacityExhausted error", err)
	}

	// Overwriting an entry counts the delta, not the sum.
	if err := c.Set(ctx, "a", []byte("1234567890"), 0); err != nil {
		t.Errorf("same-key overwrite within the budget should succeed, got %v", err)
	}
}

func TestRemoveFreesBudget(t *testing.T) {
	c := NewHotStoreExt(100, 10)
	c.Set(ctx, "a", []byte("1234567890"), 0)
	if err := c.Set(ctx, "b", []byte("x"), 0); err == nil {
		t.Fatal("store should be full")
	}
	c.Remove(ctx, "a")
	if err := c.Set(ctx, "b", []byte("x"), 0); err != nil {
		t.Errorf("removal should free the budget, got %v", err)
	}
}

func TestListKeysWithPrefix(t *testing.T) {
	c := NewHotStore()
	c.Set(ctx, "snapshot/a", []byte("1"), 0)
	c.Set(ctx, "snapshot/b", []byte("2"), 0)
	c.Set(ctx, "kv/c", []byte("3"), 0)

	keys, err := c.ListKeysWithPrefix(ctx, "snapshot/")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Errorf("got %v, want the two snapshot keys", keys)
	}
}

func TestEstimateSize(t *testing.T) {
	c := NewHotStore()
	c.Set(ctx, "a", []byte("12345"), 0)
	c.Set(ctx, "b", []byte("123"), 0)

	total, err := c.EstimateSize(ctx, []string{"a", "b", "ghost"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 8 {
		t.Errorf("got %d, want 8", total)
	}
}
