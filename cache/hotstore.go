// Package cache contains the in-process MRU-backed hot tier used in standalone
// mode and in tests. Clustered deployments use the redis package for the hot
// tier instead.
package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sharedcode/strata"
)

var errStoreFull = errors.New("hot store byte budget exceeded")

type entry struct {
	data       []byte
	expiration time.Time
	dllNode    *node[string]
}

// HotStore is an in-memory strata.HotStore with MRU eviction. MaxBytes, when
// > 0, makes Set return a typed CapacityExhausted error once the total value
// footprint would exceed the budget, mirroring how a size-bounded device store
// behaves when full.
type HotStore struct {
	mu        sync.Mutex
	lookup    map[string]*entry
	recency   *recencyList[string]
	usedBytes int64
	maxItems  int
	maxBytes  int64
}

const defaultCapacity = 10000

// NewHotStore returns an in-memory hot store with default capacity and no byte budget.
func NewHotStore() *HotStore {
	return NewHotStoreExt(defaultCapacity, 0)
}

// NewHotStoreExt returns an in-memory hot store capped at maxItems entries and,
// when maxBytes > 0, at a total value byte footprint.
func NewHotStoreExt(maxItems int, maxBytes int64) *HotStore {
	return &HotStore{
		lookup:   make(map[string]*entry, maxItems),
		recency:  newRecencyList[string](),
		maxItems: maxItems,
		maxBytes: maxBytes,
	}
}

func (c *HotStore) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delta := int64(len(value))
	if v, ok := c.lookup[key]; ok {
		delta -= int64(len(v.data))
	}
	if c.maxBytes > 0 && c.usedBytes+delta > c.maxBytes {
		return strata.Error{Code: strata.CapacityExhausted, Err: errStoreFull, UserData: key}
	}

	var exp time.Time
	if expiration > 0 {
		exp = strata.Now().Add(expiration)
	}
	if v, ok := c.lookup[key]; ok {
		v.data = value
		v.expiration = exp
		c.recency.unlink(v.dllNode)
		v.dllNode = c.recency.addToHead(key)
	} else {
		c.lookup[key] = &entry{data: value, expiration: exp, dllNode: c.recency.addToHead(key)}
	}
	c.usedBytes += delta

	// Evict LRU entries if over the item capacity.
	for len(c.lookup) > c.maxItems {
		id, ok := c.recency.removeTail()
		if !ok {
			break
		}
		c.dropLocked(id)
	}
	return nil
}

func (c *HotStore) Get(ctx context.Context, key string) (bool, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lookup[key]
	if !ok {
		return false, nil, nil
	}
	if !v.expiration.IsZero() && strata.Now().After(v.expiration) {
		c.recency.unlink(v.dllNode)
		c.dropLocked(key)
		return false, nil, nil
	}
	c.recency.unlink(v.dllNode)
	v.dllNode = c.recency.addToHead(key)
	return true, v.data, nil
}

func (c *HotStore) Remove(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		if v, ok := c.lookup[k]; ok {
			c.recency.unlink(v.dllNode)
			c.dropLocked(k)
		}
	}
	return nil
}

func (c *HotStore) ListKeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var r []string
	for n := c.recency.head; n != nil; n = n.next {
		if strings.HasPrefix(n.data, prefix) {
			r = append(r, n.data)
		}
	}
	return r, nil
}

func (c *HotStore) EstimateSize(ctx context.Context, keys []string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, k := range keys {
		if v, ok := c.lookup[k]; ok {
			total += int64(len(v.data))
		}
	}
	return total, nil
}

// Count returns the number of entries currently held.
func (c *HotStore) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lookup)
}

// dropLocked removes the key from the lookup index and its bytes from the
// running footprint. Caller holds the mutex and has unlinked the recency node.
func (c *HotStore) dropLocked(key string) {
	if v, ok := c.lookup[key]; ok {
		c.usedBytes -= int64(len(v.data))
		v.dllNode = nil
		delete(c.lookup, key)
	}
}
