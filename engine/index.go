package engine

import (
	"sort"
	"sync"

	"github.com/sharedcode/strata"
)

type hotEntry struct {
	timestamp int64
	size      int64
}

// hotIndex tracks what the engine believes lives in the hot tier: per key, the
// record timestamp and serialized size. Migration and cleanup consult it
// instead of fetching every hot value each cycle. Entries can go stale when
// the hot backend evicts on its own; consumers prune on a miss.
type hotIndex struct {
	mux     sync.Mutex
	entries map[string]hotEntry
	ready   bool
}

func newHotIndex() *hotIndex {
	return &hotIndex{entries: make(map[string]hotEntry)}
}

func (x *hotIndex) put(key string, timestamp, size int64) {
	x.mux.Lock()
	x.entries[key] = hotEntry{timestamp: timestamp, size: size}
	x.mux.Unlock()
}

func (x *hotIndex) remove(keys ...string) {
	x.mux.Lock()
	for _, k := range keys {
		delete(x.entries, k)
	}
	x.mux.Unlock()
}

func (x *hotIndex) count() int {
	x.mux.Lock()
	defer x.mux.Unlock()
	return len(x.entries)
}

func (x *hotIndex) bytes() int64 {
	x.mux.Lock()
	defer x.mux.Unlock()
	var total int64
	for _, e := range x.entries {
		total += e.size
	}
	return total
}

// olderThan returns keys whose timestamp is strictly below cutoff, oldest
// first.
func (x *hotIndex) olderThan(cutoff int64) []string {
	return x.selectKeys(func(e hotEntry) bool { return e.timestamp < cutoff })
}

// oldestFirst returns all keys ordered by timestamp ascending.
func (x *hotIndex) oldestFirst() []string {
	return x.selectKeys(func(hotEntry) bool { return true })
}

func (x *hotIndex) selectKeys(match func(hotEntry) bool) []string {
	x.mux.Lock()
	picked := make([]strata.KeyValuePair[string, int64], 0, len(x.entries))
	for k, e := range x.entries {
		if match(e) {
			picked = append(picked, strata.KeyValuePair[string, int64]{Key: k, Value: e.timestamp})
		}
	}
	x.mux.Unlock()

	sort.Slice(picked, func(i, j int) bool { return picked[i].Value < picked[j].Value })
	out := make([]string, len(picked))
	for i, p := range picked {
		out[i] = p.Key
	}
	return out
}

func (x *hotIndex) sizeOf(key string) int64 {
	x.mux.Lock()
	defer x.mux.Unlock()
	return x.entries[key].size
}

func (x *hotIndex) isReady() bool {
	x.mux.Lock()
	defer x.mux.Unlock()
	return x.ready
}

func (x *hotIndex) markReady() {
	x.mux.Lock()
	x.ready = true
	x.mux.Unlock()
}
