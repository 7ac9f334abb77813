package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/sharedcode/strata"
)

// QueueStore is an in-memory strata.QueueStore.
type QueueStore struct {
	mux    sync.Mutex
	lookup map[string]strata.QueueItem

	// Broken makes every call fail with ErrInjected, simulating a corrupt
	// structured store so the queue's fallback path carries the load.
	Broken bool
}

// NewQueueStore returns an empty in-memory queue store.
func NewQueueStore() *QueueStore {
	return &QueueStore{lookup: make(map[string]strata.QueueItem)}
}

func (m *QueueStore) Append(ctx context.Context, item strata.QueueItem) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.Broken {
		return ErrInjected
	}
	m.lookup[item.ID] = item
	return nil
}

func (m *QueueStore) All(ctx context.Context) ([]strata.QueueItem, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.Broken {
		return nil, ErrInjected
	}
	out := make([]strata.QueueItem, 0, len(m.lookup))
	for _, it := range m.lookup {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnqueuedAt < out[j].EnqueuedAt })
	return out, nil
}

func (m *QueueStore) Remove(ctx context.Context, ids ...string) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.Broken {
		return ErrInjected
	}
	for _, id := range ids {
		delete(m.lookup, id)
	}
	return nil
}

// Len reports the pending item count.
func (m *QueueStore) Len() int {
	m.mux.Lock()
	defer m.mux.Unlock()
	return len(m.lookup)
}
