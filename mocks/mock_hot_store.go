package mocks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sharedcode/strata"
)

// HotStore is an in-memory strata.HotStore with failure and capacity
// injection for tests.
type HotStore struct {
	mux    sync.Mutex
	lookup map[string][]byte

	// MaxBytes, when > 0, makes Set fail with a CapacityExhausted error once
	// the stored bytes would exceed it.
	MaxBytes int64
	// FailSets / FailGets make every call fail with ErrInjected.
	FailSets bool
	FailGets bool
}

// ErrInjected is the error returned by mocks with failure injection enabled.
var ErrInjected = errors.New("injected failure")

// NewHotStore returns an empty in-memory hot store.
func NewHotStore() *HotStore {
	return &HotStore{lookup: make(map[string][]byte)}
}

func (m *HotStore) Get(ctx context.Context, key string) (bool, []byte, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.FailGets {
		return false, nil, ErrInjected
	}
	v, ok := m.lookup[key]
	if !ok {
		// Real client returns (false, nil, nil) when key not found.
		return false, nil, nil
	}
	return true, v, nil
}

func (m *HotStore) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.FailSets {
		return ErrInjected
	}
	if m.MaxBytes > 0 {
		var total int64
		for k, v := range m.lookup {
			if k != key {
				total += int64(len(v))
			}
		}
		if total+int64(len(value)) > m.MaxBytes {
			return strata.Error{Code: strata.CapacityExhausted, Err: errors.New("mock store is full"), UserData: key}
		}
	}
	m.lookup[key] = append([]byte(nil), value...)
	return nil
}

func (m *HotStore) Remove(ctx context.Context, keys ...string) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	for _, k := range keys {
		delete(m.lookup, k)
	}
	return nil
}

func (m *HotStore) ListKeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	var out []string
	for k := range m.lookup {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *HotStore) EstimateSize(ctx context.Context, keys []string) (int64, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	var total int64
	for _, k := range keys {
		total += int64(len(m.lookup[k]))
	}
	return total, nil
}

// Len reports the stored key count.
func (m *HotStore) Len() int {
	m.mux.Lock()
	defer m.mux.Unlock()
	return len(m.lookup)
}

// Has reports whether key is stored.
func (m *HotStore) Has(key string) bool {
	m.mux.Lock()
	defer m.mux.Unlock()
	_, ok := m.lookup[key]
	return ok
}
