package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/sharedcode/strata"
)

// ColdStore is an in-memory strata.ColdStore. Failure injection simulates an
// unreachable remote tier; FailNextSaves lets a test fail the first N saves
// then recover, the intermittent-connectivity shape the engine is built for.
type ColdStore struct {
	mux    sync.Mutex
	lookup map[string]strata.Record

	// Unavailable makes every call fail with ErrInjected.
	Unavailable bool
	// FailNextSaves fails that many Save calls before letting writes through.
	FailNextSaves int
	// FailBatches makes SaveBatch fail while leaving Save working, to force
	// the per-record fallback path.
	FailBatches bool

	// SaveCount tallies Save calls, including failed ones.
	SaveCount int
}

// NewColdStore returns an empty in-memory cold store.
func NewColdStore() *ColdStore {
	return &ColdStore{lookup: make(map[string]strata.Record)}
}

func (m *ColdStore) Save(ctx context.Context, r strata.Record) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.SaveCount++
	if m.Unavailable {
		return ErrInjected
	}
	if m.FailNextSaves > 0 {
		m.FailNextSaves--
		return ErrInjected
	}
	m.lookup[r.IdentityKey] = r
	return nil
}

func (m *ColdStore) SaveBatch(ctx context.Context, records []strata.Record, opts strata.BatchOptions) error {
	m.mux.Lock()
	unavailable := m.Unavailable || m.FailBatches
	m.mux.Unlock()
	if unavailable {
		return ErrInjected
	}
	for _, r := range records {
		if err := m.Save(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (m *ColdStore) Fetch(ctx context.Context, identityKey string) (bool, strata.Record, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.Unavailable {
		return false, strata.Record{}, ErrInjected
	}
	r, ok := m.lookup[identityKey]
	if !ok {
		return false, strata.Record{}, nil
	}
	r.Synced = true
	return true, r, nil
}

func (m *ColdStore) Query(ctx context.Context, rng strata.TimeRange, limit int) ([]strata.Record, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.Unavailable {
		return nil, ErrInjected
	}
	var out []strata.Record
	for _, r := range m.lookup {
		if rng.Contains(r.Timestamp) {
			r.Synced = true
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len reports the stored record count.
func (m *ColdStore) Len() int {
	m.mux.Lock()
	defer m.mux.Unlock()
	return len(m.lookup)
}

// Record returns the stored record for identityKey, if any.
func (m *ColdStore) Record(identityKey string) (strata.Record, bool) {
	m.mux.Lock()
	defer m.mux.Unlock()
	r, ok := m.lookup[identityKey]
	return r, ok
}

// Put seeds a record directly.
func (m *ColdStore) Put(r strata.Record) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.lookup[r.IdentityKey] = r
}
