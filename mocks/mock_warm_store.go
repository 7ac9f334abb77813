package mocks

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/sharedcode/strata"
	"github.com/sharedcode/strata/cel"
)

// WarmStore is an in-memory strata.WarmStore. Query honors the structured
// predicates and the CEL expression the same way the sqlite store does.
type WarmStore struct {
	mux    sync.Mutex
	lookup map[string]strata.Record

	// FailWrites makes Create/Update/Delete fail with ErrInjected.
	FailWrites bool
	// Full makes writes fail with a CapacityExhausted error.
	Full bool
}

// NewWarmStore returns an empty in-memory warm store.
func NewWarmStore() *WarmStore {
	return &WarmStore{lookup: make(map[string]strata.Record)}
}

func (m *WarmStore) writeErr() error {
	if m.Full {
		return strata.Error{Code: strata.CapacityExhausted, Err: errors.New("mock store is full")}
	}
	if m.FailWrites {
		return ErrInjected
	}
	return nil
}

func (m *WarmStore) Create(ctx context.Context, r strata.Record) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	if err := m.writeErr(); err != nil {
		return err
	}
	if _, ok := m.lookup[r.IdentityKey]; ok {
		return errors.New("record already exists")
	}
	m.lookup[r.IdentityKey] = r
	return nil
}

func (m *WarmStore) Update(ctx context.Context, identityKey string, mutate func(*strata.Record)) (bool, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if err := m.writeErr(); err != nil {
		return false, err
	}
	r, ok := m.lookup[identityKey]
	if !ok {
		return false, nil
	}
	mutate(&r)
	m.lookup[identityKey] = r
	return true, nil
}

func (m *WarmStore) Delete(ctx context.Context, identityKeys ...string) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	if err := m.writeErr(); err != nil {
		return err
	}
	for _, k := range identityKeys {
		delete(m.lookup, k)
	}
	return nil
}

func (m *WarmStore) Query(ctx context.Context, filter strata.QueryFilter) ([]strata.Record, error) {
	m.mux.Lock()
	recs := make([]strata.Record, 0, len(m.lookup))
	for _, r := range m.lookup {
		recs = append(recs, r)
	}
	m.mux.Unlock()

	sort.Slice(recs, func(i, j int) bool { return recs[i].Timestamp < recs[j].Timestamp })

	var evaluator *cel.Evaluator
	if filter.Expression != "" {
		var err error
		evaluator, err = cel.NewEvaluator(filter.Expression)
		if err != nil {
			return nil, err
		}
	}

	keySet := map[string]bool{}
	for _, k := range filter.Keys {
		keySet[k] = true
	}

	var out []strata.Record
	for _, r := range recs {
		if filter.UnsyncedOnly && r.Synced {
			continue
		}
		if filter.SyncedOnly && !r.Synced {
			continue
		}
		if filter.OlderThanMillis > 0 && r.Timestamp >= filter.OlderThanMillis {
			continue
		}
		if len(keySet) > 0 && !keySet[r.IdentityKey] {
			continue
		}
		if evaluator != nil {
			ok, err := evaluator.Evaluate(recordFields(r))
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, r)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func recordFields(r strata.Record) map[string]any {
	return map[string]any{
		"identity_key": r.IdentityKey,
		"version":      r.Version,
		"timestamp":    r.Timestamp,
		"owner_id":     r.OwnerID,
		"synced":       r.Synced,
		"synced_at":    r.SyncedAt,
		"deleted":      r.Deleted,
		"created_at":   r.CreatedAt,
		"updated_at":   r.UpdatedAt,
	}
}

// Len reports the stored record count.
func (m *WarmStore) Len() int {
	m.mux.Lock()
	defer m.mux.Unlock()
	return len(m.lookup)
}

// Record returns the stored record for identityKey, if any.
func (m *WarmStore) Record(identityKey string) (strata.Record, bool) {
	m.mux.Lock()
	defer m.mux.Unlock()
	r, ok := m.lookup[identityKey]
	return r, ok
}

// Put seeds a record directly, bypassing merge.
func (m *WarmStore) Put(r strata.Record) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.lookup[r.IdentityKey] = r
}
