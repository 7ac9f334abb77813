package strata

import (
	"context"
	"time"
)

// HotStore is the fastest, most size-constrained tier. It stores opaque byte
// values keyed by namespaced keys and is the target of every fresh write.
// Implementations must return typed errors (Error w/ CapacityExhausted code)
// on storage-full conditions so the circuit breaker can classify them without
// string matching.
type HotStore interface {
	// Get fetches the value for key. First return is false when key is not found.
	Get(ctx context.Context, key string) (bool, []byte, error)
	// Set stores value under key. expiration <= 0 means no expiry; the cleanup
	// enforcer owns hot-tier retention either way.
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	// Remove deletes the given keys, ignoring ones that are not present.
	Remove(ctx context.Context, keys ...string) error
	// ListKeysWithPrefix enumerates keys sharing the given prefix.
	ListKeysWithPrefix(ctx context.Context, prefix string) ([]string, error)
	// EstimateSize returns the approximate byte footprint of the given keys' values.
	EstimateSize(ctx context.Context, keys []string) (int64, error)
}

// QueryFilter narrows a warm-tier query. Zero value matches all records.
type QueryFilter struct {
	// UnsyncedOnly selects records not yet acknowledged by the cold tier.
	UnsyncedOnly bool
	// SyncedOnly selects records already acknowledged by the cold tier.
	SyncedOnly bool
	// OlderThanMillis selects records whose Timestamp < this epoch ms value.
	OlderThanMillis int64
	// Keys restricts the result to the given identity keys.
	Keys []string
	// Limit caps the number of returned records; 0 means no cap.
	Limit int
	// Expression is an optional CEL expression evaluated against each record
	// (variable "rec", a map of the record's fields). Applied after the
	// structured predicates above.
	Expression string
}

// WarmStore is the embedded, queryable middle tier used for medium-term
// retention and filtering.
type WarmStore interface {
	// Query returns the records matching filter.
	Query(ctx context.Context, filter QueryFilter) ([]Record, error)
	// Create inserts a record. Fails if the identity key already exists;
	// callers route conflicting writes through the conflict resolver + Update.
	Create(ctx context.Context, r Record) error
	// Update applies mutate to the record stored under identityKey and persists
	// the result. Returns false if no such record exists.
	Update(ctx context.Context, identityKey string, mutate func(*Record)) (bool, error)
	// Delete removes records by identity key, ignoring missing ones.
	Delete(ctx context.Context, identityKeys ...string) error
}

// BatchOptions tunes a cold-tier batched save.
type BatchOptions struct {
	// BatchSize caps how many records go out per request; 0 uses the backend default.
	BatchSize int
	// Compression gzips payloads in flight when the backend supports it.
	Compression bool
}

// ColdStore is the authoritative, network-backed remote tier.
type ColdStore interface {
	// Save persists one record, overwriting any older version.
	Save(ctx context.Context, r Record) error
	// SaveBatch persists records in batches. Implementations may parallelize;
	// an error means at least one record was not acknowledged.
	SaveBatch(ctx context.Context, records []Record, opts BatchOptions) error
	// Fetch returns the record stored under identityKey. First return is false
	// when no such record exists.
	Fetch(ctx context.Context, identityKey string) (bool, Record, error)
	// Query returns up to limit records whose Timestamp falls within rng.
	Query(ctx context.Context, rng TimeRange, limit int) ([]Record, error)
}
