package strata

import (
	"encoding/json"
	"strings"
	"time"
)

// Now returns the current time and can be "synthesized" if needed, e.g. in tests
// that want to age records without sleeping.
var Now = time.Now

// NowMilli returns Now as epoch milliseconds, the engine's logical time unit.
func NowMilli() int64 {
	return Now().UnixMilli()
}

// Record is the unit of storage. It is identified by IdentityKey, a caller
// supplied content fingerprint that stays stable for one logical entity across
// all three tiers. The engine never interprets Payload beyond carrying it
// through merge.
type Record struct {
	// IdentityKey is the caller-supplied content fingerprint, unique per logical entity.
	IdentityKey string `json:"identity_key"`
	// Version is a monotonically non-decreasing integer set by the writer.
	Version int64 `json:"version"`
	// Timestamp is the logical write time in epoch milliseconds.
	Timestamp int64 `json:"timestamp"`
	// Payload is an opaque serialized blob owned by the caller.
	Payload json.RawMessage `json:"payload,omitempty"`
	// OwnerID optionally identifies the originating user or session.
	OwnerID string `json:"owner_id,omitempty"`
	// Synced is true once the cold tier holds a version >= this record's version.
	Synced bool `json:"synced"`
	// SyncedAt is the epoch ms of the last successful cold acknowledgment, 0 if never.
	SyncedAt int64 `json:"synced_at,omitempty"`
	// Deleted marks the record as a tombstone, a pending deletion rather than live data.
	Deleted bool `json:"deleted,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// IsTombstone reports whether this record represents a pending deletion.
func (r Record) IsTombstone() bool {
	return r.Deleted
}

// Validate performs the basic shape checks a record must pass before the engine
// will store or queue it. A failing record is skipped with a warning, never retried.
func (r Record) Validate() error {
	if r.IdentityKey == "" {
		return Error{Code: InvalidRecord, Err: errEmptyIdentityKey}
	}
	if r.Version < 0 {
		return Error{Code: InvalidRecord, Err: errNegativeVersion, UserData: r.IdentityKey}
	}
	if len(r.Payload) > 0 && !json.Valid(r.Payload) {
		return Error{Code: InvalidRecord, Err: errMalformedPayload, UserData: r.IdentityKey}
	}
	return nil
}

// TimeRange bounds a cold/warm tier range query on Record.Timestamp.
// Zero values mean unbounded on that side.
type TimeRange struct {
	FromMillis int64
	ToMillis   int64
}

// Contains reports whether ts falls within the range.
func (tr TimeRange) Contains(ts int64) bool {
	if tr.FromMillis > 0 && ts < tr.FromMillis {
		return false
	}
	if tr.ToMillis > 0 && ts > tr.ToMillis {
		return false
	}
	return true
}

// Key namespaces. Snapshot-family keys get the full three-tier cascade; every
// other namespace uses the simpler cold-then-hot path.
const (
	NamespaceSnapshot = "snapshot"
	NamespaceKV       = "kv"
)

// FormatKey joins a namespace and an identity key into a tier store key.
func FormatKey(namespace, identityKey string) string {
	return namespace + "/" + identityKey
}

// SplitKey splits a tier store key into its namespace and identity key.
// Keys without a namespace separator map to the KV namespace.
func SplitKey(key string) (namespace, identityKey string) {
	if i := strings.IndexByte(key, '/'); i >= 0 {
		return key[:i], key[i+1:]
	}
	return NamespaceKV, key
}
