package engine

import (
	"context"
	log "log/slog"

	"github.com/sharedcode/strata"
	"github.com/sharedcode/strata/encoding"
)

// Hybrid access layer. Reads cascade across tiers and repair the faster ones
// on the way back; writes go straight through to cold with a local fallback.
// Nothing in here returns an error to the caller: callers observe stale or
// default data at worst.

// Get fetches the record stored under the namespaced key. Snapshot-family
// keys cascade hot, warm, cold; other namespaces use the two-tier hot, cold
// path. The first hit short-circuits and backfills the skipped faster tiers.
// A total miss or failure returns def.
func (e *Engine) Get(ctx context.Context, key string, def strata.Record) strata.Record {
	namespace, identityKey := strata.SplitKey(key)
	key = strata.FormatKey(namespace, identityKey)

	if found, r := e.readHot(ctx, key); found {
		return r
	}

	if namespace == strata.NamespaceSnapshot {
		if found, r := e.readWarm(ctx, identityKey); found {
			e.writeHot(ctx, key, r)
			return r
		}
	}

	found, r, err := e.cold.Fetch(ctx, identityKey)
	if err != nil {
		log.Warn("cold tier read failed", "key", key, "details", err)
		return def
	}
	if !found {
		return def
	}
	// Read repair: a cold hit means the faster tiers lost this record.
	e.writeHot(ctx, key, r)
	if namespace == strata.NamespaceSnapshot {
		if _, err := e.writeWarm(ctx, r); err != nil {
			log.Warn("warm tier backfill failed", "key", key, "details", err)
		}
	}
	return r
}

// saveRecord is the shared write path: straight through to cold, mirror to
// the local tiers asynchronously on success, fall back to synchronous local
// writes plus a sync queue entry on cold failure.
func (e *Engine) saveRecord(ctx context.Context, namespace string, r strata.Record) {
	if err := r.Validate(); err != nil {
		log.Warn("dropping malformed record", "details", err)
		return
	}
	key := strata.FormatKey(namespace, r.IdentityKey)
	now := strata.NowMilli()
	if r.Timestamp == 0 {
		r.Timestamp = now
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	if err := e.cold.Save(ctx, r); err == nil {
		r.Synced = true
		r.SyncedAt = strata.NowMilli()
		rec := r
		e.mirrorAsync(func() error {
			// Best effort; mirror failures are logged, never surfaced.
			mctx := context.Background()
			e.writeHot(mctx, key, rec)
			if namespace == strata.NamespaceSnapshot {
				if _, err := e.writeWarm(mctx, rec); err != nil {
					log.Warn("warm tier mirror failed", "key", key, "details", err)
				}
			}
			return nil
		})
		return
	} else {
		log.Warn("cold tier write failed, falling back to local tiers", "key", key, "details", err)
	}

	e.writeHot(ctx, key, r)
	if namespace == strata.NamespaceSnapshot {
		if _, err := e.writeWarm(ctx, r); err != nil {
			log.Warn("warm tier write failed", "key", key, "details", err)
		}
	}
	ba, err := encoding.DefaultMarshaler.Marshal(r)
	if err != nil {
		log.Warn("can't serialize record for sync queue", "key", key, "details", err)
		return
	}
	if err := e.queue.enqueue(ctx, strata.QueueItem{Key: key, Payload: ba}); err != nil {
		log.Warn("sync queue enqueue failed", "key", key, "details", err)
	}
}

func (e *Engine) readHot(ctx context.Context, key string) (bool, strata.Record) {
	found, ba, err := e.hot.Get(ctx, key)
	if err != nil {
		log.Warn("hot tier read failed", "key", key, "details", err)
		return false, strata.Record{}
	}
	if !found {
		return false, strata.Record{}
	}
	var r strata.Record
	if err := encoding.DefaultMarshaler.Unmarshal(ba, &r); err != nil {
		log.Warn("hot tier holds a corrupt record, evicting", "key", key, "details", err)
		e.evictHot(ctx, key)
		return false, strata.Record{}
	}
	return true, r
}

func (e *Engine) readWarm(ctx context.Context, identityKey string) (bool, strata.Record) {
	recs, err := e.warm.Query(ctx, strata.QueryFilter{Keys: []string{identityKey}, Limit: 1})
	if err != nil {
		log.Warn("warm tier read failed", "identity_key", identityKey, "details", err)
		return false, strata.Record{}
	}
	if len(recs) == 0 {
		return false, strata.Record{}
	}
	return true, recs[0]
}

// writeHot stores the record in the hot tier and tracks it in the hot key
// index. No-ops while the circuit breaker is tripped; trips it on capacity
// exhaustion.
func (e *Engine) writeHot(ctx context.Context, key string, r strata.Record) {
	if !e.brk.allow() {
		return
	}
	ba, err := encoding.DefaultMarshaler.Marshal(r)
	if err != nil {
		log.Warn("can't serialize record for hot tier", "key", key, "details", err)
		return
	}
	if err := e.hot.Set(ctx, key, ba, e.retention().HotTTL); err != nil {
		if !e.brk.observe(err) {
			log.Warn("hot tier write failed", "key", key, "details", err)
		}
		return
	}
	e.index.put(key, r.Timestamp, int64(len(ba)))
}

// writeWarm upserts via Merge. Returns false with a nil error when the write
// was skipped because the breaker is tripped, so migration leaves the record
// where it is instead of flagging an error.
func (e *Engine) writeWarm(ctx context.Context, r strata.Record) (bool, error) {
	if !e.brk.allow() {
		return false, nil
	}
	found, err := e.warm.Update(ctx, r.IdentityKey, func(existing *strata.Record) {
		*existing = Merge(*existing, r)
	})
	if err == nil && !found {
		err = e.warm.Create(ctx, r)
	}
	if err != nil {
		e.brk.observe(err)
		return false, err
	}
	return true, nil
}

func (e *Engine) evictHot(ctx context.Context, keys ...string) error {
	if err := e.hot.Remove(ctx, keys...); err != nil {
		return err
	}
	e.index.remove(keys...)
	return nil
}
