package engine

import (
	"context"
	log "log/slog"

	"github.com/sharedcode/strata"
	"github.com/sharedcode/strata/encoding"
)

const (
	phaseHotToWarm  = "hot_to_warm"
	phaseWarmToCold = "warm_to_cold"
)

// ensureIndex rebuilds the hot key index from the hot store when it has not
// been populated yet (fresh start over a pre-existing hot backend). Corrupt
// entries are evicted on sight.
func (e *Engine) ensureIndex(ctx context.Context) {
	if e.index.isReady() {
		return
	}
	keys, err := e.hot.ListKeysWithPrefix(ctx, "")
	if err != nil {
		log.Warn("can't enumerate hot tier keys, index rebuild deferred", "details", err)
		return
	}
	for _, key := range keys {
		if key == fallbackKey {
			continue
		}
		found, ba, err := e.hot.Get(ctx, key)
		if err != nil || !found {
			continue
		}
		var r strata.Record
		if err := encoding.DefaultMarshaler.Unmarshal(ba, &r); err != nil {
			log.Warn("hot tier holds a corrupt record, evicting", "key", key, "details", err)
			e.evictHot(ctx, key)
			continue
		}
		e.index.put(key, r.Timestamp, int64(len(ba)))
	}
	e.index.markReady()
}

// hotToWarm promotes snapshot-family records older than HotTTL into the warm
// tier. A record leaves the hot tier only after its warm write succeeded, so
// a failed cycle retries the same records next time. Stale index entries
// (hot backend evicted on its own) are pruned as they are found.
func (e *Engine) hotToWarm(ctx context.Context) (int64, []PhaseError) {
	e.ensureIndex(ctx)
	cutoff := strata.NowMilli() - e.retention().HotTTL.Milliseconds()

	var moved int64
	var errs []PhaseError
	for _, key := range e.index.olderThan(cutoff) {
		namespace, identityKey := strata.SplitKey(key)
		if namespace != strata.NamespaceSnapshot {
			// Two-tier namespaces never promote; cleanup owns their eviction.
			continue
		}
		found, ba, err := e.hot.Get(ctx, key)
		if err != nil {
			errs = append(errs, phaseError(phaseHotToWarm, identityKey, err))
			continue
		}
		if !found {
			e.index.remove(key)
			continue
		}
		var r strata.Record
		if err := encoding.DefaultMarshaler.Unmarshal(ba, &r); err != nil {
			log.Warn("hot tier holds a corrupt record, evicting", "key", key, "details", err)
			e.evictHot(ctx, key)
			continue
		}
		wrote, err := e.writeWarm(ctx, r)
		if err != nil {
			errs = append(errs, phaseError(phaseHotToWarm, identityKey, err))
			continue
		}
		if !wrote {
			// Breaker tripped; leave the record hot and try again next cycle.
			continue
		}
		if err := e.evictHot(ctx, key); err != nil {
			errs = append(errs, phaseError(phaseHotToWarm, identityKey, err))
			continue
		}
		moved++
	}
	return moved, errs
}

// warmToCold uploads unsynced warm records older than WarmTTL, in batches,
// falling back to per-record saves when a batch fails so one poison record
// can't block the rest. Records are marked synced only after the cold tier
// acknowledged them, and only when their version is still the uploaded one.
func (e *Engine) warmToCold(ctx context.Context) (int64, []PhaseError) {
	opts := e.options()
	cutoff := strata.NowMilli() - opts.Retention.WarmTTL.Milliseconds()
	recs, err := e.warm.Query(ctx, strata.QueryFilter{
		UnsyncedOnly:    true,
		OlderThanMillis: cutoff,
	})
	if err != nil {
		return 0, []PhaseError{phaseError(phaseWarmToCold, "", err)}
	}

	batchOpts := strata.BatchOptions{BatchSize: opts.SyncBatchSize, Compression: opts.Compression}
	var synced int64
	var errs []PhaseError
	for i := 0; i < len(recs); i += opts.SyncBatchSize {
		end := i + opts.SyncBatchSize
		if end > len(recs) {
			end = len(recs)
		}
		batch := recs[i:end]
		if err := e.cold.SaveBatch(ctx, batch, batchOpts); err != nil {
			log.Warn("cold tier batch upload failed, retrying records individually",
				"batch_size", len(batch), "details", err)
			for _, r := range batch {
				if err := e.cold.Save(ctx, r); err != nil {
					errs = append(errs, phaseError(phaseWarmToCold, r.IdentityKey, err))
					continue
				}
				synced += e.markSynced(ctx, r, &errs)
			}
			continue
		}
		for _, r := range batch {
			synced += e.markSynced(ctx, r, &errs)
		}
	}
	return synced, errs
}

// markSynced flips the warm record's sync flag for the uploaded version.
// Returns 1 when the record counts as synced this cycle.
func (e *Engine) markSynced(ctx context.Context, uploaded strata.Record, errs *[]PhaseError) int64 {
	now := strata.NowMilli()
	_, err := e.warm.Update(ctx, uploaded.IdentityKey, func(r *strata.Record) {
		// A concurrent write may have bumped the record mid-upload; its new
		// content is not on the cold tier yet.
		if r.Version == uploaded.Version && r.Timestamp == uploaded.Timestamp {
			r.Synced = true
			r.SyncedAt = now
		}
	})
	if err != nil {
		*errs = append(*errs, phaseError(phaseWarmToCold, uploaded.IdentityKey, err))
		return 0
	}
	return 1
}
