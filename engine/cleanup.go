package engine

import (
	"context"
	log "log/slog"

	"github.com/sharedcode/strata"
)

const (
	phaseCleanupHot  = "cleanup_hot"
	phaseCleanupWarm = "cleanup_warm"
)

// cleanupHot enforces the hot tier budgets in three passes: TTL, then max
// item count, then max bytes, evicting oldest first. Snapshot records are
// skipped by the TTL pass because promotion, not eviction, is their exit;
// the count and byte caps are hard caps and apply to everything.
func (e *Engine) cleanupHot(ctx context.Context) (int64, []PhaseError) {
	e.ensureIndex(ctx)
	cfg := e.retention()
	now := strata.NowMilli()

	var evicted int64
	var errs []PhaseError

	cutoff := now - cfg.HotTTL.Milliseconds()
	for _, key := range e.index.olderThan(cutoff) {
		if namespace, _ := strata.SplitKey(key); namespace == strata.NamespaceSnapshot {
			continue
		}
		if err := e.evictHot(ctx, key); err != nil {
			errs = append(errs, phaseError(phaseCleanupHot, key, err))
			continue
		}
		evicted++
	}

	if over := e.index.count() - cfg.HotMaxItems; over > 0 {
		for _, key := range e.index.oldestFirst() {
			if over <= 0 {
				break
			}
			if err := e.evictHot(ctx, key); err != nil {
				errs = append(errs, phaseError(phaseCleanupHot, key, err))
				continue
			}
			evicted++
			over--
		}
	}

	if cfg.HotMaxBytes > 0 {
		keys := e.index.oldestFirst()
		total, err := e.hot.EstimateSize(ctx, keys)
		if err != nil {
			log.Warn("hot tier size estimate failed, using index sizes", "details", err)
			total = e.index.bytes()
		}
		for _, key := range keys {
			if total <= cfg.HotMaxBytes {
				break
			}
			size := e.index.sizeOf(key)
			if err := e.evictHot(ctx, key); err != nil {
				errs = append(errs, phaseError(phaseCleanupHot, key, err))
				continue
			}
			evicted++
			total -= size
		}
	}

	if evicted > 0 {
		// Space was freed; let local writes resume without waiting out the cooldown.
		e.brk.reset()
	}
	return evicted, errs
}

// cleanupWarm deletes synced records past the retention horizon, in fixed
// size batches. Unsynced records are never deleted at any age; the cold tier
// has not acknowledged them, so deleting would lose data.
func (e *Engine) cleanupWarm(ctx context.Context) (int64, []PhaseError) {
	cfg := e.retention()
	cutoff := strata.NowMilli() - cfg.WarmRetention.Milliseconds()

	var deleted int64
	var errs []PhaseError
	for {
		recs, err := e.warm.Query(ctx, strata.QueryFilter{
			SyncedOnly:      true,
			OlderThanMillis: cutoff,
			Limit:           cfg.CleanupBatchSize,
		})
		if err != nil {
			errs = append(errs, phaseError(phaseCleanupWarm, "", err))
			break
		}
		if len(recs) == 0 {
			break
		}
		keys := make([]string, len(recs))
		for i, r := range recs {
			keys[i] = r.IdentityKey
		}
		if err := e.warm.Delete(ctx, keys...); err != nil {
			errs = append(errs, phaseError(phaseCleanupWarm, "", err))
			break
		}
		deleted += int64(len(keys))
		if len(recs) < cfg.CleanupBatchSize {
			break
		}
	}

	if deleted > 0 {
		e.brk.reset()
	}
	return deleted, errs
}
