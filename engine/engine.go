// Package engine orchestrates the three storage tiers: cascading reads,
// write-through with local fallback, timer-driven promotion and retention,
// the durable write-behind sync queue, and per-cycle telemetry.
package engine

import (
	"context"
	log "log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sharedcode/strata"
	"github.com/sharedcode/strata/encoding"
)

// Engine is the record facade. Construct with New, then Start to run the
// cycle timer; every facade method is safe for concurrent use.
type Engine struct {
	hot   strata.HotStore
	warm  strata.WarmStore
	cold  strata.ColdStore
	queue *syncQueue
	index *hotIndex
	brk   *breaker
	tel   *telemetry

	optsMux sync.Mutex
	opts    Options

	// mux guards the scheduler/mirror lifecycle fields below.
	mux      sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	mirror   chan func() error
	mirrorEG *errgroup.Group
	restart  chan struct{}

	// runMux serializes cycles; TryLock doubles as the re-entrancy guard.
	runMux sync.Mutex
}

// New wires an Engine over the given tier stores. queueStore may be nil; the
// sync queue then runs on its hot-store fallback list alone.
func New(hot strata.HotStore, warm strata.WarmStore, cold strata.ColdStore, queueStore strata.QueueStore, opts Options) *Engine {
	opts = fillDefaults(opts)
	e := &Engine{
		hot:     hot,
		warm:    warm,
		cold:    cold,
		index:   newHotIndex(),
		brk:     newBreaker(opts.BreakerCooldown, opts.SkipLogInterval),
		tel:     &telemetry{},
		opts:    opts,
		restart: make(chan struct{}, 1),
	}
	e.queue = newSyncQueue(queueStore, hot, opts.QueueKeepLimit, opts.MaxDeliveryAttempts)
	e.queue.register(strata.NamespaceSnapshot, e.deliverSnapshot)
	e.queue.register(strata.NamespaceKV, e.deliverKV)
	return e
}

// SaveRecord stores a snapshot-family record. Never returns an error: a
// malformed record is dropped with a warning, tier failures degrade to the
// sync queue.
func (e *Engine) SaveRecord(ctx context.Context, r strata.Record) {
	e.saveRecord(ctx, strata.NamespaceSnapshot, r)
}

// Set stores an opaque payload under a key-value namespace key. Version is
// bumped from the current hot copy when one exists.
func (e *Engine) Set(ctx context.Context, key string, payload []byte) {
	namespace, identityKey := strata.SplitKey(key)
	if namespace == strata.NamespaceSnapshot {
		log.Warn("Set used with a snapshot key; use SaveRecord", "key", key)
		return
	}
	r := strata.Record{
		IdentityKey: identityKey,
		Version:     1,
		Timestamp:   strata.NowMilli(),
		Payload:     payload,
	}
	found, existing := e.readHot(ctx, strata.FormatKey(namespace, identityKey))
	if !found {
		// The hot copy may have been evicted; the cold tier still knows the
		// latest version, and restarting at 1 would regress it there.
		var err error
		found, existing, err = e.cold.Fetch(ctx, identityKey)
		if err != nil {
			log.Warn("cold tier version lookup failed", "key", key, "details", err)
			found = false
		}
	}
	if found {
		r.Version = existing.Version + 1
		r.CreatedAt = existing.CreatedAt
	}
	e.saveRecord(ctx, namespace, r)
}

// GetRecords returns up to limit records in the time range, newest first,
// preferring the authoritative cold tier and falling back to the local tiers
// when it is unreachable.
func (e *Engine) GetRecords(ctx context.Context, rng strata.TimeRange, limit int) []strata.Record {
	var recs []strata.Record
	err := strata.Retry(ctx, func(ctx context.Context) error {
		var qerr error
		recs, qerr = e.cold.Query(ctx, rng, limit)
		return strata.RetryableError(qerr)
	}, nil)
	if err == nil {
		return recs
	}
	log.Warn("cold tier range query failed, serving local records", "details", err)
	return e.localRecords(ctx, rng, limit)
}

// ExportAll serializes every known record as one JSON array, preferring the
// cold tier's authoritative view and concatenating the local tiers when cold
// is unreachable.
func (e *Engine) ExportAll(ctx context.Context) ([]byte, error) {
	var recs []strata.Record
	err := strata.Retry(ctx, func(ctx context.Context) error {
		var qerr error
		recs, qerr = e.cold.Query(ctx, strata.TimeRange{}, 0)
		return strata.RetryableError(qerr)
	}, nil)
	if err != nil {
		log.Warn("cold tier export failed, exporting local records", "details", err)
		recs = e.localRecords(ctx, strata.TimeRange{}, 0)
	}
	return encoding.DefaultMarshaler.Marshal(recs)
}

// localRecords merges warm and hot views, deduping by identity key through
// Merge so the export resolves conflicts the same way the tiers do.
func (e *Engine) localRecords(ctx context.Context, rng strata.TimeRange, limit int) []strata.Record {
	byKey := map[string]strata.Record{}
	warmRecs, err := e.warm.Query(ctx, strata.QueryFilter{})
	if err != nil {
		log.Warn("warm tier scan failed during local aggregation", "details", err)
	}
	for _, r := range warmRecs {
		byKey[r.IdentityKey] = r
	}
	e.ensureIndex(ctx)
	for _, key := range e.index.oldestFirst() {
		if found, r := e.readHot(ctx, key); found {
			if existing, ok := byKey[r.IdentityKey]; ok {
				r = Merge(existing, r)
			}
			byKey[r.IdentityKey] = r
		}
	}
	out := make([]strata.Record, 0, len(byKey))
	for _, r := range byKey {
		if rng.Contains(r.Timestamp) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ConfigureRetention applies new retention settings. An interval change
// restarts the cycle timer.
func (e *Engine) ConfigureRetention(cfg RetentionConfig) {
	e.optsMux.Lock()
	prev := e.opts.Retention.MigrationInterval
	merged := e.opts
	merged.Retention = cfg
	e.opts = fillDefaults(merged)
	changed := e.opts.Retention.MigrationInterval != prev
	e.optsMux.Unlock()

	if changed {
		select {
		case e.restart <- struct{}{}:
		default:
		}
	}
}

// RegisterTelemetrySink adds a per-cycle snapshot consumer.
func (e *Engine) RegisterTelemetrySink(sink TelemetrySink) {
	e.tel.register(sink)
}

// PerformCleanup runs the retention passes immediately, outside the timer.
func (e *Engine) PerformCleanup(ctx context.Context) (hotCleaned, warmCleaned int) {
	var c CleanupMetrics
	var errs []PhaseError
	c.CleanedHotCount, errs = e.cleanupHot(ctx)
	c.Errors = append(c.Errors, errs...)
	c.CleanedWarmCount, errs = e.cleanupWarm(ctx)
	c.Errors = append(c.Errors, errs...)
	e.tel.accumulate(MigrationMetrics{}, c)
	return int(c.CleanedHotCount), int(c.CleanedWarmCount)
}

// GetMigrationMetrics returns a copy of the cumulative migration counters.
func (e *Engine) GetMigrationMetrics() MigrationMetrics {
	return e.tel.migrationCopy()
}

// GetCleanupMetrics returns a copy of the cumulative cleanup counters.
func (e *Engine) GetCleanupMetrics() CleanupMetrics {
	return e.tel.cleanupCopy()
}

// Shutdown stops the cycle timer, waits for in-flight work and attempts one
// final queue drain so pending writes reach the cold tier when it is up.
func (e *Engine) Shutdown(ctx context.Context) {
	e.Stop()
	if drained, _ := e.queue.drain(ctx); drained > 0 {
		log.Info("final sync queue drain delivered pending writes", "count", drained)
	}
}

func (e *Engine) retention() RetentionConfig {
	e.optsMux.Lock()
	defer e.optsMux.Unlock()
	return e.opts.Retention
}

func (e *Engine) options() Options {
	e.optsMux.Lock()
	defer e.optsMux.Unlock()
	return e.opts
}

// deliverSnapshot pushes a queued snapshot record to the cold tier and flips
// the warm copy's sync flag once acknowledged.
func (e *Engine) deliverSnapshot(ctx context.Context, item strata.QueueItem) error {
	var r strata.Record
	if err := encoding.DefaultMarshaler.Unmarshal(item.Payload, &r); err != nil {
		log.Warn("sync queue item payload is corrupt, dropping", "id", item.ID, "details", err)
		return nil
	}
	if err := e.cold.Save(ctx, r); err != nil {
		return err
	}
	e.markSyncedLocal(ctx, r)
	return nil
}

// deliverKV pushes a queued key-value record to the cold tier.
func (e *Engine) deliverKV(ctx context.Context, item strata.QueueItem) error {
	var r strata.Record
	if err := encoding.DefaultMarshaler.Unmarshal(item.Payload, &r); err != nil {
		log.Warn("sync queue item payload is corrupt, dropping", "id", item.ID, "details", err)
		return nil
	}
	return e.cold.Save(ctx, r)
}

// markSyncedLocal best-effort updates the warm and hot copies after a queue
// delivery; failures are logged, the cold tier already has the data.
func (e *Engine) markSyncedLocal(ctx context.Context, uploaded strata.Record) {
	var errs []PhaseError
	e.markSynced(ctx, uploaded, &errs)
	for _, pe := range errs {
		log.Warn("can't flip warm sync flag after delivery",
			"identity_key", pe.IdentityKey, "details", pe.Err)
	}
	key := strata.FormatKey(strata.NamespaceSnapshot, uploaded.IdentityKey)
	if found, r := e.readHot(ctx, key); found &&
		r.Version == uploaded.Version && r.Timestamp == uploaded.Timestamp {
		r.Synced = true
		r.SyncedAt = strata.NowMilli()
		e.writeHot(ctx, key, r)
	}
}
