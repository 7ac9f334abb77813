package engine

import (
	"context"
	"fmt"
	log "log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/sharedcode/strata"
	"github.com/sharedcode/strata/encoding"
)

// fallbackKey is the well-known hot-store key holding the JSON mirror of the
// pending queue. One flat list, rewritten on every change.
const fallbackKey = "syncqueue/items"

// deliverFunc pushes one queued item to the cold tier and performs any
// post-delivery bookkeeping for its namespace.
type deliverFunc func(ctx context.Context, item strata.QueueItem) error

// syncQueue is the durable write-behind queue. Items live in a structured
// store (sqlite table) and, redundantly, in a flat JSON list on the hot store,
// so a broken structured store never loses pending deliveries. Drain unions
// both, dedups by ID, and dispatches per key namespace.
type syncQueue struct {
	mux         sync.Mutex
	store       strata.QueueStore // optional; nil runs fallback-only
	hot         strata.HotStore
	keepLimit   int
	maxAttempts int
	dispatch    map[string]deliverFunc
}

func newSyncQueue(store strata.QueueStore, hot strata.HotStore, keepLimit, maxAttempts int) *syncQueue {
	return &syncQueue{
		store:       store,
		hot:         hot,
		keepLimit:   keepLimit,
		maxAttempts: maxAttempts,
		dispatch:    make(map[string]deliverFunc),
	}
}

func (q *syncQueue) register(namespace string, fn deliverFunc) {
	q.dispatch[namespace] = fn
}

// enqueue persists item into both stores. A structured-store failure is
// logged and tolerated as long as the fallback write lands; losing both is
// returned to the caller.
func (q *syncQueue) enqueue(ctx context.Context, item strata.QueueItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.EnqueuedAt == 0 {
		item.EnqueuedAt = strata.NowMilli()
	}

	q.mux.Lock()
	defer q.mux.Unlock()

	var structuredErr error
	if q.store != nil {
		if structuredErr = q.store.Append(ctx, item); structuredErr != nil {
			log.Warn("sync queue structured store append failed, relying on fallback",
				"id", item.ID, "details", structuredErr)
		}
	}

	items := q.loadFallbackLocked(ctx)
	items = upsertItem(items, item)
	if err := q.saveFallbackLocked(ctx, items); err != nil {
		if structuredErr != nil || q.store == nil {
			return fmt.Errorf("sync queue enqueue lost on both stores: %w", err)
		}
		log.Warn("sync queue fallback write failed, structured store holds the item",
			"id", item.ID, "details", err)
	}
	return nil
}

// drain delivers every pending item. Returns the delivered count; per-item
// failures are accumulated as phase errors, never aborting the pass.
func (q *syncQueue) drain(ctx context.Context) (int64, []PhaseError) {
	q.mux.Lock()
	items := q.pendingLocked(ctx)
	q.mux.Unlock()

	var delivered int64
	var errs []PhaseError
	for _, item := range items {
		namespace, identityKey := strata.SplitKey(item.Key)
		fn, ok := q.dispatch[namespace]
		if !ok {
			log.Warn("sync queue item has no registered namespace, dropping",
				"id", item.ID, "key", item.Key)
			q.removeEverywhere(ctx, item.ID)
			errs = append(errs, phaseError("queue", identityKey,
				strata.Error{Code: strata.UnknownNamespace, UserData: item.Key}))
			continue
		}

		err := strata.Retry(ctx, func(ctx context.Context) error {
			return strata.RetryableError(fn(ctx, item))
		}, nil)
		if err == nil {
			delivered++
			q.removeEverywhere(ctx, item.ID)
			continue
		}

		item.Attempts++
		errs = append(errs, phaseError("queue", identityKey, err))
		if q.maxAttempts > 0 && item.Attempts >= q.maxAttempts {
			log.Warn("sync queue item exceeded delivery attempts, dropping",
				"id", item.ID, "key", item.Key, "attempts", item.Attempts)
			q.removeEverywhere(ctx, item.ID)
			continue
		}
		q.persistAttempts(ctx, item)
	}
	return delivered, errs
}

// pendingLocked unions both stores, deduping by ID (higher attempt count
// wins, it is the fresher bookkeeping), oldest first.
func (q *syncQueue) pendingLocked(ctx context.Context) []strata.QueueItem {
	byID := map[string]strata.QueueItem{}
	if q.store != nil {
		items, err := q.store.All(ctx)
		if err != nil {
			log.Warn("sync queue structured store read failed, using fallback only", "details", err)
		}
		for _, it := range items {
			byID[it.ID] = it
		}
	}
	for _, it := range q.loadFallbackLocked(ctx) {
		if known, ok := byID[it.ID]; !ok || it.Attempts > known.Attempts {
			byID[it.ID] = it
		}
	}
	out := make([]strata.QueueItem, 0, len(byID))
	for _, it := range byID {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnqueuedAt < out[j].EnqueuedAt })
	return out
}

func (q *syncQueue) removeEverywhere(ctx context.Context, id string) {
	q.mux.Lock()
	defer q.mux.Unlock()
	if q.store != nil {
		if err := q.store.Remove(ctx, id); err != nil {
			log.Warn("sync queue structured store remove failed", "id", id, "details", err)
		}
	}
	items := q.loadFallbackLocked(ctx)
	kept := items[:0]
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	if len(kept) != len(items) {
		if err := q.saveFallbackLocked(ctx, kept); err != nil {
			log.Warn("sync queue fallback remove failed", "id", id, "details", err)
		}
	}
}

func (q *syncQueue) persistAttempts(ctx context.Context, item strata.QueueItem) {
	q.mux.Lock()
	defer q.mux.Unlock()
	if q.store != nil {
		if err := q.store.Append(ctx, item); err != nil {
			log.Warn("sync queue attempt bookkeeping failed on structured store",
				"id", item.ID, "details", err)
		}
	}
	items := upsertItem(q.loadFallbackLocked(ctx), item)
	if err := q.saveFallbackLocked(ctx, items); err != nil {
		log.Warn("sync queue attempt bookkeeping failed on fallback store",
			"id", item.ID, "details", err)
	}
}

func (q *syncQueue) loadFallbackLocked(ctx context.Context) []strata.QueueItem {
	found, ba, err := q.hot.Get(ctx, fallbackKey)
	if err != nil {
		log.Warn("sync queue fallback read failed", "details", err)
		return nil
	}
	if !found {
		return nil
	}
	var items []strata.QueueItem
	if err := encoding.DefaultMarshaler.Unmarshal(ba, &items); err != nil {
		log.Warn("sync queue fallback list is corrupt, resetting", "details", err)
		return nil
	}
	return items
}

// saveFallbackLocked writes the list. On capacity exhaustion it truncates to
// the newest keepLimit entries and retries once; keeping the freshest few
// writes beats keeping none.
func (q *syncQueue) saveFallbackLocked(ctx context.Context, items []strata.QueueItem) error {
	err := q.writeFallback(ctx, items)
	if err == nil || !strata.IsCapacityExhausted(err) {
		return err
	}
	if len(items) > q.keepLimit {
		items = items[len(items)-q.keepLimit:]
	}
	log.Warn("sync queue fallback store full, truncating", "kept", len(items))
	return q.writeFallback(ctx, items)
}

func (q *syncQueue) writeFallback(ctx context.Context, items []strata.QueueItem) error {
	ba, err := encoding.DefaultMarshaler.Marshal(items)
	if err != nil {
		return err
	}
	return q.hot.Set(ctx, fallbackKey, ba, 0)
}

func upsertItem(items []strata.QueueItem, item strata.QueueItem) []strata.QueueItem {
	for i := range items {
		if items[i].ID == item.ID {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}
