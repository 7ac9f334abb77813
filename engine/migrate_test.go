package engine

import (
	"testing"
	"time"

	"github.com/sharedcode/strata"
)

func TestHotToWarmPromotesAgedSnapshots(t *testing.T) {
	f := newFixture(Options{})
	f.cold.Unavailable = true
	now := strata.NowMilli()
	old := strata.Record{IdentityKey: "old", Version: 1, Timestamp: now - 2*time.Hour.Milliseconds(), Payload: []byte(`{}`)}
	fresh := strata.Record{IdentityKey: "fresh", Version: 1, Timestamp: now - time.Minute.Milliseconds(), Payload: []byte(`{}`)}
	f.engine.SaveRecord(ctx, old)
	f.engine.SaveRecord(ctx, fresh)

	moved, errs := f.engine.hotToWarm(ctx)
	if len(errs) != 0 {
		t.Fatalf("unexpected phase errors: %+v", errs)
	}
	if moved != 1 {
		t.Fatalf("got %d moved, want 1", moved)
	}
	if f.hot.Has(snapshotKey("old")) {
		t.Error("promoted record should leave the hot tier")
	}
	if !f.hot.Has(snapshotKey("fresh")) {
		t.Error("fresh record should stay hot")
	}
	wr, ok := f.warm.Record("old")
	if !ok {
		t.Fatal("promoted record should be in the warm tier")
	}
	if wr.Synced {
		t.Error("promoted record was never cold-acknowledged, must stay unsynced")
	}
}

func TestHotToWarmSkipsKVNamespace(t *testing.T) {
	f := newFixture(Options{})
	now := strata.NowMilli()
	f.engine.Set(ctx, "kv/old", []byte(`"v"`))
	// Age the hot copy well past HotTTL.
	f.engine.index.put("kv/old", now-3*time.Hour.Milliseconds(), 10)
	f.engine.index.markReady()

	moved, _ := f.engine.hotToWarm(ctx)
	if moved != 0 {
		t.Fatalf("got %d moved, want 0; kv keys never promote", moved)
	}
	if f.warm.Len() != 0 {
		t.Error("kv keys must not reach the warm tier")
	}
}

func TestHotToWarmPrunesStaleIndexEntries(t *testing.T) {
	f := newFixture(Options{})
	// Index says the key is hot; the backend evicted it on its own.
	f.engine.index.put(snapshotKey("gone"), strata.NowMilli()-2*time.Hour.Milliseconds(), 10)
	f.engine.index.markReady()

	moved, errs := f.engine.hotToWarm(ctx)
	if moved != 0 || len(errs) != 0 {
		t.Fatalf("got moved=%d errs=%+v, want clean no-op", moved, errs)
	}
	if f.engine.index.count() != 0 {
		t.Error("stale index entry should be pruned")
	}
}

func TestHotToWarmMergesWithExistingWarmRecord(t *testing.T) {
	f := newFixture(Options{})
	f.cold.Unavailable = true
	now := strata.NowMilli()
	f.warm.Put(strata.Record{IdentityKey: "k", Version: 5, Timestamp: now - 3*time.Hour.Milliseconds(), Payload: []byte(`"warm"`)})
	hotRec := strata.Record{IdentityKey: "k", Version: 3, Timestamp: now - 2*time.Hour.Milliseconds(), Payload: []byte(`"hot"`)}
	f.engine.SaveRecord(ctx, hotRec)

	if moved, _ := f.engine.hotToWarm(ctx); moved != 1 {
		t.Fatal("record should promote")
	}
	wr, _ := f.warm.Record("k")
	if wr.Version != 5 || string(wr.Payload) != `"warm"` {
		t.Errorf("got %+v, want the higher warm version to survive the merge", wr)
	}
}

func TestWarmToColdSyncsAgedUnsynced(t *testing.T) {
	f := newFixture(Options{})
	now := strata.NowMilli()
	aged := now - 25*time.Hour.Milliseconds()
	f.warm.Put(strata.Record{IdentityKey: "a", Version: 1, Timestamp: aged})
	f.warm.Put(strata.Record{IdentityKey: "b", Version: 1, Timestamp: aged})
	f.warm.Put(strata.Record{IdentityKey: "young", Version: 1, Timestamp: now - time.Hour.Milliseconds()})
	f.warm.Put(strata.Record{IdentityKey: "done", Version: 1, Timestamp: aged, Synced: true})

	synced, errs := f.engine.warmToCold(ctx)
	if len(errs) != 0 {
		t.Fatalf("unexpected phase errors: %+v", errs)
	}
	if synced != 2 {
		t.Fatalf("got %d synced, want 2", synced)
	}
	if f.cold.Len() != 2 {
		t.Errorf("got %d cold records, want 2", f.cold.Len())
	}
	for _, key := range []string{"a", "b"} {
		if wr, _ := f.warm.Record(key); !wr.Synced || wr.SyncedAt == 0 {
			t.Errorf("record %s should be marked synced, got %+v", key, wr)
		}
	}
	if wr, _ := f.warm.Record("young"); wr.Synced {
		t.Error("young record should not sync yet")
	}

	// Idempotent: a second cycle finds nothing to do.
	if again, _ := f.engine.warmToCold(ctx); again != 0 {
		t.Errorf("got %d on second cycle, want 0", again)
	}
}

func TestWarmToColdBatchFailureFallsBackPerRecord(t *testing.T) {
	f := newFixture(Options{})
	f.cold.FailBatches = true
	aged := strata.NowMilli() - 25*time.Hour.Milliseconds()
	f.warm.Put(strata.Record{IdentityKey: "a", Version: 1, Timestamp: aged})
	f.warm.Put(strata.Record{IdentityKey: "b", Version: 1, Timestamp: aged})

	synced, errs := f.engine.warmToCold(ctx)
	if synced != 2 || len(errs) != 0 {
		t.Fatalf("got synced=%d errs=%+v, want both via per-record fallback", synced, errs)
	}
	if f.cold.Len() != 2 {
		t.Errorf("got %d cold records, want 2", f.cold.Len())
	}
}

func TestWarmToColdPoisonRecordDoesNotBlockBatch(t *testing.T) {
	f := newFixture(Options{})
	f.cold.FailBatches = true
	f.cold.FailNextSaves = 1
	aged := strata.NowMilli() - 25*time.Hour.Milliseconds()
	f.warm.Put(strata.Record{IdentityKey: "a", Version: 1, Timestamp: aged})
	f.warm.Put(strata.Record{IdentityKey: "b", Version: 1, Timestamp: aged - 1})
	f.warm.Put(strata.Record{IdentityKey: "c", Version: 1, Timestamp: aged - 2})

	synced, errs := f.engine.warmToCold(ctx)
	if synced != 2 {
		t.Errorf("got %d synced, want 2 despite one failing record", synced)
	}
	if len(errs) != 1 {
		t.Errorf("got %d phase errors, want 1", len(errs))
	}
}

func TestMarkSyncedGuardsAgainstConcurrentUpdate(t *testing.T) {
	f := newFixture(Options{})
	f.warm.Put(strata.Record{IdentityKey: "k", Version: 2, Timestamp: 200})
	// The uploaded copy is the older version; the warm record moved on.
	uploaded := strata.Record{IdentityKey: "k", Version: 1, Timestamp: 100}

	var errs []PhaseError
	f.engine.markSynced(ctx, uploaded, &errs)

	if wr, _ := f.warm.Record("k"); wr.Synced {
		t.Error("record updated mid-upload must not be marked synced")
	}
}
