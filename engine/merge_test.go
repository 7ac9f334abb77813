package engine

import (
	"testing"
	"time"

	"github.com/sharedcode/strata"
)

func frozenClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := strata.Now
	strata.Now = func() time.Time { return at }
	t.Cleanup(func() { strata.Now = prev })
}

func TestMergeHigherVersionWins(t *testing.T) {
	frozenClock(t, time.UnixMilli(5000))
	existing := strata.Record{IdentityKey: "k", Version: 3, Timestamp: 100, Payload: []byte(`"old"`), CreatedAt: 10, Synced: true, SyncedAt: 200}
	incoming := strata.Record{IdentityKey: "k", Version: 4, Timestamp: 90, Payload: []byte(`"new"`)}

	got := Merge(existing, incoming)
	if got.Version != 4 || string(got.Payload) != `"new"` {
		t.Errorf("got %+v, want incoming to win", got)
	}
	if got.CreatedAt != 10 {
		t.Errorf("got CreatedAt %d, want 10 preserved from existing", got.CreatedAt)
	}
	if got.Synced {
		t.Error("winner was never synced, Synced should be false")
	}
	if got.UpdatedAt != 5000 {
		t.Errorf("got UpdatedAt %d, want 5000", got.UpdatedAt)
	}
}

func TestMergeLowerVersionDiscarded(t *testing.T) {
	existing := strata.Record{IdentityKey: "k", Version: 5, Timestamp: 100, Synced: true, SyncedAt: 150}
	incoming := strata.Record{IdentityKey: "k", Version: 4, Timestamp: 999}

	got := Merge(existing, incoming)
	if got.Version != 5 || !got.Synced || got.SyncedAt != 150 {
		t.Errorf("got %+v, want existing unchanged", got)
	}
}

func TestMergeEqualVersionLaterTimestampWins(t *testing.T) {
	existing := strata.Record{IdentityKey: "k", Version: 2, Timestamp: 200, Payload: []byte(`"a"`)}
	incoming := strata.Record{IdentityKey: "k", Version: 2, Timestamp: 300, Payload: []byte(`"b"`)}

	if got := Merge(existing, incoming); string(got.Payload) != `"b"` {
		t.Errorf("got payload %s, want later timestamp to win", got.Payload)
	}
	// Earlier incoming loses.
	incoming.Timestamp = 100
	if got := Merge(existing, incoming); string(got.Payload) != `"a"` {
		t.Errorf("got payload %s, want existing to win", got.Payload)
	}
}

func TestMergeExactTieIncomingWins(t *testing.T) {
	existing := strata.Record{IdentityKey: "k", Version: 2, Timestamp: 200, Payload: []byte(`"a"`)}
	incoming := strata.Record{IdentityKey: "k", Version: 2, Timestamp: 200, Payload: []byte(`"b"`)}

	if got := Merge(existing, incoming); string(got.Payload) != `"b"` {
		t.Errorf("got payload %s, want incoming on exact tie", got.Payload)
	}
}

func TestMergeIsDeterministic(t *testing.T) {
	existing := strata.Record{IdentityKey: "k", Version: 7, Timestamp: 500, Payload: []byte(`"x"`)}
	incoming := strata.Record{IdentityKey: "k", Version: 7, Timestamp: 600, Payload: []byte(`"y"`)}
	first := Merge(existing, incoming)
	for i := 0; i < 10; i++ {
		if got := Merge(existing, incoming); got.Version != first.Version || string(got.Payload) != string(first.Payload) {
			t.Fatalf("merge not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestMergeTombstoneDominates(t *testing.T) {
	frozenClock(t, time.UnixMilli(5000))
	existing := strata.Record{IdentityKey: "k", Version: 9, Timestamp: 900, Payload: []byte(`"live"`), Synced: true}
	incoming := strata.Record{IdentityKey: "k", Version: 3, Timestamp: 300, Deleted: true}

	got := Merge(existing, incoming)
	if !got.Deleted {
		t.Fatal("tombstone must dominate a concurrent rewrite")
	}
	if got.Version != 9 || got.Timestamp != 900 {
		t.Errorf("got version %d ts %d, want max of both sides", got.Version, got.Timestamp)
	}
	if string(got.Payload) != `"live"` {
		t.Errorf("got payload %s, want the live payload carried", got.Payload)
	}
	if got.Synced {
		t.Error("merged tombstone content changed, Synced should reset")
	}
}

func TestMergeHigherVersionRecreatesDeletedKey(t *testing.T) {
	frozenClock(t, time.UnixMilli(5000))
	existing := strata.Record{IdentityKey: "k", Version: 1, Timestamp: 100, Deleted: true}
	incoming := strata.Record{IdentityKey: "k", Version: 2, Timestamp: 200, Payload: []byte(`"new"`)}

	got := Merge(existing, incoming)
	if got.Deleted {
		t.Fatal("a higher-version write should re-create the deleted key")
	}
	if got.Version != 2 || string(got.Payload) != `"new"` {
		t.Errorf("got %+v, want the incoming record to win", got)
	}

	// At or below the tombstone's version the deletion still dominates.
	stale := strata.Record{IdentityKey: "k", Version: 1, Timestamp: 999, Payload: []byte(`"stale"`)}
	if got := Merge(existing, stale); !got.Deleted {
		t.Error("deletion must outlive a same-version rewrite")
	}
}

func TestMergeSyncedBackfillStaysSynced(t *testing.T) {
	// A cold-tier backfill merging over an identical warm copy must not reset
	// Synced, or migration would re-upload forever.
	existing := strata.Record{IdentityKey: "k", Version: 2, Timestamp: 200, Synced: true, SyncedAt: 250}
	incoming := strata.Record{IdentityKey: "k", Version: 2, Timestamp: 200, Synced: true, SyncedAt: 250}

	if got := Merge(existing, incoming); !got.Synced {
		t.Error("identical synced backfill should stay synced")
	}
}
