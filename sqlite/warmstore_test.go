package sqlite

import (
	"context"
	"testing"

	"github.com/sharedcode/strata"
)

var ctx = context.Background()

func newTestStore(t *testing.T) *WarmStore {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWarmStore(db)
}

func TestCreateAndQueryByKey(t *testing.T) {
	s := newTestStore(t)
	r := strata.Record{
		IdentityKey: "k1", Version: 2, Timestamp: 100,
		Payload: []byte(`{"v":1}`), OwnerID: "u1", CreatedAt: 90, UpdatedAt: 95,
	}
	if err := s.Create(ctx, r); err != nil {
		t.Fatal(err)
	}

	recs, err := s.Query(ctx, strata.QueryFilter{Keys: []string{"k1"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	got := recs[0]
	if got.Version != 2 || got.OwnerID != "u1" || string(got.Payload) != `{"v":1}` {
		t.Errorf("got %+v, want the stored record back", got)
	}
}

func TestCreateDuplicateKeyFails(t *testing.T) {
	s := newTestStore(t)
	r := strata.Record{IdentityKey: "k1", Version: 1, Timestamp: 100}
	if err := s.Create(ctx, r); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, r); err == nil {
		t.Error("second create with the same identity key should fail")
	}
}

func TestUpdateMutatesInPlace(t *testing.T) {
	s := newTestStore(t)
	s.Create(ctx, strata.Record{IdentityKey: "k1", Version: 1, Timestamp: 100})

	found, err := s.Update(ctx, "k1", func(r *strata.Record) {
		r.Synced = true
		r.SyncedAt = 200
	})
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("existing record should be found")
	}
	recs, _ := s.Query(ctx, strata.QueryFilter{Keys: []string{"k1"}})
	if !recs[0].Synced || recs[0].SyncedAt != 200 {
		t.Errorf("got %+v, want the mutation persisted", recs[0])
	}
}

func TestUpdateMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	found, err := s.Update(ctx, "absent", func(*strata.Record) {})
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("missing record should report found=false")
	}
}

func TestDeleteIgnoresMissingKeys(t *testing.T) {
	s := newTestStore(t)
	s.Create(ctx, strata.Record{IdentityKey: "k1", Version: 1, Timestamp: 100})

	if err := s.Delete(ctx, "k1", "never-existed"); err != nil {
		t.Fatal(err)
	}
	recs, _ := s.Query(ctx, strata.QueryFilter{})
	if len(recs) != 0 {
		t.Errorf("got %d records, want 0", len(recs))
	}
}

func TestQueryStructuredPredicates(t *testing.T) {
	s := newTestStore(t)
	s.Create(ctx, strata.Record{IdentityKey: "unsynced_old", Version: 1, Timestamp: 100})
	s.Create(ctx, strata.Record{IdentityKey: "synced_old", Version: 1, Timestamp: 150, Synced: true})
	s.Create(ctx, strata.Record{IdentityKey: "unsynced_new", Version: 1, Timestamp: 900})

	recs, err := s.Query(ctx, strata.QueryFilter{UnsyncedOnly: true, OlderThanMillis: 500})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].IdentityKey != "unsynced_old" {
		t.Errorf("got %+v, want only the old unsynced record", recs)
	}

	recs, _ = s.Query(ctx, strata.QueryFilter{SyncedOnly: true})
	if len(recs) != 1 || recs[0].IdentityKey != "synced_old" {
		t.Errorf("got %+v, want only the synced record", recs)
	}
}

func TestQueryOrdersOldestFirstAndLimits(t *testing.T) {
	s := newTestStore(t)
	s.Create(ctx, strata.Record{IdentityKey: "b", Version: 1, Timestamp: 200})
	s.Create(ctx, strata.Record{IdentityKey: "a", Version: 1, Timestamp: 100})
	s.Create(ctx, strata.Record{IdentityKey: "c", Version: 1, Timestamp: 300})

	recs, err := s.Query(ctx, strata.QueryFilter{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].IdentityKey != "a" || recs[1].IdentityKey != "b" {
		t.Errorf("got %+v, want the two oldest in timestamp order", recs)
	}
}

func TestQueryCELExpressionFilter(t *testing.T) {
	s := newTestStore(t)
	s.Create(ctx, strata.Record{IdentityKey: "k1", Version: 3, Timestamp: 100, OwnerID: "u1"})
	s.Create(ctx, strata.Record{IdentityKey: "k2", Version: 5, Timestamp: 200, OwnerID: "u1"})
	s.Create(ctx, strata.Record{IdentityKey: "k3", Version: 9, Timestamp: 300, OwnerID: "u2"})

	recs, err := s.Query(ctx, strata.QueryFilter{
		Expression: `rec.owner_id == "u1" && rec.version > 3`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].IdentityKey != "k2" {
		t.Errorf("got %+v, want only k2 through the expression", recs)
	}

	// A bad expression surfaces as an error instead of silently matching.
	if _, err := s.Query(ctx, strata.QueryFilter{Expression: "rec.owner_id =="}); err == nil {
		t.Error("malformed expression should fail the query")
	}
}
