package sqlite

import (
	"testing"

	"github.com/sharedcode/strata"
)

func newTestQueue(t *testing.T) *QueueStore {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewQueueStore(db)
}

func TestAppendAndAllOldestFirst(t *testing.T) {
	q := newTestQueue(t)
	q.Append(ctx, strata.QueueItem{ID: "2", Key: "snapshot/b", EnqueuedAt: 200})
	q.Append(ctx, strata.QueueItem{ID: "1", Key: "snapshot/a", EnqueuedAt: 100})

	items, err := q.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].ID != "1" || items[1].ID != "2" {
		t.Errorf("got %+v, want oldest first", items)
	}
}

func TestAppendSameIDOverwrites(t *testing.T) {
	q := newTestQueue(t)
	q.Append(ctx, strata.QueueItem{ID: "1", Key: "snapshot/a", EnqueuedAt: 100})
	q.Append(ctx, strata.QueueItem{ID: "1", Key: "snapshot/a", EnqueuedAt: 100, Attempts: 3})

	items, _ := q.All(ctx)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Attempts != 3 {
		t.Errorf("got %d attempts, want the overwrite persisted", items[0].Attempts)
	}
}

func TestRemoveIgnoresUnknownIDs(t *testing.T) {
	q := newTestQueue(t)
	q.Append(ctx, strata.QueueItem{ID: "1", Key: "snapshot/a", EnqueuedAt: 100, Payload: []byte(`{}`)})

	if err := q.Remove(ctx, "1", "ghost"); err != nil {
		t.Fatal(err)
	}
	items, _ := q.All(ctx)
	if len(items) != 0 {
		t.Errorf("got %d items, want 0", len(items))
	}
}
