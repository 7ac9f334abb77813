package strata

import (
	"context"
	"encoding/json"
)

// QueueItem is one pending write-behind delivery. ID is engine-assigned;
// Key carries the namespaced tier key the payload belongs to.
type QueueItem struct {
	ID         string          `json:"id"`
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt int64           `json:"enqueued_at"`
	Attempts   int             `json:"attempts"`
}

// QueueStore is the sync queue's structured (preferred) backing store. The
// queue additionally mirrors items into a flat list on the hot store so that a
// broken structured store never loses pending deliveries.
type QueueStore interface {
	// Append adds an item; appending an existing ID overwrites it.
	Append(ctx context.Context, item QueueItem) error
	// All returns every pending item, oldest first.
	All(ctx context.Context) ([]QueueItem, error)
	// Remove deletes items by ID, ignoring unknown ones.
	Remove(ctx context.Context, ids ...string) error
}
