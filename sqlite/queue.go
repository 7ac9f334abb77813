package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/sharedcode/strata"
)

// QueueStore is the sync queue's structured store over the sync_queue table.
type QueueStore struct {
	db *DB
}

// NewQueueStore returns a strata.QueueStore over db.
func NewQueueStore(db *DB) *QueueStore {
	return &QueueStore{db: db}
}

func (s *QueueStore) Append(ctx context.Context, item strata.QueueItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_queue (id, key, payload, enqueued_at, attempts)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET attempts = excluded.attempts
	`, item.ID, item.Key, []byte(item.Payload), item.EnqueuedAt, item.Attempts)
	if err != nil {
		return classify(fmt.Errorf("append queue item %s: %w", item.ID, err))
	}
	return nil
}

func (s *QueueStore) All(ctx context.Context) ([]strata.QueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, payload, enqueued_at, attempts FROM sync_queue ORDER BY enqueued_at ASC
	`)
	if err != nil {
		return nil, classify(fmt.Errorf("list queue items: %w", err))
	}
	defer rows.Close()

	var items []strata.QueueItem
	for rows.Next() {
		var it strata.QueueItem
		var payload []byte
		if err := rows.Scan(&it.ID, &it.Key, &payload, &it.EnqueuedAt, &it.Attempts); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		it.Payload = payload
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *QueueStore) Remove(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	ph := make([]string, len(ids))
	for i, id := range ids {
		args[i] = id
		ph[i] = "?"
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM sync_queue WHERE id IN (`+strings.Join(ph, ",")+`)
	`, args...)
	return classify(err)
}
