package cassandra

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"

	"github.com/sharedcode/strata"
)

type coldStore struct{}

// NewColdStore instantiates a Cassandra-backed implementation of strata.ColdStore.
// OpenConnection must have been called beforehand.
func NewColdStore() strata.ColdStore {
	return &coldStore{}
}

// Save upserts one record. Cassandra INSERT is an upsert, which matches the
// cold tier contract of overwriting older versions blindly.
func (c *coldStore) Save(ctx context.Context, r strata.Record) error {
	if connection == nil {
		return fmt.Errorf("cassandra connection is closed; call OpenConnection(config) to open it")
	}
	insertStatement := fmt.Sprintf("INSERT INTO %s.records (identity_key, version, ts, payload, owner_id, deleted, created_at, updated_at) VALUES(?,?,?,?,?,?,?,?);",
		connection.Config.Keyspace)
	return connection.Session.Query(insertStatement,
		r.IdentityKey, r.Version, r.Timestamp, []byte(r.Payload), r.OwnerID,
		r.Deleted, r.CreatedAt, r.UpdatedAt).WithContext(ctx).Exec()
}

// SaveBatch chunks records into unlogged batches. Records land on different
// partitions, so a logged batch would only add coordinator overhead.
func (c *coldStore) SaveBatch(ctx context.Context, records []strata.Record, opts strata.BatchOptions) error {
	if connection == nil {
		return fmt.Errorf("cassandra connection is closed; call OpenConnection(config) to open it")
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	insertStatement := fmt.Sprintf("INSERT INTO %s.records (identity_key, version, ts, payload, owner_id, deleted, created_at, updated_at) VALUES(?,?,?,?,?,?,?,?);",
		connection.Config.Keyspace)
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		b := connection.Session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
		for _, r := range records[i:end] {
			b.Query(insertStatement,
				r.IdentityKey, r.Version, r.Timestamp, []byte(r.Payload), r.OwnerID,
				r.Deleted, r.CreatedAt, r.UpdatedAt)
		}
		if err := connection.Session.ExecuteBatch(b); err != nil {
			return err
		}
	}
	return nil
}

// Fetch reads one record by primary key.
func (c *coldStore) Fetch(ctx context.Context, identityKey string) (bool, strata.Record, error) {
	if connection == nil {
		return false, strata.Record{}, fmt.Errorf("cassandra connection is closed; call OpenConnection(config) to open it")
	}
	selectStatement := fmt.Sprintf("SELECT identity_key, version, ts, payload, owner_id, deleted, created_at, updated_at FROM %s.records WHERE identity_key = ?;",
		connection.Config.Keyspace)
	var r strata.Record
	var payload []byte
	err := connection.Session.Query(selectStatement, identityKey).WithContext(ctx).Scan(
		&r.IdentityKey, &r.Version, &r.Timestamp, &payload, &r.OwnerID, &r.Deleted, &r.CreatedAt, &r.UpdatedAt)
	if err == gocql.ErrNotFound {
		return false, strata.Record{}, nil
	}
	if err != nil {
		return false, strata.Record{}, err
	}
	r.Payload = payload
	r.Synced = true
	return true, r, nil
}

// Query scans the records table for rows within rng. The table is keyed by
// identity, so a timestamp range scan needs ALLOW FILTERING; limit keeps the
// read bounded.
func (c *coldStore) Query(ctx context.Context, rng strata.TimeRange, limit int) ([]strata.Record, error) {
	if connection == nil {
		return nil, fmt.Errorf("cassandra connection is closed; call OpenConnection(config) to open it")
	}
	selectStatement := fmt.Sprintf("SELECT identity_key, version, ts, payload, owner_id, deleted, created_at, updated_at FROM %s.records", connection.Config.Keyspace)
	var args []any
	switch {
	case rng.FromMillis > 0 && rng.ToMillis > 0:
		selectStatement += " WHERE ts >= ? AND ts <= ? ALLOW FILTERING"
		args = append(args, rng.FromMillis, rng.ToMillis)
	case rng.FromMillis > 0:
		selectStatement += " WHERE ts >= ? ALLOW FILTERING"
		args = append(args, rng.FromMillis)
	case rng.ToMillis > 0:
		selectStatement += " WHERE ts <= ? ALLOW FILTERING"
		args = append(args, rng.ToMillis)
	}
	selectStatement += ";"

	iter := connection.Session.Query(selectStatement, args...).WithContext(ctx).Iter()
	var out []strata.Record
	var r strata.Record
	var payload []byte
	for iter.Scan(&r.IdentityKey, &r.Version, &r.Timestamp, &payload, &r.OwnerID, &r.Deleted, &r.CreatedAt, &r.UpdatedAt) {
		r.Payload = payload
		// Cold copies are synced by definition.
		r.Synced = true
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
		r = strata.Record{}
		payload = nil
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return out, nil
}
