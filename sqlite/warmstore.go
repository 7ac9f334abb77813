package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sharedcode/strata"
	"github.com/sharedcode/strata/cel"
)

// WarmStore persists records in the records table, one live row per identity
// key. Conflict semantics live in the engine's resolver; this store only does
// storage and filtering.
type WarmStore struct {
	db *DB
}

// NewWarmStore returns a strata.WarmStore over db.
func NewWarmStore(db *DB) *WarmStore {
	return &WarmStore{db: db}
}

const recordColumns = "identity_key, version, timestamp, payload, owner_id, synced, synced_at, deleted, created_at, updated_at"

func (s *WarmStore) Create(ctx context.Context, r strata.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.IdentityKey, r.Version, r.Timestamp, []byte(r.Payload), r.OwnerID,
		boolToInt(r.Synced), r.SyncedAt, boolToInt(r.Deleted), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return classify(fmt.Errorf("create record %s: %w", r.IdentityKey, err))
	}
	return nil
}

func (s *WarmStore) Update(ctx context.Context, identityKey string, mutate func(*strata.Record)) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, classify(err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM records WHERE identity_key = ?
	`, identityKey)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, classify(fmt.Errorf("fetch record %s: %w", identityKey, err))
	}

	mutate(&r)

	_, err = tx.ExecContext(ctx, `
		UPDATE records SET version = ?, timestamp = ?, payload = ?, owner_id = ?,
			synced = ?, synced_at = ?, deleted = ?, updated_at = ?
		WHERE identity_key = ?
	`, r.Version, r.Timestamp, []byte(r.Payload), r.OwnerID,
		boolToInt(r.Synced), r.SyncedAt, boolToInt(r.Deleted), r.UpdatedAt, identityKey)
	if err != nil {
		return false, classify(fmt.Errorf("update record %s: %w", identityKey, err))
	}
	if err := tx.Commit(); err != nil {
		return false, classify(err)
	}
	return true, nil
}

func (s *WarmStore) Delete(ctx context.Context, identityKeys ...string) error {
	if len(identityKeys) == 0 {
		return nil
	}
	args := make([]any, len(identityKeys))
	ph := make([]string, len(identityKeys))
	for i, k := range identityKeys {
		args[i] = k
		ph[i] = "?"
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM records WHERE identity_key IN (`+strings.Join(ph, ",")+`)
	`, args...)
	return classify(err)
}

// Query applies the structured predicates in SQL and the optional CEL
// expression as a post-filter over the decoded records.
func (s *WarmStore) Query(ctx context.Context, filter strata.QueryFilter) ([]strata.Record, error) {
	var where []string
	var args []any

	if filter.UnsyncedOnly {
		where = append(where, "synced = 0")
	}
	if filter.SyncedOnly {
		where = append(where, "synced = 1")
	}
	if filter.OlderThanMillis > 0 {
		where = append(where, "timestamp < ?")
		args = append(args, filter.OlderThanMillis)
	}
	if len(filter.Keys) > 0 {
		ph := make([]string, len(filter.Keys))
		for i, k := range filter.Keys {
			ph[i] = "?"
			args = append(args, k)
		}
		where = append(where, "identity_key IN ("+strings.Join(ph, ",")+")")
	}

	q := "SELECT " + recordColumns + " FROM records"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY timestamp ASC"
	// The CEL post-filter can reject rows, so the SQL limit only applies when
	// there is no expression to evaluate.
	if filter.Limit > 0 && filter.Expression == "" {
		q += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("query records: %w", err))
	}
	defer rows.Close()

	var ev *cel.Evaluator
	if filter.Expression != "" {
		ev, err = cel.NewEvaluator(filter.Expression)
		if err != nil {
			return nil, err
		}
	}

	var out []strata.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if ev != nil {
			ok, err := ev.Evaluate(recordFields(r))
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, r)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (strata.Record, error) {
	var r strata.Record
	var payload []byte
	var synced, deleted int
	err := row.Scan(&r.IdentityKey, &r.Version, &r.Timestamp, &payload, &r.OwnerID,
		&synced, &r.SyncedAt, &deleted, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	r.Payload = payload
	r.Synced = synced != 0
	r.Deleted = deleted != 0
	return r, nil
}

// recordFields flattens a record into the map the CEL filter evaluates against.
func recordFields(r strata.Record) map[string]any {
	return map[string]any{
		"identity_key": r.IdentityKey,
		"version":      r.Version,
		"timestamp":    r.Timestamp,
		"owner_id":     r.OwnerID,
		"synced":       r.Synced,
		"synced_at":    r.SyncedAt,
		"deleted":      r.Deleted,
		"created_at":   r.CreatedAt,
		"updated_at":   r.UpdatedAt,
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
