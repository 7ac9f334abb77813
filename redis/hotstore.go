package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sharedcode/strata"
)

type hotStore struct {
	conn    *Connection
	isOwner bool
}

// NewHotStore returns a strata.HotStore bound to the singleton Redis connection.
// OpenConnection must have been called beforehand.
func NewHotStore() strata.HotStore {
	return &hotStore{
		conn: connection,
	}
}

// NewConnectionHotStore opens a dedicated Redis connection and returns a hot
// store owning it. Call Close when done.
func NewConnectionHotStore(options Options) *hotStore {
	return &hotStore{
		conn:    openConnection(options),
		isOwner: true,
	}
}

// Close this store's connection when it owns one.
func (s *hotStore) Close() error {
	if !s.isOwner || s.conn == nil {
		return nil
	}
	err := closeConnection(s.conn)
	s.conn = nil
	return err
}

// keyNotFound will detect whether error signifies key not found by Redis.
func (s hotStore) keyNotFound(err error) bool {
	return err == redis.Nil
}

// classify translates Redis server errors into typed strata errors so the
// engine's circuit breaker never inspects message text itself. Redis reports
// maxmemory exhaustion with an "OOM" reply prefix; that mapping is the one
// backend-specific detail this store owns.
func (s hotStore) classify(err error) error {
	if err == nil {
		return nil
	}
	if strings.HasPrefix(err.Error(), "OOM") {
		return strata.Error{Code: strata.CapacityExhausted, Err: err}
	}
	return err
}

// Ping tests connectivity for redis (PONG should be returned).
func (s hotStore) Ping(ctx context.Context) error {
	if s.conn == nil {
		return fmt.Errorf("Redis connection is not open, 'can't create new client")
	}
	return s.conn.Client.Ping(ctx).Err()
}

func (s hotStore) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	if s.conn == nil {
		return fmt.Errorf("Redis connection is not open, 'can't create new client")
	}
	// No caching if expiration < 0.
	if expiration < 0 {
		return nil
	}
	return s.classify(s.conn.Client.Set(ctx, key, value, expiration).Err())
}

func (s hotStore) Get(ctx context.Context, key string) (bool, []byte, error) {
	if s.conn == nil {
		return false, nil, fmt.Errorf("Redis connection is not open, 'can't create new client")
	}
	ba, err := s.conn.Client.Get(ctx, key).Bytes()
	// Convert key not found into returning false and nil err.
	r := err == nil
	if s.keyNotFound(err) {
		err = nil
	}
	return r, ba, err
}

func (s hotStore) Remove(ctx context.Context, keys ...string) error {
	if s.conn == nil {
		return fmt.Errorf("Redis connection is not open, 'can't create new client")
	}
	err := s.conn.Client.Del(ctx, keys...).Err()
	if s.keyNotFound(err) {
		err = nil
	}
	return err
}

// ListKeysWithPrefix enumerates keys via SCAN so large keyspaces don't block
// the server the way KEYS would.
func (s hotStore) ListKeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	if s.conn == nil {
		return nil, fmt.Errorf("Redis connection is not open, 'can't create new client")
	}
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.conn.Client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return keys, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// EstimateSize sums the STRLEN of each key's value. STRLEN is O(1) per key and
// close enough to the real footprint for byte-budget enforcement.
func (s hotStore) EstimateSize(ctx context.Context, keys []string) (int64, error) {
	if s.conn == nil {
		return 0, fmt.Errorf("Redis connection is not open, 'can't create new client")
	}
	var total int64
	for _, k := range keys {
		n, err := s.conn.Client.StrLen(ctx, k).Result()
		if err != nil {
			if s.keyNotFound(err) {
				continue
			}
			return total, err
		}
		total += n
	}
	return total, nil
}
