// Package kvstore is the write-through persistence layer backing
// crash recovery for in-flight trades (§6's persisted-state surface):
// liquidation position snapshots and cross-chain trade state. Built
// on redis/go-redis/v9, mirroring cryptofunk's redis-backed cache
// wiring.
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store wraps a redis client with JSON (de)serialization and the key
// namespaces the strategies need.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// Config carries the connection parameters.
type Config struct {
	Addr     string
	Password string
	DB       int
	// TTL bounds how long a persisted trade-state record survives
	// without being refreshed; zero means no expiry.
	TTL time.Duration
}

// New builds a Store over a go-redis client.
func New(cfg Config) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl: cfg.TTL,
	}
}

// NewWithClient wraps an already-constructed client, used by tests to
// inject a miniredis-backed client.
func NewWithClient(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.rdb.Close() }

// Ping verifies connectivity, used at startup.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func crossChainKey(tradeID string) string   { return "mev:crosschain:trade:" + tradeID }
func liquidationKey(protocol, addr string) string {
	return "mev:liquidation:position:" + protocol + ":" + addr
}

// putJSON marshals v and stores it under key, applying the store's
// configured TTL.
func (s *Store) putJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kvstore: marshal: %w", err)
	}
	if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("kvstore: set %s: %w", key, err)
	}
	return nil
}

func (s *Store) getJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("kvstore: get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("kvstore: unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("kvstore: del %s: %w", key, err)
	}
	return nil
}
