package types

import (
	"context"
	"time"
)

// KVStore is the shared key/value store behind the product cache and the
// recency tracker. AddRecent must perform the score update, the trim to the
// size bound and the TTL refresh as one atomic operation; callers never
// read-modify-write.
type KVStore interface {
	LifecycleManager
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	AddRecent(ctx context.Context, key, member string, score float64, limit int64, ttl time.Duration) error
	RecentMembers(ctx context.Context, key string, limit int64) ([]string, error)
	Ping(ctx context.Context) error
}

type KVStoreCreator func(config interface{}) (KVStore, error)
