package kv

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-interaction/types"
	"github.com/saiset-co/sai-interaction/utils"
)

type RedisConfig struct {
	Host               string        `json:"host"`
	Port               int           `json:"port"`
	Password           string        `json:"password"`
	DB                 int           `json:"db"`
	PoolSize           int           `json:"pool_size"`
	MinIdleConnections int           `json:"min_idle_connections"`
	DialTimeout        time.Duration `json:"dial_timeout"`
	ReadTimeout        time.Duration `json:"read_timeout"`
	WriteTimeout       time.Duration `json:"write_timeout"`
	KeyPrefix          string        `json:"key_prefix"`
}

type RedisKV struct {
	ctx     context.Context
	logger  types.Logger
	config  *RedisConfig
	client  *redis.Client
	started int32
}

func NewRedisKV(ctx context.Context, logger types.Logger, config *types.KVConfig) (types.KVStore, error) {
	redisConfig := &RedisConfig{
		Host:               "localhost",
		Port:               6379,
		DB:                 0,
		PoolSize:           10,
		MinIdleConnections: 2,
		DialTimeout:        5 * time.Second,
		ReadTimeout:        3 * time.Second,
		WriteTimeout:       3 * time.Second,
		KeyPrefix:          "sai-interaction",
	}

	if config.Config != nil {
		err := utils.UnmarshalConfig(config.Config, redisConfig)
		if err != nil {
			return nil, types.WrapError(err, "failed to unmarshal redis kv config")
		}
	}

	kv := &RedisKV{
		ctx:    ctx,
		logger: logger,
		config: redisConfig,
	}

	kv.client = redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", redisConfig.Host, redisConfig.Port),
		Password:     redisConfig.Password,
		DB:           redisConfig.DB,
		PoolSize:     redisConfig.PoolSize,
		MinIdleConns: redisConfig.MinIdleConnections,
		DialTimeout:  redisConfig.DialTimeout,
		ReadTimeout:  redisConfig.ReadTimeout,
		WriteTimeout: redisConfig.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := kv.client.Ping(pingCtx).Err(); err != nil {
		return nil, types.WrapError(err, "failed to connect to redis")
	}

	return kv, nil
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool) {
	if key == "" {
		return nil, false
	}

	result, err := r.client.Get(ctx, r.buildFullKey(key)).Bytes()
	if err != nil {
		if !types.IsError(err, redis.Nil) {
			r.logger.Error("failed to get kv entry", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	return result, true
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return types.ErrKVKeyEmpty
	}

	if err := r.client.Set(ctx, r.buildFullKey(key), value, ttl).Err(); err != nil {
		r.logger.Error("failed to set kv entry", zap.String("key", key), zap.Error(err))
		return types.WrapError(err, "failed to set kv entry")
	}

	return nil
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	if err := r.client.Del(ctx, r.buildFullKey(key)).Err(); err != nil {
		r.logger.Error("failed to delete kv key", zap.String("key", key), zap.Error(err))
		return types.WrapError(err, "failed to delete kv key")
	}

	return nil
}

// AddRecent runs the score update, the trim to the top limit entries and the
// TTL refresh in one MULTI/EXEC pipeline so the size bound holds under
// concurrent writers.
func (r *RedisKV) AddRecent(ctx context.Context, key, member string, score float64, limit int64, ttl time.Duration) error {
	if key == "" {
		return types.ErrKVKeyEmpty
	}

	fullKey := r.buildFullKey(key)

	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, fullKey, redis.Z{Score: score, Member: member})
	if limit > 0 {
		pipe.ZRemRangeByRank(ctx, fullKey, 0, -(limit + 1))
	}
	if ttl > 0 {
		pipe.Expire(ctx, fullKey, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("failed to update recency set", zap.String("key", key), zap.Error(err))
		return types.WrapError(err, "failed to update recency set")
	}

	return nil
}

func (r *RedisKV) RecentMembers(ctx context.Context, key string, limit int64) ([]string, error) {
	if key == "" {
		return nil, types.ErrKVKeyEmpty
	}

	stop := int64(-1)
	if limit > 0 {
		stop = limit - 1
	}

	members, err := r.client.ZRevRange(ctx, r.buildFullKey(key), 0, stop).Result()
	if err != nil {
		r.logger.Error("failed to read recency set", zap.String("key", key), zap.Error(err))
		return nil, types.WrapError(err, "failed to read recency set")
	}

	return members, nil
}

func (r *RedisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisKV) Start() error {
	if !atomic.CompareAndSwapInt32(&r.started, 0, 1) {
		return types.ErrServerAlreadyRunning
	}

	r.logger.Info("Redis kv store started",
		zap.String("host", r.config.Host),
		zap.Int("port", r.config.Port),
		zap.String("key_prefix", r.config.KeyPrefix))

	return nil
}

func (r *RedisKV) Stop() error {
	if !atomic.CompareAndSwapInt32(&r.started, 1, 0) {
		return types.ErrServerNotRunning
	}

	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close redis client", zap.Error(err))
		return types.WrapError(err, "failed to close redis client")
	}

	r.logger.Info("Redis kv store stopped gracefully")
	return nil
}

func (r *RedisKV) IsRunning() bool {
	return atomic.LoadInt32(&r.started) == 1
}

func (r *RedisKV) buildFullKey(key string) string {
	if r.config.KeyPrefix != "" {
		return fmt.Sprintf("%s:%s", r.config.KeyPrefix, key)
	}
	return key
}
