package kv

import (
	"context"
	"time"

	"github.com/saiset-co/sai-interaction/types"
)

var customKVCreators = make(map[string]types.KVStoreCreator)

func RegisterKVStore(kvStoreName string, creator types.KVStoreCreator) {
	customKVCreators[kvStoreName] = creator
}

func NewKVStore(ctx context.Context, config types.ConfigManager, logger types.Logger, metrics types.MetricsManager) (types.KVStore, error) {
	kvConfig := config.GetConfig().KV
	if kvConfig == nil {
		return nil, types.ErrKVIsDisabled
	}

	var impl types.KVStore
	var err error

	switch kvConfig.Type {
	case "memory":
		impl, err = NewMemoryKV(ctx, logger, kvConfig)
	case "redis":
		impl, err = NewRedisKV(ctx, logger, kvConfig)
	default:
		if creator, exists := customKVCreators[kvConfig.Type]; exists {
			impl, err = creator(kvConfig.Config)
		} else {
			return nil, types.Errorf(types.ErrKVTypeUnknown, "type: %s", kvConfig.Type)
		}
	}

	if err != nil {
		return nil, err
	}

	return newInstrumentedKVStore(metrics, impl), nil
}

type instrumentedKVStore struct {
	impl    types.KVStore
	metrics types.MetricsManager
}

func newInstrumentedKVStore(metrics types.MetricsManager, impl types.KVStore) types.KVStore {
	return &instrumentedKVStore{
		impl:    impl,
		metrics: metrics,
	}
}

func (ikv *instrumentedKVStore) Get(ctx context.Context, key string) ([]byte, bool) {
	start := time.Now()
	value, exists := ikv.impl.Get(ctx, key)

	result := "miss"
	if exists {
		result = "hit"
	}

	ikv.recordMetric("get", result, time.Since(start))
	return value, exists
}

func (ikv *instrumentedKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := ikv.impl.Set(ctx, key, value, ttl)
	ikv.recordMetric("set", resultLabel(err), time.Since(start))
	return err
}

func (ikv *instrumentedKVStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := ikv.impl.Delete(ctx, key)
	ikv.recordMetric("delete", resultLabel(err), time.Since(start))
	return err
}

func (ikv *instrumentedKVStore) AddRecent(ctx context.Context, key, member string, score float64, limit int64, ttl time.Duration) error {
	start := time.Now()
	err := ikv.impl.AddRecent(ctx, key, member, score, limit, ttl)
	ikv.recordMetric("add_recent", resultLabel(err), time.Since(start))
	return err
}

func (ikv *instrumentedKVStore) RecentMembers(ctx context.Context, key string, limit int64) ([]string, error) {
	start := time.Now()
	members, err := ikv.impl.RecentMembers(ctx, key, limit)
	ikv.recordMetric("recent_members", resultLabel(err), time.Since(start))
	return members, err
}

func (ikv *instrumentedKVStore) Ping(ctx context.Context) error {
	return ikv.impl.Ping(ctx)
}

func (ikv *instrumentedKVStore) Start() error {
	return ikv.impl.Start()
}

func (ikv *instrumentedKVStore) Stop() error {
	return ikv.impl.Stop()
}

func (ikv *instrumentedKVStore) IsRunning() bool {
	return ikv.impl.IsRunning()
}

func (ikv *instrumentedKVStore) recordMetric(operation, result string, duration time.Duration) {
	if ikv.metrics == nil {
		return
	}

	counter := ikv.metrics.Counter("kv_operations_total", map[string]string{
		"operation": operation,
		"result":    result,
	})
	counter.Inc()

	histogram := ikv.metrics.Histogram("kv_operation_duration_seconds",
		[]float64{0.0001, 0.001, 0.01, 0.1, 1.0},
		map[string]string{"operation": operation},
	)
	histogram.Observe(duration.Seconds())
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
