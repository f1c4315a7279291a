package recency

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-interaction/types"
)

// Tracker keeps one bounded, score-ordered set of product ids per user in the
// shared kv store. The store performs add, trim and TTL refresh atomically,
// so the size bound holds under concurrent views.
type Tracker struct {
	kv     types.KVStore
	logger types.Logger
	config *types.RecencyConfig
	now    func() time.Time
}

func NewTracker(kv types.KVStore, logger types.Logger, config *types.RecencyConfig) *Tracker {
	cfg := &types.RecencyConfig{
		KeyPrefix: "recent:",
		Limit:     10,
		TTL:       24 * time.Hour,
	}
	if config != nil {
		if config.KeyPrefix != "" {
			cfg.KeyPrefix = config.KeyPrefix
		}
		if config.Limit > 0 {
			cfg.Limit = config.Limit
		}
		if config.TTL > 0 {
			cfg.TTL = config.TTL
		}
	}

	return &Tracker{
		kv:     kv,
		logger: logger,
		config: cfg,
		now:    time.Now,
	}
}

// RecordView refreshes the product's score to now and trims the set to the
// configured bound. Re-viewing a product moves it to the front without
// growing the set. Recency is best-effort: a store failure is logged and the
// view is dropped; the returned error is advisory and must not fail the
// surrounding request.
func (t *Tracker) RecordView(ctx context.Context, userID, productID string) error {
	if userID == "" || productID == "" {
		return types.Errorf(types.ErrInvalidParameter, "user %q, product %q", userID, productID)
	}

	score := float64(t.now().UnixNano()) / float64(time.Second)

	err := t.kv.AddRecent(ctx, t.key(userID), productID, score, t.config.Limit, t.config.TTL)
	if err != nil {
		t.logger.Warn("Dropping view record, kv store unavailable",
			zap.String("user_id", userID),
			zap.String("product_id", productID),
			zap.Error(err))
		return types.WrapError(err, "failed to record view")
	}

	return nil
}

// ListRecent returns product ids most-recent-first. It never refreshes the
// TTL. On store failure it returns an empty list; recency reads prefer
// availability over failing the request.
func (t *Tracker) ListRecent(ctx context.Context, userID string) []string {
	if userID == "" {
		return []string{}
	}

	members, err := t.kv.RecentMembers(ctx, t.key(userID), t.config.Limit)
	if err != nil {
		t.logger.Warn("Returning empty recency list, kv store unavailable",
			zap.String("user_id", userID),
			zap.Error(err))
		return []string{}
	}

	return members
}

func (t *Tracker) key(userID string) string {
	return t.config.KeyPrefix + userID
}
