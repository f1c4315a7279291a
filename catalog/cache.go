package catalog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-interaction/types"
	"github.com/saiset-co/sai-interaction/utils"
)

// Cache is the cache-aside read path for product documents: check the kv
// store first, fall back to the search index on a miss and repopulate with a
// fixed TTL. Negative lookups are never cached so newly indexed products
// become visible immediately.
type Cache struct {
	kv     types.KVStore
	index  types.SearchIndex
	logger types.Logger
	config *types.CatalogConfig
}

func NewCache(kv types.KVStore, index types.SearchIndex, logger types.Logger, config *types.CatalogConfig) *Cache {
	cfg := &types.CatalogConfig{
		Collection:   "products",
		KeyPrefix:    "product:",
		TTL:          24 * time.Hour,
		FetchTimeout: 5 * time.Second,
	}
	if config != nil {
		if config.Collection != "" {
			cfg.Collection = config.Collection
		}
		if config.KeyPrefix != "" {
			cfg.KeyPrefix = config.KeyPrefix
		}
		if config.TTL > 0 {
			cfg.TTL = config.TTL
		}
		if config.FetchTimeout > 0 {
			cfg.FetchTimeout = config.FetchTimeout
		}
	}

	return &Cache{
		kv:     kv,
		index:  index,
		logger: logger,
		config: cfg,
	}
}

func (c *Cache) Get(ctx context.Context, productID string) (types.Document, error) {
	if productID == "" {
		return nil, types.Errorf(types.ErrInvalidParameter, "product id is empty")
	}

	key := c.key(productID)

	if data, exists := c.kv.Get(ctx, key); exists {
		var doc types.Document
		if err := utils.Unmarshal(data, &doc); err == nil {
			return doc, nil
		}

		// An undecodable entry is treated as a miss; drop it and refetch
		// from the origin.
		c.logger.Warn("Discarding undecodable cache entry",
			zap.String("product_id", productID))
		if err := c.kv.Delete(ctx, key); err != nil {
			c.logger.Warn("Failed to drop undecodable cache entry",
				zap.String("product_id", productID), zap.Error(err))
		}
	}

	doc, err := c.fetch(ctx, productID)
	if err != nil {
		return nil, err
	}

	data, err := utils.Marshal(doc)
	if err != nil {
		c.logger.Error("Failed to serialize product document for caching",
			zap.String("product_id", productID), zap.Error(err))
		return doc, nil
	}

	if err := c.kv.Set(ctx, key, data, c.config.TTL); err != nil {
		c.logger.Warn("Failed to populate product cache",
			zap.String("product_id", productID), zap.Error(err))
	}

	return doc, nil
}

// Invalidate removes the cached entry for a product. Write paths call it
// synchronously; otherwise the staleness window is the full TTL.
func (c *Cache) Invalidate(ctx context.Context, productID string) error {
	if productID == "" {
		return nil
	}
	return c.kv.Delete(ctx, c.key(productID))
}

func (c *Cache) fetch(ctx context.Context, productID string) (types.Document, error) {
	fetchCtx := ctx
	if c.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.config.FetchTimeout)
		defer cancel()
	}

	doc, err := c.index.GetDocumentByID(fetchCtx, c.config.Collection, productID)
	if err != nil {
		// A timed-out origin fetch is not-found for this call only; the
		// negative result is never cached.
		if types.IsError(err, context.DeadlineExceeded) || types.IsError(err, context.Canceled) {
			c.logger.Warn("Origin fetch timed out",
				zap.String("product_id", productID), zap.Error(err))
			return nil, types.Errorf(types.ErrProductNotFound, "id: %s", productID)
		}
		return nil, types.WrapError(err, "origin fetch failed")
	}

	if doc == nil {
		return nil, types.Errorf(types.ErrProductNotFound, "id: %s", productID)
	}

	return doc, nil
}

func (c *Cache) key(productID string) string {
	return c.config.KeyPrefix + productID
}
