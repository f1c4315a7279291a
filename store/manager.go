package store

import (
	"context"

	"github.com/saiset-co/sai-interaction/types"
)

// Store combines the record store with the search index view over the same
// document database.
type Store interface {
	types.RecordStore
	types.SearchIndex
}

func NewStore(ctx context.Context, config types.ConfigManager, logger types.Logger) (Store, error) {
	storeConfig := config.GetConfig().Store
	if storeConfig == nil {
		return nil, types.ErrConfigIsNil
	}

	switch storeConfig.Type {
	case "memory":
		return NewMemoryStore(ctx, logger, storeConfig)
	case "clover":
		return NewCloverStore(ctx, logger, storeConfig)
	default:
		return nil, types.Errorf(types.ErrStoreTypeUnknown, "type: %s", storeConfig.Type)
	}
}
