package types

import (
	"context"
)

// ProductCache serves product documents through a cache-aside path backed by
// the search index.
type ProductCache interface {
	Get(ctx context.Context, productID string) (Document, error)
	Invalidate(ctx context.Context, productID string) error
}

// RecencyTracker keeps a bounded, time-ordered set of recently viewed
// products per user. Both operations are best-effort.
type RecencyTracker interface {
	RecordView(ctx context.Context, userID, productID string) error
	ListRecent(ctx context.Context, userID string) []string
}
