package types

import (
	"context"
)

// Document is a field-name keyed record as stored in the record store and
// the search index.
type Document = map[string]interface{}

// RecordStore is the source of truth for products and activities.
type RecordStore interface {
	LifecycleManager
	FindByID(ctx context.Context, collection, id string) (Document, error)
	FindByField(ctx context.Context, collection, field string, value interface{}) ([]Document, error)
	Create(ctx context.Context, collection string, doc Document) (string, error)
	Update(ctx context.Context, collection, id string, doc Document) error
	Delete(ctx context.Context, collection, id string) error
}

// SearchIndex is the origin consulted on product cache misses. A nil document
// with a nil error means the index has no record for the id.
type SearchIndex interface {
	GetDocumentByID(ctx context.Context, collection, id string) (Document, error)
}

type RecordStoreCreator func(config interface{}) (RecordStore, error)
