package store

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ostafen/clover"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-interaction/types"
)

// CloverStore backs both the record store and the search index with a
// CloverDB document database.
type CloverStore struct {
	db     *clover.DB
	logger types.Logger
	config *types.StoreConfig
	state  int32
}

func NewCloverStore(ctx context.Context, logger types.Logger, config *types.StoreConfig) (*CloverStore, error) {
	db, err := clover.Open(config.Path)
	if err != nil {
		return nil, types.WrapError(err, "failed to open CloverDB")
	}

	return &CloverStore{
		db:     db,
		logger: logger,
		config: config,
	}, nil
}

func (c *CloverStore) Start() error {
	if !atomic.CompareAndSwapInt32(&c.state, 0, 1) {
		return types.ErrServerAlreadyRunning
	}

	c.logger.Info("CloverDB store started", zap.String("path", c.config.Path))
	return nil
}

func (c *CloverStore) Stop() error {
	if !atomic.CompareAndSwapInt32(&c.state, 1, 0) {
		return types.ErrServerNotRunning
	}

	if err := c.db.Close(); err != nil {
		return types.WrapError(err, "failed to close CloverDB")
	}

	c.logger.Info("CloverDB store stopped gracefully")
	return nil
}

func (c *CloverStore) IsRunning() bool {
	return atomic.LoadInt32(&c.state) == 1
}

func (c *CloverStore) FindByID(ctx context.Context, collection, id string) (types.Document, error) {
	exists, err := c.db.HasCollection(collection)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check collection existence")
	}
	if !exists {
		return nil, types.Errorf(types.ErrRecordNotFound, "collection %s, id %s", collection, id)
	}

	doc, err := c.db.Query(collection).Where(clover.Field("id").Eq(id)).FindFirst()
	if err != nil {
		return nil, errors.Wrap(err, "failed to query document")
	}
	if doc == nil {
		return nil, types.Errorf(types.ErrRecordNotFound, "collection %s, id %s", collection, id)
	}

	return c.toDocument(doc)
}

func (c *CloverStore) FindByField(ctx context.Context, collection, field string, value interface{}) ([]types.Document, error) {
	exists, err := c.db.HasCollection(collection)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check collection existence")
	}
	if !exists {
		return []types.Document{}, nil
	}

	docs, err := c.db.Query(collection).
		Where(clover.Field(field).Eq(value)).
		Sort(clover.SortOption{Field: "cr_time", Direction: -1}).
		FindAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to query documents")
	}

	results := make([]types.Document, 0, len(docs))
	for _, doc := range docs {
		result, err := c.toDocument(doc)
		if err != nil {
			c.logger.Warn("Skipping undecodable document",
				zap.String("collection", collection), zap.Error(err))
			continue
		}
		results = append(results, result)
	}

	return results, nil
}

func (c *CloverStore) Create(ctx context.Context, collection string, doc types.Document) (string, error) {
	if doc == nil {
		return "", types.ErrRecordInvalid
	}

	exists, err := c.db.HasCollection(collection)
	if err != nil {
		return "", errors.Wrap(err, "failed to check collection existence")
	}
	if !exists {
		if err := c.db.CreateCollection(collection); err != nil {
			return "", errors.Wrap(err, "failed to create collection")
		}
	}

	id, _ := doc["id"].(string)
	if id == "" {
		id = uuid.New().String()
	}

	cloverDoc := clover.NewDocument()
	for key, value := range doc {
		cloverDoc.Set(key, value)
	}
	cloverDoc.Set("id", id)
	cloverDoc.Set("cr_time", time.Now().UnixNano())
	cloverDoc.Set("ch_time", time.Now().UnixNano())

	if err := c.db.Insert(collection, cloverDoc); err != nil {
		return "", errors.Wrap(err, "failed to insert document")
	}

	return id, nil
}

func (c *CloverStore) Update(ctx context.Context, collection, id string, doc types.Document) error {
	exists, err := c.db.HasCollection(collection)
	if err != nil {
		return errors.Wrap(err, "failed to check collection existence")
	}
	if !exists {
		return types.Errorf(types.ErrRecordNotFound, "collection %s, id %s", collection, id)
	}

	query := c.db.Query(collection).Where(clover.Field("id").Eq(id))

	count, err := query.Count()
	if err != nil {
		return errors.Wrap(err, "failed to count matching documents")
	}
	if count == 0 {
		return types.Errorf(types.ErrRecordNotFound, "collection %s, id %s", collection, id)
	}

	updateMap := make(map[string]interface{}, len(doc)+1)
	for key, value := range doc {
		if key == "id" || key == "cr_time" {
			continue
		}
		updateMap[key] = value
	}
	updateMap["ch_time"] = time.Now().UnixNano()

	if err := query.Update(updateMap); err != nil {
		return errors.Wrap(err, "failed to update document")
	}

	return nil
}

func (c *CloverStore) Delete(ctx context.Context, collection, id string) error {
	exists, err := c.db.HasCollection(collection)
	if err != nil {
		return errors.Wrap(err, "failed to check collection existence")
	}
	if !exists {
		return nil
	}

	if err := c.db.Query(collection).Where(clover.Field("id").Eq(id)).Delete(); err != nil {
		return errors.Wrap(err, "failed to delete document")
	}

	return nil
}

// GetDocumentByID implements the search index contract: a missing document is
// (nil, nil), not an error.
func (c *CloverStore) GetDocumentByID(ctx context.Context, collection, id string) (types.Document, error) {
	doc, err := c.FindByID(ctx, collection, id)
	if err != nil {
		if types.IsError(err, types.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return doc, nil
}

func (c *CloverStore) toDocument(doc *clover.Document) (types.Document, error) {
	result := make(types.Document)
	if err := doc.Unmarshal(&result); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal document")
	}

	delete(result, "_id")
	return result, nil
}
