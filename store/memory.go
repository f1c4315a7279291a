package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/saiset-co/sai-interaction/types"
)

// MemoryStore is the in-process twin of the clover store, used in tests and
// ephemeral deployments.
type MemoryStore struct {
	collections map[string]map[string]types.Document
	mutex       sync.RWMutex
	logger      types.Logger
	state       int32
}

func NewMemoryStore(ctx context.Context, logger types.Logger, config *types.StoreConfig) (*MemoryStore, error) {
	return &MemoryStore{
		collections: make(map[string]map[string]types.Document),
		logger:      logger,
	}, nil
}

func (m *MemoryStore) Start() error {
	if !atomic.CompareAndSwapInt32(&m.state, 0, 1) {
		return types.ErrServerAlreadyRunning
	}

	m.logger.Info("Memory store started")
	return nil
}

func (m *MemoryStore) Stop() error {
	if !atomic.CompareAndSwapInt32(&m.state, 1, 0) {
		return types.ErrServerNotRunning
	}

	m.mutex.Lock()
	m.collections = make(map[string]map[string]types.Document)
	m.mutex.Unlock()

	m.logger.Info("Memory store stopped gracefully")
	return nil
}

func (m *MemoryStore) IsRunning() bool {
	return atomic.LoadInt32(&m.state) == 1
}

func (m *MemoryStore) FindByID(ctx context.Context, collection, id string) (types.Document, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	docs, exists := m.collections[collection]
	if !exists {
		return nil, types.Errorf(types.ErrRecordNotFound, "collection %s, id %s", collection, id)
	}

	doc, exists := docs[id]
	if !exists {
		return nil, types.Errorf(types.ErrRecordNotFound, "collection %s, id %s", collection, id)
	}

	return copyDocument(doc), nil
}

func (m *MemoryStore) FindByField(ctx context.Context, collection, field string, value interface{}) ([]types.Document, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	docs, exists := m.collections[collection]
	if !exists {
		return []types.Document{}, nil
	}

	results := make([]types.Document, 0)
	for _, doc := range docs {
		if doc[field] == value {
			results = append(results, copyDocument(doc))
		}
	}

	sort.Slice(results, func(i, j int) bool {
		ti, _ := results[i]["cr_time"].(int64)
		tj, _ := results[j]["cr_time"].(int64)
		return ti > tj
	})

	return results, nil
}

func (m *MemoryStore) Create(ctx context.Context, collection string, doc types.Document) (string, error) {
	if doc == nil {
		return "", types.ErrRecordInvalid
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.collections[collection]; !exists {
		m.collections[collection] = make(map[string]types.Document)
	}

	id, _ := doc["id"].(string)
	if id == "" {
		id = uuid.New().String()
	}

	stored := copyDocument(doc)
	stored["id"] = id
	stored["cr_time"] = time.Now().UnixNano()
	stored["ch_time"] = time.Now().UnixNano()

	m.collections[collection][id] = stored
	return id, nil
}

func (m *MemoryStore) Update(ctx context.Context, collection, id string, doc types.Document) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	docs, exists := m.collections[collection]
	if !exists {
		return types.Errorf(types.ErrRecordNotFound, "collection %s, id %s", collection, id)
	}

	existing, exists := docs[id]
	if !exists {
		return types.Errorf(types.ErrRecordNotFound, "collection %s, id %s", collection, id)
	}

	for key, value := range doc {
		if key == "id" || key == "cr_time" {
			continue
		}
		existing[key] = value
	}
	existing["ch_time"] = time.Now().UnixNano()

	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if docs, exists := m.collections[collection]; exists {
		delete(docs, id)
	}

	return nil
}

func (m *MemoryStore) GetDocumentByID(ctx context.Context, collection, id string) (types.Document, error) {
	doc, err := m.FindByID(ctx, collection, id)
	if err != nil {
		if types.IsError(err, types.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return doc, nil
}

func copyDocument(doc types.Document) types.Document {
	dup := make(types.Document, len(doc))
	for key, value := range doc {
		dup[key] = value
	}
	return dup
}
