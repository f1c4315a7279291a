package kv

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-interaction/types"
	"github.com/saiset-co/sai-interaction/utils"
)

type MemoryConfig struct {
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type scoredMember struct {
	member string
	score  float64
}

type memorySet struct {
	members   map[string]float64
	expiresAt time.Time
}

// MemoryKV is the process-local twin of the redis store, used in tests and
// single-node deployments.
type MemoryKV struct {
	ctx         context.Context
	cancel      context.CancelFunc
	logger      types.Logger
	config      *MemoryConfig
	entries     map[string]*memoryEntry
	sets        map[string]*memorySet
	mu          sync.RWMutex
	now         func() time.Time
	stopCleanup chan struct{}
	started     int32
}

func NewMemoryKV(ctx context.Context, logger types.Logger, config *types.KVConfig) (types.KVStore, error) {
	memConfig := &MemoryConfig{
		CleanupInterval: 5 * time.Minute,
	}

	if config.Config != nil {
		err := utils.UnmarshalConfig(config.Config, memConfig)
		if err != nil {
			return nil, types.WrapError(err, "failed to unmarshal memory kv config")
		}
	}

	kvCtx, cancel := context.WithCancel(ctx)

	return &MemoryKV{
		ctx:         kvCtx,
		cancel:      cancel,
		logger:      logger,
		config:      memConfig,
		entries:     make(map[string]*memoryEntry),
		sets:        make(map[string]*memorySet),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}, nil
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool) {
	if key == "" {
		return nil, false
	}

	m.mu.RLock()
	entry, exists := m.entries[key]
	m.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return types.ErrKVKeyEmpty
	}

	entry := &memoryEntry{value: make([]byte, len(value))}
	copy(entry.value, value)

	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()

	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	if key == "" {
		return nil
	}

	m.mu.Lock()
	delete(m.entries, key)
	delete(m.sets, key)
	m.mu.Unlock()

	return nil
}

func (m *MemoryKV) AddRecent(_ context.Context, key, member string, score float64, limit int64, ttl time.Duration) error {
	if key == "" {
		return types.ErrKVKeyEmpty
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	set, exists := m.sets[key]
	if exists && !set.expiresAt.IsZero() && m.now().After(set.expiresAt) {
		exists = false
	}
	if !exists {
		set = &memorySet{members: make(map[string]float64)}
		m.sets[key] = set
	}

	set.members[member] = score

	if limit > 0 && int64(len(set.members)) > limit {
		ranked := m.rank(set)
		for _, sm := range ranked[limit:] {
			delete(set.members, sm.member)
		}
	}

	if ttl > 0 {
		set.expiresAt = m.now().Add(ttl)
	}

	return nil
}

func (m *MemoryKV) RecentMembers(_ context.Context, key string, limit int64) ([]string, error) {
	if key == "" {
		return nil, types.ErrKVKeyEmpty
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	set, exists := m.sets[key]
	if !exists {
		return []string{}, nil
	}

	if !set.expiresAt.IsZero() && m.now().After(set.expiresAt) {
		return []string{}, nil
	}

	ranked := m.rank(set)
	if limit > 0 && int64(len(ranked)) > limit {
		ranked = ranked[:limit]
	}

	members := make([]string, 0, len(ranked))
	for _, sm := range ranked {
		members = append(members, sm.member)
	}

	return members, nil
}

func (m *MemoryKV) Ping(_ context.Context) error {
	return nil
}

func (m *MemoryKV) Start() error {
	if !atomic.CompareAndSwapInt32(&m.started, 0, 1) {
		return types.ErrServerAlreadyRunning
	}

	go m.cleanupLoop()

	m.logger.Info("Memory kv store started",
		zap.Duration("cleanup_interval", m.config.CleanupInterval))

	return nil
}

func (m *MemoryKV) Stop() error {
	if !atomic.CompareAndSwapInt32(&m.started, 1, 0) {
		return types.ErrServerNotRunning
	}

	close(m.stopCleanup)
	m.cancel()

	m.mu.Lock()
	m.entries = make(map[string]*memoryEntry)
	m.sets = make(map[string]*memorySet)
	m.mu.Unlock()

	m.logger.Info("Memory kv store stopped gracefully")
	return nil
}

func (m *MemoryKV) IsRunning() bool {
	return atomic.LoadInt32(&m.started) == 1
}

// rank returns members ordered by descending score. Callers must hold the
// lock.
func (m *MemoryKV) rank(set *memorySet) []scoredMember {
	ranked := make([]scoredMember, 0, len(set.members))
	for member, score := range set.members {
		ranked = append(ranked, scoredMember{member: member, score: score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score == ranked[j].score {
			return ranked[i].member < ranked[j].member
		}
		return ranked[i].score > ranked[j].score
	})

	return ranked
}

func (m *MemoryKV) cleanupLoop() {
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.removeExpired()
		case <-m.stopCleanup:
			return
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *MemoryKV) removeExpired() {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, entry := range m.entries {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	for key, set := range m.sets {
		if !set.expiresAt.IsZero() && now.After(set.expiresAt) {
			delete(m.sets, key)
			removed++
		}
	}

	if removed > 0 {
		m.logger.Debug("Removed expired kv entries", zap.Int("count", removed))
	}
}
