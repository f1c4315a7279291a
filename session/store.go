package session

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-interaction/types"
)

type entry struct {
	fields    map[string]interface{}
	updatedAt time.Time
}

// Store holds short-lived per-session state in process memory. Nothing is
// persisted; lifetime equals process lifetime.
type Store struct {
	logger   types.Logger
	sessions map[string]*entry
	mu       sync.RWMutex
	now      func() time.Time
}

func NewStore(logger types.Logger) *Store {
	return &Store{
		logger:   logger,
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

func (s *Store) Set(key string, fields map[string]interface{}) {
	if key == "" {
		return
	}

	stored := make(map[string]interface{}, len(fields))
	for field, value := range fields {
		stored[field] = value
	}

	s.mu.Lock()
	s.sessions[key] = &entry{fields: stored, updatedAt: s.now()}
	s.mu.Unlock()
}

// GetAllWithPrefix returns a snapshot; later mutations of the store do not
// affect the returned mapping.
func (s *Store) GetAllWithPrefix(prefix string) map[string]map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]map[string]interface{})
	for key, e := range s.sessions {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		fields := make(map[string]interface{}, len(e.fields))
		for field, value := range e.fields {
			fields[field] = value
		}
		result[key] = fields
	}

	return result
}

// UpdateField never creates a session: updating an absent key would leave
// orphaned partial state behind.
func (s *Store) UpdateField(key, field string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.sessions[key]
	if !exists {
		return types.Errorf(types.ErrSessionNotFound, "key: %s", key)
	}

	e.fields[field] = value
	e.updatedAt = s.now()
	return nil
}

func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
}

// Prune drops sessions that have not been written for longer than maxIdle and
// returns how many were removed. The store itself has no TTL; expiry is the
// caller's policy.
func (s *Store) Prune(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}

	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.sessions {
		if e.updatedAt.Before(cutoff) {
			delete(s.sessions, key)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("Pruned idle sessions",
			zap.Int("count", removed),
			zap.Duration("max_idle", maxIdle))
	}

	return removed
}
