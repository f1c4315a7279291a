package types

import (
	"time"
)

// SessionStore is process-local state keyed by session key. Under a
// multi-worker deployment sessions are not shared across workers; callers
// that need shared sessions must externalize them and re-specify consistency.
type SessionStore interface {
	Set(key string, fields map[string]interface{})
	GetAllWithPrefix(prefix string) map[string]map[string]interface{}
	UpdateField(key, field string, value interface{}) error
	Delete(key string)
	Prune(maxIdle time.Duration) int
}
