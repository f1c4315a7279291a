package types

import (
	"context"
	"time"
)

// ActivityRecord is append-only; it is never mutated after creation.
type ActivityRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	DownloadURL string    `json:"download_url,omitempty"`
	Success     bool      `json:"success"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notifier pushes payloads to the live connections of a single user.
// Sends are fire-and-forget; a user with no live connection is not an error.
type Notifier interface {
	LifecycleManager
	SendToUser(userID string, payload interface{}, messageType string) error
}

type ActivityBroadcaster interface {
	LogActivity(ctx context.Context, userID, activityType, description, downloadURL string, success bool) *ActivityRecord
	ListByUser(ctx context.Context, userID string) []ActivityRecord
}
