package types

import (
	"time"
)

const ActionInteraction = "interactions"

const (
	InteractionViewed   = "RECENTLY_VIEWED"
	InteractionPurchase = "PURCHASE"
	InteractionCartAdd  = "ADD_TO_CART"
)

// InteractionEvent is the immutable record emitted by the request path and
// consumed asynchronously. Delivery is at-least-once; consumers must be
// idempotent.
type InteractionEvent struct {
	Type      string    `json:"type" validate:"required,oneof=RECENTLY_VIEWED PURCHASE ADD_TO_CART"`
	Subtype   string    `json:"subtype,omitempty"`
	UserID    string    `json:"user_id" validate:"required"`
	ProductID string    `json:"product_id" validate:"required"`
	Source    string    `json:"source,omitempty"`
	TimeSpent float64   `json:"time_spent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type EventMessage struct {
	Action    string      `json:"action"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"`
	MessageID string      `json:"message_id"`
	Attempt   int         `json:"attempt"`
}

type EventHandler func(msg *EventMessage) error

type EventBroker interface {
	LifecycleManager
	Publish(action string, payload interface{}) error
	Subscribe(action string, handler EventHandler) error
	Unsubscribe(action string) error
}

type EventBrokerCreator func(config interface{}) (EventBroker, error)
