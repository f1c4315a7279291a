package events

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-interaction/types"
	"github.com/saiset-co/sai-interaction/utils"
)

// Consumer folds interaction events back into per-user state. View events
// update the recency tracker; purchase and cart-add events become activity
// records. Both updates are idempotent or append-only, so at-least-once
// delivery from the broker is safe.
type Consumer struct {
	recency  types.RecencyTracker
	activity types.ActivityBroadcaster
	logger   types.Logger
	timeout  time.Duration
}

func NewConsumer(recency types.RecencyTracker, activity types.ActivityBroadcaster, logger types.Logger) *Consumer {
	return &Consumer{
		recency:  recency,
		activity: activity,
		logger:   logger,
		timeout:  5 * time.Second,
	}
}

func (c *Consumer) Register(broker types.EventBroker) error {
	return broker.Subscribe(types.ActionInteraction, c.Handle)
}

// Handle processes one interaction event. Downstream updates are best-effort:
// a failed update is logged, never propagated, so the broker does not
// redeliver what the downstream already treats as droppable.
func (c *Consumer) Handle(msg *types.EventMessage) error {
	event, err := c.decode(msg)
	if err != nil {
		c.logger.Error("Discarding undecodable interaction event",
			zap.String("message_id", msg.MessageID),
			zap.Error(err))
		return nil
	}

	switch event.Type {
	case types.InteractionViewed:
		c.recordView(event)
	case types.InteractionPurchase, types.InteractionCartAdd:
		c.recordActivity(event)
	default:
		c.logger.Warn("Unknown interaction type",
			zap.String("type", event.Type),
			zap.String("message_id", msg.MessageID))
	}

	return nil
}

func (c *Consumer) recordView(event *types.InteractionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.recency.RecordView(ctx, event.UserID, event.ProductID); err != nil {
		c.logger.Warn("Recency update dropped",
			zap.String("user_id", event.UserID),
			zap.String("product_id", event.ProductID),
			zap.Error(err))
	}
}

func (c *Consumer) recordActivity(event *types.InteractionEvent) {
	if c.activity == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	description := fmt.Sprintf("product %s", event.ProductID)
	if event.Source != "" {
		description = fmt.Sprintf("product %s via %s", event.ProductID, event.Source)
	}

	record := c.activity.LogActivity(ctx, event.UserID, event.Type, description, "", true)
	if record == nil {
		c.logger.Warn("Interaction activity not recorded",
			zap.String("type", event.Type),
			zap.String("user_id", event.UserID),
			zap.String("product_id", event.ProductID))
	}
}

// decode tolerates both a typed payload (in-process broker) and a generic
// map (payload that crossed a serialization boundary).
func (c *Consumer) decode(msg *types.EventMessage) (*types.InteractionEvent, error) {
	if event, ok := msg.Payload.(types.InteractionEvent); ok {
		return &event, nil
	}
	if event, ok := msg.Payload.(*types.InteractionEvent); ok {
		return event, nil
	}

	var event types.InteractionEvent
	if err := utils.UnmarshalConfig(msg.Payload, &event); err != nil {
		return nil, err
	}

	return &event, nil
}
