package events

import (
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-interaction/types"
)

// Publisher validates interaction events and hands them to the broker off
// the request's critical path. Callers get either confirmation of enqueue or
// a typed error; events are never dropped silently.
type Publisher struct {
	broker    types.EventBroker
	logger    types.Logger
	validator *validator.Validate
	source    string
}

func NewPublisher(broker types.EventBroker, logger types.Logger, source string) *Publisher {
	if source == "" {
		source = "api"
	}

	return &Publisher{
		broker:    broker,
		logger:    logger,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		source:    source,
	}
}

func (p *Publisher) Publish(event types.InteractionEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Source == "" {
		event.Source = p.source
	}

	// Malformed events are rejected before the broker sees them.
	if err := p.validator.Struct(event); err != nil {
		return types.Errorf(types.ErrEventInvalid, "%v", err)
	}

	if err := p.broker.Publish(types.ActionInteraction, event); err != nil {
		p.logger.Error("Failed to publish interaction event",
			zap.String("type", event.Type),
			zap.String("user_id", event.UserID),
			zap.String("product_id", event.ProductID),
			zap.Error(err))
		return types.WrapError(types.ErrEventPublishFailed, err.Error())
	}

	return nil
}
