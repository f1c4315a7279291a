package events

import (
	"testing"

	"github.com/saiset-co/sai-interaction/logger"
	"github.com/saiset-co/sai-interaction/types"
)

type fakeBroker struct {
	action  string
	payload interface{}
	err     error
	calls   int
}

func (f *fakeBroker) Publish(action string, payload interface{}) error {
	f.calls++
	f.action = action
	f.payload = payload
	return f.err
}

func (f *fakeBroker) Subscribe(string, types.EventHandler) error { return nil }
func (f *fakeBroker) Unsubscribe(string) error                   { return nil }
func (f *fakeBroker) Start() error                               { return nil }
func (f *fakeBroker) Stop() error                                { return nil }
func (f *fakeBroker) IsRunning() bool                            { return true }

func TestPublisherFillsDefaults(t *testing.T) {
	broker := &fakeBroker{}
	publisher := NewPublisher(broker, logger.NewNop(), "web")

	err := publisher.Publish(types.InteractionEvent{
		Type:      types.InteractionViewed,
		UserID:    "user-1",
		ProductID: "prod-1",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if broker.action != types.ActionInteraction {
		t.Errorf("got action %q, want %q", broker.action, types.ActionInteraction)
	}

	event, ok := broker.payload.(types.InteractionEvent)
	if !ok {
		t.Fatalf("payload is %T, want InteractionEvent", broker.payload)
	}
	if event.Timestamp.IsZero() {
		t.Error("expected timestamp to be filled")
	}
	if event.Source != "web" {
		t.Errorf("got source %q, want web", event.Source)
	}
}

func TestPublisherKeepsExplicitSource(t *testing.T) {
	broker := &fakeBroker{}
	publisher := NewPublisher(broker, logger.NewNop(), "web")

	err := publisher.Publish(types.InteractionEvent{
		Type:      types.InteractionPurchase,
		UserID:    "user-1",
		ProductID: "prod-1",
		Source:    "mobile",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	event := broker.payload.(types.InteractionEvent)
	if event.Source != "mobile" {
		t.Errorf("got source %q, want mobile", event.Source)
	}
}

func TestPublisherRejectsInvalidEvents(t *testing.T) {
	broker := &fakeBroker{}
	publisher := NewPublisher(broker, logger.NewNop(), "")

	cases := []struct {
		name  string
		event types.InteractionEvent
	}{
		{"missing user", types.InteractionEvent{Type: types.InteractionViewed, ProductID: "prod-1"}},
		{"missing product", types.InteractionEvent{Type: types.InteractionViewed, UserID: "user-1"}},
		{"unknown type", types.InteractionEvent{Type: "CLICKED", UserID: "user-1", ProductID: "prod-1"}},
		{"missing type", types.InteractionEvent{UserID: "user-1", ProductID: "prod-1"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := publisher.Publish(tc.event)
			if !types.IsError(err, types.ErrEventInvalid) {
				t.Errorf("got %v, want ErrEventInvalid", err)
			}
		})
	}

	if broker.calls != 0 {
		t.Errorf("broker received %d invalid events", broker.calls)
	}
}

func TestPublisherWrapsBrokerFailure(t *testing.T) {
	broker := &fakeBroker{err: types.ErrEventBrokerIsFull}
	publisher := NewPublisher(broker, logger.NewNop(), "")

	err := publisher.Publish(types.InteractionEvent{
		Type:      types.InteractionViewed,
		UserID:    "user-1",
		ProductID: "prod-1",
	})
	if !types.IsError(err, types.ErrEventPublishFailed) {
		t.Errorf("got %v, want ErrEventPublishFailed", err)
	}
}
