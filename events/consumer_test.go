package events

import (
	"context"
	"testing"

	"github.com/saiset-co/sai-interaction/logger"
	"github.com/saiset-co/sai-interaction/types"
)

type fakeTracker struct {
	views [][2]string
	err   error
}

func (f *fakeTracker) RecordView(_ context.Context, userID, productID string) error {
	f.views = append(f.views, [2]string{userID, productID})
	return f.err
}

func (f *fakeTracker) ListRecent(context.Context, string) []string {
	return []string{}
}

type loggedActivity struct {
	userID       string
	activityType string
	description  string
}

type fakeBroadcaster struct {
	logged []loggedActivity
	fail   bool
}

func (f *fakeBroadcaster) LogActivity(_ context.Context, userID, activityType, description, _ string, _ bool) *types.ActivityRecord {
	if f.fail {
		return nil
	}
	f.logged = append(f.logged, loggedActivity{userID: userID, activityType: activityType, description: description})
	return &types.ActivityRecord{ID: "act-1", UserID: userID, Type: activityType}
}

func (f *fakeBroadcaster) ListByUser(context.Context, string) []types.ActivityRecord {
	return []types.ActivityRecord{}
}

func interactionMessage(interactionType, userID, productID string) *types.EventMessage {
	return &types.EventMessage{
		Action: types.ActionInteraction,
		Payload: types.InteractionEvent{
			Type:      interactionType,
			UserID:    userID,
			ProductID: productID,
		},
	}
}

func TestConsumerRecordsViewFromTypedPayload(t *testing.T) {
	tracker := &fakeTracker{}
	consumer := NewConsumer(tracker, &fakeBroadcaster{}, logger.NewNop())

	err := consumer.Handle(interactionMessage(types.InteractionViewed, "user-1", "prod-1"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(tracker.views) != 1 {
		t.Fatalf("got %d views, want 1", len(tracker.views))
	}
	if tracker.views[0] != [2]string{"user-1", "prod-1"} {
		t.Errorf("got %v", tracker.views[0])
	}
}

func TestConsumerRecordsViewFromMapPayload(t *testing.T) {
	tracker := &fakeTracker{}
	consumer := NewConsumer(tracker, &fakeBroadcaster{}, logger.NewNop())

	err := consumer.Handle(&types.EventMessage{
		Action: types.ActionInteraction,
		Payload: map[string]interface{}{
			"type":       types.InteractionViewed,
			"user_id":    "user-2",
			"product_id": "prod-2",
		},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(tracker.views) != 1 {
		t.Fatalf("got %d views, want 1", len(tracker.views))
	}
	if tracker.views[0] != [2]string{"user-2", "prod-2"} {
		t.Errorf("got %v", tracker.views[0])
	}
}

func TestConsumerLogsPurchaseAndCartAddActivity(t *testing.T) {
	tracker := &fakeTracker{}
	broadcaster := &fakeBroadcaster{}
	consumer := NewConsumer(tracker, broadcaster, logger.NewNop())

	for _, interactionType := range []string{types.InteractionPurchase, types.InteractionCartAdd} {
		err := consumer.Handle(interactionMessage(interactionType, "user-1", "prod-1"))
		if err != nil {
			t.Fatalf("Handle(%s): %v", interactionType, err)
		}
	}

	if len(broadcaster.logged) != 2 {
		t.Fatalf("got %d activities, want 2", len(broadcaster.logged))
	}
	if broadcaster.logged[0].activityType != types.InteractionPurchase {
		t.Errorf("got type %q, want %q", broadcaster.logged[0].activityType, types.InteractionPurchase)
	}
	if broadcaster.logged[1].activityType != types.InteractionCartAdd {
		t.Errorf("got type %q, want %q", broadcaster.logged[1].activityType, types.InteractionCartAdd)
	}
	for _, logged := range broadcaster.logged {
		if logged.userID != "user-1" {
			t.Errorf("got user %q, want user-1", logged.userID)
		}
		if logged.description == "" {
			t.Error("expected activity description")
		}
	}

	// Purchases and cart-adds do not touch the recency set.
	if len(tracker.views) != 0 {
		t.Errorf("got %d views, want 0", len(tracker.views))
	}
}

func TestConsumerUnknownTypeTouchesNothing(t *testing.T) {
	tracker := &fakeTracker{}
	broadcaster := &fakeBroadcaster{}
	consumer := NewConsumer(tracker, broadcaster, logger.NewNop())

	err := consumer.Handle(interactionMessage("UNKNOWN", "user-1", "prod-1"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(tracker.views) != 0 {
		t.Errorf("got %d views, want 0", len(tracker.views))
	}
	if len(broadcaster.logged) != 0 {
		t.Errorf("got %d activities, want 0", len(broadcaster.logged))
	}
}

func TestConsumerWithoutBroadcaster(t *testing.T) {
	consumer := NewConsumer(&fakeTracker{}, nil, logger.NewNop())

	err := consumer.Handle(interactionMessage(types.InteractionPurchase, "user-1", "prod-1"))
	if err != nil {
		t.Errorf("Handle returned %v, want nil", err)
	}
}

func TestConsumerDownstreamFailuresAreNotRedelivered(t *testing.T) {
	tracker := &fakeTracker{err: types.ErrKVUnavailable}
	broadcaster := &fakeBroadcaster{fail: true}
	consumer := NewConsumer(tracker, broadcaster, logger.NewNop())

	if err := consumer.Handle(interactionMessage(types.InteractionViewed, "user-1", "prod-1")); err != nil {
		t.Errorf("Handle returned %v, want nil", err)
	}
	if err := consumer.Handle(interactionMessage(types.InteractionPurchase, "user-1", "prod-1")); err != nil {
		t.Errorf("Handle returned %v, want nil", err)
	}
}

func TestConsumerDiscardsUndecodablePayload(t *testing.T) {
	tracker := &fakeTracker{}
	consumer := NewConsumer(tracker, &fakeBroadcaster{}, logger.NewNop())

	err := consumer.Handle(&types.EventMessage{
		Action:  types.ActionInteraction,
		Payload: make(chan int),
	})
	if err != nil {
		t.Errorf("Handle returned %v, want nil", err)
	}
	if len(tracker.views) != 0 {
		t.Errorf("got %d views, want 0", len(tracker.views))
	}
}
