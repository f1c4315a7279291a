package session

import (
	"testing"
	"time"

	"github.com/saiset-co/sai-interaction/logger"
	"github.com/saiset-co/sai-interaction/types"
)

func newTestStore() (*Store, *time.Time) {
	store := NewStore(logger.NewNop())
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }
	return store, &current
}

func TestStoreSetAndGetAllWithPrefix(t *testing.T) {
	store, _ := newTestStore()

	store.Set("cart:alice", map[string]interface{}{"items": 3})
	store.Set("cart:bob", map[string]interface{}{"items": 1})
	store.Set("wishlist:alice", map[string]interface{}{"items": 7})

	carts := store.GetAllWithPrefix("cart:")
	if len(carts) != 2 {
		t.Fatalf("got %d sessions, want 2", len(carts))
	}
	if carts["cart:alice"]["items"] != 3 {
		t.Errorf("got %v, want 3", carts["cart:alice"]["items"])
	}

	all := store.GetAllWithPrefix("")
	if len(all) != 3 {
		t.Errorf("got %d sessions, want 3", len(all))
	}
}

func TestStoreSnapshotIsolation(t *testing.T) {
	store, _ := newTestStore()

	store.Set("cart:alice", map[string]interface{}{"items": 3})

	snapshot := store.GetAllWithPrefix("cart:")

	if err := store.UpdateField("cart:alice", "items", 5); err != nil {
		t.Fatalf("UpdateField: %v", err)
	}

	if snapshot["cart:alice"]["items"] != 3 {
		t.Errorf("snapshot mutated, got %v", snapshot["cart:alice"]["items"])
	}
}

func TestStoreSetCopiesCallerMap(t *testing.T) {
	store, _ := newTestStore()

	fields := map[string]interface{}{"items": 3}
	store.Set("cart:alice", fields)
	fields["items"] = 99

	got := store.GetAllWithPrefix("cart:")
	if got["cart:alice"]["items"] != 3 {
		t.Errorf("stored fields aliased caller map, got %v", got["cart:alice"]["items"])
	}
}

func TestStoreUpdateFieldMissingSession(t *testing.T) {
	store, _ := newTestStore()

	err := store.UpdateField("missing", "field", "value")
	if !types.IsError(err, types.ErrSessionNotFound) {
		t.Errorf("got %v, want ErrSessionNotFound", err)
	}

	// The failed update must not create the session.
	if len(store.GetAllWithPrefix("")) != 0 {
		t.Error("UpdateField created a session")
	}
}

func TestStoreDelete(t *testing.T) {
	store, _ := newTestStore()

	store.Set("cart:alice", map[string]interface{}{"items": 3})
	store.Delete("cart:alice")
	store.Delete("cart:alice")

	if len(store.GetAllWithPrefix("")) != 0 {
		t.Error("expected empty store after delete")
	}
}

func TestStorePrune(t *testing.T) {
	store, current := newTestStore()

	store.Set("cart:old", map[string]interface{}{"items": 1})

	*current = current.Add(30 * time.Minute)
	store.Set("cart:fresh", map[string]interface{}{"items": 2})

	pruned := store.Prune(20 * time.Minute)
	if pruned != 1 {
		t.Fatalf("got %d pruned, want 1", pruned)
	}

	remaining := store.GetAllWithPrefix("")
	if _, exists := remaining["cart:fresh"]; !exists {
		t.Error("fresh session was pruned")
	}
	if _, exists := remaining["cart:old"]; exists {
		t.Error("idle session survived prune")
	}
}

func TestStorePruneTouchedSessionSurvives(t *testing.T) {
	store, current := newTestStore()

	store.Set("cart:alice", map[string]interface{}{"items": 1})

	*current = current.Add(15 * time.Minute)
	if err := store.UpdateField("cart:alice", "items", 2); err != nil {
		t.Fatalf("UpdateField: %v", err)
	}

	*current = current.Add(10 * time.Minute)

	if pruned := store.Prune(20 * time.Minute); pruned != 0 {
		t.Errorf("got %d pruned, want 0", pruned)
	}
}

func TestStorePruneNonPositiveMaxIdle(t *testing.T) {
	store, _ := newTestStore()

	store.Set("cart:alice", map[string]interface{}{"items": 1})

	if pruned := store.Prune(0); pruned != 0 {
		t.Errorf("got %d pruned, want 0", pruned)
	}
}
