package kv

import (
	"context"
	"testing"
	"time"

	"github.com/saiset-co/sai-interaction/logger"
	"github.com/saiset-co/sai-interaction/types"
)

func newTestMemoryKV(t *testing.T) (*MemoryKV, *time.Time) {
	t.Helper()

	store, err := NewMemoryKV(context.Background(), logger.NewNop(), &types.KVConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("NewMemoryKV: %v", err)
	}

	mem := store.(*MemoryKV)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mem.now = func() time.Time { return current }

	return mem, &current
}

func TestMemoryKVSetGet(t *testing.T) {
	mem, _ := newTestMemoryKV(t)
	ctx := context.Background()

	if err := mem.Set(ctx, "key", []byte("value"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, exists := mem.Get(ctx, "key")
	if !exists {
		t.Fatal("expected key to exist")
	}
	if string(data) != "value" {
		t.Errorf("got %q, want %q", data, "value")
	}

	if _, exists := mem.Get(ctx, "missing"); exists {
		t.Error("expected missing key to be absent")
	}
}

func TestMemoryKVSetEmptyKey(t *testing.T) {
	mem, _ := newTestMemoryKV(t)

	err := mem.Set(context.Background(), "", []byte("value"), 0)
	if !types.IsError(err, types.ErrKVKeyEmpty) {
		t.Errorf("got %v, want ErrKVKeyEmpty", err)
	}
}

func TestMemoryKVExpiry(t *testing.T) {
	mem, current := newTestMemoryKV(t)
	ctx := context.Background()

	if err := mem.Set(ctx, "key", []byte("value"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, exists := mem.Get(ctx, "key"); !exists {
		t.Fatal("expected key before expiry")
	}

	*current = current.Add(2 * time.Minute)

	if _, exists := mem.Get(ctx, "key"); exists {
		t.Error("expected key to expire")
	}
}

func TestMemoryKVDelete(t *testing.T) {
	mem, _ := newTestMemoryKV(t)
	ctx := context.Background()

	if err := mem.Set(ctx, "key", []byte("value"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := mem.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, exists := mem.Get(ctx, "key"); exists {
		t.Error("expected key to be deleted")
	}
}

func TestMemoryKVAddRecentOrdering(t *testing.T) {
	mem, _ := newTestMemoryKV(t)
	ctx := context.Background()

	for i, member := range []string{"a", "b", "c"} {
		if err := mem.AddRecent(ctx, "recent", member, float64(i+1), 10, 0); err != nil {
			t.Fatalf("AddRecent(%s): %v", member, err)
		}
	}

	members, err := mem.RecentMembers(ctx, "recent", 10)
	if err != nil {
		t.Fatalf("RecentMembers: %v", err)
	}

	want := []string{"c", "b", "a"}
	assertMembers(t, members, want)
}

func TestMemoryKVAddRecentTrimsToLimit(t *testing.T) {
	mem, _ := newTestMemoryKV(t)
	ctx := context.Background()

	for i, member := range []string{"a", "b", "c", "d", "e"} {
		if err := mem.AddRecent(ctx, "recent", member, float64(i+1), 3, 0); err != nil {
			t.Fatalf("AddRecent(%s): %v", member, err)
		}
	}

	members, err := mem.RecentMembers(ctx, "recent", 10)
	if err != nil {
		t.Fatalf("RecentMembers: %v", err)
	}

	assertMembers(t, members, []string{"e", "d", "c"})
}

func TestMemoryKVAddRecentRefreshesExistingMember(t *testing.T) {
	mem, _ := newTestMemoryKV(t)
	ctx := context.Background()

	scores := map[string]float64{"a": 1, "b": 2, "c": 3}
	for _, member := range []string{"a", "b", "c"} {
		if err := mem.AddRecent(ctx, "recent", member, scores[member], 3, 0); err != nil {
			t.Fatalf("AddRecent(%s): %v", member, err)
		}
	}

	// Re-adding an existing member must move it to the front without
	// growing the set.
	if err := mem.AddRecent(ctx, "recent", "a", 4, 3, 0); err != nil {
		t.Fatalf("AddRecent(a): %v", err)
	}

	members, err := mem.RecentMembers(ctx, "recent", 10)
	if err != nil {
		t.Fatalf("RecentMembers: %v", err)
	}

	assertMembers(t, members, []string{"a", "c", "b"})
}

func TestMemoryKVRecentMembersExpiredSet(t *testing.T) {
	mem, current := newTestMemoryKV(t)
	ctx := context.Background()

	if err := mem.AddRecent(ctx, "recent", "a", 1, 10, time.Minute); err != nil {
		t.Fatalf("AddRecent: %v", err)
	}

	*current = current.Add(2 * time.Minute)

	members, err := mem.RecentMembers(ctx, "recent", 10)
	if err != nil {
		t.Fatalf("RecentMembers: %v", err)
	}
	if len(members) != 0 {
		t.Errorf("expected empty set after expiry, got %v", members)
	}
}

func assertMembers(t *testing.T, got, want []string) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
