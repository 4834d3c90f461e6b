package memory

import (
	"context"
	"testing"

	"exam-session-service/internal/domain"
)

func TestSnapshotStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore()

	snap := domain.Snapshot{ExamID: "exam-1", Idx: 2, Answers: map[int]string{0: "a"}}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Saving the same snapshot twice leaves state unchanged.
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("second save: %v", err)
	}

	loaded, err := store.Load(ctx, "exam-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil || loaded.Idx != 2 || loaded.Answers[0] != "a" {
		t.Fatalf("unexpected snapshot: %+v", loaded)
	}

	if err := store.Delete(ctx, "exam-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if loaded, _ := store.Load(ctx, "exam-1"); loaded != nil {
		t.Fatalf("expected snapshot removed")
	}
	// Deleting a missing snapshot is a no-op, never an error.
	if err := store.Delete(ctx, "exam-1"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}
