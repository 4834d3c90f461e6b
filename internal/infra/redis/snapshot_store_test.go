package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"exam-session-service/internal/domain"
)

func TestSnapshotStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	defer mr.Close()

	store := NewSnapshotStore(client, time.Minute)
	snap := domain.Snapshot{
		ExamID:  "exam-1",
		Idx:     1,
		Mode:    "taking",
		Answers: map[int]string{0: "a", 1: "b"},
		Flagged: map[int]bool{1: true},
	}

	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("exam:attempt:exam-1") {
		t.Fatalf("expected redis key to be set")
	}

	loaded, err := store.Load(ctx, "exam-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil || loaded.Idx != 1 || loaded.Answers[1] != "b" || !loaded.Flagged[1] {
		t.Fatalf("unexpected snapshot: %+v", loaded)
	}

	snaps, err := store.List(ctx)
	if err != nil || len(snaps) != 1 {
		t.Fatalf("expected one listed snapshot, got %d (err %v)", len(snaps), err)
	}

	if err := store.Delete(ctx, "exam-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("exam:attempt:exam-1") {
		t.Fatalf("expected redis key removed")
	}
	if loaded, _ := store.Load(ctx, "exam-1"); loaded != nil {
		t.Fatalf("expected nil for missing snapshot")
	}
	if err := store.Delete(ctx, "exam-1"); err != nil {
		t.Fatalf("delete of missing snapshot should be a no-op: %v", err)
	}
}

func TestSnapshotListDropsExpiredValues(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	defer mr.Close()

	store := NewSnapshotStore(client, time.Minute)
	if err := store.Save(ctx, domain.Snapshot{ExamID: "exam-1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	snaps, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(snaps) != 0 {
		t.Fatalf("expected expired snapshot dropped, got %d", len(snaps))
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}
