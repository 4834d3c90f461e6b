package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"exam-session-service/internal/domain"
)

const snapshotIndexKey = "exam:attempts"

// SnapshotStore persists in-progress attempt snapshots in Redis, one JSON
// value per exam id plus a set indexing the saved ids. Saves are idempotent
// upserts; deletes of missing snapshots are no-ops.
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

func (s *SnapshotStore) Save(ctx context.Context, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(snap.ExamID), data, s.ttl)
	pipe.SAdd(ctx, snapshotIndexKey, snap.ExamID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Load(ctx context.Context, examID string) (*domain.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key(examID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (s *SnapshotStore) Delete(ctx context.Context, examID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(examID))
	pipe.SRem(ctx, snapshotIndexKey, examID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) List(ctx context.Context) ([]domain.Snapshot, error) {
	ids, err := s.client.SMembers(ctx, snapshotIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	snaps := make([]domain.Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			// Value expired out from under the index; drop the stale member.
			_ = s.client.SRem(ctx, snapshotIndexKey, id).Err()
			continue
		}
		snaps = append(snaps, *snap)
	}
	return snaps, nil
}

func (s *SnapshotStore) key(examID string) string {
	return "exam:attempt:" + examID
}
