package memory

import (
	"context"
	"sync"

	"exam-session-service/internal/domain"
)

// SnapshotStore is an in-memory implementation of app.SnapshotStore.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]domain.Snapshot
	saveErr   error
	deleteErr error
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]domain.Snapshot)}
}

// FailSaves makes every subsequent Save return err. Test-only hook for
// exercising the save-failure contract.
func (s *SnapshotStore) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// FailDeletes makes every subsequent Delete return err. Test-only hook for
// exercising the finalize-cleanup contract.
func (s *SnapshotStore) FailDeletes(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErr = err
}

func (s *SnapshotStore) Save(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.snapshots[snap.ExamID] = snap
	return nil
}

func (s *SnapshotStore) Load(_ context.Context, examID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[examID]
	if !ok {
		return nil, nil
	}
	out := snap
	return &out, nil
}

func (s *SnapshotStore) Delete(_ context.Context, examID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.snapshots, examID)
	return nil
}

func (s *SnapshotStore) List(_ context.Context) ([]domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap)
	}
	return out, nil
}
