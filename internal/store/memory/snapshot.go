package memory

import (
	"context"
	"sync"

	"github.com/quizairium/quizairium/internal/domain"
)

// SnapshotStore keeps session snapshots in a map. Recovery obviously does
// not survive a process restart with this implementation; it exists for
// tests and redis-less development.
type SnapshotStore struct {
	mu    sync.RWMutex
	snaps map[domain.ChatID]domain.GameSnapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snaps: make(map[domain.ChatID]domain.GameSnapshot)}
}

func (s *SnapshotStore) Put(_ context.Context, snap domain.GameSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.Chat] = snap
	return nil
}

func (s *SnapshotStore) Delete(_ context.Context, chat domain.ChatID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, chat)
	return nil
}

func (s *SnapshotStore) List(_ context.Context) ([]domain.GameSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.GameSnapshot, 0, len(s.snaps))
	for _, snap := range s.snaps {
		out = append(out, snap)
	}
	return out, nil
}
