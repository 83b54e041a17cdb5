package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/quizairium/quizairium/internal/domain"
)

// SnapshotStore persists session snapshots as JSON values, one key per chat,
// so in-flight games survive a restart.
type SnapshotStore struct {
	client redis.UniversalClient
	prefix string
}

func NewSnapshotStore(client redis.UniversalClient, prefix string) *SnapshotStore {
	return &SnapshotStore{client: client, prefix: prefix}
}

func (s *SnapshotStore) Put(ctx context.Context, snap domain.GameSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key(snap.Chat), raw, 0).Err(); err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Delete(ctx context.Context, chat domain.ChatID) error {
	if err := s.client.Del(ctx, s.key(chat)).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) List(ctx context.Context) ([]domain.GameSnapshot, error) {
	var (
		out    []domain.GameSnapshot
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+":snapshot:*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan snapshots: %w", err)
		}
		for _, key := range keys {
			raw, err := s.client.Get(ctx, key).Bytes()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("get snapshot %s: %w", key, err)
			}
			var snap domain.GameSnapshot
			if err := json.Unmarshal(raw, &snap); err != nil {
				return nil, fmt.Errorf("unmarshal snapshot %s: %w", key, err)
			}
			out = append(out, snap)
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

func (s *SnapshotStore) key(chat domain.ChatID) string {
	return fmt.Sprintf("%s:snapshot:%s", s.prefix, chat)
}
