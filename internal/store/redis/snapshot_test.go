package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizairium/quizairium/internal/domain"
	storeredis "github.com/quizairium/quizairium/internal/store/redis"
)

func snapshotFor(chat domain.ChatID, round int) domain.GameSnapshot {
	return domain.GameSnapshot{
		GameID:   "g-" + string(chat),
		Chat:     chat,
		State:    domain.StateAwaitingAnswers,
		Round:    round,
		Question: domain.Question{Prompt: "What is 2 + 2?", Acceptable: []string{"4"}, Canonical: "4"},
		Deadline: time.Now().Add(time.Minute).UTC().Truncate(time.Second),
		Config:   domain.GameConfig{Rounds: 5, RoundTime: 30 * time.Second},
	}
}

func TestSnapshotStore_PutListDelete(t *testing.T) {
	t.Parallel()

	s := storeredis.NewSnapshotStore(makeClient(t), "quizairium")
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, snapshotFor("tg:1", 2)))
	require.NoError(t, s.Put(ctx, snapshotFor("ws:lobby", 1)))

	out, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)

	byChat := make(map[domain.ChatID]domain.GameSnapshot, len(out))
	for _, snap := range out {
		byChat[snap.Chat] = snap
	}
	assert.Equal(t, 2, byChat["tg:1"].Round)
	assert.Equal(t, "What is 2 + 2?", byChat["ws:lobby"].Question.Prompt)

	require.NoError(t, s.Delete(ctx, "tg:1"))

	out, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, domain.ChatID("ws:lobby"), out[0].Chat)
}

func TestSnapshotStore_PutOverwritesChat(t *testing.T) {
	t.Parallel()

	s := storeredis.NewSnapshotStore(makeClient(t), "quizairium")
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, snapshotFor("tg:1", 1)))
	require.NoError(t, s.Put(ctx, snapshotFor("tg:1", 2)))

	out, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1, "one snapshot per chat")
	assert.Equal(t, 2, out[0].Round)
}

func TestSnapshotStore_DeleteMissingIsNoOp(t *testing.T) {
	t.Parallel()

	s := storeredis.NewSnapshotStore(makeClient(t), "quizairium")
	assert.NoError(t, s.Delete(context.Background(), "tg:404"))
}
