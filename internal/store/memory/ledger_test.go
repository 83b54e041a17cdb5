package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizairium/quizairium/internal/domain"
	"github.com/quizairium/quizairium/internal/ledger"
	"github.com/quizairium/quizairium/internal/store/memory"
)

var pointsTable = []int{5, 3, 1}

func roundResult(round int, participants ...string) domain.RoundResult {
	now := time.Now()
	entries := make([]domain.RoundEntry, 0, len(participants))
	for i, p := range participants {
		entries = append(entries, domain.RoundEntry{
			Participant: p,
			Correct:     true,
			Rank:        i,
			ReceivedAt:  now.Add(time.Duration(i) * time.Second),
		})
	}
	return domain.RoundResult{Round: round, Entries: entries}
}

func TestLedger_AwardRound(t *testing.T) {
	t.Parallel()

	l := memory.NewLedger()
	ctx := context.Background()

	awards, err := l.AwardRound(ctx, "tg:1", "g1", roundResult(1, "u1", "u2"), pointsTable)
	require.NoError(t, err)
	require.Len(t, awards, 2)
	assert.Equal(t, 5, awards[0].Points)
	assert.Equal(t, 5, awards[0].Total)
	assert.Equal(t, 3, awards[1].Points)

	awards, err = l.AwardRound(ctx, "tg:1", "g1", roundResult(2, "u2"), pointsTable)
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, 8, awards[0].Total, "totals accumulate across rounds")

	totals, err := l.Totals(ctx, "tg:1", "g1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"u1": 5, "u2": 8}, totals)
}

func TestLedger_AwardRound_Idempotent(t *testing.T) {
	t.Parallel()

	l := memory.NewLedger()
	ctx := context.Background()

	_, err := l.AwardRound(ctx, "tg:1", "g1", roundResult(1, "u1"), pointsTable)
	require.NoError(t, err)

	// Re-delivery of the same round changes nothing.
	_, err = l.AwardRound(ctx, "tg:1", "g1", roundResult(1, "u1"), pointsTable)
	require.ErrorIs(t, err, ledger.ErrAlreadyAwarded)

	totals, err := l.Totals(ctx, "tg:1", "g1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"u1": 5}, totals)
}

func TestLedger_GamesAreIsolated(t *testing.T) {
	t.Parallel()

	l := memory.NewLedger()
	ctx := context.Background()

	_, err := l.AwardRound(ctx, "tg:1", "g1", roundResult(1, "u1"), pointsTable)
	require.NoError(t, err)

	// Same round number in another game of the same chat still awards.
	_, err = l.AwardRound(ctx, "tg:1", "g2", roundResult(1, "u1"), pointsTable)
	require.NoError(t, err)

	totals, err := l.Totals(ctx, "tg:1", "g2")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"u1": 5}, totals)

	totals, err = l.Totals(ctx, "tg:1", "unknown")
	require.NoError(t, err)
	assert.Empty(t, totals)
}
