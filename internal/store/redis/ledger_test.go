package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizairium/quizairium/internal/domain"
	"github.com/quizairium/quizairium/internal/ledger"
	storeredis "github.com/quizairium/quizairium/internal/store/redis"
)

var pointsTable = []int{5, 3, 1}

func makeClient(t *testing.T) goredis.UniversalClient {
	t.Helper()

	rs := miniredis.RunT(t)
	rc := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(context.Background()).Err())
	return rc
}

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

	l := storeredis.NewLedger(makeClient(t), "quizairium", time.Hour)
	ctx := context.Background()

	awards, err := l.AwardRound(ctx, "tg:1", "g1", roundResult(1, "u1", "u2"), pointsTable)
	require.NoError(t, err)
	require.Len(t, awards, 2)
	assert.Equal(t, 5, awards[0].Total)
	assert.Equal(t, 3, awards[1].Total)

	awards, err = l.AwardRound(ctx, "tg:1", "g1", roundResult(2, "u2"), pointsTable)
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, 8, awards[0].Total)

	totals, err := l.Totals(ctx, "tg:1", "g1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"u1": 5, "u2": 8}, totals)
}

func TestLedger_AwardRound_Idempotent(t *testing.T) {
	t.Parallel()

	l := storeredis.NewLedger(makeClient(t), "quizairium", time.Hour)
	ctx := context.Background()

	_, err := l.AwardRound(ctx, "tg:1", "g1", roundResult(1, "u1"), pointsTable)
	require.NoError(t, err)

	_, err = l.AwardRound(ctx, "tg:1", "g1", roundResult(1, "u1"), pointsTable)
	require.ErrorIs(t, err, ledger.ErrAlreadyAwarded)

	totals, err := l.Totals(ctx, "tg:1", "g1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"u1": 5}, totals)
}

func TestLedger_NoCorrectAnswers(t *testing.T) {
	t.Parallel()

	l := storeredis.NewLedger(makeClient(t), "quizairium", time.Hour)
	ctx := context.Background()

	awards, err := l.AwardRound(ctx, "tg:1", "g1", domain.RoundResult{Round: 1}, pointsTable)
	require.NoError(t, err)
	assert.Empty(t, awards)

	totals, err := l.Totals(ctx, "tg:1", "g1")
	require.NoError(t, err)
	assert.Empty(t, totals)

	// The round is claimed even when nobody scored.
	_, err = l.AwardRound(ctx, "tg:1", "g1", domain.RoundResult{Round: 1}, pointsTable)
	require.ErrorIs(t, err, ledger.ErrAlreadyAwarded)
}
