// Package redis holds the Redis-backed ledger and snapshot store, the
// implementations a multi-instance deployment runs with.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quizairium/quizairium/internal/domain"
	"github.com/quizairium/quizairium/internal/ledger"
)

// awardScript claims the per-round guard and applies every increment in one
// server-side step, so a crash mid-award cannot claim the round without
// recording its points. KEYS[1] is the round guard, KEYS[2] the totals ZSET;
// ARGV is the TTL in milliseconds followed by (points, participant) pairs.
// Returns -1 when the round was already awarded, otherwise the new totals.
var awardScript = redis.NewScript(`
if redis.call("SETNX", KEYS[1], "1") == 0 then
	return -1
end
local ttl = tonumber(ARGV[1])
if ttl > 0 then
	redis.call("PEXPIRE", KEYS[1], ttl)
end
local totals = {}
for i = 2, #ARGV, 2 do
	totals[#totals + 1] = redis.call("ZINCRBY", KEYS[2], ARGV[i], ARGV[i + 1])
end
if ttl > 0 and #totals > 0 then
	redis.call("PEXPIRE", KEYS[2], ttl)
end
return totals
`)

// Ledger implements ledger.Ledger on Redis. Idempotence comes from a guard
// key per (game, round) claimed atomically with the increments; totals live
// in a ZSET per game so reads come back already ordered.
type Ledger struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewLedger creates a redis ledger. ttl bounds how long per-game keys live
// after the last award; zero keeps them forever.
func NewLedger(client redis.UniversalClient, prefix string, ttl time.Duration) *Ledger {
	return &Ledger{client: client, prefix: prefix, ttl: ttl}
}

func (l *Ledger) AwardRound(ctx context.Context, chat domain.ChatID, gameID string, result domain.RoundResult, pointsTable []int) ([]ledger.Award, error) {
	awards := ledger.ComputeAwards(result, pointsTable)

	argv := make([]any, 0, 1+2*len(awards))
	argv = append(argv, l.ttl.Milliseconds())
	for _, a := range awards {
		argv = append(argv, a.Points, a.Participant)
	}

	keys := []string{l.roundKey(chat, gameID, result.Round), l.totalsKey(chat, gameID)}
	res, err := awardScript.Run(ctx, l.client, keys, argv...).Result()
	if err != nil {
		return nil, fmt.Errorf("apply awards: %w", err)
	}

	if claimed, ok := res.(int64); ok && claimed == -1 {
		return nil, ledger.ErrAlreadyAwarded
	}
	totals, ok := res.([]interface{})
	if !ok || len(totals) != len(awards) {
		return nil, fmt.Errorf("apply awards: unexpected reply %T", res)
	}
	for i := range awards {
		raw, ok := totals[i].(string)
		if !ok {
			return nil, fmt.Errorf("apply awards: unexpected total %T", totals[i])
		}
		total, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parse total: %w", err)
		}
		awards[i].Total = int(total)
	}
	return awards, nil
}

func (l *Ledger) Totals(ctx context.Context, chat domain.ChatID, gameID string) (map[string]int, error) {
	res, err := l.client.ZRangeWithScores(ctx, l.totalsKey(chat, gameID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read totals: %w", err)
	}

	out := make(map[string]int, len(res))
	for _, z := range res {
		out[z.Member.(string)] = int(z.Score)
	}
	return out, nil
}

func (l *Ledger) roundKey(chat domain.ChatID, gameID string, round int) string {
	return fmt.Sprintf("%s:ledger:%s:%s:round:%d", l.prefix, chat, gameID, round)
}

func (l *Ledger) totalsKey(chat domain.ChatID, gameID string) string {
	return fmt.Sprintf("%s:ledger:%s:%s:totals", l.prefix, chat, gameID)
}
