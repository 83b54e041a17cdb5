// Package memory holds in-process implementations of the ledger and
// snapshot store, used in tests and in deployments without Redis.
package memory

import (
	"context"
	"sync"

	"github.com/quizairium/quizairium/internal/domain"
	"github.com/quizairium/quizairium/internal/ledger"
)

// Ledger is an in-memory ledger.Ledger guarded by a single mutex.
type Ledger struct {
	mu    sync.Mutex
	games map[gameKey]*gameTotals
}

type gameKey struct {
	chat   domain.ChatID
	gameID string
}

type gameTotals struct {
	awarded map[int]struct{}
	totals  map[string]int
}

func NewLedger() *Ledger {
	return &Ledger{games: make(map[gameKey]*gameTotals)}
}

func (l *Ledger) AwardRound(_ context.Context, chat domain.ChatID, gameID string, result domain.RoundResult, pointsTable []int) ([]ledger.Award, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := gameKey{chat: chat, gameID: gameID}
	g, ok := l.games[key]
	if !ok {
		g = &gameTotals{
			awarded: make(map[int]struct{}),
			totals:  make(map[string]int),
		}
		l.games[key] = g
	}

	if _, done := g.awarded[result.Round]; done {
		return nil, ledger.ErrAlreadyAwarded
	}
	g.awarded[result.Round] = struct{}{}

	awards := ledger.ComputeAwards(result, pointsTable)
	for i := range awards {
		g.totals[awards[i].Participant] += awards[i].Points
		awards[i].Total = g.totals[awards[i].Participant]
	}
	return awards, nil
}

func (l *Ledger) Totals(_ context.Context, chat domain.ChatID, gameID string) (map[string]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]int)
	if g, ok := l.games[gameKey{chat: chat, gameID: gameID}]; ok {
		for participant, points := range g.totals {
			out[participant] = points
		}
	}
	return out, nil
}
