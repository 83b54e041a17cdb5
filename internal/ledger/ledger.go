// Package ledger defines the score ledger contract: idempotent per-round
// awards keyed by (game, round) and read-only cumulative totals.
package ledger

import (
	"context"
	stderrors "errors"

	"github.com/quizairium/quizairium/internal/domain"
)

// ErrAlreadyAwarded signals that the (game, round) pair was awarded before.
// Callers treat it as a successful no-op; totals are unchanged.
var ErrAlreadyAwarded = stderrors.New("round already awarded")

// Award is the outcome of one participant's scoring in a round.
type Award struct {
	Participant string
	DisplayName string
	Rank        int
	Points      int
	// Total is the participant's cumulative score within the game after
	// this award was applied.
	Total int
}

// Ledger tracks cumulative per-participant scores per chat and per game.
type Ledger interface {
	// AwardRound applies rank-indexed points for the round's correct answers.
	// Awarding the same (gameID, round) twice returns ErrAlreadyAwarded and
	// leaves totals untouched.
	AwardRound(ctx context.Context, chat domain.ChatID, gameID string, result domain.RoundResult, pointsTable []int) ([]Award, error)
	// Totals returns participant -> points for the game, reflecting every
	// awarded round exactly once.
	Totals(ctx context.Context, chat domain.ChatID, gameID string) (map[string]int, error)
}

// PointsFor returns the points for a correct answer at the given 0-based
// rank. Ranks past the table earn the final entry so every correct answer
// scores while earlier ones always score at least as much.
func PointsFor(rank int, table []int) int {
	if len(table) == 0 || rank < 0 {
		return 0
	}
	if rank >= len(table) {
		return table[len(table)-1]
	}
	return table[rank]
}

// ComputeAwards derives the awards for a round result without applying them.
// Incorrect and absent participants earn nothing and are omitted.
func ComputeAwards(result domain.RoundResult, table []int) []Award {
	correct := result.Correct()
	awards := make([]Award, 0, len(correct))
	for _, e := range correct {
		awards = append(awards, Award{
			Participant: e.Participant,
			DisplayName: e.DisplayName,
			Rank:        e.Rank,
			Points:      PointsFor(e.Rank, table),
		})
	}
	return awards
}
