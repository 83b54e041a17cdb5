package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quizairium/quizairium/internal/domain"
	"github.com/quizairium/quizairium/internal/ledger"
)

func TestPointsFor(t *testing.T) {
	table := []int{5, 3, 1}

	tests := map[string]struct {
		rank int
		want int
	}{
		"first":               {rank: 0, want: 5},
		"second":              {rank: 1, want: 3},
		"third":               {rank: 2, want: 1},
		"past the table":      {rank: 3, want: 1},
		"far past the table":  {rank: 10, want: 1},
		"incorrect, rank -1":  {rank: -1, want: 0},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, ledger.PointsFor(tt.rank, table))
		})
	}

	assert.Equal(t, 0, ledger.PointsFor(0, nil), "empty table awards nothing")
}

func TestComputeAwards(t *testing.T) {
	now := time.Now()
	result := domain.RoundResult{
		Round: 1,
		Entries: []domain.RoundEntry{
			{Participant: "u1", DisplayName: "alice", Correct: true, Rank: 0, ReceivedAt: now},
			{Participant: "u2", DisplayName: "bob", Correct: true, Rank: 1, ReceivedAt: now.Add(time.Second)},
			{Participant: "u3", DisplayName: "carol", Correct: false, Rank: -1, ReceivedAt: now.Add(2 * time.Second)},
		},
	}

	awards := ledger.ComputeAwards(result, []int{5, 3, 1})

	assert.Equal(t, []ledger.Award{
		{Participant: "u1", DisplayName: "alice", Rank: 0, Points: 5},
		{Participant: "u2", DisplayName: "bob", Rank: 1, Points: 3},
	}, awards, "incorrect answers earn nothing and are omitted")
}
