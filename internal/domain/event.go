package domain

import "time"

const (
	EventNameScoreUpdated       = "score.updated"
	EventNameLeaderboardUpdated = "leaderboard.updated"
	EventNameGameFinished       = "game.finished"
)

// EventScoreUpdated fires once per participant awarded points in a round.
type EventScoreUpdated struct {
	Chat        ChatID
	GameID      string
	Round       int
	Participant string
	DisplayName string
	Awarded     int
	// Total is the participant's cumulative score within the game.
	Total      int
	UpdateTime time.Time
}

func (EventScoreUpdated) Name() string { return EventNameScoreUpdated }

// EventLeaderboardUpdated carries the refreshed all-time chat leaderboard.
type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }

// EventGameFinished fires exactly once when a session reaches Finished.
type EventGameFinished struct {
	Game GameRecord
}

func (EventGameFinished) Name() string { return EventNameGameFinished }

// Leaderboard is the all-time scoreboard of a chat, sorted by score
// in descending order.
type Leaderboard struct {
	Chat    ChatID
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	Participant string
	DisplayName string
	Score       float64
}
