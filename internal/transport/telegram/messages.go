package telegram

import (
	"fmt"
	"strings"

	"github.com/quizairium/quizairium/internal/domain"
	"github.com/quizairium/quizairium/internal/store/postgres"
)

const helpText = `🎲 Trivia bot commands:
/trivia [topic] — start a game (optionally on a topic)
/stop — end the current game
/skip — skip the current question
/leaderboard — all-time chat leaderboard
/stats — your lifetime stats in this chat`

func leaderboardText(l domain.Leaderboard) string {
	var sb strings.Builder
	sb.WriteString("🏆 All-time leaderboard\n")
	for i, e := range l.Entries {
		name := e.DisplayName
		if name == "" {
			name = e.Participant
		}
		fmt.Fprintf(&sb, "%d. %s — %d pts\n", i+1, name, int(e.Score))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func statsText(s postgres.PlayerStats) string {
	name := s.DisplayName
	if name == "" {
		name = s.Participant
	}
	return fmt.Sprintf(
		"📊 Stats for %s\nGames played: %d\nTotal points: %d\nAverage per game: %s\nLast played: %s",
		name, s.GamesPlayed, s.TotalPoints, s.AveragePoints.String(),
		s.LastPlayed.Format("2 Jan 2006"),
	)
}
