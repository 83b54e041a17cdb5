package game

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/quizairium/quizairium/internal/domain"
	"github.com/quizairium/quizairium/internal/ledger"
)

func startText(cfg domain.GameConfig) string {
	return fmt.Sprintf("🎯 Trivia time! %d questions, topic: %s. Fastest correct answer scores the most points.",
		cfg.Rounds, cfg.Topic)
}

func questionText(round, total int, prompt string, limit time.Duration) string {
	return fmt.Sprintf("❓ Question %d/%d\n\n%s\n\n⏱️ You have %s to answer!",
		round, total, prompt, limit.Round(time.Second))
}

func roundResultText(result domain.RoundResult, awards []ledger.Award, trigger string) string {
	correct := result.Correct()
	if len(correct) == 0 {
		if trigger == "skipped" {
			return fmt.Sprintf("⏭️ Question skipped. The correct answer was: %s", result.Question.Canonical)
		}
		return fmt.Sprintf("⏰ Time's up! Nobody got it. The correct answer was: %s", result.Question.Canonical)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ The correct answer was: %s\n", result.Question.Canonical)
	for _, a := range awards {
		fmt.Fprintf(&b, "%s %s +%d pts\n", medal(a.Rank), displayName(a.DisplayName, a.Participant), a.Points)
	}
	return strings.TrimRight(b.String(), "\n")
}

func providerFailedText() string {
	return "❌ Failed to generate the next question. Ending the game — points so far still count."
}

func scoringFailedText() string {
	return "❌ Could not record this round's scores. Ending the game."
}

func stoppedText() string {
	return "🛑 Game stopped."
}

func finalText(record domain.GameRecord) string {
	if len(record.Totals) == 0 {
		return "🤷 No one scored any points this game! Better luck next time.\n🎮 Thanks for playing!"
	}

	type line struct {
		name   string
		points int
	}
	lines := make([]line, 0, len(record.Totals))
	for id, points := range record.Totals {
		lines = append(lines, line{name: displayName(record.Names[id], id), points: points})
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].points != lines[j].points {
			return lines[i].points > lines[j].points
		}
		return lines[i].name < lines[j].name
	})

	var b strings.Builder
	b.WriteString("🏆 FINAL LEADERBOARD 🏆\n")
	for i, l := range lines {
		fmt.Fprintf(&b, "%s %s - %d pts\n", medal(i), l.name, l.points)
	}
	b.WriteString("🎮 Thanks for playing!")
	return b.String()
}

func medal(rank int) string {
	switch rank {
	case 0:
		return "🥇"
	case 1:
		return "🥈"
	case 2:
		return "🥉"
	}
	return fmt.Sprintf("%d.", rank+1)
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
