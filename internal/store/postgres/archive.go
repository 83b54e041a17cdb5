// Package postgres archives finished games and serves all-time player
// statistics. The live engine never depends on it; the archiver subscribes
// to game.finished events.
package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/quizairium/quizairium/internal/domain"
)

// Archive writes finished game records and reads aggregate player stats.
type Archive struct {
	pool *pgxpool.Pool
}

func NewArchive(pool *pgxpool.Pool) *Archive {
	return &Archive{pool: pool}
}

// SaveGame inserts the game row and its per-participant scores in one
// transaction. Re-inserting the same game id is a no-op, so redelivered
// game.finished events cannot duplicate rows.
func (a *Archive) SaveGame(ctx context.Context, record domain.GameRecord) (err error) {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const insGameStmt = `
INSERT INTO games (game_id, chat, topic, rounds, rounds_played, reason, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (game_id) DO NOTHING;`

	tag, err := tx.Exec(ctx, insGameStmt,
		record.GameID, string(record.Chat), record.Topic,
		record.Rounds, record.RoundsPlayed, record.Reason,
		record.StartedAt, record.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tx.Commit(ctx)
	}

	const insScoreStmt = `
INSERT INTO game_scores (game_id, chat, participant, display_name, points)
VALUES ($1, $2, $3, $4, $5);`

	for participant, points := range record.Totals {
		_, err = tx.Exec(ctx, insScoreStmt,
			record.GameID, string(record.Chat), participant,
			record.Names[participant], points,
		)
		if err != nil {
			return fmt.Errorf("insert score: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// PlayerStats are a participant's lifetime numbers within one chat.
type PlayerStats struct {
	Participant string
	DisplayName string
	GamesPlayed int
	TotalPoints int
	// AveragePoints is per game, to one decimal place.
	AveragePoints decimal.Decimal
	LastPlayed    time.Time
}

// Stats returns lifetime stats for a participant in a chat. The boolean is
// false when the participant never finished a game there.
func (a *Archive) Stats(ctx context.Context, chat domain.ChatID, participant string) (PlayerStats, bool, error) {
	const stmt = `
SELECT MAX(s.display_name), COUNT(*), COALESCE(SUM(s.points), 0), MAX(g.finished_at)
FROM game_scores s
JOIN games g ON g.game_id = s.game_id
WHERE s.chat = $1 AND s.participant = $2;`

	var (
		name       *string
		games      int
		points     int
		lastPlayed *time.Time
	)
	err := a.pool.QueryRow(ctx, stmt, string(chat), participant).Scan(&name, &games, &points, &lastPlayed)
	if err != nil {
		return PlayerStats{}, false, fmt.Errorf("read stats: %w", err)
	}
	if games == 0 {
		return PlayerStats{}, false, nil
	}

	stats := PlayerStats{
		Participant: participant,
		GamesPlayed: games,
		TotalPoints: points,
		AveragePoints: decimal.NewFromInt(int64(points)).
			Div(decimal.NewFromInt(int64(games))).
			Round(1),
	}
	if name != nil {
		stats.DisplayName = *name
	}
	if lastPlayed != nil {
		stats.LastPlayed = *lastPlayed
	}
	return stats, true, nil
}

// TopPlayers returns a chat's lifetime leaderboard, highest totals first.
func (a *Archive) TopPlayers(ctx context.Context, chat domain.ChatID, limit int) ([]PlayerStats, error) {
	const stmt = `
SELECT s.participant, MAX(s.display_name), COUNT(*), SUM(s.points)
FROM game_scores s
WHERE s.chat = $1
GROUP BY s.participant
ORDER BY SUM(s.points) DESC
LIMIT $2;`

	rows, err := a.pool.Query(ctx, stmt, string(chat), limit)
	if err != nil {
		return nil, fmt.Errorf("read top players: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (PlayerStats, error) {
		var (
			ps   PlayerStats
			name *string
		)
		if err := r.Scan(&ps.Participant, &name, &ps.GamesPlayed, &ps.TotalPoints); err != nil {
			return PlayerStats{}, err
		}
		if name != nil {
			ps.DisplayName = *name
		}
		if ps.GamesPlayed > 0 {
			ps.AveragePoints = decimal.NewFromInt(int64(ps.TotalPoints)).
				Div(decimal.NewFromInt(int64(ps.GamesPlayed))).
				Round(1)
		}
		return ps, nil
	})
}
