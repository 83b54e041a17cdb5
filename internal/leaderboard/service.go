// Package leaderboard maintains the all-time scoreboard of each chat in
// Redis sorted sets, fed by score.updated events.
package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quizairium/quizairium/internal/domain"
	"github.com/quizairium/quizairium/internal/errors"
	"github.com/quizairium/quizairium/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameScoreUpdated, func(ctx context.Context, e event.Event) error {
		return s.ApplyScore(ctx, e.(domain.EventScoreUpdated))
	})

	return s
}

type GetLeaderboardRequest struct {
	Chat domain.ChatID
}

// GetLeaderboard returns a chat's all-time leaderboard, best score first.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.getLeaderboardKey(req.Chat), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("leaderboard not found: chat=%s", req.Chat))
	}

	names, err := s.redis.HGetAll(ctx, s.getNamesKey(req.Chat)).Result()
	if err != nil {
		return nil, fmt.Errorf("get display names: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		participant := z.Member.(string)
		entries = append(entries, domain.LeaderboardEntry{
			Participant: participant,
			DisplayName: names[participant],
			Score:       z.Score,
		})
	}

	return &domain.Leaderboard{
		Chat:    req.Chat,
		Entries: entries,
	}, nil
}

// ApplyScore folds one round award into the chat's all-time totals.
func (s *Service) ApplyScore(ctx context.Context, e domain.EventScoreUpdated) error {
	pipe := s.redis.Pipeline()
	pipe.ZIncrBy(ctx, s.getLeaderboardKey(e.Chat), float64(e.Awarded), e.Participant)
	if e.DisplayName != "" {
		pipe.HSet(ctx, s.getNamesKey(e.Chat), e.Participant, e.DisplayName)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("apply score: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, e)
}

// schedulePublishLeaderboard publishes the leaderboard changes after a certain interval.
// Instead of publishing leaderboard changes immediately, publishes them after a certain interval.
// Because many scores land in a short time when a round closes, this reduces
// the number of published events.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, e domain.EventScoreUpdated) error {
	// This is a simple way to prevent multiple instances of the service from publishing the leaderboard.
	// But it's not perfect and can be improved.
	ok, err := s.redis.SetNX(ctx, s.getLeaderboardTimeKey(e.Chat), e.UpdateTime.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publishLeaderboard(ctx, e)
}

func (s *Service) publishLeaderboard(ctx context.Context, e domain.EventScoreUpdated) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{
		Chat: e.Chat,
	})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: chat=%s: %w", e.Chat, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return s.redis.Set(ctx, s.getLeaderboardTimeKey(e.Chat), e.UpdateTime.UnixMilli(), publishInterval).Err()
}

func (s *Service) getLeaderboardKey(chat domain.ChatID) string {
	return fmt.Sprintf("%s:%s:leaderboard", s.prefix, chat)
}

func (s *Service) getNamesKey(chat domain.ChatID) string {
	return fmt.Sprintf("%s:%s:names", s.prefix, chat)
}

func (s *Service) getLeaderboardTimeKey(chat domain.ChatID) string {
	return fmt.Sprintf("%s:%s:time", s.prefix, chat)
}
