package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GamesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizairium_games_started_total",
		Help: "Number of trivia games started.",
	})

	GamesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quizairium_games_finished_total",
		Help: "Number of trivia games finished, by reason.",
	}, []string{"reason"})

	RoundsScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizairium_rounds_scored_total",
		Help: "Number of rounds closed and scored.",
	})

	Answers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quizairium_answers_total",
		Help: "Number of answer submissions, by verdict.",
	}, []string{"verdict"})

	ProviderFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizairium_provider_failures_total",
		Help: "Number of terminal question provider failures.",
	})
)
