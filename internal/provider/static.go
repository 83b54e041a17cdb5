package provider

import (
	"context"
	"sync"

	"github.com/quizairium/quizairium/internal/domain"
)

// StaticProvider serves questions from a fixed set, cycling when exhausted.
// Useful for development and tests, and as the fallback content when no AI
// provider is configured.
type StaticProvider struct {
	mu        sync.Mutex
	questions []domain.Question
	next      int
}

func NewStaticProvider(questions ...domain.Question) *StaticProvider {
	if len(questions) == 0 {
		questions = FallbackQuestions()
	}
	return &StaticProvider{questions: questions}
}

func (p *StaticProvider) Generate(_ context.Context, topic, difficulty string) (domain.Question, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	q := p.questions[p.next%len(p.questions)]
	p.next++

	if q.Topic == "" {
		q.Topic = topic
	}
	if q.Difficulty == "" {
		q.Difficulty = difficulty
	}
	return q, nil
}

// FallbackQuestions is the built-in question set used when generation is not
// available.
func FallbackQuestions() []domain.Question {
	return []domain.Question{
		{
			Prompt:     "What is the capital of France?",
			Acceptable: []string{"paris"},
			Canonical:  "Paris",
		},
		{
			Prompt:     "What is 2 + 2?",
			Acceptable: []string{"4", "four"},
			Canonical:  "4",
		},
		{
			Prompt:     "What color do you get when you mix red and blue?",
			Acceptable: []string{"purple", "violet"},
			Canonical:  "Purple",
		},
	}
}
