package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/quizairium/quizairium/internal/domain"
)

var topicNames = map[string]string{
	"general":       "General Knowledge",
	"science":       "Science & Technology",
	"history":       "History",
	"geography":     "Geography",
	"sports":        "Sports",
	"entertainment": "Movies & TV",
	"music":         "Music",
	"literature":    "Literature",
}

const systemPrompt = "You are a question generator for a university trivia club. Always respond with valid JSON only."

// OpenAIProvider generates questions with OpenAI chat completions, asking for
// a strict JSON object so the response can be unmarshalled directly.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

type generatedQuestion struct {
	Question          string   `json:"question"`
	OfficialAnswer    string   `json:"official_answer"`
	AcceptableAnswers []string `json:"acceptable_answers"`
}

func (p *OpenAIProvider) Generate(ctx context.Context, topic, difficulty string) (domain.Question, error) {
	name, ok := topicNames[topic]
	if !ok {
		name = topic
	}

	prompt := fmt.Sprintf(`Generate one university challenge question in the %s category.

Return a JSON object with exactly this structure:
{
    "question": "The question here",
    "official_answer": "The main correct answer",
    "acceptable_answers": ["answer1", "answer2", "answer3"]
}

The acceptable_answers should include the official answer plus alternative ways to express the same answer (different spellings, abbreviations, etc.). Make sure all answers are lowercase for easier matching.

Make the question %s difficulty, as you would expect in the University Challenge.`, name, difficultyOrDefault(difficulty))

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		MaxTokens:   500,
		Temperature: 0.95,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return domain.Question{}, fmt.Errorf("openai: create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return domain.Question{}, fmt.Errorf("openai: empty response")
	}

	var gen generatedQuestion
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &gen); err != nil {
		return domain.Question{}, fmt.Errorf("openai: unmarshal question: %w", err)
	}
	if gen.Question == "" || gen.OfficialAnswer == "" {
		return domain.Question{}, fmt.Errorf("openai: incomplete question payload")
	}

	acceptable := make([]string, 0, len(gen.AcceptableAnswers)+1)
	for _, a := range gen.AcceptableAnswers {
		if n := domain.NormalizeAnswer(a); n != "" {
			acceptable = append(acceptable, n)
		}
	}
	if n := domain.NormalizeAnswer(gen.OfficialAnswer); n != "" {
		acceptable = append(acceptable, n)
	}

	return domain.Question{
		Prompt:     gen.Question,
		Acceptable: acceptable,
		Canonical:  gen.OfficialAnswer,
		Topic:      topic,
		Difficulty: difficultyOrDefault(difficulty),
	}, nil
}

func difficultyOrDefault(d string) string {
	if d == "" {
		return "hard"
	}
	return d
}
