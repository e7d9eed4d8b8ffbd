package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"ai-quiz-service/internal/domain"
)

const (
	quizTemperature = 0.7
	quizMaxTokens   = 2000
)

// Completer is the slice of Client the adapters need.
type Completer interface {
	Complete(ctx context.Context, apiKey string, req ChatRequest) (string, error)
}

// QuestionSource generates quiz questions with a chat completion model.
// It always uses the server-held key.
type QuestionSource struct {
	completer Completer
	apiKey    string
}

// NewQuestionSource fails with a MissingCredentialError when no key is configured.
func NewQuestionSource(completer Completer, apiKey string) (*QuestionSource, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, &domain.MissingCredentialError{}
	}
	return &QuestionSource{completer: completer, apiKey: apiKey}, nil
}

type questionsPayload struct {
	Questions []domain.Question `json:"questions"`
}

func (s *QuestionSource) Generate(ctx context.Context, topic string, count int, difficulty domain.Difficulty) ([]domain.Question, error) {
	content, err := s.completer.Complete(ctx, s.apiKey, ChatRequest{
		Messages:    []Message{{Role: "user", Content: quizPrompt(topic, count, difficulty)}},
		Temperature: quizTemperature,
		MaxTokens:   quizMaxTokens,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}
	return parseQuestions(content)
}

// parseQuestions decodes the model answer strictly: unknown fields, trailing
// data or a missing questions array are all malformed.
func parseQuestions(content string) ([]domain.Question, error) {
	content = stripCodeFence(content)

	dec := json.NewDecoder(bytes.NewReader([]byte(content)))
	dec.DisallowUnknownFields()
	var payload questionsPayload
	if err := dec.Decode(&payload); err != nil {
		return nil, &domain.MalformedQuestionsError{Reason: "invalid JSON: " + err.Error()}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &domain.MalformedQuestionsError{Reason: "trailing data after JSON object"}
	}
	if err := domain.ValidateQuestions(payload.Questions); err != nil {
		return nil, err
	}
	return payload.Questions, nil
}

// stripCodeFence removes a ```json fence some models wrap around the object.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func quizPrompt(topic string, count int, difficulty domain.Difficulty) string {
	return fmt.Sprintf(`Generate a %s difficulty quiz about %s. Return exactly %d multiple choice questions in this JSON format:
{
  "questions": [
    {
      "question": "Question text here",
      "options": ["Option 1", "Option 2", "Option 3", "Option 4"],
      "correctAnswer": "Correct option here (must match exactly one of the options)"
    }
  ]
}
Make sure the questions are engaging and educational. Each question must have exactly 4 options.`, difficulty, topic, count)
}
