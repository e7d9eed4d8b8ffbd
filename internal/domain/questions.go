package domain

import (
	"fmt"
	"strings"
)

// ValidateQuestions checks a batch coming from a question source before it reaches a session.
func ValidateQuestions(questions []Question) error {
	if len(questions) == 0 {
		return &MalformedQuestionsError{Reason: "no questions returned"}
	}
	for i, q := range questions {
		if strings.TrimSpace(q.Prompt) == "" {
			return &MalformedQuestionsError{Reason: fmt.Sprintf("question %d has no prompt", i)}
		}
		if len(q.Options) < 2 {
			return &MalformedQuestionsError{Reason: fmt.Sprintf("question %d has %d options", i, len(q.Options))}
		}
		seen := make(map[string]struct{}, len(q.Options))
		member := false
		for _, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				return &MalformedQuestionsError{Reason: fmt.Sprintf("question %d has an empty option", i)}
			}
			if _, dup := seen[opt]; dup {
				return &MalformedQuestionsError{Reason: fmt.Sprintf("question %d repeats option %q", i, opt)}
			}
			seen[opt] = struct{}{}
			if opt == q.CorrectAnswer {
				member = true
			}
		}
		if !member {
			return &MalformedQuestionsError{Reason: fmt.Sprintf("question %d correct answer is not one of its options", i)}
		}
	}
	return nil
}

// QuestionSetKey identifies a request for caching: the same topic, count and
// difficulty map to the same key regardless of topic case or padding.
func QuestionSetKey(topic string, count int, difficulty Difficulty) string {
	return fmt.Sprintf("%s|%d|%s", strings.ToLower(strings.TrimSpace(topic)), count, difficulty)
}
