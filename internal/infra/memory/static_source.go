package memory

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"ai-quiz-service/internal/domain"
)

// StaticQuestionSource serves pre-authored question sets keyed by topic.
// It is the source of last resort when neither an LLM key nor a question bank is configured.
type StaticQuestionSource struct {
	sets map[string][]domain.Question

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewStaticQuestionSource(sets map[string][]domain.Question) *StaticQuestionSource {
	normalized := make(map[string][]domain.Question, len(sets))
	for topic, qs := range sets {
		normalized[strings.ToLower(strings.TrimSpace(topic))] = qs
	}
	return &StaticQuestionSource{
		sets: normalized,
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate returns up to count questions of the topic's set in a shuffled order.
// Difficulty is not tracked for static sets.
func (s *StaticQuestionSource) Generate(_ context.Context, topic string, count int, _ domain.Difficulty) ([]domain.Question, error) {
	set, ok := s.sets[strings.ToLower(strings.TrimSpace(topic))]
	if !ok || len(set) == 0 {
		return nil, domain.ErrQuestionSetNotFound
	}

	qs := cloneQuestions(set)
	s.mu.Lock()
	s.rnd.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
	s.mu.Unlock()

	if count > 0 && len(qs) > count {
		qs = qs[:count]
	}
	return qs, nil
}

// SampleQuestionSets is a small demo catalogue.
func SampleQuestionSets() map[string][]domain.Question {
	return map[string][]domain.Question{
		"go": {
			{Prompt: "Which keyword starts a goroutine?", Options: []string{"go", "async", "spawn", "thread"}, CorrectAnswer: "go"},
			{Prompt: "What is the zero value of a map?", Options: []string{"nil", "an empty map", "0", "undefined"}, CorrectAnswer: "nil"},
			{Prompt: "Which statement waits on multiple channel operations?", Options: []string{"switch", "select", "wait", "poll"}, CorrectAnswer: "select"},
			{Prompt: "Which package provides WaitGroup?", Options: []string{"sync", "context", "runtime", "os"}, CorrectAnswer: "sync"},
			{Prompt: "How are exported identifiers marked?", Options: []string{"Capitalized first letter", "export keyword", "pub keyword", "Leading underscore"}, CorrectAnswer: "Capitalized first letter"},
		},
		"geography": {
			{Prompt: "What is the capital of Australia?", Options: []string{"Sydney", "Melbourne", "Canberra", "Perth"}, CorrectAnswer: "Canberra"},
			{Prompt: "Which is the longest river in South America?", Options: []string{"Amazon", "Paraná", "Orinoco", "Magdalena"}, CorrectAnswer: "Amazon"},
			{Prompt: "Which country has the most time zones?", Options: []string{"Russia", "United States", "France", "China"}, CorrectAnswer: "France"},
			{Prompt: "Mount Kilimanjaro is in which country?", Options: []string{"Kenya", "Tanzania", "Uganda", "Ethiopia"}, CorrectAnswer: "Tanzania"},
			{Prompt: "Which sea has no coastline?", Options: []string{"Sargasso Sea", "Red Sea", "Coral Sea", "Baltic Sea"}, CorrectAnswer: "Sargasso Sea"},
		},
	}
}
