package llm

import (
	"context"
	"errors"
	"testing"

	"ai-quiz-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	content string
	err     error
	calls   int
	last    ChatRequest
	lastKey string
}

func (f *fakeCompleter) Complete(_ context.Context, apiKey string, req ChatRequest) (string, error) {
	f.calls++
	f.last = req
	f.lastKey = apiKey
	return f.content, f.err
}

const validPayload = `{"questions":[
 {"question":"Capital of Italy?","options":["Rome","Milan","Turin","Naples"],"correctAnswer":"Rome"},
 {"question":"Longest Italian river?","options":["Po","Tiber","Arno","Adige"],"correctAnswer":"Po"}
]}`

func TestNewQuestionSourceRequiresKey(t *testing.T) {
	_, err := NewQuestionSource(&fakeCompleter{}, " ")
	var missing *domain.MissingCredentialError
	assert.ErrorAs(t, err, &missing)
}

func TestGenerateParsesQuestions(t *testing.T) {
	completer := &fakeCompleter{content: validPayload}
	source, err := NewQuestionSource(completer, "server-key")
	require.NoError(t, err)

	qs, err := source.Generate(context.Background(), "Italy", 10, domain.DifficultyHard)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "Capital of Italy?", qs[0].Prompt)
	assert.Equal(t, "Po", qs[1].CorrectAnswer)

	assert.Equal(t, "server-key", completer.lastKey)
	assert.True(t, completer.last.JSON)
	assert.Equal(t, 0.7, completer.last.Temperature)
	assert.Equal(t, 2000, completer.last.MaxTokens)
	prompt := completer.last.Messages[0].Content
	assert.Contains(t, prompt, "about Italy")
	assert.Contains(t, prompt, "exactly 10 multiple choice")
	assert.Contains(t, prompt, "hard difficulty")
}

func TestGenerateAcceptsFencedJSON(t *testing.T) {
	source, _ := NewQuestionSource(&fakeCompleter{content: "```json\n" + validPayload + "\n```"}, "k")
	qs, err := source.Generate(context.Background(), "Italy", 5, domain.DifficultyEasy)
	require.NoError(t, err)
	assert.Len(t, qs, 2)
}

func TestGenerateRejectsMalformedPayloads(t *testing.T) {
	cases := map[string]string{
		"not json":         "Sure! Here is your quiz.",
		"unknown field":    `{"questions":[{"question":"Q","options":["a","b"],"correctAnswer":"a","hint":"x"}]}`,
		"answer missing":   `{"questions":[{"question":"Q","options":["a","b"],"correctAnswer":"c"}]}`,
		"no questions":     `{"questions":[]}`,
		"trailing object":  validPayload + `{"questions":[]}`,
		"trailing brace":   validPayload + `}`,
		"trailing bracket": validPayload + `]`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			source, _ := NewQuestionSource(&fakeCompleter{content: content}, "k")
			_, err := source.Generate(context.Background(), "Italy", 5, domain.DifficultyEasy)
			var malformed *domain.MalformedQuestionsError
			assert.ErrorAs(t, err, &malformed)
		})
	}
}

func TestGeneratePropagatesTransportErrors(t *testing.T) {
	cause := &HTTPError{StatusCode: 500, Body: "boom"}
	source, _ := NewQuestionSource(&fakeCompleter{err: cause}, "k")

	_, err := source.Generate(context.Background(), "Italy", 5, domain.DifficultyEasy)
	assert.True(t, errors.Is(err, cause))
}
