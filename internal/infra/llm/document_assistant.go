package llm

import (
	"context"
	"unicode/utf8"
)

const (
	summarizeTemperature = 0.5
	askTemperature       = 0.7
	documentMaxTokens    = 2000

	// DefaultMaxChars is the document text budget sent with each request.
	DefaultMaxChars = 4000
	truncatedMarker = "\n[Content truncated due to length...]"

	summarizeSystemPrompt = "You are a helpful assistant that creates clear, concise summaries. Focus on the main points and key takeaways. Structure the summary with bullet points for better readability."
	askSystemPrompt       = "You are a helpful assistant that answers questions based on the provided PDF content. Be concise and accurate in your responses."
)

// DocumentAssistant summarizes and answers questions about extracted document text.
type DocumentAssistant struct {
	completer Completer
	maxChars  int
}

func NewDocumentAssistant(completer Completer, maxChars int) *DocumentAssistant {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &DocumentAssistant{completer: completer, maxChars: maxChars}
}

func (a *DocumentAssistant) Summarize(ctx context.Context, apiKey, text string) (string, error) {
	return a.completer.Complete(ctx, apiKey, ChatRequest{
		Messages: []Message{
			{Role: "system", Content: summarizeSystemPrompt},
			{Role: "user", Content: "Please provide a structured summary of the following text, highlighting the main points and key concepts: " + Truncate(text, a.maxChars)},
		},
		Temperature: summarizeTemperature,
		MaxTokens:   documentMaxTokens,
	})
}

func (a *DocumentAssistant) Ask(ctx context.Context, apiKey, text, question string) (string, error) {
	return a.completer.Complete(ctx, apiKey, ChatRequest{
		Messages: []Message{
			{Role: "system", Content: askSystemPrompt},
			{Role: "user", Content: "Context: " + Truncate(text, a.maxChars) + "\n\nQuestion: " + question},
		},
		Temperature: askTemperature,
		MaxTokens:   documentMaxTokens,
	})
}

// Truncate keeps the first maxChars characters of text and appends a marker when anything was cut.
func Truncate(text string, maxChars int) string {
	if utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxChars]) + truncatedMarker
}
