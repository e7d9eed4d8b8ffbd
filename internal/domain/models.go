package domain

import (
	"strings"
	"time"
)

// Difficulty is the requested difficulty of a generated quiz.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the supported difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Bounds for a quiz configuration, matching the configuration form sliders.
const (
	MinQuestions     = 5
	MaxQuestions     = 20
	QuestionStep     = 5
	MinTimeLimitSecs = 10
	MaxTimeLimitSecs = 120
)

// QuizConfig holds the user-chosen parameters for one quiz session.
type QuizConfig struct {
	Topic             string     `json:"topic"`
	NumberOfQuestions int        `json:"numberOfQuestions"`
	Difficulty        Difficulty `json:"difficulty"`
	TimeLimitSeconds  int        `json:"timeLimitSeconds"`
}

// Normalize returns a copy with the topic trimmed.
func (c QuizConfig) Normalize() QuizConfig {
	c.Topic = strings.TrimSpace(c.Topic)
	return c
}

// Validate checks the config against the form bounds.
func (c QuizConfig) Validate() error {
	if strings.TrimSpace(c.Topic) == "" {
		return &ValidationError{Field: "topic", Reason: "please enter a topic"}
	}
	if c.NumberOfQuestions < MinQuestions || c.NumberOfQuestions > MaxQuestions || c.NumberOfQuestions%QuestionStep != 0 {
		return &ValidationError{Field: "numberOfQuestions", Reason: "must be 5, 10, 15 or 20"}
	}
	if !c.Difficulty.Valid() {
		return &ValidationError{Field: "difficulty", Reason: "must be easy, medium or hard"}
	}
	if c.TimeLimitSeconds < MinTimeLimitSecs || c.TimeLimitSeconds > MaxTimeLimitSecs {
		return &ValidationError{Field: "timeLimitSeconds", Reason: "must be between 10 and 120"}
	}
	return nil
}

// Question models one multiple-choice item as produced by the question source.
type Question struct {
	Prompt        string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// QuestionView is a question as shown while it is being answered.
type QuestionView struct {
	Prompt  string   `json:"question"`
	Options []string `json:"options"`
}

// Phase is the lifecycle stage of a quiz session.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseLoading    Phase = "loading"
	PhaseInProgress Phase = "in_progress"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// SessionSnapshot is a read-only copy of a session's state.
type SessionSnapshot struct {
	SessionID       string        `json:"sessionId"`
	Phase           Phase         `json:"phase"`
	Config          *QuizConfig   `json:"config,omitempty"`
	CurrentIndex    int           `json:"currentIndex"`
	TotalQuestions  int           `json:"totalQuestions"`
	Current         *QuestionView `json:"current,omitempty"`
	Score           int           `json:"score"`
	TimeRemaining   int           `json:"timeRemaining"`
	AnswersRecorded int           `json:"answersRecorded"`
	Error           string        `json:"error,omitempty"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// AnswerFeedback describes the outcome of one recorded answer.
type AnswerFeedback struct {
	Index         int    `json:"index"`
	Selected      string `json:"selected"`
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correctAnswer"`
	TimedOut      bool   `json:"timedOut"`
}

// QuizResult is one row of the results view.
type QuizResult struct {
	Question      string `json:"question"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
}

// QuizReport is the scored summary of a completed session.
type QuizReport struct {
	Score      int          `json:"score"`
	Total      int          `json:"total"`
	Percentage float64      `json:"percentage"`
	Results    []QuizResult `json:"results"`
}

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Document is an uploaded file with its extracted text.
type Document struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Title     string    `json:"title"`
	Text      string    `json:"text,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
