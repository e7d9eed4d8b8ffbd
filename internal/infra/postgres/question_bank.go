package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ai-quiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionBank serves pre-authored question sets stored as JSONB.
type QuestionBank struct {
	pool *pgxpool.Pool
}

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

// Generate picks a random set for the topic and difficulty and truncates it to count.
func (b *QuestionBank) Generate(ctx context.Context, topic string, count int, difficulty domain.Difficulty) ([]domain.Question, error) {
	var raw []byte
	err := b.pool.QueryRow(ctx,
		`SELECT questions FROM question_sets WHERE lower(topic) = lower($1) AND difficulty = $2 ORDER BY random() LIMIT 1`,
		topic, string(difficulty),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuestionSetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load question set: %w", err)
	}

	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("unmarshal question set: %w", err)
	}
	if count > 0 && len(questions) > count {
		questions = questions[:count]
	}
	return questions, nil
}

// AddSet stores a validated question set and returns its id.
func (b *QuestionBank) AddSet(ctx context.Context, topic string, difficulty domain.Difficulty, questions []domain.Question) (string, error) {
	if !difficulty.Valid() {
		return "", &domain.ValidationError{Field: "difficulty", Reason: "must be easy, medium or hard"}
	}
	if err := domain.ValidateQuestions(questions); err != nil {
		return "", err
	}
	raw, err := json.Marshal(questions)
	if err != nil {
		return "", fmt.Errorf("marshal question set: %w", err)
	}
	id := uuid.NewString()
	_, err = b.pool.Exec(ctx,
		`INSERT INTO question_sets (id, topic, difficulty, questions) VALUES ($1, $2, $3, $4)`,
		id, topic, string(difficulty), string(raw),
	)
	if err != nil {
		return "", fmt.Errorf("insert question set: %w", err)
	}
	return id, nil
}
