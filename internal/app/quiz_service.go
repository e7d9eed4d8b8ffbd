package app

import (
	"context"
	"fmt"
	"time"

	"ai-quiz-service/internal/domain"
	"ai-quiz-service/internal/logger"
	"github.com/google/uuid"
)

// SessionRepository abstracts where live quiz sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// QuestionSource produces the questions of a new quiz.
type QuestionSource interface {
	Generate(ctx context.Context, topic string, count int, difficulty domain.Difficulty) ([]domain.Question, error)
}

// QuizService contains the quiz session use cases.
type QuizService struct {
	sessions        SessionRepository
	source          QuestionSource
	log             *logger.Logger
	now             func() time.Time
	newTicker       TickerFactory
	generateTimeout time.Duration
	baseCtx         context.Context
}

// Option customizes a QuizService.
type Option func(*QuizService)

func WithLogger(log *logger.Logger) Option {
	return func(s *QuizService) { s.log = log }
}

// WithTicker replaces the countdown ticker for every session the service creates.
func WithTicker(f TickerFactory) Option {
	return func(s *QuizService) { s.newTicker = f }
}

func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithGenerateTimeout bounds each question source call; zero disables the bound.
func WithGenerateTimeout(d time.Duration) Option {
	return func(s *QuizService) { s.generateTimeout = d }
}

// WithBaseContext sets the parent context of generation requests, typically the server lifetime.
func WithBaseContext(ctx context.Context) Option {
	return func(s *QuizService) { s.baseCtx = ctx }
}

func NewQuizService(store SessionRepository, source QuestionSource, opts ...Option) *QuizService {
	s := &QuizService{
		sessions:        store,
		source:          source,
		log:             logger.Nop(),
		now:             time.Now,
		newTicker:       NewStdTicker,
		generateTimeout: 90 * time.Second,
		baseCtx:         context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession registers a new idle session and returns its first snapshot.
func (s *QuizService) StartSession(_ context.Context) domain.SessionSnapshot {
	id := uuid.NewString()
	session := NewSession(id,
		WithSessionClock(s.now),
		WithSessionTicker(s.newTicker),
		WithSessionLogger(s.log.With("session_id", id)),
	)
	s.sessions.Put(session)
	s.log.Debug("quiz session started", "session_id", id)
	return session.Snapshot()
}

// Submit validates cfg, moves the session to Loading and requests questions
// in the background. The result is applied only if the session is still
// waiting for this very request.
func (s *QuizService) Submit(_ context.Context, sessionID string, cfg domain.QuizConfig) (domain.SessionSnapshot, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}

	gen, err := session.beginLoading(s.baseCtx, cfg, s.generateTimeout)
	if err != nil {
		return session.Snapshot(), err
	}
	snap := session.Snapshot()

	go s.generate(session, gen)
	return snap, nil
}

func (s *QuizService) generate(session *Session, gen generation) {
	log := s.log.With("session_id", session.ID(), "topic", gen.config.Topic, "difficulty", string(gen.config.Difficulty))
	defer gen.cancel()

	start := s.now()
	questions, err := s.callSource(gen)
	if err == nil {
		err = domain.ValidateQuestions(questions)
	}
	if err != nil {
		log.Warn("quiz generation failed", "error", err.Error())
		err = &domain.QuizGenerationError{Err: err}
		questions = nil
	} else {
		if len(questions) != gen.config.NumberOfQuestions {
			log.Warn("question source returned a different count", "requested", gen.config.NumberOfQuestions, "returned", len(questions))
		}
		log.Info("quiz generated", "questions", len(questions), "elapsed", s.now().Sub(start).String())
	}

	if !session.finishLoading(gen.epoch, questions, err) {
		log.Debug("discarding late quiz generation result")
	}
}

func (s *QuizService) callSource(gen generation) (questions []domain.Question, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("question source panicked: %v", r)
		}
	}()
	return s.source.Generate(gen.ctx, gen.config.Topic, gen.config.NumberOfQuestions, gen.config.Difficulty)
}

// Answer records an answer for the current question.
func (s *QuizService) Answer(_ context.Context, sessionID, selected string) (domain.AnswerFeedback, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.AnswerFeedback{}, domain.ErrSessionNotFound
	}
	return session.answer(selected)
}

// Reset discards the session state and returns it to Idle.
func (s *QuizService) Reset(_ context.Context, sessionID string) (domain.SessionSnapshot, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	session.reset()
	return session.Snapshot(), nil
}

// Dismiss acknowledges a generation failure.
func (s *QuizService) Dismiss(_ context.Context, sessionID string) (domain.SessionSnapshot, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	err := session.dismiss()
	return session.Snapshot(), err
}

// Results returns the report of a completed session.
func (s *QuizService) Results(_ context.Context, sessionID string) (domain.QuizReport, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.QuizReport{}, domain.ErrSessionNotFound
	}
	return session.results()
}

func (s *QuizService) Snapshot(_ context.Context, sessionID string) (domain.SessionSnapshot, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

// Subscribe returns a channel that receives session events, starting with the current snapshot.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan Event, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Close stops the session's timer and pending generation and forgets it.
func (s *QuizService) Close(_ context.Context, sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.close()
	s.sessions.Delete(sessionID)
	s.log.Debug("quiz session closed", "session_id", sessionID)
}
