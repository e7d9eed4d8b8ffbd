package app

import (
	"context"
	"math"
	"sync"
	"time"

	"ai-quiz-service/internal/domain"
	"ai-quiz-service/internal/logger"
)

// Event is delivered to session subscribers on every state change and tick.
type Event struct {
	Snapshot domain.SessionSnapshot
	Feedback *domain.AnswerFeedback
}

// sessionState is the tagged phase of a session. Only failedState carries an error.
type sessionState interface {
	phase() domain.Phase
}

type idleState struct{}

type loadingState struct {
	config domain.QuizConfig
	epoch  uint64
	cancel context.CancelFunc
}

type runningState struct {
	config    domain.QuizConfig
	questions []domain.Question
	index     int
	answers   []string
	score     int
	remaining int
}

type completedState struct {
	config    domain.QuizConfig
	questions []domain.Question
	answers   []string
	score     int
}

type failedState struct {
	config domain.QuizConfig
	err    error
}

func (idleState) phase() domain.Phase       { return domain.PhaseIdle }
func (*loadingState) phase() domain.Phase   { return domain.PhaseLoading }
func (*runningState) phase() domain.Phase   { return domain.PhaseInProgress }
func (*completedState) phase() domain.Phase { return domain.PhaseCompleted }
func (*failedState) phase() domain.Phase    { return domain.PhaseFailed }

// generation describes one outstanding question source request.
type generation struct {
	ctx    context.Context
	cancel context.CancelFunc
	epoch  uint64
	config domain.QuizConfig
}

// Session owns the lifecycle of one quiz from configuration to results.
// Intents, timer ticks and generation results are serialized on mu.
type Session struct {
	id        string
	now       func() time.Time
	newTicker TickerFactory
	log       *logger.Logger

	mu          sync.Mutex
	state       sessionState
	epoch       uint64
	timer       *countdown
	timerSeq    uint64
	updatedAt   time.Time
	subscribers map[chan Event]struct{}
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithSessionClock allows deterministic timestamps in tests.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithSessionTicker replaces the one-second ticker used by the countdown.
func WithSessionTicker(f TickerFactory) SessionOption {
	return func(s *Session) { s.newTicker = f }
}

// WithSessionLogger sets the session logger.
func WithSessionLogger(log *logger.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// NewSession creates an idle session.
func NewSession(id string, opts ...SessionOption) *Session {
	s := &Session{
		id:          id,
		now:         time.Now,
		newTicker:   NewStdTicker,
		log:         logger.Nop(),
		state:       idleState{},
		subscribers: make(map[chan Event]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.updatedAt = s.now()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Failure returns the generation error while the session is Failed.
func (s *Session) Failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if failed, ok := s.state.(*failedState); ok {
		return failed.err
	}
	return nil
}

// beginLoading validates cfg and moves Idle or Failed to Loading.
// The returned generation context is cancelled by reset and close.
func (s *Session) beginLoading(parent context.Context, cfg domain.QuizConfig, timeout time.Duration) (generation, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return generation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state.(type) {
	case idleState, *failedState:
	case *loadingState:
		return generation{}, domain.ErrRequestInFlight
	default:
		return generation{}, domain.ErrInvalidPhase
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	s.epoch++
	s.state = &loadingState{config: cfg, epoch: s.epoch, cancel: cancel}
	s.touchLocked()
	s.broadcastLocked(nil)
	return generation{ctx: ctx, cancel: cancel, epoch: s.epoch, config: cfg}, nil
}

// finishLoading applies a generation result if it still belongs to the
// current loading phase. It reports whether the result was applied.
func (s *Session) finishLoading(epoch uint64, questions []domain.Question, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	loading, ok := s.state.(*loadingState)
	if !ok || loading.epoch != epoch {
		return false
	}
	loading.cancel()

	if err == nil && len(questions) == 0 {
		err = &domain.QuizGenerationError{Err: &domain.MalformedQuestionsError{Reason: "no questions returned"}}
	}
	if err != nil {
		s.state = &failedState{config: loading.config, err: err}
		s.touchLocked()
		s.broadcastLocked(nil)
		return true
	}

	qs := make([]domain.Question, len(questions))
	copy(qs, questions)
	s.state = &runningState{
		config:    loading.config,
		questions: qs,
		answers:   make([]string, 0, len(qs)),
		remaining: loading.config.TimeLimitSeconds,
	}
	s.startTimerLocked()
	s.touchLocked()
	s.broadcastLocked(nil)
	return true
}

// answer records selected for the current question.
func (s *Session) answer(selected string) (domain.AnswerFeedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.state.(*runningState)
	if !ok {
		return domain.AnswerFeedback{}, domain.ErrInvalidPhase
	}
	return s.answerLocked(run, selected, false), nil
}

func (s *Session) answerLocked(run *runningState, selected string, timedOut bool) domain.AnswerFeedback {
	s.stopTimerLocked()

	idx := run.index
	q := run.questions[idx]
	correct := selected == q.CorrectAnswer
	run.answers = append(run.answers, selected)
	if correct {
		run.score++
	}
	run.index++

	fb := domain.AnswerFeedback{
		Index:         idx,
		Selected:      selected,
		Correct:       correct,
		CorrectAnswer: q.CorrectAnswer,
		TimedOut:      timedOut || selected == "",
	}

	if run.index >= len(run.questions) {
		s.state = &completedState{
			config:    run.config,
			questions: run.questions,
			answers:   run.answers,
			score:     run.score,
		}
	} else {
		run.remaining = run.config.TimeLimitSeconds
		s.startTimerLocked()
	}
	s.touchLocked()
	s.broadcastLocked(&fb)
	return fb
}

// tick handles one countdown tick for handle id. It returns false once the
// handle should stop, either because it is stale or because it expired.
func (s *Session) tick(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.state.(*runningState)
	if !ok || s.timer == nil || s.timer.id != id {
		return false
	}
	if run.remaining > 0 {
		run.remaining--
	}
	if run.remaining > 0 {
		s.touchLocked()
		s.broadcastLocked(nil)
		return true
	}
	s.log.Debug("question timed out", "index", run.index)
	s.answerLocked(run, "", true)
	return false
}

// reset discards everything and returns to Idle.
func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.touchLocked()
	s.broadcastLocked(nil)
}

func (s *Session) resetLocked() {
	s.stopTimerLocked()
	if loading, ok := s.state.(*loadingState); ok {
		loading.cancel()
	}
	s.epoch++
	s.state = idleState{}
}

// dismiss acknowledges a failure and returns to Idle.
func (s *Session) dismiss() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state.(type) {
	case *failedState:
		s.state = idleState{}
		s.touchLocked()
		s.broadcastLocked(nil)
		return nil
	case idleState:
		return nil
	default:
		return domain.ErrInvalidPhase
	}
}

// results derives the report of a completed session.
func (s *Session) results() (domain.QuizReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	done, ok := s.state.(*completedState)
	if !ok {
		return domain.QuizReport{}, domain.ErrInvalidPhase
	}
	return DeriveResults(done.questions, done.answers, done.score), nil
}

// DeriveResults builds the per-question report. Questions without a recorded
// answer are reported with an empty answer.
func DeriveResults(questions []domain.Question, answers []string, score int) domain.QuizReport {
	results := make([]domain.QuizResult, len(questions))
	for i, q := range questions {
		answer := ""
		if i < len(answers) {
			answer = answers[i]
		}
		results[i] = domain.QuizResult{
			Question:      q.Prompt,
			UserAnswer:    answer,
			CorrectAnswer: q.CorrectAnswer,
			IsCorrect:     answer == q.CorrectAnswer,
		}
	}
	report := domain.QuizReport{Score: score, Total: len(questions), Results: results}
	if report.Total > 0 {
		report.Percentage = math.Round(float64(score)/float64(report.Total)*1000) / 10
	}
	return report
}

// close stops all background work and disconnects subscribers.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) startTimerLocked() {
	s.stopTimerLocked()
	s.timerSeq++
	cd := newCountdown(s.timerSeq)
	s.timer = cd
	go cd.run(s.newTicker, s.tick)
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.cancel()
		s.timer = nil
	}
}

func (s *Session) touchLocked() {
	s.updatedAt = s.now()
}

func (s *Session) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	// ch is empty here, so this never blocks and no broadcast can overtake it.
	ch <- Event{Snapshot: s.snapshotLocked()}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked(fb *domain.AnswerFeedback) {
	ev := Event{Snapshot: s.snapshotLocked(), Feedback: fb}
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow reader: drop its oldest event so the newest state always lands.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		SessionID: s.id,
		Phase:     s.state.phase(),
		UpdatedAt: s.updatedAt,
	}
	switch st := s.state.(type) {
	case *loadingState:
		cfg := st.config
		snap.Config = &cfg
	case *runningState:
		cfg := st.config
		snap.Config = &cfg
		snap.CurrentIndex = st.index
		snap.TotalQuestions = len(st.questions)
		snap.Score = st.score
		snap.TimeRemaining = st.remaining
		snap.AnswersRecorded = len(st.answers)
		q := st.questions[st.index]
		snap.Current = &domain.QuestionView{Prompt: q.Prompt, Options: append([]string(nil), q.Options...)}
	case *completedState:
		cfg := st.config
		snap.Config = &cfg
		snap.CurrentIndex = len(st.questions)
		snap.TotalQuestions = len(st.questions)
		snap.Score = st.score
		snap.AnswersRecorded = len(st.answers)
	case *failedState:
		cfg := st.config
		snap.Config = &cfg
		snap.Error = domain.GenerationFailedMessage
	}
	return snap
}
