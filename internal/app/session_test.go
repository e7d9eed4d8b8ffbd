package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"ai-quiz-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.once.Do(func() { close(m.stopped) }) }

type tickerRecorder struct {
	created chan *manualTicker
}

func newTickerRecorder() *tickerRecorder {
	return &tickerRecorder{created: make(chan *manualTicker, 64)}
}

func (r *tickerRecorder) factory(time.Duration) Ticker {
	t := &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	r.created <- t
	return t
}

func (r *tickerRecorder) next(t *testing.T) *manualTicker {
	t.Helper()
	select {
	case tk := <-r.created:
		return tk
	case <-time.After(2 * time.Second):
		t.Fatalf("countdown never created a ticker")
		return nil
	}
}

func fixedClock() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }

func romeConfig() domain.QuizConfig {
	return domain.QuizConfig{Topic: "Rome", NumberOfQuestions: 5, Difficulty: domain.DifficultyEasy, TimeLimitSeconds: 30}
}

func romeQuestions(n int) []domain.Question {
	qs := make([]domain.Question, n)
	for i := range qs {
		qs[i] = domain.Question{
			Prompt:        "Question about Rome",
			Options:       []string{"Romulus", "Caesar", "Nero", "Augustus"},
			CorrectAnswer: "Augustus",
		}
	}
	return qs
}

func newTestSession(rec *tickerRecorder) *Session {
	return NewSession("s1", WithSessionClock(fixedClock), WithSessionTicker(rec.factory))
}

func startRunning(t *testing.T, s *Session, cfg domain.QuizConfig, qs []domain.Question) {
	t.Helper()
	gen, err := s.beginLoading(context.Background(), cfg, 0)
	require.NoError(t, err)
	require.True(t, s.finishLoading(gen.epoch, qs, nil))
}

func currentTimerID(s *Session) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return 0
	}
	return s.timer.id
}

func assertInvariants(t *testing.T, snap domain.SessionSnapshot) {
	t.Helper()
	assert.GreaterOrEqual(t, snap.CurrentIndex, 0)
	assert.LessOrEqual(t, snap.CurrentIndex, snap.TotalQuestions)
	assert.GreaterOrEqual(t, snap.Score, 0)
	assert.LessOrEqual(t, snap.Score, snap.CurrentIndex)
	if snap.Config != nil {
		assert.LessOrEqual(t, snap.TimeRemaining, snap.Config.TimeLimitSeconds)
	}
	if snap.Phase != domain.PhaseFailed {
		assert.Empty(t, snap.Error)
	}
}

func TestAllCorrectAnswersComplete(t *testing.T) {
	s := newTestSession(newTickerRecorder())
	startRunning(t, s, romeConfig(), romeQuestions(5))

	for i := 0; i < 5; i++ {
		snap := s.Snapshot()
		assertInvariants(t, snap)
		require.Equal(t, domain.PhaseInProgress, snap.Phase)
		assert.Equal(t, i, snap.CurrentIndex)
		assert.Equal(t, 30, snap.TimeRemaining)

		fb, err := s.answer("Augustus")
		require.NoError(t, err)
		assert.True(t, fb.Correct)
		assert.Equal(t, i, fb.Index)
	}

	snap := s.Snapshot()
	assertInvariants(t, snap)
	assert.Equal(t, domain.PhaseCompleted, snap.Phase)
	assert.Equal(t, 5, snap.Score)
	assert.Nil(t, snap.Current)

	report, err := s.results()
	require.NoError(t, err)
	require.Len(t, report.Results, 5)
	for _, r := range report.Results {
		assert.True(t, r.IsCorrect)
	}
	assert.Equal(t, 100.0, report.Percentage)
}

func TestBlankTopicKeepsIdle(t *testing.T) {
	s := newTestSession(newTickerRecorder())
	cfg := romeConfig()
	cfg.Topic = "   "

	_, err := s.beginLoading(context.Background(), cfg, 0)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "topic", verr.Field)
	assert.Equal(t, domain.PhaseIdle, s.Snapshot().Phase)
}

func TestGenerationFailureThenDismiss(t *testing.T) {
	s := newTestSession(newTickerRecorder())
	gen, err := s.beginLoading(context.Background(), romeConfig(), 0)
	require.NoError(t, err)

	cause := &domain.QuizGenerationError{Err: context.DeadlineExceeded}
	require.True(t, s.finishLoading(gen.epoch, nil, cause))

	snap := s.Snapshot()
	assert.Equal(t, domain.PhaseFailed, snap.Phase)
	assert.Equal(t, domain.GenerationFailedMessage, snap.Error)
	assert.Zero(t, snap.TotalQuestions)
	assert.Nil(t, snap.Current)
	assert.ErrorIs(t, s.Failure(), context.DeadlineExceeded)

	require.NoError(t, s.dismiss())
	snap = s.Snapshot()
	assert.Equal(t, domain.PhaseIdle, snap.Phase)
	assert.Empty(t, snap.Error)
}

func TestFailedSessionCanRetry(t *testing.T) {
	s := newTestSession(newTickerRecorder())
	gen, err := s.beginLoading(context.Background(), romeConfig(), 0)
	require.NoError(t, err)
	s.finishLoading(gen.epoch, nil, &domain.QuizGenerationError{})

	startRunning(t, s, romeConfig(), romeQuestions(2))
	assert.Equal(t, domain.PhaseInProgress, s.Snapshot().Phase)
}

func TestEmptyBatchFails(t *testing.T) {
	s := newTestSession(newTickerRecorder())
	gen, err := s.beginLoading(context.Background(), romeConfig(), 0)
	require.NoError(t, err)
	require.True(t, s.finishLoading(gen.epoch, nil, nil))
	assert.Equal(t, domain.PhaseFailed, s.Snapshot().Phase)
}

func TestTimeoutRecordsEmptyAnswerExactlyOnce(t *testing.T) {
	s := newTestSession(newTickerRecorder())
	cfg := romeConfig()
	cfg.TimeLimitSeconds = 10
	startRunning(t, s, cfg, romeQuestions(2))

	id := currentTimerID(s)
	require.NotZero(t, id)
	for i := 0; i < 9; i++ {
		require.True(t, s.tick(id))
		assertInvariants(t, s.Snapshot())
	}
	assert.Equal(t, 1, s.Snapshot().TimeRemaining)

	assert.False(t, s.tick(id))
	snap := s.Snapshot()
	assert.Equal(t, 1, snap.CurrentIndex)
	assert.Equal(t, 1, snap.AnswersRecorded)
	assert.Equal(t, 10, snap.TimeRemaining)

	// A duplicate callback for the expired handle must not answer question 2.
	assert.False(t, s.tick(id))
	snap = s.Snapshot()
	assert.Equal(t, 1, snap.CurrentIndex)
	assert.Equal(t, 1, snap.AnswersRecorded)
	assert.Equal(t, 10, snap.TimeRemaining)

	_, err := s.answer("Augustus")
	require.NoError(t, err)

	report, err := s.results()
	require.NoError(t, err)
	assert.Equal(t, "", report.Results[0].UserAnswer)
	assert.False(t, report.Results[0].IsCorrect)
	assert.True(t, report.Results[1].IsCorrect)
	assert.Equal(t, 1, report.Score)
}

func TestStaleTickAfterManualAnswerIsIgnored(t *testing.T) {
	s := newTestSession(newTickerRecorder())
	startRunning(t, s, romeConfig(), romeQuestions(3))

	first := currentTimerID(s)
	_, err := s.answer("Caesar")
	require.NoError(t, err)
	second := currentTimerID(s)
	assert.NotEqual(t, first, second)

	assert.False(t, s.tick(first))
	snap := s.Snapshot()
	assert.Equal(t, 30, snap.TimeRemaining)
	assert.Equal(t, 1, snap.CurrentIndex)
}

func TestAnswerCancelsPreviousCountdown(t *testing.T) {
	rec := newTickerRecorder()
	s := newTestSession(rec)
	startRunning(t, s, romeConfig(), romeQuestions(2))

	firstTicker := rec.next(t)
	_, err := s.answer("Augustus")
	require.NoError(t, err)

	select {
	case <-firstTicker.stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("previous countdown was not cancelled")
	}
	rec.next(t)
}

func TestCountdownDrivesTimeout(t *testing.T) {
	rec := newTickerRecorder()
	s := newTestSession(rec)
	cfg := romeConfig()
	cfg.TimeLimitSeconds = 10
	startRunning(t, s, cfg, romeQuestions(2))

	events, cancel := s.subscribe()
	defer cancel()

	tk := rec.next(t)
	for i := 0; i < 10; i++ {
		tk.ch <- time.Now()
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Feedback == nil {
				continue
			}
			assert.True(t, ev.Feedback.TimedOut)
			assert.Equal(t, 0, ev.Feedback.Index)
			assert.Equal(t, 1, ev.Snapshot.CurrentIndex)
			return
		case <-deadline:
			t.Fatalf("timeout answer was never recorded")
		}
	}
}

func TestLateGenerationResultIsDiscarded(t *testing.T) {
	s := newTestSession(newTickerRecorder())

	first, err := s.beginLoading(context.Background(), romeConfig(), 0)
	require.NoError(t, err)
	s.reset()
	assert.Error(t, first.ctx.Err(), "reset cancels the pending request")
	assert.False(t, s.finishLoading(first.epoch, romeQuestions(5), nil))
	assert.Equal(t, domain.PhaseIdle, s.Snapshot().Phase)

	second, err := s.beginLoading(context.Background(), romeConfig(), 0)
	require.NoError(t, err)
	assert.False(t, s.finishLoading(first.epoch, romeQuestions(5), nil))
	assert.Equal(t, domain.PhaseLoading, s.Snapshot().Phase)
	assert.True(t, s.finishLoading(second.epoch, romeQuestions(5), nil))
	assert.Equal(t, domain.PhaseInProgress, s.Snapshot().Phase)
}

func TestSubmitGuards(t *testing.T) {
	s := newTestSession(newTickerRecorder())
	gen, err := s.beginLoading(context.Background(), romeConfig(), 0)
	require.NoError(t, err)

	_, err = s.beginLoading(context.Background(), romeConfig(), 0)
	assert.ErrorIs(t, err, domain.ErrRequestInFlight)

	s.finishLoading(gen.epoch, romeQuestions(1), nil)
	_, err = s.beginLoading(context.Background(), romeConfig(), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)
}

func TestOperationsOutsideTheirPhase(t *testing.T) {
	s := newTestSession(newTickerRecorder())

	_, err := s.answer("Augustus")
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)
	_, err = s.results()
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)
	assert.NoError(t, s.dismiss())

	startRunning(t, s, romeConfig(), romeQuestions(1))
	assert.ErrorIs(t, s.dismiss(), domain.ErrInvalidPhase)
	_, err = s.results()
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)

	_, err = s.answer("Nero")
	require.NoError(t, err)
	_, err = s.answer("Nero")
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)
	assert.Equal(t, 1, s.Snapshot().AnswersRecorded)
}

func TestResetIsIdempotent(t *testing.T) {
	s := newTestSession(newTickerRecorder())
	startRunning(t, s, romeConfig(), romeQuestions(3))
	_, err := s.answer("Augustus")
	require.NoError(t, err)

	s.reset()
	once := s.Snapshot()
	s.reset()
	twice := s.Snapshot()

	assert.Equal(t, once, twice)
	assert.Equal(t, domain.PhaseIdle, twice.Phase)
	assert.Zero(t, twice.Score)
	assert.Zero(t, twice.CurrentIndex)
	assert.Zero(t, currentTimerID(s))
}

func TestShorterBatchIsTolerated(t *testing.T) {
	s := newTestSession(newTickerRecorder())
	startRunning(t, s, romeConfig(), romeQuestions(2))

	for i := 0; i < 2; i++ {
		_, err := s.answer("Nero")
		require.NoError(t, err)
	}
	snap := s.Snapshot()
	assert.Equal(t, domain.PhaseCompleted, snap.Phase)
	assert.Equal(t, 2, snap.TotalQuestions)
	assert.Zero(t, snap.Score)
}

func TestDeriveResultsFillsMissingAnswers(t *testing.T) {
	qs := romeQuestions(3)
	report := DeriveResults(qs, []string{"Augustus"}, 1)

	require.Len(t, report.Results, 3)
	assert.True(t, report.Results[0].IsCorrect)
	assert.Equal(t, "", report.Results[2].UserAnswer)
	assert.False(t, report.Results[2].IsCorrect)
	assert.Equal(t, 33.3, report.Percentage)
}

func TestCloseDisconnectsSubscribers(t *testing.T) {
	s := newTestSession(newTickerRecorder())
	events, cancel := s.subscribe()
	defer cancel()
	<-events

	s.close()
	_, ok := <-events
	assert.False(t, ok)
}

func TestSubscribeInitialSnapshotIsNeverOvertaken(t *testing.T) {
	silent := func(time.Duration) Ticker {
		return &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	}
	s := NewSession("s1", WithSessionClock(fixedClock), WithSessionTicker(silent))
	startRunning(t, s, romeConfig(), romeQuestions(200))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_, _ = s.answer("Augustus")
		}
	}()

	events, cancel := s.subscribe()
	defer cancel()

	last := -1
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			require.GreaterOrEqual(t, ev.Snapshot.CurrentIndex, last, "events arrived out of order")
			last = ev.Snapshot.CurrentIndex
			if ev.Snapshot.Phase == domain.PhaseCompleted {
				<-done
				return
			}
		case <-deadline:
			t.Fatalf("never observed completion, last index %d", last)
		}
	}
}
