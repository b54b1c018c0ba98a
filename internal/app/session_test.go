package app

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"exam-session-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoQuestionExam(minutes int) domain.Exam {
	return domain.Exam{
		ID:               "exam-1",
		Title:            "Capitals",
		TimeLimitMinutes: minutes,
		Questions: []domain.Question{
			{
				ID:   "q1",
				Type: domain.MultipleChoice,
				Text: "Capital of Japan?",
				Options: []domain.Option{
					{ID: "seoul", Text: "Seoul"},
					{ID: "tokyo", Text: "Tokyo"},
				},
				CorrectAnswer: "tokyo",
			},
			{
				ID:   "q2",
				Type: domain.TrueFalse,
				Text: "The Great Wall is visible from the moon.",
				Options: []domain.Option{
					{ID: "true", Text: "True"},
					{ID: "false", Text: "False"},
				},
				CorrectAnswer: "false",
			},
		},
	}
}

func TestSessionNavigationClamps(t *testing.T) {
	s := newSession(SessionConfig{ID: "s1", Exam: twoQuestionExam(10)})

	view, err := s.GoPrevious()
	require.NoError(t, err)
	assert.Equal(t, 0, view.Index)

	view, err = s.GoNext()
	require.NoError(t, err)
	assert.Equal(t, 1, view.Index)
	assert.Equal(t, "q2", view.Question.ID)

	view, err = s.GoNext()
	require.NoError(t, err)
	assert.Equal(t, 1, view.Index)
}

func TestSessionViewHidesAnswerKeyAndTracksAnswers(t *testing.T) {
	s := newSession(SessionConfig{ID: "s1", Exam: twoQuestionExam(10)})

	view := s.View()
	assert.False(t, view.Answered)
	assert.Equal(t, 600, view.RemainingSeconds)
	assert.True(t, view.TimerVisible)
	assert.Equal(t, domain.StatusInProgress, view.Status)

	view, err := s.SetAnswer("q1", "seoul")
	require.NoError(t, err)
	assert.True(t, view.Answered)
	assert.Equal(t, "seoul", view.Answer)

	_, err = s.SetAnswer("q1", "tokyo")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"q1": "tokyo"}, s.Answers())

	// Reading twice returns the same snapshot.
	assert.Equal(t, s.View(), s.View())
}

func TestSessionRejectsUnknownQuestion(t *testing.T) {
	s := newSession(SessionConfig{ID: "s1", Exam: twoQuestionExam(10)})

	_, err := s.SetAnswer("q9", "x")
	assert.ErrorIs(t, err, domain.ErrQuestionNotFound)
	assert.Empty(t, s.Answers())
}

func TestSessionRejectsMutationAfterSubmit(t *testing.T) {
	s := newSession(SessionConfig{ID: "s1", Exam: twoQuestionExam(10)})
	_, err := s.SetAnswer("q1", "tokyo")
	require.NoError(t, err)

	result, err := s.Submit(domain.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Score)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, domain.StatusSubmitted, s.Status())

	_, err = s.SetAnswer("q2", "false")
	assert.ErrorIs(t, err, domain.ErrSessionAlreadySubmitted)
	_, err = s.GoNext()
	assert.ErrorIs(t, err, domain.ErrSessionAlreadySubmitted)
	_, err = s.GoPrevious()
	assert.ErrorIs(t, err, domain.ErrSessionAlreadySubmitted)
	_, err = s.SetTimerVisible(false)
	assert.ErrorIs(t, err, domain.ErrSessionAlreadySubmitted)
	_, err = s.Submit(domain.TriggerManual)
	assert.ErrorIs(t, err, domain.ErrSessionAlreadySubmitted)

	stored, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, result, stored)
	assert.Equal(t, map[string]string{"q1": "tokyo"}, s.Answers())
}

func TestSessionDoubleSubmitGradesOnce(t *testing.T) {
	var hooks atomic.Int32
	s := newSession(SessionConfig{
		ID:          "s1",
		Exam:        twoQuestionExam(1),
		OnSubmitted: func(domain.Result) { hooks.Add(1) },
	})
	for i := 0; i < 59; i++ {
		s.timer.advance()
	}

	var wg sync.WaitGroup
	var wins atomic.Int32
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := s.Submit(domain.TriggerManual); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		s.timer.advance() // expiry fires on the same tick
	}()
	close(start)
	wg.Wait()

	result, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, int32(1), hooks.Load())
	if result.Trigger == domain.TriggerManual {
		assert.Equal(t, int32(1), wins.Load())
	} else {
		assert.Zero(t, wins.Load())
	}
}

func TestSessionTimeoutForcesSubmission(t *testing.T) {
	exam := twoQuestionExam(1)
	results := make(chan domain.Result, 2)
	s := NewSession(SessionConfig{
		ID:           "s1",
		Exam:         exam,
		TickInterval: time.Millisecond,
		OnSubmitted:  func(r domain.Result) { results <- r },
	})
	_, err := s.SetAnswer("q1", "tokyo")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return s.Status() == domain.StatusSubmitted
	}, 2*time.Second, 5*time.Millisecond)

	result := <-results
	assert.Equal(t, domain.TriggerTimeout, result.Trigger)
	assert.Equal(t, 60, result.TimeTakenSeconds)
	assert.Equal(t, 60, result.TimeLimitSeconds)
	assert.Equal(t, 1, result.Score)

	select {
	case <-results:
		t.Fatalf("submission hook fired twice")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSessionSubscribeStreamsEvents(t *testing.T) {
	s := newSession(SessionConfig{ID: "s1", Exam: twoQuestionExam(10)})
	ch, cancel := s.Subscribe()
	defer cancel()

	initial := <-ch
	assert.Equal(t, domain.EventState, initial.Type)
	require.NotNil(t, initial.View)
	assert.Equal(t, 0, initial.View.Index)

	s.timer.advance()
	tick := <-ch
	assert.Equal(t, domain.EventTick, tick.Type)
	assert.Equal(t, 599, tick.RemainingSeconds)
	assert.Equal(t, 1, tick.ElapsedSeconds)

	_, err := s.GoNext()
	require.NoError(t, err)
	moved := <-ch
	assert.Equal(t, domain.EventState, moved.Type)
	assert.Equal(t, 1, moved.View.Index)

	_, err = s.Submit(domain.TriggerManual)
	require.NoError(t, err)
	done := <-ch
	assert.Equal(t, domain.EventSubmitted, done.Type)
	require.NotNil(t, done.Result)

	_, open := <-ch
	assert.False(t, open, "channel should close after submission")
}

func TestSessionSlowSubscriberKeepsLatest(t *testing.T) {
	s := newSession(SessionConfig{ID: "s1", Exam: twoQuestionExam(10)})
	ch, cancel := s.Subscribe()
	defer cancel()

	for i := 0; i < 20; i++ {
		s.timer.advance()
	}

	var last domain.SessionEvent
	for i := 0; i < 8; i++ {
		last = <-ch
	}
	assert.Equal(t, 20, last.ElapsedSeconds)
}

func TestSessionCloseStopsTimer(t *testing.T) {
	var hooks atomic.Int32
	s := NewSession(SessionConfig{
		ID:           "s1",
		Exam:         twoQuestionExam(1),
		TickInterval: time.Hour,
		OnSubmitted:  func(domain.Result) { hooks.Add(1) },
	})
	ch, _ := s.Subscribe()
	<-ch

	require.NoError(t, s.Close())

	select {
	case <-s.timer.Done():
	case <-time.After(time.Second):
		t.Fatalf("timer still running after close")
	}
	_, open := <-ch
	assert.False(t, open)

	_, err := s.SetAnswer("q1", "tokyo")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = s.Submit(domain.TriggerManual)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, s.Close(), domain.ErrSessionNotFound)
	assert.Zero(t, hooks.Load())
}

func TestSessionResultIsACopy(t *testing.T) {
	var hooked domain.Result
	s := newSession(SessionConfig{
		ID:          "s1",
		Exam:        twoQuestionExam(10),
		OnSubmitted: func(r domain.Result) { hooked = r },
	})
	ch, cancel := s.Subscribe()
	defer cancel()
	<-ch

	_, err := s.SetAnswer("q1", "tokyo")
	require.NoError(t, err)
	<-ch

	result, err := s.Submit(domain.TriggerManual)
	require.NoError(t, err)
	result.PerQuestion[0].UserAnswer = "seoul"
	hooked.PerQuestion[0].Question.Options[1].Text = "Kyoto"
	ev := <-ch
	ev.Result.PerQuestion[0].IsCorrect = false

	stored, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, "tokyo", stored.PerQuestion[0].UserAnswer)
	assert.True(t, stored.PerQuestion[0].IsCorrect)
	assert.Equal(t, "Tokyo", stored.PerQuestion[0].Question.Options[1].Text)
	assert.Equal(t, "Tokyo", s.View().Question.Options[1].Text)
}
