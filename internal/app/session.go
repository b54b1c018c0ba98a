package app

import (
	"sync"
	"time"

	"exam-session-service/internal/domain"
)

// SessionConfig describes one attempt. Exam must already be validated.
type SessionConfig struct {
	ID           string
	LearnerID    string
	Exam         domain.Exam
	TickInterval time.Duration
	// OnSubmitted runs once, outside the session lock, after the attempt
	// becomes terminal.
	OnSubmitted func(domain.Result)
}

// Session is one learner's attempt at one exam. It owns the answer store, the
// navigator and the countdown. Learner calls and timer ticks are serialised by
// mu; the in_progress -> submitted transition is a single check-and-set under
// that lock.
type Session struct {
	id          string
	learnerID   string
	exam        domain.Exam
	startedAt   time.Time
	timer       *Timer
	onSubmitted func(domain.Result)

	mu           sync.Mutex
	answers      map[string]string
	currentIndex int
	status       domain.SessionStatus
	result       *domain.Result
	closed       bool
	subscribers  map[chan domain.SessionEvent]struct{}
}

// NewSession starts the attempt and its timer.
func NewSession(cfg SessionConfig) *Session {
	s := newSession(cfg)
	go s.timer.run()
	return s
}

// newSession builds a session whose timer is not yet running, so tests can
// drive ticks by hand.
func newSession(cfg SessionConfig) *Session {
	s := &Session{
		id:          cfg.ID,
		learnerID:   cfg.LearnerID,
		exam:        cfg.Exam,
		startedAt:   time.Now(),
		onSubmitted: cfg.OnSubmitted,
		answers:     make(map[string]string),
		status:      domain.StatusInProgress,
		subscribers: make(map[chan domain.SessionEvent]struct{}),
	}
	s.timer = newTimer(cfg.Exam.TimeLimitSeconds(),
		WithTimerTick(cfg.TickInterval),
		OnTick(s.onTick),
		OnExpire(s.onExpire),
	)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// ExamID returns the id of the exam being taken.
func (s *Session) ExamID() string { return s.exam.ID }

// LearnerID returns who is taking the exam.
func (s *Session) LearnerID() string { return s.learnerID }

// TimeLimit is the full timer budget of the attempt.
func (s *Session) TimeLimit() time.Duration {
	return time.Duration(s.exam.TimeLimitSeconds()) * time.Second
}

// StartedAt is when the attempt was created.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// View returns the learner-facing snapshot. It never mutates state.
func (s *Session) View() domain.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Status returns the current lifecycle state.
func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Result returns the graded record once the session is terminal.
func (s *Session) Result() (domain.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return domain.Result{}, false
	}
	return s.result.Clone(), true
}

// Answers returns a copy of the answer store.
func (s *Session) Answers() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyAnswers(s.answers)
}

// SetAnswer overwrites the learner's answer for a question.
func (s *Session) SetAnswer(questionID, value string) (domain.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return domain.SessionView{}, err
	}
	if _, ok := s.exam.QuestionIndex(questionID); !ok {
		return domain.SessionView{}, domain.ErrQuestionNotFound
	}
	s.answers[questionID] = value
	return s.broadcastStateLocked(), nil
}

// GoNext moves forward one question. Past the last question it is a no-op.
func (s *Session) GoNext() (domain.SessionView, error) {
	return s.move(1)
}

// GoPrevious moves back one question. Before the first question it is a no-op.
func (s *Session) GoPrevious() (domain.SessionView, error) {
	return s.move(-1)
}

func (s *Session) move(delta int) (domain.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return domain.SessionView{}, err
	}
	next := s.currentIndex + delta
	if next < 0 {
		next = 0
	}
	if last := len(s.exam.Questions) - 1; next > last {
		next = last
	}
	if next == s.currentIndex {
		return s.viewLocked(), nil
	}
	s.currentIndex = next
	return s.broadcastStateLocked(), nil
}

// SetTimerVisible shows or hides the countdown. Time keeps elapsing either way.
func (s *Session) SetTimerVisible(visible bool) (domain.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return domain.SessionView{}, err
	}
	s.timer.SetVisible(visible)
	return s.broadcastStateLocked(), nil
}

// Submit ends the attempt. Exactly one caller wins; every later call gets
// ErrSessionAlreadySubmitted and nothing is graded twice.
func (s *Session) Submit(trigger domain.SubmitTrigger) (domain.Result, error) {
	s.mu.Lock()
	if err := s.mutableLocked(); err != nil {
		s.mu.Unlock()
		return domain.Result{}, err
	}

	result := Grade(GradeInput{
		SessionID:        s.id,
		LearnerID:        s.learnerID,
		Exam:             s.exam,
		Answers:          copyAnswers(s.answers),
		TimeTakenSeconds: s.timer.Elapsed(),
		Trigger:          trigger,
	})
	s.status = domain.StatusSubmitted
	s.result = &result
	s.timer.Stop()

	view := s.viewLocked()
	s.broadcastSubmittedLocked(view)
	s.closeSubscribersLocked()
	hook := s.onSubmitted
	s.mu.Unlock()

	if hook != nil {
		hook(result.Clone())
	}
	return result.Clone(), nil
}

// Close abandons an unsubmitted attempt: the timer stops and subscribers are
// released. Calls made after Close report ErrSessionNotFound.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	s.closed = true
	s.timer.Stop()
	s.closeSubscribersLocked()
	return nil
}

// Subscribe returns a channel of session events, primed with the current
// state. Slow readers only ever miss stale events. The cancel func must be
// called once the caller is done.
func (s *Session) Subscribe() (<-chan domain.SessionEvent, func()) {
	ch := make(chan domain.SessionEvent, 8)

	s.mu.Lock()
	view := s.viewLocked()
	initial := domain.SessionEvent{
		Type:             domain.EventState,
		View:             &view,
		RemainingSeconds: view.RemainingSeconds,
		ElapsedSeconds:   view.ElapsedSeconds,
	}
	if s.result != nil {
		result := s.result.Clone()
		initial.Type = domain.EventSubmitted
		initial.Result = &result
	}
	ch <- initial
	if s.status != domain.StatusInProgress || s.closed {
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
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

func (s *Session) onTick(elapsed, remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.StatusInProgress || s.closed {
		return
	}
	s.broadcastLocked(domain.SessionEvent{
		Type:             domain.EventTick,
		RemainingSeconds: remaining,
		ElapsedSeconds:   elapsed,
	})
}

// onExpire races manual submission; losing the race is expected.
func (s *Session) onExpire() {
	_, _ = s.Submit(domain.TriggerTimeout)
}

func (s *Session) mutableLocked() error {
	if s.status == domain.StatusSubmitted {
		return domain.ErrSessionAlreadySubmitted
	}
	if s.closed {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *Session) viewLocked() domain.SessionView {
	q := s.exam.Questions[s.currentIndex]
	answer, answered := s.answers[q.ID]
	return domain.SessionView{
		SessionID:        s.id,
		ExamID:           s.exam.ID,
		Title:            s.exam.Title,
		Index:            s.currentIndex,
		Total:            len(s.exam.Questions),
		Question:         domain.NewQuestionView(q),
		Answer:           answer,
		Answered:         answered,
		RemainingSeconds: s.timer.Remaining(),
		ElapsedSeconds:   s.timer.Elapsed(),
		TimeLimitSeconds: s.timer.Budget(),
		TimerVisible:     s.timer.Visible(),
		Status:           s.status,
	}
}

func (s *Session) broadcastStateLocked() domain.SessionView {
	view := s.viewLocked()
	s.broadcastLocked(domain.SessionEvent{
		Type:             domain.EventState,
		View:             &view,
		RemainingSeconds: view.RemainingSeconds,
		ElapsedSeconds:   view.ElapsedSeconds,
	})
	return view
}

// broadcastSubmittedLocked gives every subscriber its own copy of the result.
func (s *Session) broadcastSubmittedLocked(view domain.SessionView) {
	for ch := range s.subscribers {
		result := s.result.Clone()
		v := view
		s.sendLocked(ch, domain.SessionEvent{
			Type:             domain.EventSubmitted,
			View:             &v,
			RemainingSeconds: view.RemainingSeconds,
			ElapsedSeconds:   view.ElapsedSeconds,
			Result:           &result,
		})
	}
}

func (s *Session) broadcastLocked(ev domain.SessionEvent) {
	for ch := range s.subscribers {
		s.sendLocked(ch, ev)
	}
}

func (s *Session) sendLocked(ch chan domain.SessionEvent, ev domain.SessionEvent) {
	select {
	case ch <- ev:
	default:
		// drop the oldest queued event so the newest always lands
		select {
		case <-ch:
		default:
		}
		ch <- ev
	}
}

func (s *Session) closeSubscribersLocked() {
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func copyAnswers(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
