package app

import (
	"context"
	"time"

	"exam-session-service/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ExamRepository loads exam content (from cache/backing store).
type ExamRepository interface {
	GetExam(ctx context.Context, examID string) (domain.Exam, error)
}

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// ResultStore keeps graded results after their session is discarded.
type ResultStore interface {
	SaveResult(ctx context.Context, result domain.Result) error
	GetResult(ctx context.Context, sessionID string) (domain.Result, error)
}

// ResultPublisher announces finished attempts to other systems.
type ResultPublisher interface {
	PublishResult(ctx context.Context, result domain.Result) error
}

// Metrics receives session lifecycle counts.
type Metrics interface {
	SessionStarted()
	SessionSubmitted(trigger domain.SubmitTrigger, score, total int)
	SessionAbandoned()
}

type noopMetrics struct{}

func (noopMetrics) SessionStarted()                                 {}
func (noopMetrics) SessionSubmitted(domain.SubmitTrigger, int, int) {}
func (noopMetrics) SessionAbandoned()                               {}

// Option customises an ExamSessionService.
type Option func(*ExamSessionService)

// WithPublisher sets where submitted results are announced.
func WithPublisher(p ResultPublisher) Option {
	return func(s *ExamSessionService) { s.publisher = p }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *ExamSessionService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *ExamSessionService) { s.log = log.With().Str("component", "exam_session").Logger() }
}

// WithTickInterval sets the wall-clock length of one timer second. Tests use
// short intervals to run a full budget quickly.
func WithTickInterval(d time.Duration) Option {
	return func(s *ExamSessionService) { s.tick = d }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *ExamSessionService) { s.newID = fn }
}

// ExamSessionService contains the exam-taking use cases.
type ExamSessionService struct {
	exams     ExamRepository
	sessions  SessionRepository
	results   ResultStore
	publisher ResultPublisher
	metrics   Metrics
	log       zerolog.Logger
	tick      time.Duration
	newID     func() string
}

func NewExamSessionService(exams ExamRepository, sessions SessionRepository, results ResultStore, opts ...Option) *ExamSessionService {
	s := &ExamSessionService{
		exams:    exams,
		sessions: sessions,
		results:  results,
		metrics:  noopMetrics{},
		log:      zerolog.Nop(),
		tick:     time.Second,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a new attempt. Exams that are missing, empty or misconfigured
// never produce a session.
func (s *ExamSessionService) Start(ctx context.Context, examID, learnerID string) (domain.SessionView, error) {
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return domain.SessionView{}, err
	}
	if err := domain.ValidateExam(exam); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID).Msg("exam cannot be taken")
		return domain.SessionView{}, err
	}

	session := NewSession(SessionConfig{
		ID:           s.newID(),
		LearnerID:    learnerID,
		Exam:         exam,
		TickInterval: s.tick,
		OnSubmitted:  s.handleSubmitted,
	})
	s.sessions.Put(session)
	s.metrics.SessionStarted()

	s.log.Info().
		Str("exam_id", examID).
		Str("session_id", session.ID()).
		Str("learner_id", learnerID).
		Int("budget_seconds", exam.TimeLimitSeconds()).
		Msg("session started")
	return session.View(), nil
}

// Current returns the learner's view of a live session.
func (s *ExamSessionService) Current(ctx context.Context, sessionID string) (domain.SessionView, error) {
	session, err := s.session(ctx, sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	return session.View(), nil
}

// SetAnswer records an answer for a question of a live session.
func (s *ExamSessionService) SetAnswer(ctx context.Context, sessionID, questionID, value string) (domain.SessionView, error) {
	session, err := s.session(ctx, sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	return session.SetAnswer(questionID, value)
}

// Next moves to the following question.
func (s *ExamSessionService) Next(ctx context.Context, sessionID string) (domain.SessionView, error) {
	session, err := s.session(ctx, sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	return session.GoNext()
}

// Previous moves to the preceding question.
func (s *ExamSessionService) Previous(ctx context.Context, sessionID string) (domain.SessionView, error) {
	session, err := s.session(ctx, sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	return session.GoPrevious()
}

func (s *ExamSessionService) SetTimerVisible(ctx context.Context, sessionID string, visible bool) (domain.SessionView, error) {
	session, err := s.session(ctx, sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	return session.SetTimerVisible(visible)
}

// Submit ends the attempt at the learner's request.
func (s *ExamSessionService) Submit(ctx context.Context, sessionID string) (domain.Result, error) {
	session, err := s.session(ctx, sessionID)
	if err != nil {
		return domain.Result{}, err
	}
	return session.Submit(domain.TriggerManual)
}

// Abandon discards an attempt without grading it.
func (s *ExamSessionService) Abandon(ctx context.Context, sessionID string) error {
	session, err := s.session(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := session.Close(); err != nil {
		return err
	}
	s.sessions.Delete(sessionID)
	s.metrics.SessionAbandoned()
	s.log.Info().Str("session_id", sessionID).Str("exam_id", session.ExamID()).Msg("session abandoned")
	return nil
}

// Subscribe returns a channel that receives events for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ExamSessionService) Subscribe(ctx context.Context, sessionID string) (<-chan domain.SessionEvent, func(), error) {
	session, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Result returns the graded record of a finished attempt. A submitted
// session still held in memory answers first.
func (s *ExamSessionService) Result(ctx context.Context, sessionID string) (domain.Result, error) {
	if session, ok := s.sessions.Get(sessionID); ok {
		if result, ok := session.Result(); ok {
			return result, nil
		}
	}
	return s.results.GetResult(ctx, sessionID)
}

// session resolves a live session. A stored result marks a session that was
// submitted and then discarded.
func (s *ExamSessionService) session(ctx context.Context, sessionID string) (*Session, error) {
	if session, ok := s.sessions.Get(sessionID); ok {
		return session, nil
	}
	if _, err := s.results.GetResult(ctx, sessionID); err == nil {
		return nil, domain.ErrSessionAlreadySubmitted
	}
	return nil, domain.ErrSessionNotFound
}

// handleSubmitted stores the result before the session is dropped. If the
// store rejects it the session stays live and keeps serving the result.
func (s *ExamSessionService) handleSubmitted(result domain.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log := s.log.With().Str("session_id", result.SessionID).Str("exam_id", result.ExamID).Logger()

	stored := true
	if err := s.results.SaveResult(ctx, result); err != nil {
		stored = false
		log.Error().Err(err).Msg("store result, keeping submitted session")
	}
	if s.publisher != nil {
		if err := s.publisher.PublishResult(ctx, result); err != nil {
			log.Error().Err(err).Msg("publish result")
		}
	}
	if stored {
		s.sessions.Delete(result.SessionID)
	}
	s.metrics.SessionSubmitted(result.Trigger, result.Score, result.Total)

	log.Info().
		Str("trigger", string(result.Trigger)).
		Int("score", result.Score).
		Int("total", result.Total).
		Int("time_taken_seconds", result.TimeTakenSeconds).
		Msg("session submitted")
}
