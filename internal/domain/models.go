package domain

import (
	"fmt"
	"strings"
)

// QuestionType is the closed set of question kinds. Each kind has its own
// rendering and grading rule.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
)

// QuestionTypes lists every supported kind.
var QuestionTypes = []QuestionType{MultipleChoice, TrueFalse, ShortAnswer}

// ParseQuestionType accepts canonical names and the short tags used by
// spreadsheets and older exports (mcq, tf, short).
func ParseQuestionType(raw string) (QuestionType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "multiple_choice", "mcq":
		return MultipleChoice, nil
	case "true_false", "tf":
		return TrueFalse, nil
	case "short_answer", "short":
		return ShortAnswer, nil
	}
	return "", fmt.Errorf("unknown question type %q", raw)
}

// UnmarshalText normalises legacy tags when decoding JSON or YAML.
func (t *QuestionType) UnmarshalText(text []byte) error {
	parsed, err := ParseQuestionType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IsChoice reports whether the answer key is an option id.
func (t QuestionType) IsChoice() bool {
	return t == MultipleChoice || t == TrueFalse
}

// Option represents a possible answer for a question.
type Option struct {
	ID   string `json:"id" validate:"required"`
	Text string `json:"text"`
}

// Question is one exam item. For choice questions CorrectAnswer holds the id
// of the correct option; for short answers it is the reference text.
type Question struct {
	ID            string       `json:"id" validate:"required"`
	Type          QuestionType `json:"type" validate:"question_type"`
	Text          string       `json:"text" validate:"required"`
	Options       []Option     `json:"options" validate:"dive"`
	CorrectAnswer string       `json:"correctAnswer"`
	Explanation   string       `json:"explanation,omitempty"`
}

// Clone copies the question and its options.
func (q Question) Clone() Question {
	if q.Options != nil {
		q.Options = append(make([]Option, 0, len(q.Options)), q.Options...)
	}
	return q
}

// OptionText resolves an option id to its label.
func (q Question) OptionText(id string) (string, bool) {
	for _, opt := range q.Options {
		if opt.ID == id {
			return opt.Text, true
		}
	}
	return "", false
}

// Exam is a titled, timed collection of questions.
type Exam struct {
	ID               string     `json:"id" validate:"required"`
	Title            string     `json:"title"`
	TimeLimitMinutes int        `json:"timeLimitMinutes" validate:"gt=0"`
	Year             int        `json:"year,omitempty"`
	Questions        []Question `json:"questions" validate:"dive"`
}

// TimeLimitSeconds is the timer budget for one attempt.
func (e Exam) TimeLimitSeconds() int {
	return e.TimeLimitMinutes * 60
}

// QuestionIndex returns the position of a question id in the exam.
func (e Exam) QuestionIndex(id string) (int, bool) {
	for i := range e.Questions {
		if e.Questions[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// SessionStatus is the state of a single attempt.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusSubmitted  SessionStatus = "submitted"
)

// SubmitTrigger records what ended an attempt.
type SubmitTrigger string

const (
	TriggerManual  SubmitTrigger = "manual"
	TriggerTimeout SubmitTrigger = "timeout"
)

// QuestionView is a question as shown to a learner, without its answer key.
type QuestionView struct {
	ID      string       `json:"id"`
	Type    QuestionType `json:"type"`
	Text    string       `json:"text"`
	Options []Option     `json:"options"`
}

// NewQuestionView strips the answer key and explanation.
func NewQuestionView(q Question) QuestionView {
	options := make([]Option, len(q.Options))
	copy(options, q.Options)
	return QuestionView{ID: q.ID, Type: q.Type, Text: q.Text, Options: options}
}

// SessionView is a read-only snapshot of an attempt for the learner.
type SessionView struct {
	SessionID        string        `json:"sessionId"`
	ExamID           string        `json:"examId"`
	Title            string        `json:"title"`
	Index            int           `json:"index"`
	Total            int           `json:"total"`
	Question         QuestionView  `json:"question"`
	Answer           string        `json:"answer"`
	Answered         bool          `json:"answered"`
	RemainingSeconds int           `json:"remainingSeconds"`
	ElapsedSeconds   int           `json:"elapsedSeconds"`
	TimeLimitSeconds int           `json:"timeLimitSeconds"`
	TimerVisible     bool          `json:"timerVisible"`
	Status           SessionStatus `json:"status"`
}

// QuestionResult is the graded outcome of one question.
type QuestionResult struct {
	Question   Question `json:"question"`
	UserAnswer string   `json:"userAnswer"`
	IsCorrect  bool     `json:"isCorrect"`
}

// Result is the immutable record produced when an attempt ends.
type Result struct {
	SessionID        string           `json:"sessionId"`
	ExamID           string           `json:"examId"`
	LearnerID        string           `json:"learnerId,omitempty"`
	PerQuestion      []QuestionResult `json:"perQuestion"`
	Score            int              `json:"score"`
	Total            int              `json:"total"`
	TimeTakenSeconds int              `json:"timeTakenSeconds"`
	TimeLimitSeconds int              `json:"timeLimitSeconds"`
	Trigger          SubmitTrigger    `json:"trigger"`
}

// Clone returns a deep copy that shares no slices with r.
func (r Result) Clone() Result {
	out := r
	if r.PerQuestion != nil {
		out.PerQuestion = make([]QuestionResult, len(r.PerQuestion))
		for i, pq := range r.PerQuestion {
			pq.Question = pq.Question.Clone()
			out.PerQuestion[i] = pq
		}
	}
	return out
}

// SessionEventType tags events streamed to session subscribers.
type SessionEventType string

const (
	EventState     SessionEventType = "state"
	EventTick      SessionEventType = "tick"
	EventSubmitted SessionEventType = "submitted"
)

// SessionEvent is pushed to subscribers whenever the session changes.
type SessionEvent struct {
	Type             SessionEventType `json:"type"`
	View             *SessionView     `json:"view,omitempty"`
	RemainingSeconds int              `json:"remainingSeconds"`
	ElapsedSeconds   int              `json:"elapsedSeconds"`
	Result           *Result          `json:"result,omitempty"`
}
