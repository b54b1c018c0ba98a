package events

import (
	"time"

	"exam-session-service/internal/domain"
)

// EventType names the kinds of messages this service emits.
type EventType string

const (
	EventResultSubmitted EventType = "exam.result_submitted"
)

const (
	eventSource  = "exam-session-service"
	eventVersion = "1"
)

// Envelope is the JSON body of every published message.
type Envelope struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Data      interface{} `json:"data"`
}

// ResultSubmitted announces a finished attempt. It carries the summary only;
// consumers fetch the full result from the results endpoint.
type ResultSubmitted struct {
	SessionID        string               `json:"session_id"`
	ExamID           string               `json:"exam_id"`
	LearnerID        string               `json:"learner_id,omitempty"`
	Score            int                  `json:"score"`
	Total            int                  `json:"total"`
	TimeTakenSeconds int                  `json:"time_taken_seconds"`
	TimeLimitSeconds int                  `json:"time_limit_seconds"`
	Trigger          domain.SubmitTrigger `json:"trigger"`
}

// NewResultSubmitted summarises a result.
func NewResultSubmitted(r domain.Result) ResultSubmitted {
	return ResultSubmitted{
		SessionID:        r.SessionID,
		ExamID:           r.ExamID,
		LearnerID:        r.LearnerID,
		Score:            r.Score,
		Total:            r.Total,
		TimeTakenSeconds: r.TimeTakenSeconds,
		TimeLimitSeconds: r.TimeLimitSeconds,
		Trigger:          r.Trigger,
	}
}
