package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrExamNotFound is returned when an exam is missing or has no questions.
	ErrExamNotFound = errors.New("exam not found")
	// ErrSessionNotFound is returned when a session id is unknown.
	ErrSessionNotFound = errors.New("exam session not found")
	// ErrSessionAlreadySubmitted is returned by any mutation on a terminal session.
	ErrSessionAlreadySubmitted = errors.New("exam session already submitted")
	// ErrQuestionNotFound indicates an answer targeted a question outside the exam.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrResultNotFound indicates no result is held for the session.
	ErrResultNotFound = errors.New("result not found")
)

// ConfigurationError reports exam metadata that cannot back a session.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid exam configuration: %s %s", e.Field, e.Reason)
}

// NewConfigurationError builds a ConfigurationError.
func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}
