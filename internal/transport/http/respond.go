package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"exam-session-service/internal/domain"
	"github.com/rs/zerolog"
)

// SessionService is the exam-taking surface exposed over HTTP and WebSocket.
type SessionService interface {
	Start(ctx context.Context, examID, learnerID string) (domain.SessionView, error)
	Current(ctx context.Context, sessionID string) (domain.SessionView, error)
	SetAnswer(ctx context.Context, sessionID, questionID, value string) (domain.SessionView, error)
	Next(ctx context.Context, sessionID string) (domain.SessionView, error)
	Previous(ctx context.Context, sessionID string) (domain.SessionView, error)
	SetTimerVisible(ctx context.Context, sessionID string, visible bool) (domain.SessionView, error)
	Submit(ctx context.Context, sessionID string) (domain.Result, error)
	Abandon(ctx context.Context, sessionID string) error
	Subscribe(ctx context.Context, sessionID string) (<-chan domain.SessionEvent, func(), error)
	Result(ctx context.Context, sessionID string) (domain.Result, error)
}

const (
	codeExamNotFound     = "EXAM_NOT_FOUND"
	codeSessionNotFound  = "SESSION_NOT_FOUND"
	codeAlreadySubmitted = "SESSION_ALREADY_SUBMITTED"
	codeResultNotFound   = "RESULT_NOT_FOUND"
	codeQuestionNotFound = "QUESTION_NOT_FOUND"
	codeInvalidRequest   = "INVALID_REQUEST"
	codeInternal         = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// statusFor maps domain errors onto HTTP. Exams that cannot be taken, for any
// reason, surface to the learner as "no exam to take".
func statusFor(err error) (int, errorDetail) {
	var cfgErr *domain.ConfigurationError
	switch {
	case errors.Is(err, domain.ErrExamNotFound), errors.As(err, &cfgErr):
		return http.StatusNotFound, errorDetail{Code: codeExamNotFound, Message: "no exam to take"}
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, errorDetail{Code: codeSessionNotFound, Message: err.Error()}
	case errors.Is(err, domain.ErrResultNotFound):
		return http.StatusNotFound, errorDetail{Code: codeResultNotFound, Message: err.Error()}
	case errors.Is(err, domain.ErrSessionAlreadySubmitted):
		return http.StatusConflict, errorDetail{Code: codeAlreadySubmitted, Message: err.Error()}
	case errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusBadRequest, errorDetail{Code: codeQuestionNotFound, Message: err.Error()}
	default:
		return http.StatusInternalServerError, errorDetail{Code: codeInternal, Message: "internal server error"}
	}
}

func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status, detail := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, errorBody{Error: detail})
}

func writeInvalid(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
		Code:    codeInvalidRequest,
		Message: "invalid request",
		Fields:  domain.FieldErrors(err),
	}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decode reads a JSON body and runs tag validation on it.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return domain.ValidateStruct(dst)
}
