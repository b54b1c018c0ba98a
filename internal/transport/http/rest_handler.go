package http

import (
	"net/http"

	"exam-session-service/internal/present"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// RESTHandler serves the request/response side of exam sessions.
type RESTHandler struct {
	service SessionService
	log     zerolog.Logger
}

func NewRESTHandler(service SessionService, log zerolog.Logger) *RESTHandler {
	return &RESTHandler{service: service, log: log.With().Str("component", "rest").Logger()}
}

type startRequest struct {
	ExamID    string `json:"examId" validate:"required"`
	LearnerID string `json:"learnerId" validate:"required"`
}

type answerRequest struct {
	QuestionID string `json:"questionId" validate:"required"`
	Value      string `json:"value"`
}

type timerRequest struct {
	Visible *bool `json:"visible" validate:"required"`
}

func (h *RESTHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(r, &req); err != nil {
		writeInvalid(w, err)
		return
	}
	view, err := h.service.Start(r.Context(), req.ExamID, req.LearnerID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *RESTHandler) Current(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Current(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *RESTHandler) SetAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decode(r, &req); err != nil {
		writeInvalid(w, err)
		return
	}
	view, err := h.service.SetAnswer(r.Context(), chi.URLParam(r, "sessionID"), req.QuestionID, req.Value)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *RESTHandler) Next(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Next(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *RESTHandler) Previous(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Previous(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *RESTHandler) SetTimerVisible(w http.ResponseWriter, r *http.Request) {
	var req timerRequest
	if err := decode(r, &req); err != nil {
		writeInvalid(w, err)
		return
	}
	view, err := h.service.SetTimerVisible(r.Context(), chi.URLParam(r, "sessionID"), *req.Visible)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *RESTHandler) Submit(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Submit(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *RESTHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Abandon(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Result returns the display form of a finished attempt.
func (h *RESTHandler) Result(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Result(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, present.Build(result))
}

// ResultPage renders the results page as HTML.
func (h *RESTHandler) ResultPage(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Result(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		status, detail := statusFor(err)
		http.Error(w, detail.Message, status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := present.RenderHTML(w, present.Build(result)); err != nil {
		h.log.Error().Err(err).Msg("render result page")
	}
}
