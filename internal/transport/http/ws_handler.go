package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type WSHandler struct {
	service    SessionService
	log        zerolog.Logger
	upgrader   websocket.Upgrader
	closeGrace time.Duration
}

func NewWSHandler(service SessionService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service:    service,
		log:        log.With().Str("component", "ws").Logger(),
		closeGrace: wsCloseGrace,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type wsAnswerPayload struct {
	QuestionID string `json:"questionId"`
	Value      string `json:"value"`
}

type wsTimerPayload struct {
	Visible bool `json:"visible"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`

	closing bool
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const (
	wsReadLimit  = 4096
	wsWriteWait  = 10 * time.Second
	wsCloseGrace = 5 * time.Second // time a client gets to answer our close frame
	closeMessage = "session ended"
)

// ServeWS upgrades HTTP requests to websockets and streams one session's
// events. Inbound messages drive the session: answer, next, previous, timer,
// submit and abandon. The socket closes once the session is submitted or
// abandoned; a dropped connection leaves the session running.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Code: codeInvalidRequest, Message: "missing sessionId"}})
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	log := h.log.With().Str("session_id", sessionID).Logger()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		closed := false
		for msg := range send {
			if closed {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if msg.closing {
				closed = true
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, closeMessage))
				_ = conn.SetReadDeadline(time.Now().Add(h.closeGrace))
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("ws write error")
				closed = true
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					select {
					case send <- outboundMessage{closing: true}:
					case <-closeSignals:
					}
					return
				}
				select {
				case send <- outboundMessage{Type: string(ev.Type), Payload: ev}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(r, sessionID, inbound); err != nil {
			var detail errorDetail
			if errors.Is(err, errBadPayload) || errors.Is(err, errUnsupported) {
				detail = errorDetail{Code: codeInvalidRequest, Message: err.Error()}
			} else if _, detail = statusFor(err); detail.Code == codeInternal {
				log.Error().Err(err).Str("type", inbound.Type).Msg("ws command failed")
			}
			send <- outboundMessage{Type: "error", Payload: errorPayload{Message: detail.Message, Code: detail.Code}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

var (
	errBadPayload  = errors.New("invalid payload")
	errUnsupported = errors.New("unsupported message type")
)

// dispatch applies one inbound command. State changes reach the client
// through the session subscription, so success needs no direct reply.
func (h *WSHandler) dispatch(r *http.Request, sessionID string, msg inboundMessage) error {
	ctx := r.Context()
	switch msg.Type {
	case "answer":
		var payload wsAnswerPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.QuestionID == "" {
			return errBadPayload
		}
		_, err := h.service.SetAnswer(ctx, sessionID, payload.QuestionID, payload.Value)
		return err
	case "next":
		_, err := h.service.Next(ctx, sessionID)
		return err
	case "previous":
		_, err := h.service.Previous(ctx, sessionID)
		return err
	case "timer":
		var payload wsTimerPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return errBadPayload
		}
		_, err := h.service.SetTimerVisible(ctx, sessionID, payload.Visible)
		return err
	case "submit":
		_, err := h.service.Submit(ctx, sessionID)
		return err
	case "abandon":
		return h.service.Abandon(ctx, sessionID)
	default:
		return errUnsupported
	}
}
