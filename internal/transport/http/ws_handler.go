package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// WSHandler exposes the quiz session lifecycle over a websocket: the client
// answers and navigates, the server pushes state snapshots after every
// mutation and timer tick, and a result event when the attempt is scored.
type WSHandler struct {
	service  *app.SessionService
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewWSHandler(service *app.SessionService, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		log:     log,
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

type answerPayload struct {
	QuestionID string        `json:"questionId"`
	Answer     domain.Answer `json:"answer"`
}

type navigatePayload struct {
	Action string `json:"action"` // next, prev, jump
	Index  int    `json:"index"`  // used by jump
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

func errPayload(err error) errorPayload {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return errorPayload{Message: apiErr.Message, Status: apiErr.Status}
	}
	return errorPayload{Message: err.Error()}
}

// ServeWS upgrades the request and drives one quiz session for its lifetime.
// Closing the socket tears the session down.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sess, err := h.service.Start(r.Context(), quizID, userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errPayload(err)})
		return
	}
	defer h.service.Close(quizID, userID)

	updates, cancel := sess.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer goroutine; everything else funnels through send so the
	// connection never sees concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "session", Payload: snap}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	device := r.UserAgent()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			if err := h.service.Answer(quizID, userID, payload.QuestionID, payload.Answer); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errPayload(err)}
			}
		case "navigate":
			var payload navigatePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid navigate payload"}}
				continue
			}
			switch payload.Action {
			case "next":
				sess.Advance()
			case "prev":
				sess.Retreat()
			case "jump":
				sess.JumpTo(payload.Index)
			default:
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported navigate action"}}
			}
		case "finish":
			result, err := h.service.Finish(r.Context(), quizID, userID, device)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errPayload(err)}
				continue
			}
			if result != nil {
				send <- outboundMessage[any]{Type: "result", Payload: *result}
			}
		case "reset":
			if err := h.service.Reset(quizID, userID); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errPayload(err)}
			}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
