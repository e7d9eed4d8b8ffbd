package http

import (
	"context"
	"encoding/json"
	"net/http"

	"ai-quiz-service/internal/app"
	"ai-quiz-service/internal/domain"
	"ai-quiz-service/internal/logger"
	"github.com/gorilla/websocket"
)

const maxInboundMessageBytes = 64 << 10

// WSHandler runs one quiz session per websocket connection.
type WSHandler struct {
	service  *app.QuizService
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, log *logger.Logger) *WSHandler {
	if log == nil {
		log = logger.Nop()
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
	Answer string `json:"answer"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades the request, starts a fresh session and relays intents to it
// until the client disconnects. The session is discarded with the connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxInboundMessageBytes)

	ctx := r.Context()
	sessionID := h.service.StartSession(ctx).SessionID
	log := h.log.With("session_id", sessionID)
	defer h.service.Close(context.Background(), sessionID)

	updates, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[apiError]{Type: "error", Payload: toAPIError(err)})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}
	pushError := func(err error) {
		apiErr := toAPIError(err)
		if apiErr.status >= 500 {
			log.Error("ws intent failed", "code", apiErr.Code, "error", err.Error())
		}
		push(outboundMessage[any]{Type: "error", Payload: apiErr})
	}

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write error", "error", err.Error())
				return
			}
		}
	}()

	initial := <-updates
	push(outboundMessage[any]{Type: "session", Payload: initial.Snapshot})

	go func() {
		defer close(updatesDone)
		lastPhase := initial.Snapshot.Phase
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					return
				}
				if ev.Feedback != nil {
					push(outboundMessage[any]{Type: "feedback", Payload: *ev.Feedback})
				}
				push(outboundMessage[any]{Type: "state", Payload: ev.Snapshot})
				if ev.Snapshot.Phase == domain.PhaseCompleted && lastPhase != domain.PhaseCompleted {
					if report, err := h.service.Results(ctx, sessionID); err == nil {
						push(outboundMessage[any]{Type: "results", Payload: report})
					}
				}
				lastPhase = ev.Snapshot.Phase
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
		switch inbound.Type {
		case "submit":
			var cfg domain.QuizConfig
			if err := json.Unmarshal(inbound.Payload, &cfg); err != nil {
				push(outboundMessage[any]{Type: "error", Payload: apiError{Code: CodeBadRequest, Message: "invalid quiz configuration"}})
				continue
			}
			if _, err := h.service.Submit(ctx, sessionID, cfg); err != nil {
				pushError(err)
			}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(outboundMessage[any]{Type: "error", Payload: apiError{Code: CodeBadRequest, Message: "invalid answer payload"}})
				continue
			}
			if _, err := h.service.Answer(ctx, sessionID, payload.Answer); err != nil {
				pushError(err)
			}
		case "reset":
			if _, err := h.service.Reset(ctx, sessionID); err != nil {
				pushError(err)
			}
		case "dismiss":
			if _, err := h.service.Dismiss(ctx, sessionID); err != nil {
				pushError(err)
			}
		case "sync":
			snap, err := h.service.Snapshot(ctx, sessionID)
			if err != nil {
				pushError(err)
				continue
			}
			push(outboundMessage[any]{Type: "state", Payload: snap})
		case "results":
			report, err := h.service.Results(ctx, sessionID)
			if err != nil {
				pushError(err)
				continue
			}
			push(outboundMessage[any]{Type: "results", Payload: report})
		default:
			push(outboundMessage[any]{Type: "error", Payload: apiError{Code: CodeBadRequest, Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
