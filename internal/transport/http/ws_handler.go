package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
)

type WSHandler struct {
	registry *app.Registry
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(registry *app.Registry, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		registry: registry,
		logger:   logger,
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

// answerPayload may name the question it answers; answers for a question that
// already closed are rejected instead of landing on the next one.
type answerPayload struct {
	QuestionID  string `json:"questionId"`
	OptionIndex *int   `json:"optionIndex"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz registry.
//
// Players connect with quizId, playerId and name and are joined on connect;
// reconnecting with an id already on the roster resumes that player. The
// creator may connect with only quizId and playerId to control the quiz
// without playing.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	playerID := r.URL.Query().Get("playerId")
	name := r.URL.Query().Get("name")
	if quizID == "" || playerID == "" {
		http.Error(w, "missing quizId or playerId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	logger := h.logger.With("quiz_id", quizID, "player_id", playerID)
	ctx := r.Context()

	joined, err := h.join(ctx, quizID, playerID, name)
	if err != nil {
		_, payload := errorBody(err)
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: payload})
		return
	}

	updates, cancel, err := h.registry.Subscribe(ctx, quizID)
	if err != nil {
		_, payload := errorBody(err)
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: payload})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("ws write error", "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "joined", Payload: joined}

	sendErr := func(err error) {
		_, payload := errorBody(err)
		send <- outboundMessage[any]{Type: "error", Payload: payload}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.OptionIndex == nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "invalid answer payload"}}
				continue
			}
			outcome, err := h.registry.SubmitAnswer(ctx, quizID, playerID, payload.QuestionID, *payload.OptionIndex)
			if err != nil {
				sendErr(err)
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: outcome}
		case "start":
			if _, err := h.registry.Start(ctx, quizID, playerID); err != nil {
				sendErr(err)
			}
		case "next":
			if _, err := h.registry.Advance(ctx, quizID, playerID); err != nil {
				sendErr(err)
			}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
	logger.Debug("ws connection closed")
}

// join adds the player, or resumes one already on the roster.
func (h *WSHandler) join(ctx context.Context, quizID, playerID, name string) (domain.QuizState, error) {
	state, err := h.registry.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizState{}, err
	}
	if name == "" && playerID == state.CreatorID {
		return state, nil
	}

	joined, err := h.registry.Join(ctx, quizID, playerID, name)
	if err == nil {
		return joined, nil
	}
	if errors.Is(err, domain.ErrDuplicatePlayer) || errors.Is(err, domain.ErrQuizAlreadyStarted) {
		current, getErr := h.registry.GetQuiz(ctx, quizID)
		if getErr != nil {
			return domain.QuizState{}, getErr
		}
		for _, p := range current.Players {
			if p.ID == playerID {
				return current, nil
			}
		}
	}
	return domain.QuizState{}, err
}
