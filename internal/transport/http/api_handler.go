package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
)

const defaultHistoryLimit = 20

// APIHandler exposes the quiz registry and result history as JSON endpoints.
type APIHandler struct {
	registry *app.Registry
	history  app.ResultHistory
	logger   *slog.Logger
}

func NewAPIHandler(registry *app.Registry, history app.ResultHistory, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{registry: registry, history: history, logger: logger}
}

// Register mounts the endpoints on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /quizzes", h.createQuiz)
	mux.HandleFunc("GET /quizzes/{id}", h.getQuiz)
	mux.HandleFunc("DELETE /quizzes/{id}", h.removeQuiz)
	mux.HandleFunc("POST /quizzes/{id}/players", h.join)
	mux.HandleFunc("POST /quizzes/{id}/start", h.start)
	mux.HandleFunc("POST /quizzes/{id}/answers", h.answer)
	mux.HandleFunc("POST /quizzes/{id}/next", h.next)
	mux.HandleFunc("GET /results/winners", h.winners)
	mux.HandleFunc("GET /results/players/{id}", h.playerHistory)
}

type createQuizRequest struct {
	Title string `json:"title"`
	// Questions are used as given; otherwise SetID selects a stored question set.
	Questions              []domain.Question `json:"questions"`
	SetID                  string            `json:"setId"`
	QuestionCount          int               `json:"questionCount"`
	TimePerQuestionSeconds int               `json:"timePerQuestionSeconds"`
	Difficulty             string            `json:"difficulty"`
	CreatorID              string            `json:"creatorId"`
}

type createQuizResponse struct {
	QuizID string `json:"quizId"`
}

type joinRequest struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

type controlRequest struct {
	RequesterID string `json:"requesterId"`
}

type answerRequest struct {
	PlayerID    string `json:"playerId"`
	QuestionID  string `json:"questionId"`
	OptionIndex *int   `json:"optionIndex"`
}

func (h *APIHandler) createQuiz(w http.ResponseWriter, r *http.Request) {
	var req createQuizRequest
	if !decode(w, r, &req) {
		return
	}
	timePerQuestion := time.Duration(req.TimePerQuestionSeconds) * time.Second

	var (
		id  string
		err error
	)
	if req.SetID != "" && len(req.Questions) == 0 {
		id, err = h.registry.CreateQuizFromSet(r.Context(), domain.QuizFromSet{
			SetID:           req.SetID,
			Title:           req.Title,
			QuestionCount:   req.QuestionCount,
			TimePerQuestion: timePerQuestion,
			Difficulty:      domain.Difficulty(req.Difficulty),
			CreatorID:       req.CreatorID,
		})
	} else {
		id, err = h.registry.CreateQuiz(r.Context(), domain.QuizConfig{
			Title:           req.Title,
			Questions:       req.Questions,
			TimePerQuestion: timePerQuestion,
			Difficulty:      domain.Difficulty(req.Difficulty),
			CreatorID:       req.CreatorID,
		})
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createQuizResponse{QuizID: id})
}

func (h *APIHandler) getQuiz(w http.ResponseWriter, r *http.Request) {
	state, err := h.registry.GetQuiz(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *APIHandler) removeQuiz(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.RemoveQuiz(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decode(w, r, &req) {
		return
	}
	state, err := h.registry.Join(r.Context(), r.PathValue("id"), req.PlayerID, req.Name)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func (h *APIHandler) start(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if !decode(w, r, &req) {
		return
	}
	state, err := h.registry.Start(r.Context(), r.PathValue("id"), req.RequesterID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *APIHandler) answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decode(w, r, &req) {
		return
	}
	if req.OptionIndex == nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Code: "bad_request", Message: "optionIndex is required"})
		return
	}
	outcome, err := h.registry.SubmitAnswer(r.Context(), r.PathValue("id"), req.PlayerID, req.QuestionID, *req.OptionIndex)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *APIHandler) next(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if !decode(w, r, &req) {
		return
	}
	state, err := h.registry.Advance(r.Context(), r.PathValue("id"), req.RequesterID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *APIHandler) winners(w http.ResponseWriter, r *http.Request) {
	if !h.historyConfigured(w) {
		return
	}
	results, err := h.history.Winners(r.Context(), limitParam(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *APIHandler) playerHistory(w http.ResponseWriter, r *http.Request) {
	if !h.historyConfigured(w) {
		return
	}
	results, err := h.history.PlayerHistory(r.Context(), r.PathValue("id"), limitParam(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *APIHandler) historyConfigured(w http.ResponseWriter) bool {
	if h.history != nil {
		return true
	}
	writeJSON(w, http.StatusServiceUnavailable, errorPayload{Code: "unavailable", Message: "result history is not configured"})
	return false
}

func (h *APIHandler) fail(w http.ResponseWriter, err error) {
	status, payload := errorBody(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, payload)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorPayload{Code: "too_large", Message: "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorPayload{Code: "bad_request", Message: "invalid JSON body"})
		return false
	}
	return true
}

func limitParam(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultHistoryLimit
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
