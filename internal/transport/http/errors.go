package http

import (
	"errors"
	"net/http"

	"trivia-quiz-service/internal/domain"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps domain errors to HTTP status codes and stable error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuizConfig):
		return http.StatusBadRequest, "invalid_config"
	case errors.Is(err, domain.ErrInvalidPlayer):
		return http.StatusBadRequest, "invalid_player"
	case errors.Is(err, domain.ErrInvalidOption):
		return http.StatusBadRequest, "invalid_option"
	case errors.Is(err, domain.ErrNotCreator):
		return http.StatusForbidden, "not_creator"
	case errors.Is(err, domain.ErrQuizNotFound):
		return http.StatusNotFound, "quiz_not_found"
	case errors.Is(err, domain.ErrQuestionSetNotFound):
		return http.StatusNotFound, "question_set_not_found"
	case errors.Is(err, domain.ErrUnknownPlayer):
		return http.StatusNotFound, "unknown_player"
	case errors.Is(err, domain.ErrQuizAlreadyStarted):
		return http.StatusConflict, "already_started"
	case errors.Is(err, domain.ErrQuizNotInProgress):
		return http.StatusConflict, "not_in_progress"
	case errors.Is(err, domain.ErrStaleAnswer):
		return http.StatusConflict, "stale_answer"
	case errors.Is(err, domain.ErrAlreadyAnswered):
		return http.StatusConflict, "already_answered"
	case errors.Is(err, domain.ErrDuplicatePlayer):
		return http.StatusConflict, "duplicate_player"
	case errors.Is(err, domain.ErrEmptyRoster):
		return http.StatusConflict, "empty_roster"
	case errors.Is(err, domain.ErrQuizStillActive):
		return http.StatusConflict, "still_active"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func errorBody(err error) (int, errorPayload) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	return status, errorPayload{Code: code, Message: msg}
}
