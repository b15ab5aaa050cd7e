package domain

import "errors"

var (
	// ErrInvalidQuizConfig is returned when a quiz cannot be created from the given settings.
	ErrInvalidQuizConfig = errors.New("invalid quiz config")
	// ErrQuizNotFound is returned when no active quiz has the given id.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizStillActive is returned when removing a quiz that is in progress.
	ErrQuizStillActive = errors.New("quiz is still in progress")
	// ErrQuizAlreadyStarted is returned by join and start once the quiz has left CREATED.
	ErrQuizAlreadyStarted = errors.New("quiz already started")
	// ErrQuizNotInProgress is returned when answering or advancing outside IN_PROGRESS.
	ErrQuizNotInProgress = errors.New("quiz is not in progress")
	// ErrNotCreator is returned when someone other than the creator controls the quiz.
	ErrNotCreator = errors.New("only the quiz creator can do this")
	// ErrEmptyRoster is returned when starting a quiz nobody joined.
	ErrEmptyRoster = errors.New("quiz has no players")
	// ErrInvalidPlayer is returned when a player id or name is blank.
	ErrInvalidPlayer = errors.New("player id and name are required")
	// ErrDuplicatePlayer is returned when a player id joins twice.
	ErrDuplicatePlayer = errors.New("player already joined")
	// ErrUnknownPlayer is returned when a player acts without joining.
	ErrUnknownPlayer = errors.New("player not found in quiz")
	// ErrAlreadyAnswered is returned on a second answer to the same question.
	ErrAlreadyAnswered = errors.New("player already answered this question")
	// ErrStaleAnswer is returned when an answer names a question that is no longer open.
	ErrStaleAnswer = errors.New("answer is for a question that is no longer open")
	// ErrInvalidOption indicates a submitted option index is out of range.
	ErrInvalidOption = errors.New("invalid option")
	// ErrQuestionSetNotFound indicates the question set could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")
)
