package domain

import (
	"fmt"
	"strings"
	"time"
)

// HiddenAnswer replaces the correct option index in client-facing questions.
const HiddenAnswer = -1

// Difficulty tags a quiz.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// ParseDifficulty accepts any casing and defaults an empty value to MEDIUM.
func ParseDifficulty(raw string) (Difficulty, error) {
	switch d := Difficulty(strings.ToUpper(strings.TrimSpace(raw))); d {
	case "":
		return DifficultyMedium, nil
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	default:
		return "", fmt.Errorf("%w: unknown difficulty %q", ErrInvalidQuizConfig, raw)
	}
}

// QuizStatus is the lifecycle state of a quiz. It only moves forward.
type QuizStatus string

const (
	StatusCreated    QuizStatus = "CREATED"
	StatusInProgress QuizStatus = "IN_PROGRESS"
	StatusCompleted  QuizStatus = "COMPLETED"
)

// Question models a multiple choice question with one correct option.
type Question struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// Validate checks the option count and the correct index.
func (q Question) Validate() error {
	if len(q.Options) < 2 {
		return fmt.Errorf("%w: question %q needs at least two options", ErrInvalidQuizConfig, q.ID)
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("%w: question %q correct index %d out of range", ErrInvalidQuizConfig, q.ID, q.CorrectIndex)
	}
	return nil
}

// HasOption reports whether index addresses one of the options.
func (q Question) HasOption(index int) bool {
	return index >= 0 && index < len(q.Options)
}

// Clone returns a deep copy.
func (q Question) Clone() Question {
	q.Options = append([]string(nil), q.Options...)
	return q
}

// Sanitized returns a copy safe to send to players while the question is open.
func (q Question) Sanitized() Question {
	c := q.Clone()
	c.CorrectIndex = HiddenAnswer
	return c
}

// Player is a quiz participant and their accumulated score.
type Player struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Score          int       `json:"score"`
	CorrectAnswers int       `json:"correctAnswers"`
	JoinedAt       time.Time `json:"joinedAt"`
}

// QuizConfig is everything needed to create a quiz.
type QuizConfig struct {
	Title           string
	Questions       []Question
	TimePerQuestion time.Duration
	Difficulty      Difficulty
	CreatorID       string
}

// Validate rejects configurations a quiz cannot run with.
func (c QuizConfig) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidQuizConfig)
	}
	if strings.TrimSpace(c.CreatorID) == "" {
		return fmt.Errorf("%w: creator id is required", ErrInvalidQuizConfig)
	}
	if len(c.Questions) == 0 {
		return fmt.Errorf("%w: at least one question is required", ErrInvalidQuizConfig)
	}
	if c.TimePerQuestion <= 0 {
		return fmt.Errorf("%w: time per question must be positive", ErrInvalidQuizConfig)
	}
	if _, err := ParseDifficulty(string(c.Difficulty)); err != nil {
		return err
	}
	for _, q := range c.Questions {
		if err := q.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// QuizFromSet creates a quiz from a stored question set.
// A zero QuestionCount takes up to the configured maximum; a zero TimePerQuestion uses the configured default.
type QuizFromSet struct {
	SetID           string
	Title           string
	QuestionCount   int
	TimePerQuestion time.Duration
	Difficulty      Difficulty
	CreatorID       string
}

// QuizState is a read-only snapshot of a quiz. Timestamps that have not
// happened yet are nil.
type QuizState struct {
	QuizID               string     `json:"quizId"`
	Title                string     `json:"title"`
	Status               QuizStatus `json:"status"`
	Difficulty           Difficulty `json:"difficulty"`
	CreatorID            string     `json:"creatorId"`
	CurrentQuestion      *Question  `json:"currentQuestion,omitempty"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	TotalQuestions       int        `json:"totalQuestions"`
	TimePerQuestionMs    int64      `json:"timePerQuestionMs"`
	QuestionDeadline     *time.Time `json:"questionDeadline,omitempty"`
	Players              []Player   `json:"players"`
	AnsweredCount        int        `json:"answeredCount"`
	Version              uint64     `json:"version"`
	CreatedAt            time.Time  `json:"createdAt"`
	StartedAt            *time.Time `json:"startedAt,omitempty"`
	CompletedAt          *time.Time `json:"completedAt,omitempty"`
}

// TimePerQuestion returns the per-question time limit.
func (s QuizState) TimePerQuestion() time.Duration {
	return time.Duration(s.TimePerQuestionMs) * time.Millisecond
}

// AnswerOutcome summarizes a scored submission for the submitting player.
type AnswerOutcome struct {
	QuestionID    string `json:"questionId"`
	QuestionIndex int    `json:"questionIndex"`
	Correct       bool   `json:"correct"`
	Awarded       int    `json:"awarded"`
	TotalScore    int    `json:"totalScore"`
	// Advanced is set when this answer completed the question for the whole roster.
	Advanced bool `json:"advanced"`
}

// QuizResult is the final outcome of one player in a completed quiz.
// Rank is 1-based by score; tied players share a rank.
type QuizResult struct {
	QuizID         string     `json:"quizId"`
	QuizTitle      string     `json:"quizTitle"`
	PlayerID       string     `json:"playerId"`
	PlayerName     string     `json:"playerName"`
	Score          int        `json:"score"`
	TotalQuestions int        `json:"totalQuestions"`
	CorrectAnswers int        `json:"correctAnswers"`
	CompletedAt    time.Time  `json:"completedAt"`
	IsWinner       bool       `json:"isWinner"`
	Rank           int        `json:"rank"`
	Difficulty     Difficulty `json:"difficulty"`
}
